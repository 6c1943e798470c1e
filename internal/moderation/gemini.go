package moderation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"
)

const systemInstruction = `You are a campus moderator. If this text contains real names, bullying, or hate speech, reply with "BLOCK". Otherwise, reply "PASS".`

// GeminiClassifier asks a Gemini model for a PASS/BLOCK label.
type GeminiClassifier struct {
	client  *genai.Client
	model   string
	timeout time.Duration
	reason  string
}

// NewGeminiClassifier returns a classifier that reports ErrNotConfigured when
// apiKey is empty, so deployments without a key still start.
func NewGeminiClassifier(ctx context.Context, apiKey, model string, timeout time.Duration, reason string) (*GeminiClassifier, error) {
	g := &GeminiClassifier{model: model, timeout: timeout, reason: reason}
	if apiKey == "" {
		return g, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	g.client = client
	return g, nil
}

func (g *GeminiClassifier) Classify(ctx context.Context, text string) (Verdict, error) {
	if g.client == nil {
		return Verdict{}, ErrNotConfigured
	}
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model,
		genai.Text(`"`+text+`"`),
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(systemInstruction, genai.RoleUser),
			Temperature:       genai.Ptr[float32](0.1),
		},
	)
	if err != nil {
		return Verdict{}, fmt.Errorf("gemini generate: %w", err)
	}

	return parseLabel(resp.Text(), g.reason), nil
}

// parseLabel treats an empty answer as PASS.
func parseLabel(answer, reason string) Verdict {
	if strings.Contains(strings.ToUpper(strings.TrimSpace(answer)), "BLOCK") {
		return Verdict{Safe: false, Reason: reason}
	}
	return Verdict{Safe: true}
}
