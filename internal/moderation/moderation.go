// Package moderation decides whether user text may be published.
//
// The Gate asks each configured Classifier in turn. A classifier that errors
// (no API key, timeout, transport failure) is treated as having said "safe":
// an outage of the moderation backend must not stop all posting.
package moderation

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
)

// ErrNotConfigured is returned by classifiers that lack credentials.
var ErrNotConfigured = errors.New("moderation classifier not configured")

// Verdict is the outcome of a moderation check.
type Verdict struct {
	Safe   bool
	Reason string // human-readable, set when Safe is false
}

// Classifier labels one text.
type Classifier interface {
	Classify(ctx context.Context, text string) (Verdict, error)
}

// Gate runs the classifiers and fails open on their errors.
type Gate struct {
	classifiers []Classifier
	log         zerolog.Logger
}

func NewGate(log zerolog.Logger, classifiers ...Classifier) *Gate {
	return &Gate{classifiers: classifiers, log: log}
}

// Check returns the first unsafe verdict, or a safe one.
func (g *Gate) Check(ctx context.Context, text string) Verdict {
	for _, c := range g.classifiers {
		v, err := c.Classify(ctx, text)
		if err != nil {
			if !errors.Is(err, ErrNotConfigured) {
				g.log.Warn().Err(err).Msg("moderation classifier failed, allowing content")
			}
			continue
		}
		if !v.Safe {
			return v
		}
	}
	return Verdict{Safe: true}
}
