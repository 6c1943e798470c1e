package moderation

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// KeywordClassifier blocks text matching any of a fixed set of patterns.
// Patterns are case-insensitive regular expressions.
type KeywordClassifier struct {
	patterns []*regexp.Regexp
	reason   string
}

func NewKeywordClassifier(patterns []string, reason string) (*KeywordClassifier, error) {
	k := &KeywordClassifier{reason: reason}
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("invalid blocked pattern %q: %w", p, err)
		}
		k.patterns = append(k.patterns, re)
	}
	return k, nil
}

func (k *KeywordClassifier) Classify(_ context.Context, text string) (Verdict, error) {
	for _, re := range k.patterns {
		if re.MatchString(text) {
			return Verdict{Safe: false, Reason: k.reason}, nil
		}
	}
	return Verdict{Safe: true}, nil
}
