package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorsIs(t *testing.T) {
	cause := errors.New("connection reset")

	tests := []struct {
		name      string
		err       error
		target    error
		wantMatch bool
	}{
		{"validation kind", Validation(CodeEmptyContent, "empty"), ErrValidation, true},
		{"moderation kind", ModerationBlocked("no names"), ErrModerationBlocked, true},
		{"moderation is not validation", ModerationBlocked("no names"), ErrValidation, false},
		{"transient kind", Transient("vote", cause), ErrTransient, true},
		{"transient keeps cause", Transient("vote", cause), cause, true},
		{"integrity kind", Integrity(CodeTryAgain, "again"), ErrIntegrity, true},
		{"not found kind", NotFound("post", "p1"), ErrNotFound, true},
		{"wrapped with fmt", fmt.Errorf("submit: %w", Forbidden("no")), ErrForbidden, true},
		{"auth is not unauthenticated", Auth(CodeInvalidCredentials, "bad"), ErrUnauthenticated, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantMatch, errors.Is(tt.err, tt.target))
		})
	}
}

func TestModerationBlockedKeepsReasonVerbatim(t *testing.T) {
	reason := "Community Guidelines: Post contains prohibited content."
	err := ModerationBlocked(reason)

	assert.Equal(t, reason, err.Error())
	assert.Equal(t, CodeModerationBlocked, err.Code)
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeUsernameTaken, CodeOf(fmt.Errorf("register: %w", Integrity(CodeUsernameTaken, "taken"))))
	assert.Equal(t, "", CodeOf(errors.New("plain")))
	assert.Equal(t, "", CodeOf(nil))
}

func TestErrorMessageFallbacks(t *testing.T) {
	assert.Equal(t, "boom", (&Error{Kind: ErrTransient, Err: errors.New("boom")}).Error())
	assert.Equal(t, ErrNotFound.Error(), (&Error{Kind: ErrNotFound}).Error())
}

func TestIsList(t *testing.T) {
	err := NotFound("post", "x")
	assert.True(t, Is(err, ErrIntegrity, ErrNotFound))
	assert.False(t, Is(err, ErrIntegrity, ErrTransient))
}
