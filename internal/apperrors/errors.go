// Package apperrors defines the error kinds every operation of the service
// reports. Callers branch on the kind with errors.Is; the HTTP layer maps kinds
// to status codes.
package apperrors

import (
	"errors"
	"fmt"
)

// Kinds. Every *Error wraps exactly one of these.
var (
	ErrValidation        = errors.New("validation failed")
	ErrModerationBlocked = errors.New("blocked by community guidelines")
	ErrAuth              = errors.New("authentication failed")
	ErrUnauthenticated   = errors.New("authentication required")
	ErrForbidden         = errors.New("permission denied")
	ErrNotFound          = errors.New("resource not found")
	ErrIntegrity         = errors.New("integrity conflict")
	ErrTransient         = errors.New("temporarily unavailable")
)

// Error codes with a fixed user-facing message in the localization catalog.
const (
	CodeEmptyContent      = "empty_content"
	CodeContentTooLong    = "content_too_long"
	CodeUnknownChannel    = "unknown_channel"
	CodeInvalidInput      = "invalid_input"
	CodeModerationBlocked = "moderation_blocked"

	CodeInvalidCredentials = "invalid_credentials"
	CodeEmailInUse         = "email_in_use"
	CodeUsernameTaken      = "username_taken"
	CodeUsernameTooShort   = "username_too_short"
	CodeWeakPassword       = "weak_password"
	CodeInvalidDomain      = "invalid_domain"
	CodeSessionExpired     = "session_expired"

	CodeUnauthenticated = "unauthenticated"
	CodeForbidden       = "forbidden"
	CodeNotFound        = "not_found"
	CodeTryAgain        = "try_again"
	CodeUnavailable     = "unavailable"
	CodeAlreadyReported = "already_reported"
)

// Error carries a kind, a stable code and a message safe to show to a user.
type Error struct {
	Kind    error
	Code    string
	Message string
	Err     error // underlying cause, never shown to users
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Kind.Error()
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(kind error, code, message string, cause error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Err: cause}
}

func Validation(code, message string) *Error {
	return newError(ErrValidation, code, message, nil)
}

// ModerationBlocked keeps the classifier's reason verbatim as the message.
func ModerationBlocked(reason string) *Error {
	return newError(ErrModerationBlocked, CodeModerationBlocked, reason, nil)
}

func Auth(code, message string) *Error {
	return newError(ErrAuth, code, message, nil)
}

func Unauthenticated(message string) *Error {
	return newError(ErrUnauthenticated, CodeUnauthenticated, message, nil)
}

func Forbidden(message string) *Error {
	return newError(ErrForbidden, CodeForbidden, message, nil)
}

func NotFound(resource, id string) *Error {
	return newError(ErrNotFound, CodeNotFound, fmt.Sprintf("%s %s not found", resource, id), nil)
}

// Integrity is a "try again" conflict: a concurrent writer won, or a parent vanished.
func Integrity(code, message string) *Error {
	return newError(ErrIntegrity, code, message, nil)
}

// Transient wraps a backend failure (network, transaction conflict).
func Transient(op string, cause error) *Error {
	return newError(ErrTransient, CodeUnavailable, op+" is temporarily unavailable", cause)
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// Is returns whether err matches target or any of errList.
func Is(err, target error, errList ...error) bool {
	if errors.Is(err, target) {
		return true
	}
	for _, e := range errList {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}
