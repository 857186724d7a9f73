package auth

import (
	"errors"
	"fmt"

	"github.com/atmet-ai/foundry-facade/internal/util"
)

// ErrAuthenticationFailed matches every *AuthError via errors.Is.
var ErrAuthenticationFailed = errors.New("authentication failed")

// FailureKind classifies why a request could not be authenticated.
type FailureKind string

// Failure kinds.
const (
	// FailureMissingCredential: the header is absent or blank.
	FailureMissingCredential FailureKind = "missing_credential"

	// FailureNotConfigured: no keys are configured; every request fails.
	FailureNotConfigured FailureKind = "not_configured"

	// FailureInvalidCredential: the presented key is not recognised.
	FailureInvalidCredential FailureKind = "invalid_credential"
)

// Client-facing failure messages.
const (
	MessageMissingCredential = "Missing API key."
	MessageNotConfigured     = "API key authentication is not configured."
	MessageInvalidCredential = "Invalid API key."
)

// Message returns the client-facing text for the kind.
func (k FailureKind) Message() string {
	switch k {
	case FailureMissingCredential:
		return MessageMissingCredential
	case FailureNotConfigured:
		return MessageNotConfigured
	case FailureInvalidCredential:
		return MessageInvalidCredential
	default:
		return "Authentication failed."
	}
}

// AuthError represents an authentication failure.
type AuthError struct {
	Kind    FailureKind
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("auth error (%s): %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("auth error (%s): %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error.
func (e *AuthError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target.
func (e *AuthError) Is(target error) bool {
	if target == ErrAuthenticationFailed || target == util.ErrUnauthorized {
		return true
	}
	_, ok := target.(*AuthError)
	return ok || errors.Is(e.Cause, target)
}

// NewAuthError creates an AuthError carrying the kind's message.
func NewAuthError(kind FailureKind, cause error) *AuthError {
	return &AuthError{
		Kind:    kind,
		Message: kind.Message(),
		Cause:   cause,
	}
}

// FailureKindOf returns the failure kind of err, or "" if it is not an AuthError.
func FailureKindOf(err error) FailureKind {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.Kind
	}
	return ""
}
