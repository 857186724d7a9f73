package authz

import (
	"errors"
	"fmt"

	"github.com/atmet-ai/foundry-facade/internal/util"
)

// Common authorization errors.
var (
	// ErrAccessDenied indicates that access was denied.
	ErrAccessDenied = errors.New("access denied")

	// ErrNoIdentity indicates that no authenticated identity was found.
	ErrNoIdentity = errors.New("no identity in context")

	// ErrInvalidPolicy indicates that a policy expression is invalid.
	ErrInvalidPolicy = errors.New("invalid policy")
)

// AuthzError represents an authorization failure with additional context.
// It matches util.ErrUnauthorized so the error normalizer reports it as
// 401 without exposing Reason.
type AuthzError struct {
	// Err is the underlying error.
	Err error

	// Subject is the subject that was denied.
	Subject string

	// Capability is the capability that was requested.
	Capability Capability

	// Reason is the reason for the denial.
	Reason string

	// Policy is the policy that denied access.
	Policy string
}

// Error returns the error message.
func (e *AuthzError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("authorization failed: %s", e.Reason)
	}
	if e.Err != nil {
		return fmt.Sprintf("authorization failed: %v", e.Err)
	}
	return "authorization failed"
}

// Unwrap returns the underlying error.
func (e *AuthzError) Unwrap() error {
	return e.Err
}

// Is checks if the error matches the target.
func (e *AuthzError) Is(target error) bool {
	return target == util.ErrUnauthorized
}

// NewPolicyDeniedError creates an access denied error naming the policy.
func NewPolicyDeniedError(subject string, capability Capability, policy string) *AuthzError {
	return &AuthzError{
		Err:        ErrAccessDenied,
		Subject:    subject,
		Capability: capability,
		Policy:     policy,
		Reason:     fmt.Sprintf("denied by policy: %s", policy),
	}
}
