package ratelimit

import (
	"context"
	"time"
)

// Limiter admits or rejects requests against one named policy.
type Limiter interface {
	// Acquire takes one permit. It blocks while the request is queued and
	// returns the context error if ctx ends first.
	Acquire(ctx context.Context) (*Result, error)

	// Policy returns the policy the limiter enforces.
	Policy() Policy
}

// Policy is a named fixed-window rate limit.
type Policy struct {
	// Name identifies the policy.
	Name string

	// PermitLimit is the number of requests admitted per window.
	PermitLimit int

	// Window is the window length. Windows are aligned to the Unix epoch.
	Window time.Duration

	// QueueLimit is how many requests may wait for the next window.
	QueueLimit int
}

// Result represents the result of a rate limit check.
type Result struct {
	// Allowed indicates whether the request is allowed.
	Allowed bool

	// Queued indicates the request waited for a later window.
	Queued bool

	// Limit is the maximum number of requests allowed per window.
	Limit int

	// Remaining is the number of permits left in the current window.
	Remaining int

	// ResetAfter is the duration until the current window ends.
	ResetAfter time.Duration

	// RetryAfter is the duration to wait before retrying (when not allowed).
	RetryAfter time.Duration
}

// NoopLimiter is a rate limiter that always allows requests.
type NoopLimiter struct {
	policy Policy
}

// NewNoopLimiter creates a new noop limiter.
func NewNoopLimiter(name string) *NoopLimiter {
	return &NoopLimiter{policy: Policy{Name: name}}
}

// Acquire implements Limiter.
func (l *NoopLimiter) Acquire(context.Context) (*Result, error) {
	return &Result{Allowed: true}, nil
}

// Policy implements Limiter.
func (l *NoopLimiter) Policy() Policy {
	return l.policy
}

// windowStart returns the start of the window containing t.
func windowStart(t time.Time, window time.Duration) time.Time {
	windowNanos := window.Nanoseconds()
	return time.Unix(0, (t.UnixNano()/windowNanos)*windowNanos)
}

var (
	_ Limiter = (*NoopLimiter)(nil)
	_ Limiter = (*FixedWindowLimiter)(nil)
)
