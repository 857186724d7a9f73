package authz

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/atmet-ai/foundry-facade/internal/auth"
	"github.com/atmet-ai/foundry-facade/internal/config"
	"github.com/atmet-ai/foundry-facade/internal/observability"
)

// authzTracer is the OTEL tracer used for authorization decisions.
var authzTracer = otel.Tracer("foundry-facade/authz")

// Decision represents an authorization decision.
type Decision struct {
	// Allowed indicates if the request is allowed.
	Allowed bool

	// Reason is the reason for the decision.
	Reason string

	// Policy is the policy that made the decision.
	Policy string
}

// Authorizer decides whether an identity holds a capability.
//
// Without configured expressions every authenticated identity holds
// every capability. An expression configured for a capability replaces
// that default for the capability alone.
type Authorizer struct {
	policies map[Capability]*expressionPolicy
	logger   observability.Logger
	metrics  *Metrics
	now      func() time.Time
}

// AuthorizerOption is a functional option for the authorizer.
type AuthorizerOption func(*Authorizer)

// WithAuthorizerLogger sets the logger.
func WithAuthorizerLogger(logger observability.Logger) AuthorizerOption {
	return func(a *Authorizer) {
		a.logger = logger
	}
}

// WithAuthorizerMetrics sets the metrics.
func WithAuthorizerMetrics(metrics *Metrics) AuthorizerOption {
	return func(a *Authorizer) {
		a.metrics = metrics
	}
}

// WithAuthorizerClock sets the clock exposed to expressions as now.
func WithAuthorizerClock(now func() time.Time) AuthorizerOption {
	return func(a *Authorizer) {
		a.now = now
	}
}

// NewAuthorizer compiles the configured expressions. Any compilation
// error is returned so startup fails instead of denying at runtime.
func NewAuthorizer(cfg config.AuthorizationConfig, opts ...AuthorizerOption) (*Authorizer, error) {
	a := &Authorizer{
		policies: make(map[Capability]*expressionPolicy),
		logger:   observability.NopLogger(),
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(a)
	}

	if a.metrics == nil {
		a.metrics = NewMetrics(observability.DefaultNamespace)
	}

	expressions := map[Capability]string{
		CapabilityRead:  cfg.ReadExpression,
		CapabilityWrite: cfg.WriteExpression,
	}

	celEnv, err := newExpressionEnv()
	if err != nil {
		return nil, err
	}

	for capability, expression := range expressions {
		if expression == "" {
			continue
		}
		policy, err := compileExpression(celEnv, string(capability), expression)
		if err != nil {
			return nil, err
		}
		a.policies[capability] = policy
	}

	return a, nil
}

// Authorize decides whether identity holds capability. A denial returns
// both the decision and an *AuthzError.
func (a *Authorizer) Authorize(ctx context.Context, identity *auth.Identity, capability Capability) (*Decision, error) {
	ctx, span := authzTracer.Start(ctx, "authz.Authorize",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("authz.capability", string(capability))),
	)
	defer span.End()

	start := time.Now()

	if !identity.IsAuthenticated() {
		decision := &Decision{Allowed: false, Reason: "no authenticated identity", Policy: PolicyDefault}
		a.metrics.RecordDecision(capability, decision.Policy, resultDenied, time.Since(start))
		span.SetAttributes(attribute.Bool("authz.allowed", false))
		return decision, &AuthzError{Err: ErrNoIdentity, Capability: capability, Reason: decision.Reason}
	}

	policy, ok := a.policies[capability]
	if !ok {
		a.metrics.RecordDecision(capability, PolicyDefault, resultAllowed, time.Since(start))
		span.SetAttributes(attribute.Bool("authz.allowed", true))
		return &Decision{Allowed: true, Reason: "authenticated", Policy: PolicyDefault}, nil
	}

	allowed, err := policy.evaluate(ctx, identity.AsMap(), capability, a.now())
	if err != nil {
		a.metrics.RecordDecision(capability, policy.name, resultError, time.Since(start))
		a.logger.WithContext(ctx).Warn("authorization policy evaluation failed",
			observability.String("policy", policy.name),
			observability.String("subject", identity.Subject),
			observability.Error(err),
		)
		span.RecordError(err)
		span.SetAttributes(attribute.Bool("authz.allowed", false))
		decision := &Decision{Allowed: false, Reason: "policy evaluation failed", Policy: policy.name}
		return decision, &AuthzError{
			Err:        err,
			Subject:    identity.Subject,
			Capability: capability,
			Policy:     policy.name,
			Reason:     decision.Reason,
		}
	}

	span.SetAttributes(attribute.Bool("authz.allowed", allowed))

	if !allowed {
		a.metrics.RecordDecision(capability, policy.name, resultDenied, time.Since(start))
		a.logger.WithContext(ctx).Debug("access denied",
			observability.String("policy", policy.name),
			observability.String("subject", identity.Subject),
			observability.String("capability", string(capability)),
		)
		return &Decision{Allowed: false, Reason: "denied by policy", Policy: policy.name},
			NewPolicyDeniedError(identity.Subject, capability, policy.name)
	}

	a.metrics.RecordDecision(capability, policy.name, resultAllowed, time.Since(start))
	return &Decision{Allowed: true, Reason: "matched policy", Policy: policy.name}, nil
}

// HasPolicy reports whether an expression guards capability.
func (a *Authorizer) HasPolicy(capability Capability) bool {
	_, ok := a.policies[capability]
	return ok
}
