package apikey

import (
	"context"
	"errors"
	"time"

	"github.com/atmet-ai/foundry-facade/internal/observability"
)

// Common errors for API key validation.
var (
	// ErrEmptyAPIKey indicates that no credential was presented.
	ErrEmptyAPIKey = errors.New("API key is empty")

	// ErrNotConfigured indicates that the credential set is empty.
	ErrNotConfigured = errors.New("API key authentication is not configured")

	// ErrInvalidAPIKey indicates that the credential is not in the set.
	ErrInvalidAPIKey = errors.New("invalid API key")
)

// Validation outcome labels.
const (
	ReasonValid         = "valid"
	ReasonMissing       = "missing"
	ReasonNotConfigured = "not_configured"
	ReasonInvalid       = "invalid"
)

// Validator checks presented credentials against a CredentialSet.
type Validator struct {
	set     *CredentialSet
	logger  observability.Logger
	metrics *Metrics
}

// ValidatorOption is a functional option for the validator.
type ValidatorOption func(*Validator)

// WithValidatorLogger sets the logger for the validator.
func WithValidatorLogger(logger observability.Logger) ValidatorOption {
	return func(v *Validator) {
		v.logger = logger
	}
}

// WithValidatorMetrics sets the metrics for the validator.
func WithValidatorMetrics(metrics *Metrics) ValidatorOption {
	return func(v *Validator) {
		v.metrics = metrics
	}
}

// NewValidator creates a new API key validator. A nil set behaves as empty.
func NewValidator(set *CredentialSet, opts ...ValidatorOption) *Validator {
	if set == nil {
		set = NewCredentialSet("", nil)
	}

	v := &Validator{
		set:    set,
		logger: observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(v)
	}

	if v.metrics == nil {
		v.metrics = NewMetrics(observability.DefaultNamespace)
	}

	return v
}

// CredentialSet returns the set the validator checks against.
func (v *Validator) CredentialSet() *CredentialSet {
	return v.set
}

// Validate checks key, which must already be trimmed. The checks run
// in a fixed order: missing, then not configured, then membership.
func (v *Validator) Validate(ctx context.Context, key string) error {
	start := time.Now()

	if key == "" {
		v.metrics.RecordValidation(ReasonMissing, time.Since(start))
		return ErrEmptyAPIKey
	}

	if v.set.IsEmpty() {
		v.metrics.RecordValidation(ReasonNotConfigured, time.Since(start))
		v.logger.WithContext(ctx).Warn("API key authentication is not configured, rejecting request",
			observability.String("header", v.set.HeaderName()),
		)
		return ErrNotConfigured
	}

	if !v.set.Contains(key) {
		v.metrics.RecordValidation(ReasonInvalid, time.Since(start))
		return ErrInvalidAPIKey
	}

	v.metrics.RecordValidation(ReasonValid, time.Since(start))
	return nil
}
