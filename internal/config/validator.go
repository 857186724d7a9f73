package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/atmet-ai/foundry-facade/internal/util"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Path    string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d validation errors:\n", len(e))
	for i := range e {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, e[i].Error())
	}
	return sb.String()
}

// Is reports ErrConfigInvalid so callers need not know the concrete type.
func (e ValidationErrors) Is(target error) bool {
	return target == util.ErrConfigInvalid
}

// HasErrors returns true if there are validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validator validates facade configuration.
type Validator struct {
	structs *util.Validator
	errors  ValidationErrors
}

// NewValidator creates a new configuration validator.
func NewValidator() *Validator {
	return &Validator{
		structs: util.NewValidator("validate"),
		errors:  make(ValidationErrors, 0),
	}
}

// ValidateConfig validates cfg and returns ValidationErrors on failure.
func ValidateConfig(cfg *Config) error {
	return NewValidator().Validate(cfg)
}

// Validate runs tag rules first, then the cross-field checks.
func (v *Validator) Validate(cfg *Config) error {
	v.errors = make(ValidationErrors, 0)

	if cfg == nil {
		v.addError("", "configuration is nil")
		return v.errors
	}

	v.validateTags(cfg)
	v.validateAPIKeys(&cfg.APIKeys)
	v.validateRateLimiting(&cfg.RateLimiting)
	v.validateTracing(&cfg.Tracing)

	if v.errors.HasErrors() {
		return v.errors
	}
	return nil
}

func (v *Validator) validateTags(cfg *Config) {
	err := v.structs.Struct(cfg)
	if err == nil {
		return
	}

	var verr *util.ValidationError
	if !errors.As(err, &verr) {
		v.addError("", err.Error())
		return
	}

	paths := make([]string, 0, len(verr.Fields))
	for path := range verr.Fields {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	for _, path := range paths {
		for _, msg := range verr.Fields[path] {
			v.addError(path, msg)
		}
	}
}

// validateAPIKeys rejects blank and padded keys. Presented keys are
// trimmed, so a padded configured key could never match. An empty list
// stays legal.
func (v *Validator) validateAPIKeys(cfg *APIKeyConfig) {
	if strings.TrimSpace(cfg.HeaderName) != cfg.HeaderName {
		v.addError("apiKeys.headerName", "header name must not contain surrounding whitespace")
	}
	for i, key := range cfg.Keys {
		path := fmt.Sprintf("apiKeys.keys[%d]", i)
		switch {
		case strings.TrimSpace(key) == "":
			v.addError(path, "API key must not be blank")
		case strings.TrimSpace(key) != key:
			v.addError(path, "API key must not contain surrounding whitespace")
		}
	}
}

func (v *Validator) validateRateLimiting(cfg *RateLimitingConfig) {
	if cfg.Store == StoreRedis && cfg.Redis.Address == "" {
		v.addError("rateLimiting.redis.address", "address is required when store is redis")
	}
}

func (v *Validator) validateTracing(cfg *TracingConfig) {
	if cfg.Enabled && cfg.OTLPEndpoint == "" {
		v.addError("tracing.otlpEndpoint", "OTLP endpoint is required when tracing is enabled")
	}
}

func (v *Validator) addError(path, message string) {
	v.errors = append(v.errors, ValidationError{Path: path, Message: message})
}
