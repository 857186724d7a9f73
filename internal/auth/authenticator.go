package auth

import (
	"errors"
	"net/http"
	"time"

	"github.com/atmet-ai/foundry-facade/internal/auth/apikey"
	"github.com/atmet-ai/foundry-facade/internal/observability"
)

// Authenticator is the API key authentication gate. Authenticate is a
// pure function of the request and the credential set: it never mutates
// either, so repeated calls return the same result.
type Authenticator struct {
	extractor apikey.Extractor
	validator *apikey.Validator
	logger    observability.Logger
	now       func() time.Time
}

// AuthenticatorOption is a functional option for the authenticator.
type AuthenticatorOption func(*Authenticator)

// WithAuthenticatorLogger sets the logger.
func WithAuthenticatorLogger(logger observability.Logger) AuthenticatorOption {
	return func(a *Authenticator) {
		a.logger = logger
	}
}

// WithExtractor overrides the header extractor.
func WithExtractor(extractor apikey.Extractor) AuthenticatorOption {
	return func(a *Authenticator) {
		a.extractor = extractor
	}
}

// WithClock sets the clock used for AuthTime.
func WithClock(now func() time.Time) AuthenticatorOption {
	return func(a *Authenticator) {
		a.now = now
	}
}

// NewAuthenticator creates an authenticator over validator's credential set.
func NewAuthenticator(validator *apikey.Validator, opts ...AuthenticatorOption) *Authenticator {
	if validator == nil {
		validator = apikey.NewValidator(nil)
	}

	a := &Authenticator{
		validator: validator,
		logger:    observability.NopLogger(),
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(a)
	}

	if a.extractor == nil {
		a.extractor = apikey.NewHeaderExtractor(validator.CredentialSet().HeaderName())
	}

	return a
}

// HeaderName returns the header credentials are read from.
func (a *Authenticator) HeaderName() string {
	return a.validator.CredentialSet().HeaderName()
}

// Authenticate returns the API key identity or an *AuthError.
//
// Checks run in order: missing credential, unconfigured credential set,
// unknown credential. All three are authentication failures.
func (a *Authenticator) Authenticate(r *http.Request) (*Identity, error) {
	ctx := r.Context()

	key, err := a.extractor.Extract(r)
	if err != nil {
		key = ""
	}

	if err := a.validator.Validate(ctx, key); err != nil {
		authErr := toAuthError(err)
		a.logger.WithContext(ctx).Debug("API key authentication failed",
			observability.String("reason", string(authErr.Kind)),
			observability.String("path", r.URL.Path),
		)
		return nil, authErr
	}

	return APIKeyIdentity(a.now()), nil
}

func toAuthError(err error) *AuthError {
	switch {
	case errors.Is(err, apikey.ErrEmptyAPIKey):
		return NewAuthError(FailureMissingCredential, err)
	case errors.Is(err, apikey.ErrNotConfigured):
		return NewAuthError(FailureNotConfigured, err)
	default:
		return NewAuthError(FailureInvalidCredential, err)
	}
}
