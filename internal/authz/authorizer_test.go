package authz

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atmet-ai/foundry-facade/internal/auth"
	"github.com/atmet-ai/foundry-facade/internal/config"
	"github.com/atmet-ai/foundry-facade/internal/util"
)

func TestCapabilityForMethod(t *testing.T) {
	t.Parallel()

	tests := []struct {
		method string
		want   Capability
	}{
		{http.MethodGet, CapabilityRead},
		{http.MethodHead, CapabilityRead},
		{http.MethodOptions, CapabilityRead},
		{http.MethodPost, CapabilityWrite},
		{http.MethodPut, CapabilityWrite},
		{http.MethodPatch, CapabilityWrite},
		{http.MethodDelete, CapabilityWrite},
	}

	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, CapabilityForMethod(tt.method))
			assert.Equal(t, tt.want == CapabilityWrite, IsWriteMethod(tt.method))
		})
	}
}

func TestAuthorizer_DefaultPolicy(t *testing.T) {
	t.Parallel()

	a, err := NewAuthorizer(config.AuthorizationConfig{})
	require.NoError(t, err)

	identity := auth.APIKeyIdentity(time.Now())

	for _, capability := range []Capability{CapabilityRead, CapabilityWrite, Capability("anything")} {
		decision, err := a.Authorize(context.Background(), identity, capability)
		require.NoError(t, err)
		assert.True(t, decision.Allowed)
		assert.Equal(t, PolicyDefault, decision.Policy)
	}

	assert.False(t, a.HasPolicy(CapabilityRead))
	assert.False(t, a.HasPolicy(CapabilityWrite))
}

func TestAuthorizer_DeniesUnauthenticated(t *testing.T) {
	t.Parallel()

	a, err := NewAuthorizer(config.AuthorizationConfig{})
	require.NoError(t, err)

	for name, identity := range map[string]*auth.Identity{
		"nil":       nil,
		"anonymous": {Subject: "anonymous", AuthType: auth.AuthTypeAnonymous},
	} {
		t.Run(name, func(t *testing.T) {
			decision, err := a.Authorize(context.Background(), identity, CapabilityRead)

			require.Error(t, err)
			assert.False(t, decision.Allowed)
			assert.ErrorIs(t, err, ErrNoIdentity)
			assert.True(t, errors.Is(err, util.ErrUnauthorized))
		})
	}
}

func TestAuthorizer_Expressions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		cfg        config.AuthorizationConfig
		capability Capability
		wantAllow  bool
	}{
		{
			name:       "write expression allows api key",
			cfg:        config.AuthorizationConfig{WriteExpression: `identity.auth_type == "ApiKey"`},
			capability: CapabilityWrite,
			wantAllow:  true,
		},
		{
			name:       "write expression denies",
			cfg:        config.AuthorizationConfig{WriteExpression: `identity.sub == "admin"`},
			capability: CapabilityWrite,
			wantAllow:  false,
		},
		{
			name:       "read unaffected by write expression",
			cfg:        config.AuthorizationConfig{WriteExpression: "false"},
			capability: CapabilityRead,
			wantAllow:  true,
		},
		{
			name:       "capability variable",
			cfg:        config.AuthorizationConfig{ReadExpression: `capability == "read"`},
			capability: CapabilityRead,
			wantAllow:  true,
		},
		{
			name:       "claims lookup",
			cfg:        config.AuthorizationConfig{ReadExpression: `!("tier" in identity.claims)`},
			capability: CapabilityRead,
			wantAllow:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			a, err := NewAuthorizer(tt.cfg)
			require.NoError(t, err)

			decision, err := a.Authorize(context.Background(), auth.APIKeyIdentity(time.Now()), tt.capability)
			assert.Equal(t, tt.wantAllow, decision.Allowed)
			if tt.wantAllow {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrAccessDenied)
			assert.True(t, errors.Is(err, util.ErrUnauthorized))

			var authzErr *AuthzError
			require.True(t, errors.As(err, &authzErr))
			assert.Equal(t, string(tt.capability), authzErr.Policy)
		})
	}
}

func TestAuthorizer_NowVariable(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	a, err := NewAuthorizer(
		config.AuthorizationConfig{WriteExpression: `now < timestamp("2026-07-01T00:00:00Z")`},
		WithAuthorizerClock(func() time.Time { return at }),
	)
	require.NoError(t, err)

	decision, err := a.Authorize(context.Background(), auth.APIKeyIdentity(at), CapabilityWrite)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}

func TestAuthorizer_EvaluationErrorDenies(t *testing.T) {
	t.Parallel()

	a, err := NewAuthorizer(config.AuthorizationConfig{ReadExpression: `identity.claims.missing == "x"`})
	require.NoError(t, err)

	decision, err := a.Authorize(context.Background(), auth.APIKeyIdentity(time.Now()), CapabilityRead)

	require.Error(t, err)
	assert.False(t, decision.Allowed)
	assert.True(t, errors.Is(err, util.ErrUnauthorized))
}

func TestNewAuthorizer_InvalidExpressions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  config.AuthorizationConfig
	}{
		{name: "syntax error", cfg: config.AuthorizationConfig{ReadExpression: "identity.sub =="}},
		{name: "unknown variable", cfg: config.AuthorizationConfig{WriteExpression: "request.method == 'GET'"}},
		{name: "non bool result", cfg: config.AuthorizationConfig{ReadExpression: "identity.sub"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			a, err := NewAuthorizer(tt.cfg)

			require.Error(t, err)
			assert.Nil(t, a)
			assert.ErrorIs(t, err, ErrInvalidPolicy)
		})
	}
}

func TestAuthorizer_Metrics(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics("authz_test")
	registry := prometheus.NewRegistry()
	metrics.MustRegister(registry)

	a, err := NewAuthorizer(
		config.AuthorizationConfig{WriteExpression: "false"},
		WithAuthorizerMetrics(metrics),
	)
	require.NoError(t, err)

	identity := auth.APIKeyIdentity(time.Now())
	_, _ = a.Authorize(context.Background(), identity, CapabilityRead)
	_, _ = a.Authorize(context.Background(), identity, CapabilityWrite)

	assert.Equal(t, float64(1), testutil.ToFloat64(
		metrics.decisionTotal.WithLabelValues(string(CapabilityRead), PolicyDefault, resultAllowed)))
	assert.Equal(t, float64(1), testutil.ToFloat64(
		metrics.decisionTotal.WithLabelValues(string(CapabilityWrite), string(CapabilityWrite), resultDenied)))

	// Registering twice is tolerated.
	assert.NotPanics(t, func() { metrics.MustRegister(registry) })
}

func TestAuthzError(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "authorization failed", (&AuthzError{}).Error())
	assert.Equal(t, "authorization failed: access denied", (&AuthzError{Err: ErrAccessDenied}).Error())
	assert.Equal(t, "authorization failed: nope", (&AuthzError{Err: ErrAccessDenied, Reason: "nope"}).Error())
	assert.Equal(t, "authorization failed: denied by policy: write",
		NewPolicyDeniedError("api-key", CapabilityWrite, "write").Error())
}
