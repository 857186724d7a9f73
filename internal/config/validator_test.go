package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		mutate    func(cfg *Config)
		wantPaths []string
	}{
		{
			name:   "defaults are valid",
			mutate: func(*Config) {},
		},
		{
			name:   "empty key list is accepted",
			mutate: func(cfg *Config) { cfg.APIKeys.Keys = nil },
		},
		{
			name:      "unknown environment",
			mutate:    func(cfg *Config) { cfg.Environment = "staging" },
			wantPaths: []string{"environment"},
		},
		{
			name:      "missing header name",
			mutate:    func(cfg *Config) { cfg.APIKeys.HeaderName = "" },
			wantPaths: []string{"apiKeys.headerName"},
		},
		{
			name:      "blank key",
			mutate:    func(cfg *Config) { cfg.APIKeys.Keys = []string{"good", "  "} },
			wantPaths: []string{"apiKeys.keys[1]"},
		},
		{
			name:      "padded key",
			mutate:    func(cfg *Config) { cfg.APIKeys.Keys = []string{"good", " secret-key\n", "other"} },
			wantPaths: []string{"apiKeys.keys[1]"},
		},
		{
			name: "zero permit limit and window",
			mutate: func(cfg *Config) {
				cfg.RateLimiting.General.PermitLimit = 0
				cfg.RateLimiting.Writes.Window = 0
			},
			wantPaths: []string{"rateLimiting.general.permitLimit", "rateLimiting.writes.window"},
		},
		{
			name:      "negative queue limit",
			mutate:    func(cfg *Config) { cfg.RateLimiting.Writes.QueueLimit = -1 },
			wantPaths: []string{"rateLimiting.writes.queueLimit"},
		},
		{
			name:      "redis store without address",
			mutate:    func(cfg *Config) { cfg.RateLimiting.Store = StoreRedis },
			wantPaths: []string{"rateLimiting.redis.address"},
		},
		{
			name:      "unknown store",
			mutate:    func(cfg *Config) { cfg.RateLimiting.Store = "etcd" },
			wantPaths: []string{"rateLimiting.store"},
		},
		{
			name:      "tracing without endpoint",
			mutate:    func(cfg *Config) { cfg.Tracing.Enabled = true },
			wantPaths: []string{"tracing.otlpEndpoint"},
		},
		{
			name:      "bad sampling rate",
			mutate:    func(cfg *Config) { cfg.Tracing.SamplingRate = 1.5 },
			wantPaths: []string{"tracing.samplingRate"},
		},
		{
			name:      "bad cors origin",
			mutate:    func(cfg *Config) { cfg.CORS.AllowedOrigins = []string{"not a url"} },
			wantPaths: []string{"cors.allowedOrigins[0]"},
		},
		{
			name:      "bad project endpoint",
			mutate:    func(cfg *Config) { cfg.AzureAI.ProjectEndpoint = "foundry" },
			wantPaths: []string{"azureAI.projectEndpoint"},
		},
		{
			name:      "metrics path without slash",
			mutate:    func(cfg *Config) { cfg.Metrics.Path = "metrics" },
			wantPaths: []string{"metrics.path"},
		},
		{
			name:      "negative upstream pacing",
			mutate:    func(cfg *Config) { cfg.AzureAI.RequestsPerSecond = -1 },
			wantPaths: []string{"azureAI.requestsPerSecond"},
		},
		{
			name:      "zero request timeout",
			mutate:    func(cfg *Config) { cfg.AzureAI.RequestTimeout = Duration(0 * time.Second) },
			wantPaths: []string{"azureAI.requestTimeout"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := ValidateConfig(cfg)
			if len(tt.wantPaths) == 0 {
				assert.NoError(t, err)
				return
			}

			require.Error(t, err)
			var verrs ValidationErrors
			require.True(t, errors.As(err, &verrs))

			paths := make([]string, 0, len(verrs))
			for _, verr := range verrs {
				paths = append(paths, verr.Path)
			}
			for _, want := range tt.wantPaths {
				assert.Contains(t, paths, want)
			}
		})
	}
}

func TestValidateConfig_Nil(t *testing.T) {
	t.Parallel()

	err := ValidateConfig(nil)
	require.Error(t, err)
	assert.Equal(t, "configuration is nil", err.Error())
}

func TestValidationErrors_Error(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "no validation errors", ValidationErrors{}.Error())
	assert.Equal(t, "a.b: bad", ValidationErrors{{Path: "a.b", Message: "bad"}}.Error())

	multi := ValidationErrors{{Path: "a", Message: "x"}, {Message: "y"}}
	assert.Equal(t, "2 validation errors:\n  1. a: x\n  2. y\n", multi.Error())
	assert.True(t, multi.HasErrors())
}
