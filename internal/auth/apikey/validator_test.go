package apikey

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/atmet-ai/foundry-facade/internal/observability"
)

func TestValidator_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		keys       []string
		presented  string
		wantErr    error
		wantReason string
	}{
		{name: "valid", keys: []string{"k1"}, presented: "k1", wantReason: ReasonValid},
		{name: "missing", keys: []string{"k1"}, presented: "", wantErr: ErrEmptyAPIKey, wantReason: ReasonMissing},
		{name: "missing beats not configured", keys: nil, presented: "", wantErr: ErrEmptyAPIKey, wantReason: ReasonMissing},
		{name: "not configured", keys: nil, presented: "k1", wantErr: ErrNotConfigured, wantReason: ReasonNotConfigured},
		{name: "invalid", keys: []string{"k1"}, presented: "k2", wantErr: ErrInvalidAPIKey, wantReason: ReasonInvalid},
		{name: "case sensitive", keys: []string{"ABC"}, presented: "abc", wantErr: ErrInvalidAPIKey, wantReason: ReasonInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			metrics := NewMetrics("test")
			v := NewValidator(NewCredentialSet("", tt.keys), WithValidatorMetrics(metrics))

			err := v.Validate(context.Background(), tt.presented)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, 1.0, testutil.ToFloat64(metrics.validationTotal.WithLabelValues(tt.wantReason)))
		})
	}
}

func TestValidator_NotConfiguredLogsWarning(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	v := NewValidator(NewCredentialSet("", nil), WithValidatorLogger(observability.NewLoggerFromCore(core)))

	err := v.Validate(context.Background(), "anything")
	require.ErrorIs(t, err, ErrNotConfigured)

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zapcore.WarnLevel, entry.Level)
	assert.Contains(t, entry.Message, "not configured")
}

func TestValidator_Idempotent(t *testing.T) {
	t.Parallel()

	v := NewValidator(NewCredentialSet("", []string{"k1"}))
	for i := 0; i < 3; i++ {
		assert.NoError(t, v.Validate(context.Background(), "k1"))
		assert.ErrorIs(t, v.Validate(context.Background(), "nope"), ErrInvalidAPIKey)
	}
}

func TestNewValidator_NilSet(t *testing.T) {
	t.Parallel()

	v := NewValidator(nil)
	require.NotNil(t, v.CredentialSet())
	assert.True(t, v.CredentialSet().IsEmpty())
	assert.ErrorIs(t, v.Validate(context.Background(), "k"), ErrNotConfigured)
}

func TestMetrics_MustRegister(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := NewMetrics("test")
	m.Init()

	assert.NotPanics(t, func() { m.MustRegister(reg) })
	assert.NotPanics(t, func() { m.MustRegister(reg) })

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}
