package util

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		field          string
		message        string
		cause          error
		expectedString string
	}{
		{
			name:           "with field",
			field:          "apiKeys.headerName",
			message:        "header name is required",
			expectedString: "config error at apiKeys.headerName: header name is required",
		},
		{
			name:           "without field",
			message:        "invalid configuration",
			expectedString: "config error: invalid configuration",
		},
		{
			name:           "with cause",
			field:          "server.port",
			message:        "invalid port",
			cause:          errors.New("port out of range"),
			expectedString: "config error at server.port: invalid port",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var err *ConfigError
			if tt.cause != nil {
				err = NewConfigErrorWithCause(tt.field, tt.message, tt.cause)
			} else {
				err = NewConfigError(tt.field, tt.message)
			}

			assert.Equal(t, tt.expectedString, err.Error())
			assert.Equal(t, tt.cause, err.Unwrap())
			assert.ErrorIs(t, err, ErrConfigInvalid)
		})
	}
}

func TestValidationError(t *testing.T) {
	t.Parallel()

	t.Run("explicit message wins", func(t *testing.T) {
		t.Parallel()

		err := NewValidationError("Model deployment name is required")
		assert.Equal(t, "Model deployment name is required", err.Error())
		assert.False(t, err.HasViolations())
	})

	t.Run("fields grouped and sorted", func(t *testing.T) {
		t.Parallel()

		err := &ValidationError{}
		err.AddField("name", "Name is required")
		err.AddField("model", "Model deployment name is required")
		err.AddField("name", "Name must not exceed 256 characters")

		require.True(t, err.HasViolations())
		assert.Len(t, err.Fields["name"], 2)
		assert.Equal(t, []string{
			"model: Model deployment name is required",
			"name: Name is required",
			"name: Name must not exceed 256 characters",
		}, err.Violations())
		assert.Contains(t, err.Error(), "validation failed: model:")
	})

	t.Run("empty", func(t *testing.T) {
		t.Parallel()

		err := &ValidationError{}
		assert.Equal(t, "validation failed", err.Error())
	})

	t.Run("is invalid input when wrapped", func(t *testing.T) {
		t.Parallel()

		err := fmt.Errorf("create agent: %w", NewValidationError("bad"))
		assert.ErrorIs(t, err, ErrInvalidInput)

		var verr *ValidationError
		assert.ErrorAs(t, err, &verr)
	})
}

func TestNotFoundError(t *testing.T) {
	t.Parallel()

	err := NewNotFoundError("Agent", "asst_123")
	assert.Equal(t, "Agent with ID 'asst_123' was not found", err.Error())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, fmt.Errorf("lookup: %w", err), ErrNotFound)
	assert.NotErrorIs(t, err, ErrUnauthorized)
}

func TestUpstreamError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      *UpstreamError
		expected string
	}{
		{
			name:     "without cause",
			err:      NewUpstreamError("azure-ai", 429, "too many requests"),
			expected: "upstream azure-ai returned 429: too many requests",
		},
		{
			name:     "with cause",
			err:      NewUpstreamErrorWithCause("azure-ai", 503, "unavailable", errors.New("dial tcp")),
			expected: "upstream azure-ai returned 503: unavailable: dial tcp",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.expected, tt.err.Error())
			assert.ErrorIs(t, tt.err, ErrUpstream)
		})
	}

	cause := errors.New("connection reset")
	err := NewUpstreamErrorWithCause("azure-ai", 500, "boom", cause)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, cause, err.Unwrap())
}
