package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/trace"
)

func TestRequestIDContext(t *testing.T) {
	t.Parallel()

	assert.Empty(t, RequestIDFromContext(context.Background()))

	ctx := ContextWithRequestID(context.Background(), "abc")
	assert.Equal(t, "abc", RequestIDFromContext(ctx))
}

func TestTraceIdentifier(t *testing.T) {
	t.Parallel()

	traceID := trace.TraceID{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}
	withSpan := func(ctx context.Context) context.Context {
		return trace.ContextWithSpanContext(ctx, trace.NewSpanContext(trace.SpanContextConfig{
			TraceID: traceID,
			SpanID:  trace.SpanID{1, 2, 3, 4, 5, 6, 7, 8},
		}))
	}

	tests := []struct {
		name     string
		ctx      context.Context
		expected string
	}{
		{
			name:     "nothing available",
			ctx:      context.Background(),
			expected: "",
		},
		{
			name:     "request id only",
			ctx:      ContextWithRequestID(context.Background(), "req-42"),
			expected: "req-42",
		},
		{
			name:     "span wins over request id",
			ctx:      withSpan(ContextWithRequestID(context.Background(), "req-42")),
			expected: traceID.String(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, TraceIdentifier(tt.ctx))
		})
	}
}
