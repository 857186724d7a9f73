package observability

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func TestNewTracer_Disabled(t *testing.T) {
	t.Parallel()

	tracer, err := NewTracer(TracerConfig{ServiceName: "test-service"})
	require.NoError(t, err)
	assert.False(t, tracer.Enabled())

	_, span := tracer.StartSpan(context.Background(), "noop")
	span.End()

	assert.NoError(t, tracer.Shutdown(context.Background()))
}

func TestNewTracer_Enabled_NoEndpoint(t *testing.T) {
	// Not parallel: installs the global provider and propagator.
	tracer, err := NewTracer(TracerConfig{
		ServiceName:  "test-service",
		Enabled:      true,
		SamplingRate: 1.0,
	})
	require.NoError(t, err)
	require.True(t, tracer.Enabled())
	defer func() { _ = tracer.Shutdown(context.Background()) }()

	ctx, span := tracer.StartSpan(context.Background(), "op", trace.WithSpanKind(trace.SpanKindServer))
	defer span.End()
	assert.True(t, span.SpanContext().IsValid())
	assert.Equal(t, span.SpanContext().TraceID().String(), TraceIdentifier(ctx))

	header := http.Header{}
	InjectTraceContext(ctx, header)
	assert.NotEmpty(t, header.Get("traceparent"))

	extracted := trace.SpanContextFromContext(ExtractTraceContext(context.Background(), header))
	assert.Equal(t, span.SpanContext().TraceID(), extracted.TraceID())
}

func TestCreateSampler(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		rate     float64
		expected string
	}{
		{name: "always", rate: 1.0, expected: sdktrace.AlwaysSample().Description()},
		{name: "above one", rate: 2.0, expected: sdktrace.AlwaysSample().Description()},
		{name: "never", rate: 0, expected: sdktrace.NeverSample().Description()},
		{name: "ratio", rate: 0.25, expected: sdktrace.TraceIDRatioBased(0.25).Description()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, createSampler(tt.rate).Description())
		})
	}
}

func TestBuildOTLPExporterOptions(t *testing.T) {
	t.Parallel()

	secure := buildOTLPExporterOptions(TracerConfig{OTLPEndpoint: "collector:4317"})
	insecure := buildOTLPExporterOptions(TracerConfig{OTLPEndpoint: "collector:4317", Insecure: true})
	assert.Len(t, insecure, len(secure)+1)
}

func TestNewTracerWithProvider(t *testing.T) {
	t.Parallel()

	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	tracer := NewTracerWithProvider(provider, "facade-test")
	assert.True(t, tracer.Enabled())

	_, span := tracer.StartSpan(context.Background(), "op")
	span.End()

	require.Len(t, recorder.Ended(), 1)
	assert.Equal(t, "op", recorder.Ended()[0].Name())
	assert.NoError(t, tracer.Shutdown(context.Background()))
}
