package observability

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

type contextKey string

const requestIDKey contextKey = "request_id"

// ContextWithRequestID adds a request ID to the context.
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext extracts the request ID from context.
func RequestIDFromContext(ctx context.Context) string {
	if requestID, ok := ctx.Value(requestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// TraceIdentifier returns the identifier clients can quote when reporting
// a failure: the active trace ID when a valid span is present, otherwise
// the request ID.
func TraceIdentifier(ctx context.Context) string {
	if traceID := spanTraceID(ctx); traceID != "" {
		return traceID
	}
	return RequestIDFromContext(ctx)
}

func spanTraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}
