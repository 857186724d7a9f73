package upstream

import (
	"context"
	"errors"
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/atmet-ai/foundry-facade/internal/config"
	"github.com/atmet-ai/foundry-facade/internal/observability"
)

// cbTracer is the OTEL tracer used for circuit breaker transitions.
var cbTracer = otel.Tracer("foundry-facade/upstream")

// newBreaker wraps gobreaker with logging, a state gauge and a span event
// per transition. The circuit opens after Threshold consecutive failures.
func newBreaker(
	name string,
	cfg config.CircuitBreakerConfig,
	logger observability.Logger,
	metrics *observability.Metrics,
) *gobreaker.CircuitBreaker {
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: max(cfg.MaxRequests, 1),
		Timeout:     cfg.Timeout.Duration(),
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= max(cfg.Threshold, 1)
		},
		IsSuccessful: isBreakerSuccess,
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				observability.String("name", name),
				observability.String("from", from.String()),
				observability.String("to", to.String()),
			)

			if metrics != nil {
				metrics.SetCircuitBreakerState(name, int(to))
			}

			_, span := cbTracer.Start(context.Background(),
				"circuitbreaker.state_change",
				trace.WithSpanKind(trace.SpanKindInternal),
			)
			span.AddEvent("state_change", trace.WithAttributes(
				attribute.String("circuitbreaker.name", name),
				attribute.String("circuitbreaker.from", from.String()),
				attribute.String("circuitbreaker.to", to.String()),
			))
			span.End()
		},
	}

	if metrics != nil {
		metrics.SetCircuitBreakerState(name, int(gobreaker.StateClosed))
	}

	return gobreaker.NewCircuitBreaker(settings)
}

// isBreakerSuccess decides which outcomes count against the upstream.
// Client mistakes and caller cancellations say nothing about its health.
func isBreakerSuccess(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return true
	}

	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		status := respErr.StatusCode
		return status < http.StatusInternalServerError && status != http.StatusTooManyRequests
	}

	return false
}
