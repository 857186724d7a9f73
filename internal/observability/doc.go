// Package observability provides logging, metrics, and tracing
// functionality for the facade.
//
// # Logging
//
// The Logger interface provides structured logging over zap:
//
//	logger, err := observability.NewLogger(observability.LogConfig{Level: "info", Format: "json"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer logger.Sync()
//
//	logger.WithContext(ctx).Info("HTTP GET /api/v1/agents completed",
//	    observability.Int("status", 200),
//	)
//
// # Metrics
//
// A single Prometheus registry is shared by every component:
//
//	metrics := observability.NewMetrics("facade")
//	router.GET("/metrics", gin.WrapH(metrics.Handler()))
//
// # Trace identifiers
//
// TraceIdentifier returns the OpenTelemetry trace ID of the active span,
// falling back to the request ID, and is the value echoed to clients in
// problem responses.
package observability
