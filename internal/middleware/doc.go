// Package middleware provides the gin middleware that wraps every request
// served by the facade, ahead of the authenticated API group.
//
// # Middleware Components
//
//   - RequestID: propagates or generates X-Request-ID
//   - Tracing: one OpenTelemetry server span per request
//   - AccessLog: start/completion log lines and HTTP request metrics
//   - SecurityHeaders: fixed browser hardening headers
//   - CORS: credentialed access for the configured origins
//   - BodyLimit: request body size limiting
//
// # Usage
//
// The server installs them in this order:
//
//	r.Use(
//	    middleware.RequestID(),
//	    middleware.Tracing(tracer),
//	    middleware.AccessLog(logger, metrics),
//	    normalizer.Middleware(),
//	    middleware.SecurityHeaders(),
//	    middleware.CORS(cfg.CORS),
//	)
package middleware
