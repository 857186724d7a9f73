package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/atmet-ai/foundry-facade/internal/auth"
	"github.com/atmet-ai/foundry-facade/internal/observability"
)

// anonymousUser is logged for requests that never authenticated.
const anonymousUser = "Anonymous"

// AccessLogConfig holds configuration for the access log middleware.
type AccessLogConfig struct {
	Logger    observability.Logger
	Metrics   *observability.Metrics
	SkipPaths []string
}

// AccessLog returns a middleware that logs every request twice, when it
// starts and when it completes, and records HTTP request metrics.
func AccessLog(logger observability.Logger, metrics *observability.Metrics) gin.HandlerFunc {
	return AccessLogWithConfig(AccessLogConfig{Logger: logger, Metrics: metrics})
}

// AccessLogWithConfig returns an access log middleware with custom configuration.
func AccessLogWithConfig(config AccessLogConfig) gin.HandlerFunc {
	if config.Logger == nil {
		config.Logger = observability.NopLogger()
	}

	skipPaths := make(map[string]bool, len(config.SkipPaths))
	for _, path := range config.SkipPaths {
		skipPaths[path] = true
	}

	return func(c *gin.Context) {
		path := c.Request.URL.Path
		method := c.Request.Method
		start := time.Now()

		if config.Metrics != nil {
			config.Metrics.IncActiveRequests()
			defer config.Metrics.DecActiveRequests()
		}

		logger := config.Logger.WithContext(c.Request.Context())
		logged := !skipPaths[path]

		if logged {
			logger.Info("HTTP "+method+" "+path+" started",
				observability.String("request_id", GetRequestID(c)),
				observability.String("client_ip", c.ClientIP()),
				observability.String("user_agent", c.Request.UserAgent()),
			)
		}

		c.Next()

		duration := time.Since(start)
		status := c.Writer.Status()

		if config.Metrics != nil {
			config.Metrics.RecordRequest(method, c.FullPath(), status, duration)
		}

		if !logged {
			return
		}

		fields := []observability.Field{
			observability.String("request_id", GetRequestID(c)),
			observability.String("user", userName(c)),
			observability.Int("status", status),
			observability.Duration("duration", duration),
			observability.Int("response_size", c.Writer.Size()),
		}

		msg := "HTTP " + method + " " + path + " completed"
		if status >= 500 {
			logger.Error(msg, fields...)
			return
		}
		logger.Info(msg, fields...)
	}
}

func userName(c *gin.Context) string {
	if identity, ok := auth.IdentityFromGin(c); ok && identity.IsAuthenticated() {
		return identity.Name
	}
	return anonymousUser
}
