package ratelimit

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/atmet-ai/foundry-facade/internal/observability"
	"github.com/atmet-ai/foundry-facade/internal/problem"
)

// Rate limit response headers.
const (
	HeaderRetryAfter         = "Retry-After"
	HeaderRateLimitLimit     = "X-RateLimit-Limit"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
	HeaderRateLimitPolicy    = "X-RateLimit-Policy"
)

// TitleTooManyRequests is the problem title for rejected requests.
const TitleTooManyRequests = "Too Many Requests"

// MiddlewareOption is a functional option for the middleware.
type MiddlewareOption func(*middlewareOptions)

type middlewareOptions struct {
	logger observability.Logger
	match  func(*http.Request) bool
}

// WithMiddlewareLogger sets the logger.
func WithMiddlewareLogger(logger observability.Logger) MiddlewareOption {
	return func(o *middlewareOptions) {
		o.logger = logger
	}
}

// WithRequestFilter limits the policy to requests for which match
// returns true. Other requests pass through untouched.
func WithRequestFilter(match func(*http.Request) bool) MiddlewareOption {
	return func(o *middlewareOptions) {
		o.match = match
	}
}

// Middleware returns a gin middleware that enforces limiter. Rejected
// requests get a 429 problem response with a Retry-After header. If the
// shared store fails the request is admitted and the failure logged.
func Middleware(limiter Limiter, opts ...MiddlewareOption) gin.HandlerFunc {
	o := &middlewareOptions{logger: observability.NopLogger()}
	for _, opt := range opts {
		opt(o)
	}

	policy := limiter.Policy().Name

	return func(c *gin.Context) {
		if o.match != nil && !o.match(c.Request) {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		result, err := limiter.Acquire(ctx)
		if err != nil {
			if ctx.Err() != nil {
				// Client went away while queued.
				c.Abort()
				return
			}
			o.logger.WithContext(ctx).Warn("rate limit check failed, admitting request",
				observability.String("policy", policy),
				observability.Error(err),
			)
			c.Next()
			return
		}

		if result.Limit > 0 {
			c.Header(HeaderRateLimitLimit, strconv.Itoa(result.Limit))
			c.Header(HeaderRateLimitRemaining, strconv.Itoa(result.Remaining))
		}

		if !result.Allowed {
			o.logger.WithContext(ctx).Warn("rate limit exceeded",
				observability.String("policy", policy),
				observability.String("path", c.Request.URL.Path),
				observability.Duration("retry_after", result.RetryAfter),
			)

			c.Header(HeaderRateLimitPolicy, policy)
			c.Header(HeaderRetryAfter, retryAfterSeconds(result.RetryAfter))
			problem.Write(c, problem.New(c.Request, http.StatusTooManyRequests,
				TitleTooManyRequests, problem.DetailRateLimited))
			return
		}

		c.Next()
	}
}

// retryAfterSeconds renders d as whole seconds, rounded up, at least 1.
func retryAfterSeconds(d time.Duration) string {
	seconds := int(math.Ceil(d.Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	return strconv.Itoa(seconds)
}
