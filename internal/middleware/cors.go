package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/atmet-ai/foundry-facade/internal/config"
)

// CORS header names.
const (
	HeaderOrigin                        = "Origin"
	HeaderVary                          = "Vary"
	HeaderAccessControlAllowOrigin      = "Access-Control-Allow-Origin"
	HeaderAccessControlAllowCredentials = "Access-Control-Allow-Credentials"
	HeaderAccessControlAllowMethods     = "Access-Control-Allow-Methods"
	HeaderAccessControlAllowHeaders     = "Access-Control-Allow-Headers"
	HeaderAccessControlMaxAge           = "Access-Control-Max-Age"
	HeaderAccessControlRequestMethod    = "Access-Control-Request-Method"
	HeaderAccessControlRequestHeaders   = "Access-Control-Request-Headers"
	HeaderAccessControlExposeHeaders    = "Access-Control-Expose-Headers"
)

// exposedHeaders lets browser clients read the trace and rate limit hints.
var exposedHeaders = strings.Join([]string{
	RequestIDHeader,
	"Retry-After",
	"X-RateLimit-Limit",
	"X-RateLimit-Remaining",
	"X-RateLimit-Policy",
}, ", ")

// corsContext holds pre-computed values for CORS middleware.
type corsContext struct {
	origins   map[string]struct{}
	maxAgeStr string
}

// CORS returns a middleware that admits credentialed cross-origin requests
// from the configured origins with any method and any header. Requests from
// other origins pass through without CORS headers, so the browser blocks them.
func CORS(cfg config.CORSConfig) gin.HandlerFunc {
	ctx := &corsContext{
		origins:   make(map[string]struct{}, len(cfg.AllowedOrigins)),
		maxAgeStr: strconv.Itoa(int(cfg.MaxAge.Duration().Seconds())),
	}
	for _, origin := range cfg.AllowedOrigins {
		ctx.origins[strings.TrimSuffix(origin, "/")] = struct{}{}
	}

	return func(c *gin.Context) {
		origin := c.GetHeader(HeaderOrigin)
		if origin == "" {
			c.Next()
			return
		}

		c.Writer.Header().Add(HeaderVary, HeaderOrigin)

		if _, ok := ctx.origins[origin]; !ok {
			c.Next()
			return
		}

		c.Header(HeaderAccessControlAllowOrigin, origin)
		c.Header(HeaderAccessControlAllowCredentials, "true")

		if isPreflight(c.Request) {
			ctx.setPreflightHeaders(c)
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Header(HeaderAccessControlExposeHeaders, exposedHeaders)
		c.Next()
	}
}

// setPreflightHeaders echoes the requested method and headers, which is
// how "any method, any header" is expressed for credentialed requests.
func (ctx *corsContext) setPreflightHeaders(c *gin.Context) {
	c.Header(HeaderAccessControlAllowMethods, c.GetHeader(HeaderAccessControlRequestMethod))
	if headers := c.GetHeader(HeaderAccessControlRequestHeaders); headers != "" {
		c.Header(HeaderAccessControlAllowHeaders, headers)
	}
	if ctx.maxAgeStr != "0" {
		c.Header(HeaderAccessControlMaxAge, ctx.maxAgeStr)
	}
}

func isPreflight(r *http.Request) bool {
	return r.Method == http.MethodOptions && r.Header.Get(HeaderAccessControlRequestMethod) != ""
}
