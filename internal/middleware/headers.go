package middleware

import (
	"github.com/gin-gonic/gin"
)

// Security header names.
const (
	HeaderContentTypeOptions    = "X-Content-Type-Options"
	HeaderFrameOptions          = "X-Frame-Options"
	HeaderXSSProtection         = "X-XSS-Protection"
	HeaderReferrerPolicy        = "Referrer-Policy"
	HeaderContentSecurityPolicy = "Content-Security-Policy"
)

// SecurityHeadersConfig holds configuration for security headers.
// Empty fields are not sent.
type SecurityHeadersConfig struct {
	// ContentSecurityPolicy sets the Content-Security-Policy header
	ContentSecurityPolicy string

	// XContentTypeOptions sets the X-Content-Type-Options header
	XContentTypeOptions string

	// XFrameOptions sets the X-Frame-Options header
	XFrameOptions string

	// XXSSProtection sets the X-XSS-Protection header
	XXSSProtection string

	// ReferrerPolicy sets the Referrer-Policy header
	ReferrerPolicy string
}

// DefaultSecurityHeaders returns default security headers configuration.
func DefaultSecurityHeaders() *SecurityHeadersConfig {
	return &SecurityHeadersConfig{
		ContentSecurityPolicy: "default-src 'self'",
		XContentTypeOptions:   "nosniff",
		XFrameOptions:         "DENY",
		XXSSProtection:        "1; mode=block",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
	}
}

// SecurityHeaders returns a middleware that adds security headers.
func SecurityHeaders() gin.HandlerFunc {
	return SecurityHeadersWithConfig(DefaultSecurityHeaders())
}

// SecurityHeadersWithConfig returns a security headers middleware with custom configuration.
// Headers are set before the handler runs so they are present on every
// response, including ones written by handlers that abort.
func SecurityHeadersWithConfig(config *SecurityHeadersConfig) gin.HandlerFunc {
	if config == nil {
		config = DefaultSecurityHeaders()
	}

	headers := make([][2]string, 0, 5)
	for _, h := range [][2]string{
		{HeaderContentTypeOptions, config.XContentTypeOptions},
		{HeaderFrameOptions, config.XFrameOptions},
		{HeaderXSSProtection, config.XXSSProtection},
		{HeaderReferrerPolicy, config.ReferrerPolicy},
		{HeaderContentSecurityPolicy, config.ContentSecurityPolicy},
	} {
		if h[1] != "" {
			headers = append(headers, h)
		}
	}

	return func(c *gin.Context) {
		for _, h := range headers {
			c.Header(h[0], h[1])
		}
		c.Next()
	}
}
