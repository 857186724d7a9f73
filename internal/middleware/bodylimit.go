package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/atmet-ai/foundry-facade/internal/observability"
	"github.com/atmet-ai/foundry-facade/internal/problem"
)

// BodyLimit returns a middleware that limits the request body size.
// A declared Content-Length over the limit is rejected with 413 before the
// handler runs; bodies without a length are capped with http.MaxBytesReader,
// so the handler's read fails once the limit is passed. maxSize <= 0
// disables the limit.
func BodyLimit(maxSize int64, logger observability.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = observability.NopLogger()
	}

	return func(c *gin.Context) {
		if maxSize <= 0 {
			c.Next()
			return
		}

		if c.Request.ContentLength > maxSize {
			logger.WithContext(c.Request.Context()).Warn("request body too large",
				observability.Int64("content_length", c.Request.ContentLength),
				observability.Int64("max_size", maxSize),
				observability.String("path", c.Request.URL.Path),
			)

			problem.Write(c, problem.New(c.Request, http.StatusRequestEntityTooLarge, problem.TitlePayloadTooLarge,
				fmt.Sprintf("request body must not exceed %d bytes", maxSize)))
			return
		}

		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		}

		c.Next()
	}
}
