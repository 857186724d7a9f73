package problem

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/atmet-ai/foundry-facade/internal/observability"
)

// ContentType is the media type of every problem response.
const ContentType = "application/problem+json"

// Response is the normalized error body returned for every failed request.
type Response struct {
	Status     int                 `json:"status"`
	Title      string              `json:"title"`
	Detail     string              `json:"detail"`
	Instance   string              `json:"instance"`
	TraceID    string              `json:"traceId"`
	Timestamp  time.Time           `json:"timestamp"`
	Errors     map[string][]string `json:"errors,omitempty"`
	StackTrace string              `json:"stackTrace,omitempty"`
}

// New builds a response for r with the request path and trace identifier filled in.
func New(r *http.Request, status int, title, detail string) *Response {
	return &Response{
		Status:    status,
		Title:     title,
		Detail:    detail,
		Instance:  r.URL.Path,
		TraceID:   observability.TraceIdentifier(r.Context()),
		Timestamp: time.Now().UTC(),
	}
}

// Write aborts the gin chain and writes resp as application/problem+json.
func Write(c *gin.Context, resp *Response) {
	// gin keeps an existing Content-Type when rendering JSON.
	c.Header("Content-Type", ContentType)
	c.AbortWithStatusJSON(resp.Status, resp)
}
