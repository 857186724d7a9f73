package problem

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	goerrors "github.com/go-errors/errors"

	"github.com/atmet-ai/foundry-facade/internal/observability"
)

// Normalizer converts errors and panics raised downstream into problem
// responses. It is the only place errors are turned into HTTP output.
type Normalizer struct {
	development bool
	logger      observability.Logger
	metrics     *observability.Metrics
	now         func() time.Time
}

// Option is a functional option for the normalizer.
type Option func(*Normalizer)

// WithDevelopment exposes raw messages and stack traces to clients.
func WithDevelopment(development bool) Option {
	return func(n *Normalizer) {
		n.development = development
	}
}

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) Option {
	return func(n *Normalizer) {
		n.logger = logger
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(metrics *observability.Metrics) Option {
	return func(n *Normalizer) {
		n.metrics = metrics
	}
}

// WithClock sets the clock used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(n *Normalizer) {
		n.now = now
	}
}

// NewNormalizer creates a new normalizer. Production mode is the default.
func NewNormalizer(opts ...Option) *Normalizer {
	n := &Normalizer{
		logger: observability.NopLogger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Development reports whether diagnostic detail is exposed.
func (n *Normalizer) Development() bool {
	return n.development
}

// Normalize logs err and converts it into a problem response for r.
func (n *Normalizer) Normalize(r *http.Request, err error) *Response {
	return n.normalize(r, err, stackOf(err, 2))
}

func (n *Normalizer) normalize(r *http.Request, err error, stack string) *Response {
	ctx := r.Context()
	traceID := observability.TraceIdentifier(ctx)
	class := Classify(err, n.development)

	n.logger.WithContext(ctx).Error("unhandled error",
		observability.String("trace_id", traceID),
		observability.String("method", r.Method),
		observability.String("path", r.URL.Path),
		observability.String("kind", string(class.Kind)),
		observability.Int("status", class.Status),
		observability.Error(err),
		observability.String("stack", stack),
	)

	if n.metrics != nil {
		n.metrics.RecordProblem(string(class.Kind), class.Status)
	}

	resp := &Response{
		Status:    class.Status,
		Title:     class.Title,
		Detail:    class.Detail,
		Instance:  r.URL.Path,
		TraceID:   traceID,
		Timestamp: n.now().UTC(),
		Errors:    class.Errors,
	}
	if n.development {
		resp.StackTrace = stack
	}
	return resp
}

// Middleware returns a gin middleware that recovers panics and converts
// the last error attached with c.Error into a problem response. It must
// run before any middleware or handler whose errors it should catch.
func (n *Normalizer) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler { //nolint:errorlint // sentinel panic value
				panic(rec)
			}
			n.handle(c, panicError(rec), stackOf(rec, 3))
		}()

		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err
		n.handle(c, err, stackOf(err, 2))
	}
}

func (n *Normalizer) handle(c *gin.Context, err error, stack string) {
	resp := n.normalize(c.Request, err, stack)
	if c.Writer.Written() {
		// Headers are already on the wire; the error is logged and counted only.
		c.Abort()
		return
	}
	Write(c, resp)
}

// NoRoute returns a handler for requests that match no route.
func (n *Normalizer) NoRoute() gin.HandlerFunc {
	return func(c *gin.Context) {
		resp := New(c.Request, http.StatusNotFound, TitleNotFound,
			fmt.Sprintf("No resource matches %s %s", c.Request.Method, c.Request.URL.Path))
		resp.Timestamp = n.now().UTC()
		Write(c, resp)
	}
}

// panicError turns a recovered value into an error.
func panicError(rec interface{}) error {
	if err, ok := rec.(error); ok {
		return fmt.Errorf("panic: %w", err)
	}
	return fmt.Errorf("panic: %v", rec)
}

// stackOf returns the stack recorded on err by go-errors, or the current
// stack skipping the given number of frames.
func stackOf(v interface{}, skip int) string {
	if err, ok := v.(error); ok {
		var withStack *goerrors.Error
		if errors.As(err, &withStack) {
			return string(withStack.Stack())
		}
	}
	return string(goerrors.Wrap(v, skip).Stack())
}
