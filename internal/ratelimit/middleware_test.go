package ratelimit

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/atmet-ai/foundry-facade/internal/observability"
	"github.com/atmet-ai/foundry-facade/internal/problem"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newLimitedEngine(handlers ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(handlers...)
	ok := func(c *gin.Context) { c.Status(http.StatusNoContent) }
	r.GET("/api/v1/agents", ok)
	r.POST("/api/v1/agents", ok)
	return r
}

func TestMiddleware_RejectsWithProblem(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	clock.Advance(20 * time.Second)
	l := newTestLimiter(t, Policy{Name: "general", PermitLimit: 1, Window: time.Minute}, WithClock(clock.Now))
	r := newLimitedEngine(Middleware(l))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/agents", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "1", w.Header().Get(HeaderRateLimitLimit))
	assert.Equal(t, "0", w.Header().Get(HeaderRateLimitRemaining))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/agents", nil))

	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "40", w.Header().Get(HeaderRetryAfter))
	assert.Equal(t, "general", w.Header().Get(HeaderRateLimitPolicy))
	assert.Equal(t, problem.ContentType, w.Header().Get("Content-Type"))

	var resp problem.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, http.StatusTooManyRequests, resp.Status)
	assert.Equal(t, TitleTooManyRequests, resp.Title)
	assert.Equal(t, problem.DetailRateLimited, resp.Detail)
	assert.Equal(t, "/api/v1/agents", resp.Instance)
}

func TestMiddleware_RequestFilter(t *testing.T) {
	t.Parallel()

	l := newTestLimiter(t, Policy{Name: "writes", PermitLimit: 1, Window: time.Minute},
		WithClock(newFakeClock().Now))
	isWrite := func(r *http.Request) bool { return r.Method != http.MethodGet }
	r := newLimitedEngine(Middleware(l, WithRequestFilter(isWrite)))

	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/agents", nil))
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Empty(t, w.Header().Get(HeaderRateLimitLimit))
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/agents", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/agents", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestMiddleware_GeneralAndWritesStack(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	general := newTestLimiter(t, Policy{Name: "general", PermitLimit: 3, Window: time.Minute}, WithClock(clock.Now))
	writes := newTestLimiter(t, Policy{Name: "writes", PermitLimit: 1, Window: time.Minute}, WithClock(clock.Now))
	isWrite := func(r *http.Request) bool { return r.Method != http.MethodGet }

	r := newLimitedEngine(Middleware(general), Middleware(writes, WithRequestFilter(isWrite)))

	codes := make([]int, 0, 4)
	for _, method := range []string{http.MethodPost, http.MethodPost, http.MethodGet, http.MethodGet} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(method, "/api/v1/agents", nil))
		codes = append(codes, w.Code)
	}

	// The rejected write still consumed a general permit.
	assert.Equal(t, []int{
		http.StatusNoContent,
		http.StatusTooManyRequests,
		http.StatusNoContent,
		http.StatusTooManyRequests,
	}, codes)
}

func TestMiddleware_StoreFailureAdmits(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.WarnLevel)
	l := newTestLimiter(t, Policy{Name: "writes", PermitLimit: 1, Window: time.Minute},
		WithStore(failingStore{}))
	r := newLimitedEngine(Middleware(l, WithMiddlewareLogger(observability.NewLoggerFromCore(core))))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/agents", nil))

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 1, logs.FilterMessage("rate limit check failed, admitting request").Len())
}

func TestRetryAfterSeconds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   time.Duration
		want int
	}{
		{0, 1},
		{300 * time.Millisecond, 1},
		{time.Second, 1},
		{1500 * time.Millisecond, 2},
		{time.Minute, 60},
	}

	for _, tt := range tests {
		assert.Equal(t, strconv.Itoa(tt.want), retryAfterSeconds(tt.in), tt.in.String())
	}
}
