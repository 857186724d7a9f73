package health

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/atmet-ai/foundry-facade/internal/observability"
)

// Status represents the health status.
type Status string

const (
	// StatusHealthy indicates the service is healthy.
	StatusHealthy Status = "healthy"
	// StatusDegraded indicates the service is degraded but operational.
	StatusDegraded Status = "degraded"
	// StatusUnhealthy indicates the service is unhealthy.
	StatusUnhealthy Status = "unhealthy"
)

// Probe paths.
const (
	PathHealth = "/health"
	PathReady  = "/health/ready"
	PathLive   = "/health/live"
)

// DefaultProbeTimeout bounds a whole probe run.
const DefaultProbeTimeout = 5 * time.Second

// Report is the JSON body of every probe.
type Report struct {
	Status        Status                  `json:"status"`
	TotalDuration string                  `json:"totalDuration"`
	Timestamp     time.Time               `json:"timestamp"`
	Uptime        string                  `json:"uptime,omitempty"`
	Version       string                  `json:"version,omitempty"`
	Checks        map[string]*CheckResult `json:"checks,omitempty"`
}

// CheckResult represents the result of a single health check.
type CheckResult struct {
	Status      Status   `json:"status"`
	Description string   `json:"description,omitempty"`
	Error       string   `json:"error,omitempty"`
	Duration    string   `json:"duration"`
	Tags        []string `json:"tags,omitempty"`
}

// Handler handles health check requests.
type Handler struct {
	checks    []HealthCheck
	logger    observability.Logger
	metrics   *Metrics
	version   string
	timeout   time.Duration
	startTime time.Time
	mu        sync.RWMutex
}

// Option is a functional option for the handler.
type Option func(*Handler)

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

// WithMetrics sets the check metrics.
func WithMetrics(metrics *Metrics) Option {
	return func(h *Handler) {
		h.metrics = metrics
	}
}

// WithVersion sets the version reported by /health.
func WithVersion(version string) Option {
	return func(h *Handler) {
		h.version = version
	}
}

// WithTimeout bounds a probe run.
func WithTimeout(timeout time.Duration) Option {
	return func(h *Handler) {
		if timeout > 0 {
			h.timeout = timeout
		}
	}
}

// NewHandler creates a new health handler.
func NewHandler(opts ...Option) *Handler {
	h := &Handler{
		logger:    observability.NopLogger(),
		timeout:   DefaultProbeTimeout,
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// AddCheck adds a health check.
func (h *Handler) AddCheck(check HealthCheck) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks = append(h.checks, check)
}

// CheckNames returns the registered check names, sorted.
func (h *Handler) CheckNames() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	names := make([]string, 0, len(h.checks))
	for _, check := range h.checks {
		names = append(names, check.Name())
	}
	sort.Strings(names)
	return names
}

// HealthHandler runs every check.
func (h *Handler) HealthHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		report := h.Run(c.Request.Context(), nil)
		report.Uptime = time.Since(h.startTime).Round(time.Second).String()
		report.Version = h.version
		c.JSON(statusCode(report.Status), report)
	}
}

// ReadinessHandler runs the checks tagged ready.
func (h *Handler) ReadinessHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		report := h.Run(c.Request.Context(), func(check HealthCheck) bool {
			return hasTag(check, TagReady)
		})
		c.JSON(statusCode(report.Status), report)
	}
}

// LivenessHandler runs no checks.
func (h *Handler) LivenessHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		report := h.Run(c.Request.Context(), func(HealthCheck) bool { return false })
		c.JSON(http.StatusOK, report)
	}
}

// RegisterRoutes registers the probe routes.
func (h *Handler) RegisterRoutes(r gin.IRoutes) {
	r.GET(PathHealth, h.HealthHandler())
	r.GET(PathReady, h.ReadinessHandler())
	r.GET(PathLive, h.LivenessHandler())
}

// Run executes the checks accepted by filter concurrently and aggregates
// them. A nil filter selects every check.
func (h *Handler) Run(ctx context.Context, filter func(HealthCheck) bool) *Report {
	h.mu.RLock()
	checks := make([]HealthCheck, 0, len(h.checks))
	for _, check := range h.checks {
		if filter == nil || filter(check) {
			checks = append(checks, check)
		}
	}
	h.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	start := time.Now()
	report := &Report{
		Status:    StatusHealthy,
		Timestamp: time.Now().UTC(),
		Checks:    make(map[string]*CheckResult, len(checks)),
	}

	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, check := range checks {
		wg.Add(1)
		go func(check HealthCheck) {
			defer wg.Done()

			result := h.runCheck(ctx, check)

			mu.Lock()
			defer mu.Unlock()
			report.Checks[check.Name()] = result
			report.Status = worse(report.Status, result.Status)
		}(check)
	}

	wg.Wait()
	report.TotalDuration = time.Since(start).String()

	return report
}

func (h *Handler) runCheck(ctx context.Context, check HealthCheck) *CheckResult {
	start := time.Now()
	err := check.Check(ctx)
	duration := time.Since(start)

	if h.metrics != nil {
		h.metrics.RecordCheck(check.Name(), err == nil, duration)
	}

	result := &CheckResult{
		Status:      StatusHealthy,
		Description: descriptionOf(check),
		Duration:    duration.String(),
		Tags:        tagsOf(check),
	}

	if err != nil {
		result.Status = StatusUnhealthy
		if !isCritical(check) {
			result.Status = StatusDegraded
		}
		result.Description = ""
		result.Error = err.Error()

		h.logger.WithContext(ctx).Warn("health check failed",
			observability.String("check", check.Name()),
			observability.Error(err),
			observability.Duration("duration", duration),
		)
	}

	return result
}

func worse(a, b Status) Status {
	rank := map[Status]int{StatusHealthy: 0, StatusDegraded: 1, StatusUnhealthy: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}

func statusCode(status Status) int {
	if status == StatusUnhealthy {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}
