package ratelimit

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/atmet-ai/foundry-facade/internal/observability"
)

// Decision outcomes recorded in metrics.
const (
	OutcomeAllowed   = "allowed"
	OutcomeQueued    = "queued"
	OutcomeRejected  = "rejected"
	OutcomeCancelled = "cancelled"
	OutcomeError     = "error"
)

// Metrics holds Prometheus metrics for rate limit decisions.
type Metrics struct {
	decisionsTotal *prometheus.CounterVec
	queueDepth     *prometheus.GaugeVec
	queueWait      *prometheus.HistogramVec
}

// NewMetrics creates rate limit metrics. They are not registered until
// MustRegister is called.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = observability.DefaultNamespace
	}

	return &Metrics{
		decisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ratelimit",
				Name:      "decisions_total",
				Help:      "Total number of rate limit decisions by policy and outcome",
			},
			[]string{"policy", "outcome"},
		),
		queueDepth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "ratelimit",
				Name:      "queue_depth",
				Help:      "Number of requests waiting for the next window",
			},
			[]string{"policy"},
		),
		queueWait: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "ratelimit",
				Name:      "queue_wait_seconds",
				Help:      "Time queued requests waited for a permit",
				Buckets:   []float64{.001, .01, .05, .1, .5, 1, 5, 15, 30, 60},
			},
			[]string{"policy"},
		),
	}
}

// RecordDecision counts a decision for policy.
func (m *Metrics) RecordDecision(policy, outcome string) {
	m.decisionsTotal.WithLabelValues(policy, outcome).Inc()
}

// SetQueueDepth sets the current queue depth for policy.
func (m *Metrics) SetQueueDepth(policy string, depth int) {
	m.queueDepth.WithLabelValues(policy).Set(float64(depth))
}

// ObserveQueueWait records how long a queued request waited.
func (m *Metrics) ObserveQueueWait(policy string, wait time.Duration) {
	m.queueWait.WithLabelValues(policy).Observe(wait.Seconds())
}

// MustRegister registers the metrics with the given registerer,
// ignoring collectors that are already registered.
func (m *Metrics) MustRegister(registerer prometheus.Registerer) {
	if err := observability.RegisterCollectors(registerer, m.decisionsTotal, m.queueDepth, m.queueWait); err != nil {
		panic(err)
	}
}
