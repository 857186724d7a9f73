package authz

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/atmet-ai/foundry-facade/internal/observability"
)

// Decision results recorded in metrics.
const (
	resultAllowed = "allowed"
	resultDenied  = "denied"
	resultError   = "error"
)

// Metrics contains authorization metrics.
type Metrics struct {
	// decisionTotal counts authorization decisions.
	decisionTotal *prometheus.CounterVec

	// evaluationDuration measures policy evaluation duration.
	evaluationDuration *prometheus.HistogramVec
}

// NewMetrics creates new authorization metrics. They are not registered
// until MustRegister is called.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = observability.DefaultNamespace
	}

	return &Metrics{
		decisionTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "authz",
				Name:      "decision_total",
				Help:      "Total number of authorization decisions",
			},
			[]string{"capability", "policy", "result"},
		),
		evaluationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "authz",
				Name:      "evaluation_duration_seconds",
				Help:      "Authorization evaluation duration in seconds",
				Buckets:   []float64{0.00001, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
			},
			[]string{"policy"},
		),
	}
}

// RecordDecision records a decision and how long it took.
func (m *Metrics) RecordDecision(capability Capability, policy, result string, duration time.Duration) {
	m.decisionTotal.WithLabelValues(string(capability), policy, result).Inc()
	m.evaluationDuration.WithLabelValues(policy).Observe(duration.Seconds())
}

// MustRegister registers the metrics with the given registerer,
// ignoring collectors that are already registered.
func (m *Metrics) MustRegister(registerer prometheus.Registerer) {
	if err := observability.RegisterCollectors(registerer, m.decisionTotal, m.evaluationDuration); err != nil {
		panic(err)
	}
}
