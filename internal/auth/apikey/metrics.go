package apikey

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/atmet-ai/foundry-facade/internal/observability"
)

// Metrics holds Prometheus metrics for API key validation.
type Metrics struct {
	validationTotal    *prometheus.CounterVec
	validationDuration *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = observability.DefaultNamespace
	}

	return &Metrics{
		validationTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "apikey",
				Name:      "validation_total",
				Help:      "Total number of API key validation attempts by outcome",
			},
			[]string{"reason"},
		),
		validationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "apikey",
				Name:      "validation_duration_seconds",
				Help:      "API key validation duration in seconds",
				Buckets:   []float64{.00001, .00005, .0001, .0005, .001, .005, .01},
			},
			[]string{"reason"},
		),
	}
}

// Init pre-populates every outcome so the series exist from startup.
func (m *Metrics) Init() {
	for _, reason := range []string{ReasonValid, ReasonMissing, ReasonNotConfigured, ReasonInvalid} {
		m.validationTotal.WithLabelValues(reason)
		m.validationDuration.WithLabelValues(reason)
	}
}

// RecordValidation records an API key validation attempt.
func (m *Metrics) RecordValidation(reason string, duration time.Duration) {
	m.validationTotal.WithLabelValues(reason).Inc()
	m.validationDuration.WithLabelValues(reason).Observe(duration.Seconds())
}

// MustRegister registers the metrics with the given registerer,
// ignoring collectors that are already registered.
func (m *Metrics) MustRegister(registerer prometheus.Registerer) {
	if err := observability.RegisterCollectors(registerer, m.validationTotal, m.validationDuration); err != nil {
		panic(err)
	}
}
