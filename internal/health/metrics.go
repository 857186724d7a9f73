package health

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/atmet-ai/foundry-facade/internal/observability"
)

// Metrics holds Prometheus metrics for health checks.
type Metrics struct {
	checksTotal   *prometheus.CounterVec
	checkStatus   *prometheus.GaugeVec
	checkDuration *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = observability.DefaultNamespace
	}

	return &Metrics{
		checksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "health",
				Name:      "checks_total",
				Help:      "Total number of health checks performed",
			},
			[]string{"check", "status"},
		),
		checkStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "health",
				Name:      "check_status",
				Help:      "Current health check status (1=healthy, 0=unhealthy)",
			},
			[]string{"check"},
		),
		checkDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "health",
				Name:      "check_duration_seconds",
				Help:      "Health check duration in seconds",
				Buckets:   []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"check"},
		),
	}
}

// RecordCheck records a completed check.
func (m *Metrics) RecordCheck(name string, healthy bool, duration time.Duration) {
	status := string(StatusHealthy)
	value := 1.0
	if !healthy {
		status = string(StatusUnhealthy)
		value = 0
	}

	m.checksTotal.WithLabelValues(name, status).Inc()
	m.checkStatus.WithLabelValues(name).Set(value)
	m.checkDuration.WithLabelValues(name).Observe(duration.Seconds())
}

// MustRegister registers the metrics with the given registerer.
func (m *Metrics) MustRegister(registerer prometheus.Registerer) {
	if err := observability.RegisterCollectors(registerer, m.checksTotal, m.checkStatus, m.checkDuration); err != nil {
		panic(err)
	}
}
