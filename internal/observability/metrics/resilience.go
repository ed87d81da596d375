package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var breakerStateValues = map[string]float64{
	"closed":    0,
	"half-open": 1,
	"open":      2,
}

// ResilienceMetrics exports provider retries and circuit breaker state.
type ResilienceMetrics struct {
	service string

	retriesTotal *prometheus.CounterVec
	retryWait    *prometheus.HistogramVec
	breakerState *prometheus.GaugeVec
}

func NewResilienceMetrics(service string, registry *prometheus.Registry) *ResilienceMetrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	retriesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "retries_total",
			Help:      "Provider call retries by operation.",
		},
		[]string{"service", "operation"},
	)
	retryWait := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "retry_wait_seconds",
			Help:      "Pause before a provider retry, including Retry-After hints.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"service", "operation"},
	)
	breakerState := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "breaker_state",
			Help:      "Circuit breaker state by operation: 0 closed, 1 half-open, 2 open.",
		},
		[]string{"service", "operation"},
	)

	registry.MustRegister(retriesTotal, retryWait, breakerState)
	return &ResilienceMetrics{
		service:      service,
		retriesTotal: retriesTotal,
		retryWait:    retryWait,
		breakerState: breakerState,
	}
}

func (m *ResilienceMetrics) ObserveRetry(operation string, wait time.Duration) {
	m.retriesTotal.WithLabelValues(m.service, operation).Inc()
	m.retryWait.WithLabelValues(m.service, operation).Observe(wait.Seconds())
}

func (m *ResilienceMetrics) ObserveBreakerState(operation string, state string) {
	value, ok := breakerStateValues[state]
	if !ok {
		return
	}
	m.breakerState.WithLabelValues(m.service, operation).Set(value)
}
