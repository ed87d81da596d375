package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/claim-processor/internal/core/domain"
)

// EventMetrics counts processed-document events seen by a consumer.
type EventMetrics struct {
	service string

	eventsTotal  *prometheus.CounterVec
	qualityScore prometheus.Histogram
}

func NewEventMetrics(service string, registry *prometheus.Registry) *EventMetrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	eventsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "processed_total",
			Help:      "Processed-document events consumed, by category and summary state.",
		},
		[]string{"service", "category", "summary_degraded"},
	)
	qualityScore := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "events",
			Name:        "quality_score",
			Help:        "OCR quality score carried by consumed events.",
			Buckets:     prometheus.LinearBuckets(45, 5, 12),
			ConstLabels: prometheus.Labels{"service": service},
		},
	)

	registry.MustRegister(eventsTotal, qualityScore)
	return &EventMetrics{service: service, eventsTotal: eventsTotal, qualityScore: qualityScore}
}

func (m *EventMetrics) ObserveEvent(event domain.ProcessedEvent) {
	m.eventsTotal.WithLabelValues(m.service, string(event.Category), strconv.FormatBool(event.SummaryDegraded)).Inc()
	m.qualityScore.Observe(float64(event.QualityScore))
}
