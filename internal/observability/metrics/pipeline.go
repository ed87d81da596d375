package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/claim-processor/internal/core/domain"
)

// PipelineMetrics exports run-level pipeline telemetry. Per-run metrics
// snapshots stay on the result; these are process-wide aggregates.
type PipelineMetrics struct {
	service string

	runTotal       *prometheus.CounterVec
	runDuration    *prometheus.HistogramVec
	runInFlight    prometheus.Gauge
	ocrQuality     prometheus.Histogram
	classification *prometheus.CounterVec
}

func NewPipelineMetrics(service string, registry *prometheus.Registry) *PipelineMetrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	runTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Total pipeline runs by status and failed stage.",
		},
		[]string{"service", "status", "stage"},
	)
	runDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "run_duration_seconds",
			Help:      "Pipeline run duration in seconds by status.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"service", "status"},
	)
	runInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_in_flight",
			Help:      "Number of in-flight pipeline runs.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	ocrQuality := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "ocr_quality_score",
			Help:      "Distribution of OCR quality scores.",
			Buckets:   []float64{10, 20, 30, 45, 60, 75, 90, 100},
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	classification := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "classifications_total",
			Help:      "Total classifications by category.",
		},
		[]string{"service", "category"},
	)

	registry.MustRegister(runTotal, runDuration, runInFlight, ocrQuality, classification)

	return &PipelineMetrics{
		service:        service,
		runTotal:       runTotal,
		runDuration:    runDuration,
		runInFlight:    runInFlight,
		ocrQuality:     ocrQuality,
		classification: classification,
	}
}

func (m *PipelineMetrics) StartRun() {
	m.runInFlight.Inc()
}

func (m *PipelineMetrics) FinishRun(duration time.Duration, failedStage domain.Stage, err error) {
	m.runInFlight.Dec()

	status := "success"
	stage := "none"
	if err != nil {
		status = "error"
		stage = string(failedStage)
		if stage == "" {
			stage = "unknown"
		}
	}

	m.runTotal.WithLabelValues(m.service, status, stage).Inc()
	m.runDuration.WithLabelValues(m.service, status).Observe(duration.Seconds())
}

func (m *PipelineMetrics) ObserveQuality(score int) {
	m.ocrQuality.Observe(float64(score))
}

func (m *PipelineMetrics) ObserveClassification(category domain.Category) {
	m.classification.WithLabelValues(m.service, string(category)).Inc()
}
