package usecase

import (
	"sync"
	"time"

	"github.com/kirillkom/claim-processor/internal/core/domain"
)

// MetricsAggregator collects stage observations for exactly one pipeline run.
// Snapshots are computed from the raw observations on every call.
type MetricsAggregator struct {
	expected domain.Category

	mu           sync.Mutex
	observations []domain.Observation
}

// NewMetricsAggregator creates an empty aggregator. expected is optional
// ground truth; when empty the snapshot carries no accuracy.
func NewMetricsAggregator(expected domain.Category) *MetricsAggregator {
	return &MetricsAggregator{expected: expected}
}

func (a *MetricsAggregator) Record(obs domain.Observation) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.observations = append(a.observations, obs)
}

func (a *MetricsAggregator) Snapshot() domain.MetricsSnapshot {
	a.mu.Lock()
	observations := make([]domain.Observation, len(a.observations))
	copy(observations, a.observations)
	a.mu.Unlock()

	snapshot := domain.MetricsSnapshot{
		ExternalCalls:         len(observations),
		CategoryCounts:        map[domain.Category]int{},
		CategoryAvgConfidence: map[domain.Category]float64{},
	}

	var totalLatency time.Duration
	confidenceSums := map[domain.Category]int{}
	classified, matched := 0, 0

	for _, obs := range observations {
		totalLatency += obs.Latency
		if obs.Failed {
			snapshot.FailedCalls++
		}

		switch obs.Stage {
		case domain.StageOCR:
			snapshot.OCRQuality = obs.Quality
		case domain.StageClassify:
			snapshot.CategoryCounts[obs.Category]++
			confidenceSums[obs.Category] += obs.Confidence
			classified++
			if obs.Category == a.expected {
				matched++
			}
		}
	}

	for category, count := range snapshot.CategoryCounts {
		snapshot.CategoryAvgConfidence[category] = float64(confidenceSums[category]) / float64(count)
	}
	if len(observations) > 0 {
		snapshot.AverageLatencyMS = float64(totalLatency.Microseconds()) / 1000.0 / float64(len(observations))
	}
	if a.expected != "" && classified > 0 {
		accuracy := float64(matched) / float64(classified)
		snapshot.OverallAccuracy = &accuracy
	}

	return snapshot
}
