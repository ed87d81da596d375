package usecase

import (
	"context"
	"time"

	"github.com/kirillkom/claim-processor/internal/core/domain"
	"github.com/kirillkom/claim-processor/internal/core/ports"
)

type ClassifyStage struct {
	classifier ports.DocumentClassifier
	timeout    time.Duration
}

func NewClassifyStage(classifier ports.DocumentClassifier, timeout time.Duration) *ClassifyStage {
	return &ClassifyStage{classifier: classifier, timeout: timeout}
}

// Run classifies text. When the classifier fails, the returned classification
// is the degraded others/0 value so the caller may continue with it.
func (s *ClassifyStage) Run(ctx context.Context, text string, metrics *MetricsAggregator) (domain.Classification, error) {
	callCtx, cancel := withStageTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	cls, err := s.classifier.Classify(callCtx, text)
	latency := time.Since(start)
	if err != nil {
		degraded := domain.Classification{
			Category:   domain.CategoryOthers,
			Confidence: 0,
			Reasoning:  "classification unavailable",
			Degraded:   true,
		}
		metrics.Record(domain.Observation{
			Stage:    domain.StageClassify,
			Category: degraded.Category,
			Latency:  latency,
			Failed:   true,
		})
		return degraded, domain.WrapError(domain.ErrClassificationFailed, "classify document", err)
	}

	cls = normalizeClassification(cls)
	metrics.Record(domain.Observation{
		Stage:      domain.StageClassify,
		Category:   cls.Category,
		Confidence: cls.Confidence,
		Latency:    latency,
	})
	return cls, nil
}

func normalizeClassification(cls domain.Classification) domain.Classification {
	category, ok := domain.ParseCategory(string(cls.Category))
	if !ok {
		cls.Degraded = true
	}
	cls.Category = category
	cls.Confidence = clampConfidence(cls.Confidence)
	return cls
}

func clampConfidence(v int) int {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}
