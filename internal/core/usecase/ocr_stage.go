package usecase

import (
	"context"
	"time"

	"github.com/kirillkom/claim-processor/internal/core/domain"
	"github.com/kirillkom/claim-processor/internal/core/ports"
)

type OCRStage struct {
	recognizer ports.TextRecognizer
	timeout    time.Duration
}

func NewOCRStage(recognizer ports.TextRecognizer, timeout time.Duration) *OCRStage {
	return &OCRStage{recognizer: recognizer, timeout: timeout}
}

// Run extracts text and applies the quality gate. On a gate rejection the
// text and score are still returned alongside the *domain.LowQualityError.
func (s *OCRStage) Run(ctx context.Context, doc domain.Document, metrics *MetricsAggregator) (string, int, error) {
	callCtx, cancel := withStageTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	text, err := s.recognizer.Recognize(callCtx, doc.Data, doc.MimeType)
	latency := time.Since(start)
	if err != nil {
		metrics.Record(domain.Observation{Stage: domain.StageOCR, Latency: latency, Failed: true})
		return "", 0, domain.WrapError(domain.ErrOCRFailed, "extract text", err)
	}

	score := AssessQuality(text)
	metrics.Record(domain.Observation{Stage: domain.StageOCR, Quality: score, Latency: latency})
	if score < QualityThreshold {
		return text, score, &domain.LowQualityError{Score: score, Threshold: QualityThreshold}
	}
	return text, score, nil
}

func withStageTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
