package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/claim-processor/internal/core/domain"
	"github.com/kirillkom/claim-processor/internal/core/ports"
)

const summaryInstruction = "Summarize the following insurance claim document:"

type SummarizeStage struct {
	generator ports.TextGenerator
	timeout   time.Duration
	logger    *slog.Logger
}

func NewSummarizeStage(generator ports.TextGenerator, timeout time.Duration, logger *slog.Logger) *SummarizeStage {
	if logger == nil {
		logger = slog.Default()
	}
	return &SummarizeStage{generator: generator, timeout: timeout, logger: logger}
}

// Run is best-effort: a failed call yields an error marker as the summary and
// degraded=true instead of an error.
func (s *SummarizeStage) Run(ctx context.Context, text string, metrics *MetricsAggregator) (summary string, degraded bool) {
	callCtx, cancel := withStageTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	summary, err := s.generator.Generate(callCtx, summaryInstruction+"\n\n"+text)
	latency := time.Since(start)
	if err == nil && strings.TrimSpace(summary) == "" {
		err = errors.New("empty summary returned")
	}
	if err != nil {
		metrics.Record(domain.Observation{Stage: domain.StageSummarize, Latency: latency, Failed: true})
		wrapped := domain.WrapError(domain.ErrSummarizationFailed, "generate summary", err)
		s.logger.Warn("summary_degraded", "error", wrapped)
		return "Error generating summary: " + err.Error(), true
	}

	metrics.Record(domain.Observation{Stage: domain.StageSummarize, Latency: latency})
	return strings.TrimSpace(summary), false
}
