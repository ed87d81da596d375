package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/claim-processor/internal/core/domain"
	"github.com/kirillkom/claim-processor/internal/core/ports"
)

type PipelineOptions struct {
	// StageTimeout bounds each capability-backed stage. Zero disables it.
	StageTimeout     time.Duration
	MaxDocumentBytes int64
	// ClassificationFallback continues with a degraded others/0
	// classification instead of failing the run.
	ClassificationFallback bool

	Publisher ports.EventPublisher
	Observer  ports.PipelineObserver
	Logger    *slog.Logger
}

type ProcessDocumentUseCase struct {
	staging   ports.StagingArea
	ocr       *OCRStage
	classify  *ClassifyStage
	store     *StorageStage
	summarize *SummarizeStage

	publisher ports.EventPublisher
	observer  ports.PipelineObserver
	logger    *slog.Logger

	maxDocumentBytes       int64
	classificationFallback bool
}

func NewProcessDocumentUseCase(
	staging ports.StagingArea,
	recognizer ports.TextRecognizer,
	classifier ports.DocumentClassifier,
	chunker ports.Chunker,
	records ports.RecordStore,
	generator ports.TextGenerator,
	opts PipelineOptions,
) *ProcessDocumentUseCase {
	if opts.MaxDocumentBytes <= 0 {
		opts.MaxDocumentBytes = DefaultMaxDocumentBytes
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Observer == nil {
		opts.Observer = noopObserver{}
	}

	return &ProcessDocumentUseCase{
		staging:   staging,
		ocr:       NewOCRStage(recognizer, opts.StageTimeout),
		classify:  NewClassifyStage(classifier, opts.StageTimeout),
		store:     NewStorageStage(records, chunker),
		summarize: NewSummarizeStage(generator, opts.StageTimeout, opts.Logger),

		publisher: opts.Publisher,
		observer:  opts.Observer,
		logger:    opts.Logger,

		maxDocumentBytes:       opts.MaxDocumentBytes,
		classificationFallback: opts.ClassificationFallback,
	}
}

// pipelineRun tracks the state machine of one Process call.
type pipelineRun struct {
	documentID string
	state      domain.PipelineState
	logger     *slog.Logger
}

func (r *pipelineRun) advance(next domain.PipelineState) {
	r.logger.Debug("pipeline_transition", "document_id", r.documentID, "from", r.state, "to", next)
	r.state = next
}

func (r *pipelineRun) fail(stage domain.Stage, err error) *domain.PipelineError {
	pipelineErr := &domain.PipelineError{Stage: stage, State: r.state, Err: err}
	r.logger.Warn("pipeline_stage_failed",
		"document_id", r.documentID,
		"stage", stage,
		"state", r.state,
		"error", err,
	)
	r.state = domain.StateFailed
	return pipelineErr
}

func (uc *ProcessDocumentUseCase) Process(ctx context.Context, submission domain.Submission) (result *domain.PipelineResult, err error) {
	run := &pipelineRun{
		documentID: uuid.NewString(),
		state:      domain.StateStarted,
		logger:     uc.logger,
	}

	start := time.Now()
	uc.observer.StartRun()
	defer func() {
		var failedStage domain.Stage
		var pipelineErr *domain.PipelineError
		if errors.As(err, &pipelineErr) {
			failedStage = pipelineErr.Stage
		}
		uc.observer.FinishRun(time.Since(start), failedStage, err)
	}()

	if submission.Body == nil || strings.TrimSpace(submission.Filename) == "" {
		return nil, run.fail(domain.StageIntake, domain.WrapError(domain.ErrInvalidInput, "accept document", errors.New("no file selected")))
	}

	stagingKey := DocumentKey(run.documentID, submission.Filename)
	defer uc.release(ctx, run.documentID, stagingKey)

	if err := uc.staging.Save(ctx, stagingKey, submission.Body); err != nil {
		return nil, run.fail(domain.StageIntake, err)
	}
	data, err := loadStaged(ctx, uc.staging, stagingKey, uc.maxDocumentBytes)
	if err != nil {
		return nil, run.fail(domain.StageIntake, err)
	}

	doc := domain.Document{
		ID:       run.documentID,
		Filename: submission.Filename,
		MimeType: resolveMimeType(submission.MimeType, data),
		Data:     data,
	}
	metrics := NewMetricsAggregator(submission.ExpectedCategory)

	text, score, err := uc.ocr.Run(ctx, doc, metrics)
	if err == nil || domain.IsKind(err, domain.ErrLowQuality) {
		uc.observer.ObserveQuality(score)
	}
	if err != nil {
		return nil, run.fail(domain.StageOCR, err)
	}
	run.advance(domain.StateOCRDone)

	classification, err := uc.classify.Run(ctx, text, metrics)
	if err != nil {
		if !uc.classificationFallback {
			return nil, run.fail(domain.StageClassify, err)
		}
		uc.logger.Warn("classification_degraded", "document_id", doc.ID, "error", err)
	}
	uc.observer.ObserveClassification(classification.Category)
	run.advance(domain.StateClassified)

	receipt, err := uc.store.Run(ctx, doc, text, classification)
	if err != nil {
		return nil, run.fail(domain.StageStorage, err)
	}
	run.advance(domain.StateStored)

	summary, degraded := uc.summarize.Run(ctx, text, metrics)
	run.advance(domain.StateSummarized)
	run.advance(domain.StateCompleted)

	result = &domain.PipelineResult{
		DocumentID:      doc.ID,
		Filename:        doc.Filename,
		State:           run.state,
		ExtractedText:   text,
		QualityScore:    score,
		Classification:  classification,
		Summary:         summary,
		SummaryDegraded: degraded,
		StorageReceipt:  receipt,
		Metrics:         metrics.Snapshot(),
	}
	uc.publish(ctx, result)

	uc.logger.Info("document_processed",
		"document_id", doc.ID,
		"category", classification.Category,
		"quality_score", score,
		"storage_key", receipt.Key,
		"summary_degraded", degraded,
	)
	return result, nil
}

func (uc *ProcessDocumentUseCase) release(ctx context.Context, documentID, key string) {
	if err := uc.staging.Remove(context.WithoutCancel(ctx), key); err != nil {
		uc.logger.Warn("staging_release_failed", "document_id", documentID, "key", key, "error", err)
	}
}

func (uc *ProcessDocumentUseCase) publish(ctx context.Context, result *domain.PipelineResult) {
	if uc.publisher == nil {
		return
	}
	event := domain.ProcessedEvent{
		DocumentID:      result.DocumentID,
		Filename:        result.Filename,
		Category:        result.Classification.Category,
		Confidence:      result.Classification.Confidence,
		StorageKey:      result.StorageReceipt.Key,
		QualityScore:    result.QualityScore,
		SummaryDegraded: result.SummaryDegraded,
		ProcessedAt:     time.Now().UTC(),
	}
	if err := uc.publisher.PublishDocumentProcessed(ctx, event); err != nil {
		uc.logger.Warn("processed_event_publish_failed", "document_id", result.DocumentID, "error", err)
	}
}

type noopObserver struct{}

func (noopObserver) StartRun()                                   {}
func (noopObserver) FinishRun(time.Duration, domain.Stage, error) {}
func (noopObserver) ObserveQuality(int)                          {}
func (noopObserver) ObserveClassification(domain.Category)       {}
