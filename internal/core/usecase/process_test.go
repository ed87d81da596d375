package usecase

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kirillkom/claim-processor/internal/core/domain"
)

type stagingFake struct {
	mu      sync.Mutex
	files   map[string][]byte
	removed []string
	saveErr error
}

func newStagingFake() *stagingFake {
	return &stagingFake{files: map[string][]byte{}}
}

func (f *stagingFake) Save(_ context.Context, key string, body io.Reader) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[key] = raw
	return nil
}

func (f *stagingFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, ok := f.files[key]
	if !ok {
		return nil, domain.ErrDocumentNotFound
	}
	return io.NopCloser(bytes.NewReader(raw)), nil
}

func (f *stagingFake) Remove(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.files, key)
	f.removed = append(f.removed, key)
	return nil
}

func (f *stagingFake) remaining() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.files)
}

type recognizerFake struct {
	text  string
	err   error
	calls int
}

func (f *recognizerFake) Recognize(context.Context, []byte, string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

type classifierFake struct {
	cls   domain.Classification
	err   error
	calls int
}

func (f *classifierFake) Classify(context.Context, string) (domain.Classification, error) {
	f.calls++
	if f.err != nil {
		return domain.Classification{}, f.err
	}
	return f.cls, nil
}

type chunkerFake struct{}

func (chunkerFake) Split(text string) []string { return strings.Split(text, "\n") }

type recordStoreFake struct {
	saved   map[string]domain.StoredRecord
	saveErr error
}

func newRecordStoreFake() *recordStoreFake {
	return &recordStoreFake{saved: map[string]domain.StoredRecord{}}
}

func (f *recordStoreFake) Save(_ context.Context, key string, record domain.StoredRecord) (domain.StorageReceipt, error) {
	if f.saveErr != nil {
		return domain.StorageReceipt{}, f.saveErr
	}
	f.saved[key] = record
	return domain.StorageReceipt{Key: key, Location: "memory://" + key}, nil
}

func (f *recordStoreFake) Load(_ context.Context, key string) (*domain.StoredRecord, error) {
	record, ok := f.saved[key]
	if !ok {
		return nil, domain.ErrDocumentNotFound
	}
	return &record, nil
}

type generatorFake struct {
	reply   string
	err     error
	prompts []string
}

func (f *generatorFake) Generate(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

type publisherFake struct {
	events []domain.ProcessedEvent
	err    error
}

func (f *publisherFake) PublishDocumentProcessed(_ context.Context, event domain.ProcessedEvent) error {
	f.events = append(f.events, event)
	return f.err
}

type observerFake struct {
	started     int
	finished    int
	failedStage domain.Stage
	qualities   []int
	categories  []domain.Category
}

func (f *observerFake) StartRun() { f.started++ }

func (f *observerFake) FinishRun(_ time.Duration, failedStage domain.Stage, _ error) {
	f.finished++
	f.failedStage = failedStage
}

func (f *observerFake) ObserveQuality(score int) { f.qualities = append(f.qualities, score) }

func (f *observerFake) ObserveClassification(category domain.Category) {
	f.categories = append(f.categories, category)
}

type pipelineFixture struct {
	staging    *stagingFake
	recognizer *recognizerFake
	classifier *classifierFake
	records    *recordStoreFake
	generator  *generatorFake
	publisher  *publisherFake
	observer   *observerFake
}

func newPipelineFixture(text string) *pipelineFixture {
	return &pipelineFixture{
		staging:    newStagingFake(),
		recognizer: &recognizerFake{text: text},
		classifier: &classifierFake{cls: domain.Classification{Category: domain.CategoryMedicalRecords, Confidence: 90, Reasoning: "hospital report"}},
		records:    newRecordStoreFake(),
		generator:  &generatorFake{reply: "A short summary."},
		publisher:  &publisherFake{},
		observer:   &observerFake{},
	}
}

func (f *pipelineFixture) useCase(opts PipelineOptions) *ProcessDocumentUseCase {
	opts.Publisher = f.publisher
	opts.Observer = f.observer
	return NewProcessDocumentUseCase(f.staging, f.recognizer, f.classifier, chunkerFake{}, f.records, f.generator, opts)
}

func submission(body string) domain.Submission {
	return domain.Submission{Filename: "claim.png", MimeType: "image/png", Body: strings.NewReader(body)}
}

func TestProcessEndToEndWithKeywordClassifier(t *testing.T) {
	fx := newPipelineFixture("Medical report from City Hospital regarding patient injury")
	uc := NewProcessDocumentUseCase(fx.staging, fx.recognizer, NewKeywordClassifier(), chunkerFake{}, fx.records, fx.generator, PipelineOptions{})

	result, err := uc.Process(context.Background(), submission("image-bytes"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.State != domain.StateCompleted {
		t.Fatalf("expected completed state, got %s", result.State)
	}
	if result.Classification.Category != domain.CategoryMedicalRecords {
		t.Fatalf("expected medical_records, got %s", result.Classification.Category)
	}
	if result.StorageReceipt.Key == "" || result.StorageReceipt.Location == "" {
		t.Fatalf("expected non-empty storage receipt, got %+v", result.StorageReceipt)
	}
	if result.Summary == "" || result.SummaryDegraded {
		t.Fatalf("expected summary, got %q degraded=%v", result.Summary, result.SummaryDegraded)
	}
	if result.Metrics.ExternalCalls != 3 {
		t.Fatalf("expected 3 external calls, got %d", result.Metrics.ExternalCalls)
	}
	if result.Metrics.FailedCalls != 0 {
		t.Fatalf("expected no failed calls, got %d", result.Metrics.FailedCalls)
	}
	if result.Metrics.OverallAccuracy != nil {
		t.Fatalf("expected no accuracy without expected category")
	}
	if fx.staging.remaining() != 0 {
		t.Fatalf("expected staging to be released")
	}
}

func TestProcessStoresRecordWithChunks(t *testing.T) {
	fx := newPipelineFixture("medical claim narrative\nsecond paragraph describing treatment")
	uc := fx.useCase(PipelineOptions{})

	result, err := uc.Process(context.Background(), submission("bytes"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	record, ok := fx.records.saved[result.StorageReceipt.Key]
	if !ok {
		t.Fatalf("expected record under %q", result.StorageReceipt.Key)
	}
	if record.DocumentID != result.DocumentID || record.Filename != "claim.png" {
		t.Fatalf("unexpected record identity: %+v", record)
	}
	if record.Classification != "medical_records" || record.Confidence != 90 {
		t.Fatalf("unexpected record classification: %+v", record)
	}
	if len(record.Chunks) != 2 || record.Chunks[1] != "second paragraph describing treatment" {
		t.Fatalf("unexpected chunks: %#v", record.Chunks)
	}
	if !strings.HasSuffix(result.StorageReceipt.Key, "_claim.png") {
		t.Fatalf("expected key derived from id and filename, got %q", result.StorageReceipt.Key)
	}
}

func TestProcessLowQualityStopsAfterOCR(t *testing.T) {
	// 4.4 average runes per token -> 44
	fx := newPipelineFixture("abcd abcd abcd abcde abcde")
	uc := fx.useCase(PipelineOptions{})

	_, err := uc.Process(context.Background(), submission("bytes"))
	if !domain.IsKind(err, domain.ErrLowQuality) {
		t.Fatalf("expected low quality error, got %v", err)
	}

	var lowQuality *domain.LowQualityError
	if !errors.As(err, &lowQuality) || lowQuality.Score != 44 || lowQuality.Threshold != 45 {
		t.Fatalf("expected score 44 threshold 45, got %+v", lowQuality)
	}
	var pipelineErr *domain.PipelineError
	if !errors.As(err, &pipelineErr) || pipelineErr.Stage != domain.StageOCR || pipelineErr.State != domain.StateStarted {
		t.Fatalf("unexpected pipeline error: %+v", pipelineErr)
	}
	if fx.classifier.calls != 0 || len(fx.generator.prompts) != 0 || len(fx.records.saved) != 0 {
		t.Fatalf("expected no stage after ocr to run")
	}
	if len(fx.observer.qualities) != 1 || fx.observer.qualities[0] != 44 {
		t.Fatalf("expected observed quality 44, got %v", fx.observer.qualities)
	}
	if fx.observer.failedStage != domain.StageOCR {
		t.Fatalf("expected observer to see ocr failure, got %q", fx.observer.failedStage)
	}
	if fx.staging.remaining() != 0 {
		t.Fatalf("expected staging to be released")
	}
}

func TestProcessQualityAtThresholdProceeds(t *testing.T) {
	fx := newPipelineFixture("abcd abcde")
	uc := fx.useCase(PipelineOptions{})

	result, err := uc.Process(context.Background(), submission("bytes"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.QualityScore != 45 || result.Metrics.OCRQuality != 45 {
		t.Fatalf("expected quality 45, got %d/%d", result.QualityScore, result.Metrics.OCRQuality)
	}
}

func TestProcessOCRFailure(t *testing.T) {
	fx := newPipelineFixture("")
	fx.recognizer.err = errors.New("vision unavailable")
	uc := fx.useCase(PipelineOptions{})

	_, err := uc.Process(context.Background(), submission("bytes"))
	if !domain.IsKind(err, domain.ErrOCRFailed) {
		t.Fatalf("expected ocr failure, got %v", err)
	}
	if len(fx.observer.qualities) != 0 {
		t.Fatalf("expected no quality observation on ocr failure")
	}
	if fx.classifier.calls != 0 {
		t.Fatalf("expected classifier not to run")
	}
}

func TestProcessClassificationFailureAbortsByDefault(t *testing.T) {
	fx := newPipelineFixture("claim document with readable content")
	fx.classifier.err = errors.New("model timeout")
	uc := fx.useCase(PipelineOptions{})

	_, err := uc.Process(context.Background(), submission("bytes"))
	if !domain.IsKind(err, domain.ErrClassificationFailed) {
		t.Fatalf("expected classification failure, got %v", err)
	}
	var pipelineErr *domain.PipelineError
	if !errors.As(err, &pipelineErr) || pipelineErr.State != domain.StateOCRDone {
		t.Fatalf("expected last state ocr_done, got %+v", pipelineErr)
	}
	if len(fx.records.saved) != 0 {
		t.Fatalf("expected nothing stored")
	}
}

func TestProcessClassificationFallbackContinues(t *testing.T) {
	fx := newPipelineFixture("claim document with readable content")
	fx.classifier.err = errors.New("model timeout")
	uc := fx.useCase(PipelineOptions{ClassificationFallback: true})

	result, err := uc.Process(context.Background(), submission("bytes"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cls := result.Classification
	if cls.Category != domain.CategoryOthers || cls.Confidence != 0 || !cls.Degraded {
		t.Fatalf("expected degraded others/0, got %+v", cls)
	}
	if result.Metrics.FailedCalls != 1 {
		t.Fatalf("expected one failed call, got %d", result.Metrics.FailedCalls)
	}
}

func TestProcessStorageFailureIsFatal(t *testing.T) {
	fx := newPipelineFixture("claim document with readable content")
	fx.records.saveErr = errors.New("disk full")
	uc := fx.useCase(PipelineOptions{})

	_, err := uc.Process(context.Background(), submission("bytes"))
	if !domain.IsKind(err, domain.ErrStorageFailed) {
		t.Fatalf("expected storage failure, got %v", err)
	}
	var pipelineErr *domain.PipelineError
	if !errors.As(err, &pipelineErr) || pipelineErr.Stage != domain.StageStorage || pipelineErr.State != domain.StateClassified {
		t.Fatalf("unexpected pipeline error: %+v", pipelineErr)
	}
	if len(fx.generator.prompts) != 0 {
		t.Fatalf("expected summarizer not to run")
	}
	if len(fx.publisher.events) != 0 {
		t.Fatalf("expected no processed event")
	}
	if fx.staging.remaining() != 0 {
		t.Fatalf("expected staging to be released")
	}
}

func TestProcessSummaryFailureStillCompletes(t *testing.T) {
	fx := newPipelineFixture("claim document with readable content")
	fx.generator.err = errors.New("quota exceeded")
	uc := fx.useCase(PipelineOptions{})

	result, err := uc.Process(context.Background(), submission("bytes"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.State != domain.StateCompleted {
		t.Fatalf("expected completed, got %s", result.State)
	}
	if !result.SummaryDegraded || !strings.HasPrefix(result.Summary, "Error generating summary: ") {
		t.Fatalf("expected summary error marker, got %q", result.Summary)
	}
	if result.StorageReceipt.Key == "" {
		t.Fatalf("expected document to be stored")
	}
	if result.Metrics.FailedCalls != 1 {
		t.Fatalf("expected one failed call, got %d", result.Metrics.FailedCalls)
	}
}

func TestProcessRejectsMissingFile(t *testing.T) {
	fx := newPipelineFixture("text")
	uc := fx.useCase(PipelineOptions{})

	_, err := uc.Process(context.Background(), domain.Submission{Filename: " ", Body: strings.NewReader("x")})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if fx.recognizer.calls != 0 {
		t.Fatalf("expected no ocr call")
	}
}

func TestProcessRejectsEmptyAndOversizedDocuments(t *testing.T) {
	fx := newPipelineFixture("text")
	uc := fx.useCase(PipelineOptions{MaxDocumentBytes: 4})

	if _, err := uc.Process(context.Background(), submission("")); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for empty body, got %v", err)
	}
	if _, err := uc.Process(context.Background(), submission("too large")); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for oversized body, got %v", err)
	}
	if fx.staging.remaining() != 0 {
		t.Fatalf("expected staging to be released, %d left", fx.staging.remaining())
	}
	if len(fx.staging.removed) != 2 {
		t.Fatalf("expected two releases, got %d", len(fx.staging.removed))
	}
}

func TestProcessMetricsAreIsolatedPerRun(t *testing.T) {
	fx := newPipelineFixture("claim document with readable content")
	uc := fx.useCase(PipelineOptions{})

	first, err := uc.Process(context.Background(), submission("one"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := uc.Process(context.Background(), submission("two"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if first.Metrics.ExternalCalls != 3 || second.Metrics.ExternalCalls != 3 {
		t.Fatalf("expected 3 calls per run, got %d and %d", first.Metrics.ExternalCalls, second.Metrics.ExternalCalls)
	}
	if second.Metrics.CategoryCounts[domain.CategoryMedicalRecords] != 1 {
		t.Fatalf("expected one classification in second run, got %v", second.Metrics.CategoryCounts)
	}
	if first.DocumentID == second.DocumentID {
		t.Fatalf("expected distinct document ids")
	}
}

func TestProcessAccuracyWithExpectedCategory(t *testing.T) {
	fx := newPipelineFixture("claim document with readable content")
	uc := fx.useCase(PipelineOptions{})

	sub := submission("bytes")
	sub.ExpectedCategory = domain.CategoryPersonalInjury
	result, err := uc.Process(context.Background(), sub)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Metrics.OverallAccuracy == nil || *result.Metrics.OverallAccuracy != 0 {
		t.Fatalf("expected accuracy 0, got %v", result.Metrics.OverallAccuracy)
	}
}

func TestProcessPublishFailureDoesNotFailRun(t *testing.T) {
	fx := newPipelineFixture("claim document with readable content")
	fx.publisher.err = errors.New("nats down")
	uc := fx.useCase(PipelineOptions{})

	result, err := uc.Process(context.Background(), submission("bytes"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fx.publisher.events) != 1 {
		t.Fatalf("expected one publish attempt, got %d", len(fx.publisher.events))
	}
	event := fx.publisher.events[0]
	if event.DocumentID != result.DocumentID || event.StorageKey != result.StorageReceipt.Key {
		t.Fatalf("unexpected event: %+v", event)
	}
	if fx.observer.started != 1 || fx.observer.finished != 1 || fx.observer.failedStage != "" {
		t.Fatalf("unexpected observer state: %+v", fx.observer)
	}
}
