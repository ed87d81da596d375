package ports

import (
	"context"
	"io"
	"time"

	"github.com/kirillkom/claim-processor/internal/core/domain"
)

// TextRecognizer extracts text from raw document bytes (OCR for images).
type TextRecognizer interface {
	Recognize(ctx context.Context, data []byte, mimeType string) (string, error)
}

// TextGenerator is a prompt-in, text-out generation capability.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// DocumentClassifier classifies extracted text.
type DocumentClassifier interface {
	Classify(ctx context.Context, text string) (domain.Classification, error)
}

// Chunker splits text into ordered chunks for storage.
type Chunker interface {
	Split(text string) []string
}

// RecordStore persists processed documents under a key.
type RecordStore interface {
	Save(ctx context.Context, key string, record domain.StoredRecord) (domain.StorageReceipt, error)
	Load(ctx context.Context, key string) (*domain.StoredRecord, error)
}

// StagingArea holds uploads for the lifetime of one pipeline run.
type StagingArea interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Remove(ctx context.Context, key string) error
}

// EventPublisher announces completed runs.
type EventPublisher interface {
	PublishDocumentProcessed(ctx context.Context, event domain.ProcessedEvent) error
}

// PipelineObserver receives run-level telemetry.
type PipelineObserver interface {
	StartRun()
	FinishRun(duration time.Duration, failedStage domain.Stage, err error)
	ObserveQuality(score int)
	ObserveClassification(category domain.Category)
}
