package ports

import (
	"context"

	"github.com/kirillkom/claim-processor/internal/core/domain"
)

// DocumentProcessor is the inbound contract for running the claim pipeline.
type DocumentProcessor interface {
	Process(ctx context.Context, submission domain.Submission) (*domain.PipelineResult, error)
}

// RecordReader is the inbound read model for stored records.
type RecordReader interface {
	Load(ctx context.Context, key string) (*domain.StoredRecord, error)
}
