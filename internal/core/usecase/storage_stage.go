package usecase

import (
	"context"
	"time"

	"github.com/kirillkom/claim-processor/internal/core/domain"
	"github.com/kirillkom/claim-processor/internal/core/ports"
)

type StorageStage struct {
	records ports.RecordStore
	chunker ports.Chunker
	now     func() time.Time
}

func NewStorageStage(records ports.RecordStore, chunker ports.Chunker) *StorageStage {
	return &StorageStage{
		records: records,
		chunker: chunker,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *StorageStage) Run(ctx context.Context, doc domain.Document, text string, cls domain.Classification) (domain.StorageReceipt, error) {
	record := domain.StoredRecord{
		DocumentID:     doc.ID,
		Filename:       doc.Filename,
		Classification: string(cls.Category),
		Confidence:     cls.Confidence,
		Reasoning:      cls.Reasoning,
		Chunks:         s.chunker.Split(text),
		StoredAt:       s.now(),
	}

	receipt, err := s.records.Save(ctx, DocumentKey(doc.ID, doc.Filename), record)
	if err != nil {
		return domain.StorageReceipt{}, domain.WrapError(domain.ErrStorageFailed, "store document", err)
	}
	return receipt, nil
}
