package httpadapter

import (
	"context"
	"io"
	"net/http"

	"github.com/kirillkom/claim-processor/internal/config"
	"github.com/kirillkom/claim-processor/internal/core/domain"
)

type processorFake struct {
	err  error
	seen []domain.Submission
	body []byte
}

func (f *processorFake) Process(_ context.Context, submission domain.Submission) (*domain.PipelineResult, error) {
	raw, err := io.ReadAll(submission.Body)
	if err != nil {
		return nil, err
	}
	f.body = raw
	f.seen = append(f.seen, submission)
	if f.err != nil {
		return nil, f.err
	}
	return &domain.PipelineResult{
		DocumentID:     "doc-1",
		Filename:       submission.Filename,
		State:          domain.StateCompleted,
		ExtractedText:  string(raw),
		QualityScore:   60,
		Classification: domain.Classification{Category: domain.CategoryMedicalRecords, Confidence: 80},
		Summary:        "summary",
		StorageReceipt: domain.StorageReceipt{Key: "doc-1_claim.txt", Location: "/tmp/doc-1_claim.txt.json"},
		Metrics:        domain.MetricsSnapshot{ExternalCalls: 3},
	}, nil
}

type recordsFake struct {
	records map[string]domain.StoredRecord
}

func (f recordsFake) Load(_ context.Context, key string) (*domain.StoredRecord, error) {
	record, ok := f.records[key]
	if !ok {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "load record", io.EOF)
	}
	return &record, nil
}

func newTestHandler(cfg config.Config) http.Handler {
	return NewRouter(cfg, &processorFake{}, recordsFake{records: map[string]domain.StoredRecord{
		"doc-1_claim.txt": {Classification: "medical_records", Confidence: 80, Chunks: []string{"a", "b"}},
	}}, nil).Handler()
}
