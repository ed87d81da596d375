package gcs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"

	"github.com/kirillkom/claim-processor/internal/core/domain"
)

// RecordStore writes records as <prefix>/<key>.json objects in one bucket.
type RecordStore struct {
	client *storage.Client
	bucket string
	prefix string
}

func New(ctx context.Context, bucket, prefix string) (*RecordStore, error) {
	if bucket == "" {
		return nil, fmt.Errorf("gcs: bucket cannot be empty")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage.NewClient: %w", err)
	}
	return &RecordStore{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}, nil
}

func (s *RecordStore) Close() error {
	return s.client.Close()
}

func (s *RecordStore) objectName(key string) string {
	if s.prefix == "" {
		return key + ".json"
	}
	return path.Join(s.prefix, key+".json")
}

func (s *RecordStore) Save(ctx context.Context, key string, record domain.StoredRecord) (domain.StorageReceipt, error) {
	raw, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return domain.StorageReceipt{}, fmt.Errorf("marshal record: %w", err)
	}

	name := s.objectName(key)
	writer := s.client.Bucket(s.bucket).Object(name).NewWriter(ctx)
	writer.ContentType = "application/json"

	if _, err := writer.Write(raw); err != nil {
		_ = writer.Close()
		return domain.StorageReceipt{}, mapGCSError("write record", err)
	}
	if err := writer.Close(); err != nil {
		return domain.StorageReceipt{}, mapGCSError("finalize record", err)
	}

	return domain.StorageReceipt{
		Key:      key,
		Location: fmt.Sprintf("gs://%s/%s", s.bucket, name),
	}, nil
}

func (s *RecordStore) Load(ctx context.Context, key string) (*domain.StoredRecord, error) {
	reader, err := s.client.Bucket(s.bucket).Object(s.objectName(key)).NewReader(ctx)
	if err != nil {
		return nil, mapGCSError("open record", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return nil, mapGCSError("read record", err)
	}

	var record domain.StoredRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return &record, nil
}

func mapGCSError(operation string, err error) error {
	if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
		return domain.WrapError(domain.ErrDocumentNotFound, operation, err)
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch {
		case gerr.Code == http.StatusNotFound:
			return domain.WrapError(domain.ErrDocumentNotFound, operation, err)
		case gerr.Code == http.StatusTooManyRequests || gerr.Code >= 500:
			return domain.WrapError(domain.ErrTemporary, operation, err)
		}
	}
	return fmt.Errorf("gcs %s: %w", operation, err)
}
