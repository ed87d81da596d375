package localfs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/kirillkom/claim-processor/internal/core/domain"
)

// RecordStore writes each record as an indented <key>.json file.
type RecordStore struct {
	files *Storage
}

func NewRecordStore(basePath string) (*RecordStore, error) {
	if basePath == "" {
		basePath = "./output"
	}
	files, err := New(basePath)
	if err != nil {
		return nil, err
	}
	return &RecordStore{files: files}, nil
}

func (s *RecordStore) Save(_ context.Context, key string, record domain.StoredRecord) (domain.StorageReceipt, error) {
	path, err := s.files.path(key + ".json")
	if err != nil {
		return domain.StorageReceipt{}, err
	}

	raw, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return domain.StorageReceipt{}, fmt.Errorf("marshal record: %w", err)
	}

	// Temp file plus rename keeps the record write atomic.
	tmp, err := os.CreateTemp(s.files.basePath, ".record-*")
	if err != nil {
		return domain.StorageReceipt{}, fmt.Errorf("create temp record: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return domain.StorageReceipt{}, fmt.Errorf("write record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return domain.StorageReceipt{}, fmt.Errorf("close record: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return domain.StorageReceipt{}, fmt.Errorf("commit record: %w", err)
	}

	location, err := filepath.Abs(path)
	if err != nil {
		location = path
	}
	return domain.StorageReceipt{Key: key, Location: location}, nil
}

func (s *RecordStore) Load(_ context.Context, key string) (*domain.StoredRecord, error) {
	path, err := s.files.path(key + ".json")
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "load record", err)
		}
		return nil, fmt.Errorf("read record: %w", err)
	}

	var record domain.StoredRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return &record, nil
}
