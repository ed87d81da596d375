package firestore

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/kirillkom/claim-processor/internal/core/domain"
)

// RecordStore keeps one Firestore document per record, keyed by storage key.
type RecordStore struct {
	client     *firestore.Client
	collection string
}

func New(ctx context.Context, projectID, collection string) (*RecordStore, error) {
	if projectID == "" {
		return nil, fmt.Errorf("firestore: projectID cannot be empty")
	}
	if collection == "" {
		collection = "claim_records"
	}
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("firestore.NewClient: %w", err)
	}
	return &RecordStore{client: client, collection: collection}, nil
}

func (s *RecordStore) Close() error {
	return s.client.Close()
}

func (s *RecordStore) Save(ctx context.Context, key string, record domain.StoredRecord) (domain.StorageReceipt, error) {
	if record.Chunks == nil {
		record.Chunks = []string{}
	}
	docRef := s.client.Collection(s.collection).Doc(key)
	if _, err := docRef.Set(ctx, record); err != nil {
		return domain.StorageReceipt{}, mapFirestoreError("set record", err)
	}
	return domain.StorageReceipt{
		Key:      key,
		Location: fmt.Sprintf("firestore://%s/%s", s.collection, key),
	}, nil
}

func (s *RecordStore) Load(ctx context.Context, key string) (*domain.StoredRecord, error) {
	snap, err := s.client.Collection(s.collection).Doc(key).Get(ctx)
	if err != nil {
		return nil, mapFirestoreError("get record", err)
	}

	var record domain.StoredRecord
	if err := snap.DataTo(&record); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return &record, nil
}

func mapFirestoreError(operation string, err error) error {
	switch status.Code(err) {
	case codes.NotFound:
		return domain.WrapError(domain.ErrDocumentNotFound, operation, err)
	case codes.Unavailable, codes.ResourceExhausted, codes.DeadlineExceeded, codes.Aborted:
		return domain.WrapError(domain.ErrTemporary, operation, err)
	case codes.InvalidArgument:
		return domain.WrapError(domain.ErrInvalidInput, operation, err)
	default:
		return fmt.Errorf("firestore %s: %w", operation, err)
	}
}
