package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/kirillkom/claim-processor/internal/core/domain"
)

type RecordStore struct {
	db      *sql.DB
	dialect Dialect
}

func NewRecordStore(db *sql.DB, dialect Dialect) *RecordStore {
	return &RecordStore{db: db, dialect: dialect}
}

func OpenDB(dialect Dialect, dsn string) (*sql.DB, error) {
	db, err := sql.Open(dialect.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	if dialect.Name == SQLite.Name {
		// A single connection keeps :memory: databases shared and avoids
		// SQLITE_BUSY on concurrent writers.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *RecordStore) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if r.dialect.SchemaLock != "" {
		if _, err := tx.ExecContext(ctx, r.dialect.SchemaLock); err != nil {
			return fmt.Errorf("acquire schema lock: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx, r.dialect.DDL); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *RecordStore) Save(ctx context.Context, key string, record domain.StoredRecord) (domain.StorageReceipt, error) {
	chunks := record.Chunks
	if chunks == nil {
		chunks = []string{}
	}
	chunksJSON, err := json.Marshal(chunks)
	if err != nil {
		return domain.StorageReceipt{}, fmt.Errorf("marshal chunks: %w", err)
	}

	_, err = r.db.ExecContext(ctx, r.dialect.rebind(`
INSERT INTO claim_records (
	key, document_id, filename, classification, confidence, reasoning, chunks, stored_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (key) DO UPDATE SET
	document_id = excluded.document_id,
	filename = excluded.filename,
	classification = excluded.classification,
	confidence = excluded.confidence,
	reasoning = excluded.reasoning,
	chunks = excluded.chunks,
	stored_at = excluded.stored_at
`),
		key, record.DocumentID, record.Filename, record.Classification, record.Confidence,
		record.Reasoning, string(chunksJSON), record.StoredAt.UTC(),
	)
	if err != nil {
		return domain.StorageReceipt{}, fmt.Errorf("upsert record: %w", err)
	}
	return domain.StorageReceipt{
		Key:      key,
		Location: fmt.Sprintf("%s://claim_records/%s", r.dialect.Name, key),
	}, nil
}

func (r *RecordStore) Load(ctx context.Context, key string) (*domain.StoredRecord, error) {
	row := r.db.QueryRowContext(ctx, r.dialect.rebind(`
SELECT document_id, filename, classification, confidence, reasoning, chunks, stored_at
FROM claim_records
WHERE key = $1
`), key)

	var record domain.StoredRecord
	var chunksRaw []byte
	err := row.Scan(
		&record.DocumentID, &record.Filename, &record.Classification, &record.Confidence,
		&record.Reasoning, &chunksRaw, &record.StoredAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "load record", fmt.Errorf("key %s", key))
		}
		return nil, fmt.Errorf("scan record: %w", err)
	}

	if err := json.Unmarshal(chunksRaw, &record.Chunks); err != nil {
		return nil, fmt.Errorf("unmarshal chunks: %w", err)
	}
	return &record, nil
}
