package sqlstore

import (
	"fmt"
	"regexp"
	"strings"
)

type Dialect struct {
	Name   string
	Driver string
	// SchemaLock serializes bootstrap DDL across concurrent startups when set.
	SchemaLock string
	DDL        string
	rebind     func(query string) string
}

var Postgres = Dialect{
	Name:       "postgres",
	Driver:     "pgx",
	SchemaLock: `SELECT pg_advisory_xact_lock(2026021002)`,
	DDL: `
CREATE TABLE IF NOT EXISTS claim_records (
	key TEXT PRIMARY KEY,
	document_id TEXT NOT NULL,
	filename TEXT NOT NULL,
	classification TEXT NOT NULL,
	confidence INTEGER NOT NULL DEFAULT 0,
	reasoning TEXT NOT NULL DEFAULT '',
	chunks JSONB NOT NULL DEFAULT '[]'::jsonb,
	stored_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_claim_records_classification ON claim_records(classification);
`,
	rebind: func(query string) string { return query },
}

var placeholderRe = regexp.MustCompile(`\$\d+`)

var SQLite = Dialect{
	Name:   "sqlite",
	Driver: "sqlite",
	DDL: `
CREATE TABLE IF NOT EXISTS claim_records (
	key TEXT PRIMARY KEY,
	document_id TEXT NOT NULL,
	filename TEXT NOT NULL,
	classification TEXT NOT NULL,
	confidence INTEGER NOT NULL DEFAULT 0,
	reasoning TEXT NOT NULL DEFAULT '',
	chunks TEXT NOT NULL DEFAULT '[]',
	stored_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_claim_records_classification ON claim_records(classification);
`,
	rebind: func(query string) string { return placeholderRe.ReplaceAllString(query, "?") },
}

func DialectByName(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "postgres", "postgresql", "pgx":
		return Postgres, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	default:
		return Dialect{}, fmt.Errorf("unsupported sql dialect %q", name)
	}
}
