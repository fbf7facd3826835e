package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS tweets (
	id TEXT PRIMARY KEY,
	sentiment INTEGER NOT NULL,
	message TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS tweets_sentiment ON tweets (sentiment);

CREATE TABLE IF NOT EXISTS predictions (
	id TEXT PRIMARY KEY,
	model TEXT NOT NULL,
	text TEXT NOT NULL,
	label INTEGER NOT NULL,
	confidence REAL NOT NULL DEFAULT 0,
	source TEXT NOT NULL,
	author TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS predictions_created_at ON predictions (created_at);
`

// NewSQLite opens (or creates) the SQLite database at path.
func NewSQLite(ctx context.Context, path string) (*SQL, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage: open sqlite: %w", err)
	}

	// A single connection serialises writers and keeps ":memory:" databases
	// shared across queries.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: set WAL mode: %w", err)
	}

	return newSQL(ctx, db, "sqlite", sqliteSchema, rebindNone)
}
