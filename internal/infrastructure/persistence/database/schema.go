package database

import (
	"context"
	"fmt"
	"time"
)

// schemaStatements create the tables the service reads. The CMS and the
// token/analyzer/contest services own the rows; the service only needs
// the tables to exist for local development and tests.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS pages (
		id               TEXT PRIMARY KEY,
		slug             TEXT NOT NULL UNIQUE,
		title            TEXT NOT NULL,
		is_published     INTEGER NOT NULL DEFAULT 0,
		visibility_rules TEXT,
		created_at       TEXT NOT NULL,
		updated_at       TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS page_blocks (
		id               TEXT PRIMARY KEY,
		page_id          TEXT NOT NULL REFERENCES pages(id) ON DELETE CASCADE,
		block_type       TEXT NOT NULL,
		position         INTEGER NOT NULL DEFAULT 0,
		config           TEXT,
		visibility_rules TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_page_blocks_page ON page_blocks(page_id, position)`,
	`CREATE TABLE IF NOT EXISTS user_tokens (
		user_id TEXT PRIMARY KEY,
		balance INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS analyzer_requests (
		id         TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL,
		model_id   TEXT NOT NULL,
		status     TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_analyzer_requests_user ON analyzer_requests(user_id, status)`,
	`CREATE TABLE IF NOT EXISTS contest_entries (
		id         TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL,
		contest_id TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_contest_entries_user ON contest_entries(user_id)`,
}

// EnsureSchema creates any missing tables and indexes.
func (db *DB) EnsureSchema(ctx context.Context) error {
	start := time.Now()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin schema transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range schemaStatements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit schema: %w", err)
	}

	if db.logger != nil {
		db.logger.Database().Info("Database schema ensured", "statements", len(schemaStatements), "duration", time.Since(start))
	}
	return nil
}
