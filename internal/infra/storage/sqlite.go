package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

var sqliteSchemas = []string{
	`CREATE TABLE IF NOT EXISTS event_log (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		run_id TEXT NOT NULL,
		timestamp INTEGER NOT NULL,
		event_type TEXT NOT NULL,
		actor_id TEXT NOT NULL,
		target_id TEXT,
		payload TEXT NOT NULL,
		game_day INTEGER NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_event_log_run_id ON event_log(run_id);`,
	`CREATE INDEX IF NOT EXISTS idx_event_log_type ON event_log(run_id, event_type);`,
	`CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		content_version TEXT NOT NULL,
		outcome TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		ended_at INTEGER NOT NULL,
		play_time_ms INTEGER NOT NULL,
		level INTEGER NOT NULL,
		day INTEGER NOT NULL,
		coins INTEGER NOT NULL,
		reputation INTEGER NOT NULL,
		completed_orders INTEGER NOT NULL,
		failed_orders INTEGER NOT NULL,
		perfect_treatments INTEGER NOT NULL,
		max_combo INTEGER NOT NULL,
		achievements_unlocked INTEGER NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_runs_ended_at ON runs(ended_at);`,
}

// OpenSQLite opens (creating if needed) the local SQLite ledger.
func OpenSQLite(ctx context.Context, dbPath string) (*SQLLedger, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}
	if err := createSchemas(ctx, db, sqliteSchemas); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schemas: %w", err)
	}

	l := &SQLLedger{db: db, dialect: dialectSQLite, writeTimeout: DefaultWriteTimeout}
	l.SetPool(1, 1)
	return l, nil
}
