package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
)

var postgresSchemas = []string{
	`CREATE TABLE IF NOT EXISTS event_log (
		seq BIGSERIAL PRIMARY KEY,
		id TEXT NOT NULL UNIQUE,
		run_id TEXT NOT NULL,
		timestamp BIGINT NOT NULL,
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
		started_at BIGINT NOT NULL,
		ended_at BIGINT NOT NULL,
		play_time_ms BIGINT NOT NULL,
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

// OpenPostgres connects to a PostgreSQL ledger and applies the schema.
func OpenPostgres(ctx context.Context, dsn string) (*SQLLedger, error) {
	if dsn == "" {
		return nil, fmt.Errorf("open postgres: empty dsn")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := createSchemas(ctx, db, postgresSchemas); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply postgres schema: %w", err)
	}
	return &SQLLedger{db: db, dialect: dialectPostgres, writeTimeout: DefaultWriteTimeout}, nil
}
