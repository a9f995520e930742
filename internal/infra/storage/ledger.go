package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/MRamiBalles/CyberClinic/server/internal/engine"
	"github.com/MRamiBalles/CyberClinic/server/internal/events"
)

var _ Ledger = (*SQLLedger)(nil)
var _ events.EventPersister = (*SQLLedger)(nil)

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

// rebind rewrites ? placeholders into the dialect's form.
func (d dialect) rebind(query string) string {
	if d != dialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// DefaultWriteTimeout bounds a single persister write.
const DefaultWriteTimeout = 5 * time.Second

// SQLLedger implements Ledger on database/sql for SQLite and PostgreSQL.
// Timestamps are stored as Unix nanoseconds so both backends share queries.
type SQLLedger struct {
	db           *sql.DB
	dialect      dialect
	writeTimeout time.Duration
}

// DB exposes the pool, mainly for health checks.
func (l *SQLLedger) DB() *sql.DB {
	return l.db
}

// SetPool applies connection pool limits. Non-positive values are ignored.
// SQLite ledgers always keep a single writer connection.
func (l *SQLLedger) SetPool(maxOpen, maxIdle int) {
	if l.dialect == dialectSQLite {
		maxOpen, maxIdle = 1, 1
	}
	if maxOpen > 0 {
		l.db.SetMaxOpenConns(maxOpen)
	}
	if maxIdle > 0 {
		l.db.SetMaxIdleConns(maxIdle)
	}
}

// Ping checks the connection.
func (l *SQLLedger) Ping(ctx context.Context) error {
	return l.db.PingContext(ctx)
}

// Close releases the pool.
func (l *SQLLedger) Close() error {
	return l.db.Close()
}

// Append satisfies events.EventPersister so the ledger can sit behind the
// event log's writer goroutine.
func (l *SQLLedger) Append(event events.GameEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), l.writeTimeout)
	defer cancel()
	return l.AppendEvent(ctx, event)
}

// AppendEvent inserts a new event into the immutable ledger.
func (l *SQLLedger) AppendEvent(ctx context.Context, event events.GameEvent) error {
	payloadJSON, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	query := l.dialect.rebind(`
		INSERT INTO event_log (id, run_id, timestamp, event_type, actor_id, target_id, payload, game_day)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	_, err = l.db.ExecContext(ctx, query,
		event.ID,
		event.RunID,
		event.Timestamp.UnixNano(),
		string(event.Type),
		event.ActorID,
		event.TargetID,
		string(payloadJSON),
		event.GameDay,
	)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

const eventColumns = `id, run_id, timestamp, event_type, actor_id, target_id, payload, game_day`

// EventsByRun retrieves all events for a run (for replay).
func (l *SQLLedger) EventsByRun(ctx context.Context, runID string) ([]events.GameEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM event_log WHERE run_id = ? ORDER BY seq ASC`
	return l.queryEvents(ctx, query, runID)
}

// EventsByType retrieves all events of one type within a run.
func (l *SQLLedger) EventsByType(ctx context.Context, runID string, eventType events.EventType) ([]events.GameEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM event_log WHERE run_id = ? AND event_type = ? ORDER BY seq ASC`
	return l.queryEvents(ctx, query, runID, string(eventType))
}

func (l *SQLLedger) queryEvents(ctx context.Context, query string, args ...any) ([]events.GameEvent, error) {
	rows, err := l.db.QueryContext(ctx, l.dialect.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var out []events.GameEvent
	for rows.Next() {
		var (
			e        events.GameEvent
			ts       int64
			evType   string
			targetID sql.NullString
			payload  string
		)
		if err := rows.Scan(&e.ID, &e.RunID, &ts, &evType, &e.ActorID, &targetID, &payload, &e.GameDay); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.Timestamp = time.Unix(0, ts)
		e.Type = events.EventType(evType)
		e.TargetID = targetID.String
		if payload != "" && payload != "null" {
			e.Payload = json.RawMessage(payload)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read events: %w", err)
	}
	return out, nil
}

// SaveRun inserts a run summary, replacing an earlier row with the same id.
func (l *SQLLedger) SaveRun(ctx context.Context, run engine.RunSummary) error {
	query := l.dialect.rebind(`
		INSERT INTO runs (run_id, content_version, outcome, started_at, ended_at, play_time_ms,
			level, day, coins, reputation, completed_orders, failed_orders,
			perfect_treatments, max_combo, achievements_unlocked)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (run_id) DO UPDATE SET
			content_version = excluded.content_version,
			outcome = excluded.outcome,
			started_at = excluded.started_at,
			ended_at = excluded.ended_at,
			play_time_ms = excluded.play_time_ms,
			level = excluded.level,
			day = excluded.day,
			coins = excluded.coins,
			reputation = excluded.reputation,
			completed_orders = excluded.completed_orders,
			failed_orders = excluded.failed_orders,
			perfect_treatments = excluded.perfect_treatments,
			max_combo = excluded.max_combo,
			achievements_unlocked = excluded.achievements_unlocked
	`)
	_, err := l.db.ExecContext(ctx, query,
		run.RunID, run.ContentVersion, run.Outcome,
		run.StartedAt.UnixNano(), run.EndedAt.UnixNano(), run.PlayTime.Milliseconds(),
		run.Level, run.Day, run.Coins, run.Reputation,
		run.CompletedOrders, run.FailedOrders,
		run.PerfectTreatments, run.MaxCombo, run.AchievementsUnlocked,
	)
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", run.RunID, err)
	}
	return nil
}

const runColumns = `run_id, content_version, outcome, started_at, ended_at, play_time_ms,
	level, day, coins, reputation, completed_orders, failed_orders,
	perfect_treatments, max_combo, achievements_unlocked`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (engine.RunSummary, error) {
	var (
		r                  engine.RunSummary
		started, ended, ms int64
	)
	err := row.Scan(
		&r.RunID, &r.ContentVersion, &r.Outcome, &started, &ended, &ms,
		&r.Level, &r.Day, &r.Coins, &r.Reputation, &r.CompletedOrders, &r.FailedOrders,
		&r.PerfectTreatments, &r.MaxCombo, &r.AchievementsUnlocked,
	)
	if err != nil {
		return r, err
	}
	r.StartedAt = time.Unix(0, started)
	r.EndedAt = time.Unix(0, ended)
	r.PlayTime = time.Duration(ms) * time.Millisecond
	return r, nil
}

// GetRun retrieves a run summary. It returns ErrNotFound for unknown ids.
func (l *SQLLedger) GetRun(ctx context.Context, runID string) (*engine.RunSummary, error) {
	query := l.dialect.rebind(`SELECT ` + runColumns + ` FROM runs WHERE run_id = ?`)
	r, err := scanRun(l.db.QueryRowContext(ctx, query, runID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run %s: %w", runID, err)
	}
	return &r, nil
}

// ListRuns returns up to limit summaries ordered by end time, newest first.
func (l *SQLLedger) ListRuns(ctx context.Context, limit int) ([]engine.RunSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	query := l.dialect.rebind(`SELECT ` + runColumns + ` FROM runs ORDER BY ended_at DESC LIMIT ?`)
	rows, err := l.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var out []engine.RunSummary
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read runs: %w", err)
	}
	return out, nil
}

func createSchemas(ctx context.Context, db *sql.DB, schemas []string) error {
	for _, query := range schemas {
		if _, err := db.ExecContext(ctx, query); err != nil {
			return err
		}
	}
	return nil
}

// Open dispatches on the driver name: "sqlite" or "postgres".
func Open(ctx context.Context, driver, dsn string) (*SQLLedger, error) {
	switch strings.ToLower(driver) {
	case "sqlite":
		return OpenSQLite(ctx, dsn)
	case "postgres", "pgx":
		return OpenPostgres(ctx, dsn)
	default:
		return nil, fmt.Errorf("unknown ledger driver %q", driver)
	}
}
