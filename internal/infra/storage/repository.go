// Package storage persists the run ledger: every journal event and the
// summary of each finished run. The ledger is write-mostly and is never read
// back into a live session.
package storage

import (
	"context"
	"errors"

	"github.com/MRamiBalles/CyberClinic/server/internal/engine"
	"github.com/MRamiBalles/CyberClinic/server/internal/events"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("storage: not found")

// Ledger defines the interface for run persistence.
type Ledger interface {
	// AppendEvent adds a journal event to the immutable ledger.
	AppendEvent(ctx context.Context, event events.GameEvent) error

	// EventsByRun retrieves all events of a run in append order.
	EventsByRun(ctx context.Context, runID string) ([]events.GameEvent, error)

	// EventsByType retrieves the events of one type within a run.
	EventsByType(ctx context.Context, runID string, eventType events.EventType) ([]events.GameEvent, error)

	// SaveRun inserts or replaces a finished run summary.
	SaveRun(ctx context.Context, run engine.RunSummary) error

	// GetRun retrieves a run summary by id.
	GetRun(ctx context.Context, runID string) (*engine.RunSummary, error)

	// ListRuns returns the most recent run summaries, newest first.
	ListRuns(ctx context.Context, limit int) ([]engine.RunSummary, error)

	Close() error
}
