// Package events provides the clinic journal: an append-only log of every
// transition the engine applied. The websocket hub tails it and the run
// ledger persists it.
package events

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType defines the category of a journal event.
type EventType string

const (
	EventTypePhaseChanged         EventType = "PHASE_CHANGED"
	EventTypeStationSwitched      EventType = "STATION_SWITCHED"
	EventTypePatientSpawned       EventType = "PATIENT_SPAWNED"
	EventTypePatientStatusChanged EventType = "PATIENT_STATUS_CHANGED"
	EventTypePatientServed        EventType = "PATIENT_SERVED"
	EventTypePatientFailed        EventType = "PATIENT_FAILED"
	EventTypeLevelUp              EventType = "LEVEL_UP"
	EventTypeDiseaseUnlocked      EventType = "DISEASE_UNLOCKED"
	EventTypeUpgradePurchased     EventType = "UPGRADE_PURCHASED"
	EventTypeAchievementUnlocked  EventType = "ACHIEVEMENT_UNLOCKED"
	EventTypeExperienceGranted    EventType = "EXPERIENCE_GRANTED"
	EventTypeDayAdvanced          EventType = "DAY_ADVANCED"
	EventTypeRunFinished          EventType = "RUN_FINISHED"
)

// ActorSystem marks events caused by the scheduler rather than the player.
const (
	ActorSystem = "SYSTEM"
	ActorPlayer = "PLAYER"
)

// GameEvent is an immutable record of one applied transition.
type GameEvent struct {
	ID        string    `json:"id"`
	RunID     string    `json:"run_id"`
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	ActorID   string    `json:"actor_id"`            // SYSTEM or PLAYER
	TargetID  string    `json:"target_id,omitempty"` // patient, upgrade or achievement id
	Payload   any       `json:"payload,omitempty"`
	GameDay   int       `json:"game_day"`
}

// ErrQueueFull is reported to the persist error handler when an event is
// dropped because the writer has fallen behind.
var ErrQueueFull = errors.New("events: persistence queue full")

// EventPersister defines how an event is durably stored.
type EventPersister interface {
	Append(event GameEvent) error
}

// EventLog is the in-memory append-only journal. Persistence runs on a
// single writer goroutine so the ledger sees events in append order.
type EventLog struct {
	mu     sync.RWMutex
	events []GameEvent
	base   int // events trimmed from the front
	retain int
	drops  int

	persister EventPersister
	queue     chan GameEvent
	done      chan struct{}
	onError   func(GameEvent, error)
	closeOnce sync.Once
}

// Option configures an EventLog.
type Option func(*EventLog)

// WithPersistErrorHandler sets the callback for failed writes.
func WithPersistErrorHandler(fn func(GameEvent, error)) Option {
	return func(el *EventLog) { el.onError = fn }
}

// WithQueueSize sets the persistence buffer length.
func WithQueueSize(n int) Option {
	return func(el *EventLog) {
		if n > 0 {
			el.queue = make(chan GameEvent, n)
		}
	}
}

// WithRetention keeps only the newest n events in memory. Offsets handed
// out by Since stay valid; trimmed events are simply no longer returned.
func WithRetention(n int) Option {
	return func(el *EventLog) {
		if n > 0 {
			el.retain = n
		}
	}
}

// NewEventLog creates a new event log with an optional persister.
func NewEventLog(persister EventPersister, opts ...Option) *EventLog {
	el := &EventLog{
		events:    make([]GameEvent, 0),
		persister: persister,
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(el)
	}
	if persister == nil {
		close(el.done)
		return el
	}
	if el.queue == nil {
		el.queue = make(chan GameEvent, 1024)
	}
	go el.writeLoop()
	return el
}

func (el *EventLog) writeLoop() {
	defer close(el.done)
	for e := range el.queue {
		if err := el.persister.Append(e); err != nil && el.onError != nil {
			el.onError(e, err)
		}
	}
}

// Append adds a new event to the log. Events are immutable once appended.
// Missing ids and timestamps are filled in. Append never waits on the
// persister: when the queue is full the event stays in memory, is not
// persisted, and ErrQueueFull goes to the error handler.
func (el *EventLog) Append(event GameEvent) GameEvent {
	if event.ID == "" {
		event.ID = GenerateEventID()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	el.mu.Lock()
	el.events = append(el.events, event)
	if el.retain > 0 && len(el.events) > el.retain {
		drop := len(el.events) - el.retain
		clear(el.events[:drop])
		el.events = el.events[drop:]
		el.base += drop
	}
	dropped := false
	if el.queue != nil {
		select {
		case el.queue <- event:
		default:
			el.drops++
			dropped = true
		}
	}
	el.mu.Unlock()

	if dropped && el.onError != nil {
		el.onError(event, ErrQueueFull)
	}
	return event
}

// Dropped returns how many events were not persisted because the queue was
// full.
func (el *EventLog) Dropped() int {
	el.mu.RLock()
	defer el.mu.RUnlock()
	return el.drops
}

// Close stops accepting persistence work and waits for the writer to drain.
// Appends after Close are kept in memory only.
func (el *EventLog) Close() {
	el.closeOnce.Do(func() {
		el.mu.Lock()
		if el.queue != nil {
			close(el.queue)
			el.queue = nil
		}
		el.mu.Unlock()
		<-el.done
	})
}

// Len returns the number of events appended so far, including trimmed
// ones.
func (el *EventLog) Len() int {
	el.mu.RLock()
	defer el.mu.RUnlock()
	return el.base + len(el.events)
}

// Since returns the events appended after the first offset ones, and the
// offset to pass next time.
func (el *EventLog) Since(offset int) ([]GameEvent, int) {
	el.mu.RLock()
	defer el.mu.RUnlock()
	end := el.base + len(el.events)
	i := max(offset-el.base, 0)
	if i >= len(el.events) {
		return nil, end
	}
	out := make([]GameEvent, len(el.events)-i)
	copy(out, el.events[i:])
	return out, end
}

// GetByActor returns all events performed by a specific actor.
func (el *EventLog) GetByActor(actorID string) []GameEvent {
	return el.filter(func(e GameEvent) bool { return e.ActorID == actorID })
}

// GetByTarget returns all events about a patient, upgrade or achievement.
func (el *EventLog) GetByTarget(targetID string) []GameEvent {
	return el.filter(func(e GameEvent) bool { return e.TargetID == targetID })
}

// GetByType returns all events of one type.
func (el *EventLog) GetByType(t EventType) []GameEvent {
	return el.filter(func(e GameEvent) bool { return e.Type == t })
}

// GetByDay returns all events that occurred on a specific game day.
func (el *EventLog) GetByDay(day int) []GameEvent {
	return el.filter(func(e GameEvent) bool { return e.GameDay == day })
}

// GetByRun returns the events of a single run.
func (el *EventLog) GetByRun(runID string) []GameEvent {
	return el.filter(func(e GameEvent) bool { return e.RunID == runID })
}

func (el *EventLog) filter(keep func(GameEvent) bool) []GameEvent {
	el.mu.RLock()
	defer el.mu.RUnlock()

	var result []GameEvent
	for _, e := range el.events {
		if keep(e) {
			result = append(result, e)
		}
	}
	return result
}

// Replay returns a copy of the full history.
func (el *EventLog) Replay() []GameEvent {
	out, _ := el.Since(0)
	return out
}

// GenerateEventID creates a unique event identifier.
func GenerateEventID() string {
	return uuid.NewString()
}
