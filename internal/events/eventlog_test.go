package events

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPersister struct {
	mu     sync.Mutex
	events []GameEvent
	fail   bool
}

func (r *recordingPersister) Append(e GameEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("disk full")
	}
	r.events = append(r.events, e)
	return nil
}

func TestAppendFillsIdentity(t *testing.T) {
	el := NewEventLog(nil)
	e := el.Append(GameEvent{Type: EventTypePatientSpawned, ActorID: ActorSystem, TargetID: "P1"})

	assert.NotEmpty(t, e.ID)
	assert.False(t, e.Timestamp.IsZero())
	assert.Equal(t, 1, el.Len())
}

func TestSinceReturnsTail(t *testing.T) {
	el := NewEventLog(nil)
	for _, id := range []string{"P1", "P2", "P3"} {
		el.Append(GameEvent{Type: EventTypePatientSpawned, TargetID: id})
	}

	tail, next := el.Since(1)
	require.Len(t, tail, 2)
	assert.Equal(t, "P2", tail[0].TargetID)
	assert.Equal(t, 3, next)

	tail, next = el.Since(next)
	assert.Empty(t, tail)
	assert.Equal(t, 3, next)

	all := el.Replay()
	all[0].TargetID = "mutated"
	assert.Equal(t, "P1", el.Replay()[0].TargetID)
}

func TestFilters(t *testing.T) {
	el := NewEventLog(nil)
	el.Append(GameEvent{Type: EventTypePatientSpawned, ActorID: ActorSystem, TargetID: "P1", GameDay: 1, RunID: "a"})
	el.Append(GameEvent{Type: EventTypePatientStatusChanged, ActorID: ActorPlayer, TargetID: "P1", GameDay: 1, RunID: "a"})
	el.Append(GameEvent{Type: EventTypeDayAdvanced, ActorID: ActorSystem, GameDay: 2, RunID: "b"})

	assert.Len(t, el.GetByActor(ActorSystem), 2)
	assert.Len(t, el.GetByTarget("P1"), 2)
	assert.Len(t, el.GetByType(EventTypeDayAdvanced), 1)
	assert.Len(t, el.GetByDay(1), 2)
	assert.Len(t, el.GetByRun("b"), 1)
}

func TestPersisterReceivesEventsInOrder(t *testing.T) {
	p := &recordingPersister{}
	el := NewEventLog(p, WithQueueSize(64))
	for i := 0; i < 50; i++ {
		el.Append(GameEvent{Type: EventTypePatientSpawned, GameDay: i})
	}
	el.Close()

	require.Len(t, p.events, 50)
	for i, e := range p.events {
		assert.Equal(t, i, e.GameDay)
	}

	el.Append(GameEvent{Type: EventTypeRunFinished})
	assert.Equal(t, 51, el.Len())
	el.Close()
}

func TestPersistErrorsAreReported(t *testing.T) {
	p := &recordingPersister{fail: true}
	var mu sync.Mutex
	var failed []string
	el := NewEventLog(p, WithPersistErrorHandler(func(e GameEvent, err error) {
		mu.Lock()
		defer mu.Unlock()
		failed = append(failed, e.TargetID)
	}))

	el.Append(GameEvent{Type: EventTypePatientServed, TargetID: "P9"})
	el.Close()

	assert.Equal(t, []string{"P9"}, failed)
	assert.Equal(t, 1, el.Len(), "memory log keeps the event")
}

// blockingPersister never returns from Append until release is closed.
type blockingPersister struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newBlockingPersister() *blockingPersister {
	return &blockingPersister{entered: make(chan struct{}), release: make(chan struct{})}
}

func (b *blockingPersister) Append(GameEvent) error {
	b.once.Do(func() { close(b.entered) })
	<-b.release
	return nil
}

func TestAppendDoesNotWaitForStalledPersister(t *testing.T) {
	p := newBlockingPersister()
	var mu sync.Mutex
	var dropped []error
	el := NewEventLog(p, WithQueueSize(2), WithPersistErrorHandler(func(_ GameEvent, err error) {
		mu.Lock()
		defer mu.Unlock()
		dropped = append(dropped, err)
	}))

	el.Append(GameEvent{Type: EventTypePatientSpawned})
	<-p.entered

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 20; i++ {
			el.Append(GameEvent{Type: EventTypeStationSwitched})
		}
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Append blocked on a stalled persister")
	}

	assert.Equal(t, 21, el.Len())
	assert.Equal(t, 18, el.Dropped())
	mu.Lock()
	require.Len(t, dropped, 18)
	assert.ErrorIs(t, dropped[0], ErrQueueFull)
	mu.Unlock()

	close(p.release)
	el.Close()
}

func TestRetentionKeepsNewestEvents(t *testing.T) {
	el := NewEventLog(nil, WithRetention(3))
	for _, id := range []string{"P1", "P2", "P3", "P4", "P5"} {
		el.Append(GameEvent{Type: EventTypePatientSpawned, TargetID: id})
	}

	assert.Equal(t, 5, el.Len())
	all := el.Replay()
	require.Len(t, all, 3)
	assert.Equal(t, "P3", all[0].TargetID)

	tail, next := el.Since(4)
	require.Len(t, tail, 1)
	assert.Equal(t, "P5", tail[0].TargetID)
	assert.Equal(t, 5, next)

	// An offset older than the retained window returns what is left.
	tail, next = el.Since(1)
	assert.Len(t, tail, 3)
	assert.Equal(t, 5, next)

	el.Append(GameEvent{Type: EventTypePatientSpawned, TargetID: "P6"})
	tail, next = el.Since(next)
	require.Len(t, tail, 1)
	assert.Equal(t, "P6", tail[0].TargetID)
	assert.Equal(t, 6, next)
}
