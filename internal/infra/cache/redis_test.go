package cache

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MRamiBalles/CyberClinic/server/internal/domain/clinic"
	"github.com/MRamiBalles/CyberClinic/server/internal/domain/content"
)

var fixedNow = time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

func newTestCache(t *testing.T) (*SnapshotCache, redismock.ClientMock) {
	t.Helper()
	db, mock := redismock.NewClientMock()
	t.Cleanup(func() { db.Close() })
	c := NewSnapshotCache(db, "clinic:test", time.Minute)
	c.now = func() time.Time { return fixedNow }
	return c, mock
}

func playingState() clinic.GameState {
	s := clinic.New(content.MustDefault())
	s.Phase = clinic.PhasePlaying
	s.Coins = 740
	s.Level = 3
	return s
}

func TestPublishWritesDocumentAndSummary(t *testing.T) {
	c, mock := newTestCache(t)
	state := playingState()

	data, err := json.Marshal(Snapshot{RunID: "run-1", PublishedAt: fixedNow.Unix(), State: state})
	require.NoError(t, err)

	mock.ExpectSet("clinic:test", data, time.Minute).SetVal("OK")
	mock.ExpectHSet("clinic:test:summary", summaryFields("run-1", fixedNow.Unix(), state)...).SetVal(9)
	mock.ExpectExpire("clinic:test:summary", time.Minute).SetVal(true)

	require.NoError(t, c.Publish(context.Background(), "run-1", state))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPublishStopsOnSetError(t *testing.T) {
	c, mock := newTestCache(t)
	state := playingState()
	data, err := json.Marshal(Snapshot{RunID: "run-1", PublishedAt: fixedNow.Unix(), State: state})
	require.NoError(t, err)

	mock.ExpectSet("clinic:test", data, time.Minute).SetErr(errors.New("redis connection error"))

	err = c.Publish(context.Background(), "run-1", state)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to cache snapshot")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLatestDecodesSnapshot(t *testing.T) {
	c, mock := newTestCache(t)
	state := playingState()
	data, err := json.Marshal(Snapshot{RunID: "run-7", PublishedAt: fixedNow.Unix(), State: state})
	require.NoError(t, err)

	mock.ExpectGet("clinic:test").SetVal(string(data))

	snap, err := c.Latest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "run-7", snap.RunID)
	assert.Equal(t, clinic.PhasePlaying, snap.State.Phase)
	assert.Equal(t, 740, snap.State.Coins)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLatestMiss(t *testing.T) {
	c, mock := newTestCache(t)
	mock.ExpectGet("clinic:test").RedisNil()

	_, err := c.Latest(context.Background())
	assert.ErrorIs(t, err, ErrMiss)
}

func TestSummaryMiss(t *testing.T) {
	c, mock := newTestCache(t)
	mock.ExpectHGetAll("clinic:test:summary").SetVal(map[string]string{})

	_, err := c.Summary(context.Background())
	assert.ErrorIs(t, err, ErrMiss)
}

func TestInvalidateDeletesBothKeys(t *testing.T) {
	c, mock := newTestCache(t)
	mock.ExpectDel("clinic:test", "clinic:test:summary").SetVal(2)

	require.NoError(t, c.Invalidate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDefaults(t *testing.T) {
	db, _ := redismock.NewClientMock()
	defer db.Close()

	c := NewSnapshotCache(db, "", 0)
	assert.Equal(t, "clinic:snapshot", c.Key())
	assert.Equal(t, "clinic:snapshot:summary", c.SummaryKey())
	assert.Equal(t, DefaultTTL, c.ttl)
}
