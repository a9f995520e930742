// Package cache publishes the latest clinic snapshot to Redis so dashboards
// can read it without touching the server. Redis is never the source of
// truth.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MRamiBalles/CyberClinic/server/internal/domain/clinic"
)

// ErrMiss is returned when no snapshot is cached.
var ErrMiss = errors.New("cache: snapshot not found")

// DefaultTTL applies when NewSnapshotCache gets a non-positive ttl.
const DefaultTTL = 15 * time.Minute

// Connect creates a go-redis client and pings it.
func Connect(ctx context.Context, addr, password string, db, poolSize int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
		PoolSize: poolSize,
	})

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return rdb, nil
}

// Snapshot is the cached document.
type Snapshot struct {
	RunID       string           `json:"run_id"`
	PublishedAt int64            `json:"published_at"` // Unix timestamp
	State       clinic.GameState `json:"state"`
}

// SnapshotCache writes the full state as JSON under key and a flat summary
// hash under key:summary.
type SnapshotCache struct {
	client redis.Cmdable
	key    string
	ttl    time.Duration
	now    func() time.Time
}

// NewSnapshotCache creates a new snapshot cache instance.
func NewSnapshotCache(client redis.Cmdable, key string, ttl time.Duration) *SnapshotCache {
	if key == "" {
		key = "clinic:snapshot"
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &SnapshotCache{client: client, key: key, ttl: ttl, now: time.Now}
}

// Key returns the snapshot document key.
func (c *SnapshotCache) Key() string {
	return c.key
}

// SummaryKey returns the summary hash key.
func (c *SnapshotCache) SummaryKey() string {
	return c.key + ":summary"
}

// Publish caches the state of runID.
func (c *SnapshotCache) Publish(ctx context.Context, runID string, state clinic.GameState) error {
	publishedAt := c.now().Unix()
	data, err := json.Marshal(Snapshot{RunID: runID, PublishedAt: publishedAt, State: state})
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if err := c.client.Set(ctx, c.key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache snapshot: %w", err)
	}

	summaryKey := c.SummaryKey()
	if err := c.client.HSet(ctx, summaryKey, summaryFields(runID, publishedAt, state)...).Err(); err != nil {
		return fmt.Errorf("failed to cache summary: %w", err)
	}
	if err := c.client.Expire(ctx, summaryKey, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to expire summary: %w", err)
	}
	return nil
}

func summaryFields(runID string, publishedAt int64, s clinic.GameState) []any {
	return []any{
		"run_id", runID,
		"phase", string(s.Phase),
		"level", s.Level,
		"coins", s.Coins,
		"reputation", s.Reputation,
		"day", s.Day,
		"active_patients", s.ActiveCount(),
		"failed_orders", s.FailedOrders,
		"published_at", publishedAt,
	}
}

// Latest retrieves the cached snapshot.
func (c *SnapshotCache) Latest(ctx context.Context) (*Snapshot, error) {
	data, err := c.client.Get(ctx, c.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

// Summary retrieves the flat summary hash.
func (c *SnapshotCache) Summary(ctx context.Context) (map[string]string, error) {
	fields, err := c.client.HGetAll(ctx, c.SummaryKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read summary: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrMiss
	}
	return fields, nil
}

// Invalidate removes all cached state.
func (c *SnapshotCache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, c.key, c.SummaryKey()).Err()
}

// RunPublisher publishes source() every interval until ctx is cancelled.
// Unchanged snapshots are skipped; failures go to onErr and never stop the
// loop.
func (c *SnapshotCache) RunPublisher(ctx context.Context, every time.Duration, source func() (string, clinic.GameState), onErr func(error)) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	var last []byte
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runID, state := source()
			fingerprint, err := json.Marshal(state)
			if err == nil && string(fingerprint) == string(last) {
				continue
			}
			if err := c.Publish(ctx, runID, state); err != nil {
				if onErr != nil && ctx.Err() == nil {
					onErr(err)
				}
				continue
			}
			last = fingerprint
		}
	}
}
