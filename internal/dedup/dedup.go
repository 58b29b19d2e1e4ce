// Package dedup remembers which check-in scopes a browser session has already
// used, until an explicit expiry (normally the end of the day).
package dedup

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores per-session dedup flags.
type Cache interface {
	Marked(ctx context.Context, sessionID, key string) (bool, error)
	Mark(ctx context.Context, sessionID, key string, until time.Time) error
}

// EndOfDay returns the next local midnight after t.
func EndOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, t.Location())
}

// InMemory is a mutex-guarded map for single-process deployments and tests.
type InMemory struct {
	mu    sync.Mutex
	flags map[string]time.Time
	now   func() time.Time
}

// NewInMemory creates an empty cache.
func NewInMemory() *InMemory {
	return &InMemory{flags: make(map[string]time.Time), now: time.Now}
}

// Marked reports whether the flag is set and not yet expired.
func (c *InMemory) Marked(_ context.Context, sessionID, key string) (bool, error) {
	if sessionID == "" {
		return false, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	k := sessionID + ":" + key
	until, ok := c.flags[k]
	if !ok {
		return false, nil
	}
	if !c.now().Before(until) {
		delete(c.flags, k)
		return false, nil
	}
	return true, nil
}

// Mark sets the flag until the given time.
func (c *InMemory) Mark(_ context.Context, sessionID, key string, until time.Time) error {
	if sessionID == "" {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sweep()
	c.flags[sessionID+":"+key] = until
	return nil
}

// sweep drops expired flags; caller holds mu.
func (c *InMemory) sweep() {
	now := c.now()
	for k, until := range c.flags {
		if !now.Before(until) {
			delete(c.flags, k)
		}
	}
}

// Redis keeps flags as expiring keys so several API instances share them.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis builds a cache on an existing client.
func NewRedis(client *redis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = "qrattend:dedup"
	}
	return &Redis{client: client, prefix: prefix}
}

// Marked reports whether the key exists.
func (c *Redis) Marked(ctx context.Context, sessionID, key string) (bool, error) {
	if sessionID == "" {
		return false, nil
	}
	n, err := c.client.Exists(ctx, c.key(sessionID, key)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Mark sets the key with an absolute expiry.
func (c *Redis) Mark(ctx context.Context, sessionID, key string, until time.Time) error {
	if sessionID == "" {
		return nil
	}
	k := c.key(sessionID, key)
	pipe := c.client.TxPipeline()
	pipe.Set(ctx, k, 1, 0)
	pipe.ExpireAt(ctx, k, until)
	_, err := pipe.Exec(ctx)
	return err
}

func (c *Redis) key(sessionID, key string) string {
	return c.prefix + ":" + sessionID + ":" + key
}
