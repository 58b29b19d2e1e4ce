package dedup

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEndOfDay(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	got := EndOfDay(time.Date(2024, 12, 31, 23, 59, 0, 0, loc))
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, loc), got)
}

func TestInMemoryMarkAndExpire(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	c := NewInMemory()
	c.now = func() time.Time { return now }

	marked, err := c.Marked(ctx, "sid-1", "marked_2024-03-01_DBMS_CSE-A")
	require.NoError(t, err)
	assert.False(t, marked)

	require.NoError(t, c.Mark(ctx, "sid-1", "marked_2024-03-01_DBMS_CSE-A", EndOfDay(now)))

	marked, _ = c.Marked(ctx, "sid-1", "marked_2024-03-01_DBMS_CSE-A")
	assert.True(t, marked)

	// other sessions and scopes are independent
	marked, _ = c.Marked(ctx, "sid-2", "marked_2024-03-01_DBMS_CSE-A")
	assert.False(t, marked)
	marked, _ = c.Marked(ctx, "sid-1", "marked_2024-03-01_general_general")
	assert.False(t, marked)

	now = now.Add(14 * time.Hour)
	marked, _ = c.Marked(ctx, "sid-1", "marked_2024-03-01_DBMS_CSE-A")
	assert.False(t, marked)
}

func TestInMemoryIgnoresEmptySession(t *testing.T) {
	ctx := context.Background()
	c := NewInMemory()
	require.NoError(t, c.Mark(ctx, "", "k", time.Now().Add(time.Hour)))
	marked, err := c.Marked(ctx, "", "k")
	require.NoError(t, err)
	assert.False(t, marked)
}

func TestRedisMarkAndExpire(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	mr.SetTime(now)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	c := NewRedis(client, "")
	key := "marked_2024-03-01_DBMS_CSE-A"

	marked, err := c.Marked(ctx, "sid-1", key)
	require.NoError(t, err)
	assert.False(t, marked)

	require.NoError(t, c.Mark(ctx, "sid-1", key, EndOfDay(now)))
	marked, err = c.Marked(ctx, "sid-1", key)
	require.NoError(t, err)
	assert.True(t, marked)
	assert.Equal(t, 14*time.Hour, mr.TTL("qrattend:dedup:sid-1:"+key))

	// a second instance on the same server sees the flag
	marked, err = NewRedis(client, "qrattend:dedup").Marked(ctx, "sid-1", key)
	require.NoError(t, err)
	assert.True(t, marked)

	marked, _ = c.Marked(ctx, "sid-2", key)
	assert.False(t, marked)

	mr.FastForward(14 * time.Hour)
	marked, err = c.Marked(ctx, "sid-1", key)
	require.NoError(t, err)
	assert.False(t, marked)
}

func TestRedisIgnoresEmptySession(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	c := NewRedis(client, "")
	require.NoError(t, c.Mark(ctx, "", "k", time.Now().Add(time.Hour)))
	assert.Empty(t, mr.Keys())
	marked, err := c.Marked(ctx, "", "k")
	require.NoError(t, err)
	assert.False(t, marked)
}
