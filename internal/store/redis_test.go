package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRedisParsesURL(t *testing.T) {
	r := NewRedis("redis://:pw@cache.internal:6380/2")
	defer r.Close()
	opts := r.Client.Options()
	assert.Equal(t, "cache.internal:6380", opts.Addr)
	assert.Equal(t, "pw", opts.Password)
	assert.Equal(t, 2, opts.DB)

	plain := NewRedis("localhost:6379")
	defer plain.Close()
	assert.Equal(t, "localhost:6379", plain.Client.Options().Addr)
}

func TestRedisHealthyNil(t *testing.T) {
	var r *Redis
	assert.False(t, r.Healthy(context.Background()))
	assert.NoError(t, r.Close())
}
