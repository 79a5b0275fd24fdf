package ledger

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run with TEST_REDIS_URL=redis://localhost:6379/15
func TestRedisDeduper(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}
	redisURL := os.Getenv("TEST_REDIS_URL")
	if redisURL == "" {
		t.Skip("TEST_REDIS_URL not set")
	}

	opts, err := redis.ParseURL(redisURL)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	defer client.Close()

	ctx := context.Background()
	require.NoError(t, client.Ping(ctx).Err())

	d := NewRedisDeduper(client, time.Minute)
	id := uuid.NewString() + "_charge.success"
	defer client.Del(ctx, keyPrefix+id)

	ok, err := d.Acquire(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = d.Acquire(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok, "second claim must fail")

	ttl, err := client.TTL(ctx, keyPrefix+id).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	require.NoError(t, d.Release(ctx, id))
	ok, err = d.Acquire(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok, "released claim can be taken again")
}

func TestNewRedisDeduperDefaultsTTL(t *testing.T) {
	d := NewRedisDeduper(nil, 0)
	assert.Equal(t, DefaultDedupeTTL, d.ttl)
}
