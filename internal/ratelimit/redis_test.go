package ratelimit

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupRedisStore(t *testing.T, config RedisStoreConfig) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisStore(client, config), mr
}

func TestRedisStoreTake(t *testing.T) {
	store, _ := setupRedisStore(t, DefaultRedisStoreConfig())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, err := store.Take(ctx, "203.0.113.9", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed, "request %d", i)
	}

	allowed, err := store.Take(ctx, "203.0.113.9", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)

	allowed, err = store.Take(ctx, "203.0.113.10", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestRedisStoreBucketExpiry(t *testing.T) {
	store, mr := setupRedisStore(t, DefaultRedisStoreConfig())
	ctx := context.Background()

	allowed, err := store.Take(ctx, "203.0.113.9", 1, time.Minute)
	require.NoError(t, err)
	require.True(t, allowed)

	allowed, err = store.Take(ctx, "203.0.113.9", 1, time.Minute)
	require.NoError(t, err)
	require.False(t, allowed)

	// Advancing past the bucket TTL frees the identifier.
	mr.FastForward(2 * time.Minute)

	allowed, err = store.Take(ctx, "203.0.113.9", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestRedisStoreHashedKeys(t *testing.T) {
	store, mr := setupRedisStore(t, RedisStoreConfig{
		KeyPrefix:     "rl:",
		KeyHashSecret: []byte("test-secret"),
	})

	allowed, err := store.Take(context.Background(), "203.0.113.9", 5, time.Minute)
	require.NoError(t, err)
	require.True(t, allowed)

	// The raw IP never appears in a Redis key.
	for _, key := range mr.Keys() {
		assert.True(t, strings.HasPrefix(key, "rl:"))
		assert.NotContains(t, key, "203.0.113.9")
	}
	require.Len(t, mr.Keys(), 1)
}

func TestRedisStoreSeparateWindows(t *testing.T) {
	store, mr := setupRedisStore(t, DefaultRedisStoreConfig())
	ctx := context.Background()

	_, err := store.Take(ctx, "ip", 10, time.Minute)
	require.NoError(t, err)
	_, err = store.Take(ctx, "ip", 10, 5*time.Minute)
	require.NoError(t, err)

	// Different window sizes count in different buckets.
	assert.Len(t, mr.Keys(), 2)
}

func TestLimiterWithRedisStoreFailsOpenWhenDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	limiter := NewLimiter(NewRedisStore(client, DefaultRedisStoreConfig()), zap.NewNop())

	mr.Close()

	allowed, err := limiter.Allow(context.Background(), "ip", 5, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
}
