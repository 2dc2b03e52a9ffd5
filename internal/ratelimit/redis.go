package ratelimit

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStoreConfig configures the Redis-backed rate limit store.
type RedisStoreConfig struct {
	// KeyPrefix is prepended to every Redis key.
	KeyPrefix string
	// KeyHashSecret, when set, HMAC-SHA256 hashes identifiers before they
	// become Redis keys so raw client IPs are not stored in cleartext.
	KeyHashSecret []byte
}

// DefaultRedisStoreConfig returns the default Redis store configuration.
func DefaultRedisStoreConfig() RedisStoreConfig {
	return RedisStoreConfig{KeyPrefix: "ratelimit:"}
}

// RedisStore counts requests in Redis using fixed window buckets, which
// approximates the sliding window while staying a single atomic INCR per
// request. Buckets expire on their own via TTL.
type RedisStore struct {
	client *redis.Client
	config RedisStoreConfig
}

// NewRedisStore creates a Redis-backed rate limit store.
func NewRedisStore(client *redis.Client, config RedisStoreConfig) *RedisStore {
	if config.KeyPrefix == "" {
		config.KeyPrefix = DefaultRedisStoreConfig().KeyPrefix
	}
	return &RedisStore{client: client, config: config}
}

// Take implements Store. Errors are returned to the limiter, which decides
// the failure mode.
func (s *RedisStore) Take(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	bucket := s.buildKey(key, window)

	count, err := s.client.Incr(ctx, bucket).Result()
	if err != nil {
		return false, fmt.Errorf("failed to increment rate limit counter: %w", err)
	}

	// First request in the bucket sets the TTL. One extra second covers
	// clock skew between instances.
	if count == 1 {
		if err := s.client.Expire(ctx, bucket, window+time.Second).Err(); err != nil {
			return false, fmt.Errorf("failed to set rate limit TTL: %w", err)
		}
	}

	if count > int64(limit) {
		return false, nil
	}

	return true, nil
}

// buildKey constructs the bucket key for an identifier and window.
func (s *RedisStore) buildKey(identifier string, window time.Duration) string {
	keyID := identifier
	if len(s.config.KeyHashSecret) > 0 {
		keyID = hashIdentifier(identifier, s.config.KeyHashSecret)
	}
	windowStart := time.Now().Truncate(window).Unix()
	return fmt.Sprintf("%s%s:%d:%d", s.config.KeyPrefix, keyID, int64(window.Seconds()), windowStart)
}

// hashIdentifier generates a non-reversible identifier using HMAC-SHA256.
// The first 16 hex characters keep keys short while staying unique enough.
func hashIdentifier(identifier string, secret []byte) string {
	h := hmac.New(sha256.New, secret)
	h.Write([]byte(identifier))
	return hex.EncodeToString(h.Sum(nil))[:16]
}
