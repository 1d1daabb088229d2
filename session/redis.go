package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps transport failures reported by the Redis client.
var ErrRedisUnavailable = errors.New("redis unavailable")

// RedisStorage is a [Storage] backed by Redis. Keys are scoped under a prefix so several
// clients can share one instance.
type RedisStorage struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisStorage creates a RedisStorage. A zero ttl stores values without expiry.
func NewRedisStorage(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisStorage {
	if prefix == "" {
		prefix = "gs"
	}
	if ttl < 0 {
		ttl = 0
	}
	return &RedisStorage{redis: client, prefix: prefix, ttl: ttl}
}

func (r *RedisStorage) key(k string) string {
	return r.prefix + ":" + k
}

// Get implements [Storage].
func (r *RedisStorage) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := r.redis.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRedisUnavailable, err)
	}
	return data, nil
}

// Set implements [Storage].
func (r *RedisStorage) Set(ctx context.Context, key string, value []byte) error {
	if err := r.redis.Set(ctx, r.key(key), value, r.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrRedisUnavailable, err)
	}
	return nil
}

// Remove implements [Storage].
func (r *RedisStorage) Remove(ctx context.Context, key string) error {
	if err := r.redis.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrRedisUnavailable, err)
	}
	return nil
}

// Ping reports whether the backing Redis is reachable.
func (r *RedisStorage) Ping(ctx context.Context) error {
	if err := r.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrRedisUnavailable, err)
	}
	return nil
}
