package cache

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

const backendRedis = "redis"

// RedisStore is a Store backed by Redis.
//
// The underlying client is held in an atomic pointer so it can be swapped
// with Replace (for example after a failover) without stopping callers.
type RedisStore struct {
	client atomic.Pointer[redis.Client]
	ttl    time.Duration
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithTTL sets the expiration applied on every Set. Zero keeps entries until
// Redis evicts them.
func WithTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) {
		s.ttl = ttl
	}
}

// NewRedisStore creates a store using the given Redis client.
func NewRedisStore(client *redis.Client, opts ...RedisOption) (*RedisStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis store: %w", ErrNilClient)
	}
	s := &RedisStore{}
	s.client.Store(client)
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Get retrieves the value of key. A missing key is not an error.
func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := s.client.Load().Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			CacheMisses.WithLabelValues(backendRedis).Inc()
			return "", false, nil
		}
		CacheErrors.WithLabelValues(backendRedis, "get").Inc()
		return "", false, fmt.Errorf("redis get: %w", err)
	}

	CacheHits.WithLabelValues(backendRedis).Inc()
	return value, true, nil
}

// Set stores value under key using the configured TTL.
func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := s.client.Load().Set(ctx, key, value, s.ttl).Err(); err != nil {
		CacheErrors.WithLabelValues(backendRedis, "set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}
	CacheWrites.WithLabelValues(backendRedis).Inc()
	return nil
}

// Exists reports whether key is present.
func (s *RedisStore) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Load().Exists(ctx, key).Result()
	if err != nil {
		CacheErrors.WithLabelValues(backendRedis, "exists").Inc()
		return false, fmt.Errorf("redis exists: %w", err)
	}
	return n > 0, nil
}

// Ping checks connectivity with the current client.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Load().Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// Replace swaps the underlying client and closes the previous one.
func (s *RedisStore) Replace(client *redis.Client) error {
	if client == nil {
		return fmt.Errorf("redis store: %w", ErrNilClient)
	}
	old := s.client.Swap(client)
	if old == nil || old == client {
		return nil
	}
	if err := old.Close(); err != nil {
		CacheErrors.WithLabelValues(backendRedis, "close").Inc()
		return fmt.Errorf("close replaced redis client: %w", err)
	}
	return nil
}

// Close closes the current client.
func (s *RedisStore) Close() error {
	if err := s.client.Load().Close(); err != nil {
		CacheErrors.WithLabelValues(backendRedis, "close").Inc()
		return fmt.Errorf("redis close: %w", err)
	}
	return nil
}
