package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/maypok86/otter/v2"
)

const backendMemory = "memory"

// MemoryStore is an embedded W-TinyLFU Store backed by otter. It is the
// single-process alternative to RedisStore.
type MemoryStore struct {
	cache *otter.Cache[string, string]
}

// NewMemoryStore creates a store holding at most maxSize entries. A positive
// ttl expires entries that long after they were written.
func NewMemoryStore(maxSize int, ttl time.Duration) (*MemoryStore, error) {
	opts := &otter.Options[string, string]{
		MaximumSize: maxSize,
	}
	if ttl > 0 {
		opts.ExpiryCalculator = otter.ExpiryWriting[string, string](ttl)
	}

	c, err := otter.New[string, string](opts)
	if err != nil {
		return nil, fmt.Errorf("create memory store: %w", err)
	}
	return &MemoryStore{cache: c}, nil
}

// Get retrieves the value of key.
func (m *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	value, ok := m.cache.GetIfPresent(key)
	if !ok {
		CacheMisses.WithLabelValues(backendMemory).Inc()
		return "", false, nil
	}
	CacheHits.WithLabelValues(backendMemory).Inc()
	return value, true, nil
}

// Set stores value under key.
func (m *MemoryStore) Set(_ context.Context, key, value string) error {
	m.cache.Set(key, value)
	CacheWrites.WithLabelValues(backendMemory).Inc()
	return nil
}

// Exists reports whether key is present.
func (m *MemoryStore) Exists(_ context.Context, key string) (bool, error) {
	_, ok := m.cache.GetIfPresent(key)
	return ok, nil
}

// Close drops every entry.
func (m *MemoryStore) Close() error {
	m.cache.InvalidateAll()
	return nil
}
