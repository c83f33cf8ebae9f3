package cache

import (
	"context"
	"errors"
	"io"
)

// ErrNilClient is returned when a store is built without its backend.
var ErrNilClient = errors.New("cache backend cannot be nil")

// Store is a flat string key/value store.
//
// Get reports a missing key as ("", false, nil); a non-nil error always means
// the store itself failed. Individual operations must be atomic, nothing more
// is required (no transactions, no compare-and-set). TTL and eviction are the
// store's own business.
type Store interface {
	io.Closer

	// Get returns the value stored under key.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores value under key.
	Set(ctx context.Context, key, value string) error

	// Exists reports whether key is present.
	Exists(ctx context.Context, key string) (bool, error)
}
