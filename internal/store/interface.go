package store

import (
	"context"
	"errors"

	"github.com/vnykmshr/cachehelper-go/internal/entry"
)

// ErrUnsupported is returned by stores that cannot perform an operation,
// such as enumerating keys on memcached
var ErrUnsupported = errors.New("store: operation not supported")

// Store defines the interface for cache storage backends.
// Presence is reported separately from the value, so a stored nil is a hit.
type Store interface {
	// Get retrieves an entry by key.
	// Returns the entry and true if found, nil and false if absent or expired.
	Get(ctx context.Context, key string) (*entry.Entry, bool, error)

	// Set stores an entry with the given key
	Set(ctx context.Context, key string, e *entry.Entry) error

	// Delete removes an entry by key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Keys returns all keys currently in the store
	Keys(ctx context.Context) ([]string, error)

	// Clear removes all entries from the store
	Clear(ctx context.Context) error

	// Close releases resources held by the store
	Close() error
}

// TTLStore is implemented by stores that expire entries in process
type TTLStore interface {
	Store

	// Cleanup removes expired entries and returns the number removed
	Cleanup() int
}
