package memory

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/vnykmshr/cachehelper-go/internal/entry"
	"github.com/vnykmshr/cachehelper-go/internal/store"
)

// Store is an in-process LRU store with TTL support. Values are kept as
// is, without encoding.
type Store struct {
	cache         *lru.Cache[string, *entry.Entry]
	capacity      int
	cleanupTicker *time.Ticker
	stopCleanup   chan struct{}
	closeOnce     sync.Once
}

// New creates a new memory store with the specified capacity
func New(capacity int) (*Store, error) {
	cache, err := lru.New[string, *entry.Entry](capacity)
	if err != nil {
		return nil, err
	}

	return &Store{
		cache:       cache,
		capacity:    capacity,
		stopCleanup: make(chan struct{}),
	}, nil
}

// NewWithCleanup creates a new memory store that removes expired entries
// every cleanupInterval
func NewWithCleanup(capacity int, cleanupInterval time.Duration) (*Store, error) {
	s, err := New(capacity)
	if err != nil {
		return nil, err
	}

	if cleanupInterval > 0 {
		s.startCleanup(cleanupInterval)
	}

	return s, nil
}

// Get retrieves an entry by key
func (s *Store) Get(_ context.Context, key string) (*entry.Entry, bool, error) {
	e, found := s.cache.Get(key)
	if !found {
		return nil, false, nil
	}

	if e.IsExpired() {
		// only drop the entry we saw; a concurrent Set may have replaced it
		if cur, ok := s.cache.Peek(key); ok && cur == e {
			s.cache.Remove(key)
		}
		return nil, false, nil
	}

	return e, true, nil
}

// Set stores an entry with the given key, evicting the least recently used
// entry when the store is full
func (s *Store) Set(_ context.Context, key string, e *entry.Entry) error {
	s.cache.Add(key, e)
	return nil
}

// Delete removes an entry by key
func (s *Store) Delete(_ context.Context, key string) error {
	s.cache.Remove(key)
	return nil
}

// Keys returns the keys of all live entries
func (s *Store) Keys(_ context.Context) ([]string, error) {
	keys := s.cache.Keys()
	live := make([]string, 0, len(keys))
	for _, key := range keys {
		if e, found := s.cache.Peek(key); found && !e.IsExpired() {
			live = append(live, key)
		}
	}
	return live, nil
}

// Len returns the number of live entries
func (s *Store) Len() int {
	keys, _ := s.Keys(context.Background())
	return len(keys)
}

// Clear removes all entries from the store
func (s *Store) Clear(_ context.Context) error {
	s.cache.Purge()
	return nil
}

// Close stops the cleanup goroutine and drops all entries
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		if s.cleanupTicker != nil {
			s.cleanupTicker.Stop()
		}
		close(s.stopCleanup)
	})
	s.cache.Purge()
	return nil
}

// Capacity returns the maximum number of entries the store can hold
func (s *Store) Capacity() int {
	return s.capacity
}

// Cleanup removes expired entries and returns the number of entries removed
func (s *Store) Cleanup() int {
	removed := 0
	for _, key := range s.cache.Keys() {
		if e, found := s.cache.Peek(key); found && e.IsExpired() {
			s.cache.Remove(key)
			removed++
		}
	}
	return removed
}

// startCleanup starts the automatic cleanup goroutine
func (s *Store) startCleanup(interval time.Duration) {
	s.cleanupTicker = time.NewTicker(interval)

	go func() {
		for {
			select {
			case <-s.cleanupTicker.C:
				s.Cleanup()
			case <-s.stopCleanup:
				return
			}
		}
	}()
}

// Ensure Store implements the required interfaces
var (
	_ store.Store    = (*Store)(nil)
	_ store.TTLStore = (*Store)(nil)
)
