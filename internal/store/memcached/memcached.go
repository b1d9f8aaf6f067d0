package memcached

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/vnykmshr/cachehelper-go/internal/entry"
	"github.com/vnykmshr/cachehelper-go/internal/store"
	"github.com/vnykmshr/cachehelper-go/pkg/codec"
)

// DefaultKeyPrefix is prepended to every key written to memcached
const DefaultKeyPrefix = "ch:"

// relativeExpiryLimit is the longest expiration memcached reads as a number
// of seconds; anything longer must be sent as a unix timestamp
const relativeExpiryLimit = 30 * 24 * time.Hour

// Client is the subset of *memcache.Client the store uses
type Client interface {
	Get(key string) (*memcache.Item, error)
	Set(item *memcache.Item) error
	Delete(key string) error
	DeleteAll() error
}

// Config holds memcached store configuration
type Config struct {
	// Client overrides the connection built from Servers
	Client Client

	// Servers lists memcached addresses ("host:port")
	Servers []string

	// Timeout is the socket read/write timeout (memcache default when zero)
	Timeout time.Duration

	// KeyPrefix is prepended to all cache keys
	KeyPrefix string

	// Codec encodes stored entries (default MessagePack)
	Codec codec.Codec
}

// envelope is an entry as stored in memcached
type envelope struct {
	Value     any        `msgpack:"v" json:"v"`
	CreatedAt time.Time  `msgpack:"c" json:"c"`
	ExpiresAt *time.Time `msgpack:"e,omitempty" json:"e,omitempty"`
}

// Store implements a memcached-backed cache store
type Store struct {
	client    Client
	keyPrefix string
	codec     codec.Codec
}

// New creates a memcached store
func New(config *Config) (*Store, error) {
	if config == nil {
		return nil, fmt.Errorf("memcached config is required")
	}

	client := config.Client
	if client == nil {
		if len(config.Servers) == 0 {
			return nil, fmt.Errorf("memcached servers are required")
		}
		mc := memcache.New(config.Servers...)
		if config.Timeout > 0 {
			mc.Timeout = config.Timeout
		}
		client = mc
	}

	keyPrefix := config.KeyPrefix
	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
	}

	c := config.Codec
	if c == nil {
		c = codec.Default
	}

	return &Store{client: client, keyPrefix: keyPrefix, codec: c}, nil
}

// Get retrieves an entry by key
func (s *Store) Get(_ context.Context, key string) (*entry.Entry, bool, error) {
	mcKey := s.keyPrefix + key
	item, err := s.client.Get(mcKey)
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("memcached get %s: %w", mcKey, err)
	}

	var env envelope
	if err := s.codec.Unmarshal(item.Value, &env); err != nil {
		// unreadable entries are dropped so the next call recomputes
		_ = s.client.Delete(mcKey) //nolint:errcheck // best effort, the decode error is returned
		return nil, false, fmt.Errorf("memcached decode %s: %w", mcKey, err)
	}

	e := &entry.Entry{Value: env.Value, CreatedAt: env.CreatedAt, ExpiresAt: env.ExpiresAt}
	if e.IsExpired() {
		return nil, false, nil
	}
	return e, true, nil
}

// Set stores an entry with the given key
func (s *Store) Set(ctx context.Context, key string, e *entry.Entry) error {
	mcKey := s.keyPrefix + key

	var expiration int32
	if e.HasExpiry() {
		ttl := e.TTL()
		if ttl <= 0 {
			return s.Delete(ctx, key)
		}
		expiration = expirationOf(ttl, time.Now())
	}

	data, err := s.codec.Marshal(envelope{Value: e.Value, CreatedAt: e.CreatedAt, ExpiresAt: e.ExpiresAt})
	if err != nil {
		return fmt.Errorf("memcached encode %s: %w", mcKey, err)
	}

	if err := s.client.Set(&memcache.Item{Key: mcKey, Value: data, Expiration: expiration}); err != nil {
		return fmt.Errorf("memcached set %s: %w", mcKey, err)
	}
	return nil
}

// Delete removes an entry by key
func (s *Store) Delete(_ context.Context, key string) error {
	mcKey := s.keyPrefix + key
	err := s.client.Delete(mcKey)
	if err != nil && !errors.Is(err, memcache.ErrCacheMiss) {
		return fmt.Errorf("memcached delete %s: %w", mcKey, err)
	}
	return nil
}

// Keys is not supported: memcached cannot enumerate its keys
func (s *Store) Keys(_ context.Context) ([]string, error) {
	return nil, store.ErrUnsupported
}

// Clear flushes the whole memcached instance, not only this store's prefix
func (s *Store) Clear(_ context.Context) error {
	if err := s.client.DeleteAll(); err != nil {
		return fmt.Errorf("memcached flush: %w", err)
	}
	return nil
}

// Close is a no-op; memcache.Client keeps only idle connections
func (s *Store) Close() error {
	return nil
}

// KeyPrefix returns the prefix added to every key
func (s *Store) KeyPrefix() string {
	return s.keyPrefix
}

// expirationOf converts a TTL to memcached's expiration field: whole seconds
// rounded up, or an absolute unix time beyond 30 days
func expirationOf(ttl time.Duration, now time.Time) int32 {
	if ttl > relativeExpiryLimit {
		return int32(now.Add(ttl).Unix())
	}
	secs := int32(ttl / time.Second)
	if ttl%time.Second != 0 {
		secs++
	}
	return secs
}

// Ensure Store implements the required interfaces
var _ store.Store = (*Store)(nil)
