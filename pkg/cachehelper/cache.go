package cachehelper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vnykmshr/cachehelper-go/internal/entry"
	"github.com/vnykmshr/cachehelper-go/internal/store"
	"github.com/vnykmshr/cachehelper-go/internal/store/memcached"
	"github.com/vnykmshr/cachehelper-go/internal/store/memory"
	redisstore "github.com/vnykmshr/cachehelper-go/internal/store/redis"
	"github.com/vnykmshr/cachehelper-go/pkg/codec"
)

// ErrUnsupported is returned by Cache operations the configured store
// cannot perform, such as listing keys on memcached
var ErrUnsupported = store.ErrUnsupported

// Backend is the key-value store memoized results live in. Presence is
// reported separately from the value, so a stored nil is a hit.
type Backend interface {
	Get(ctx context.Context, key string) (any, bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Cache is the Backend built from a Config: an in-process LRU store, Redis
// or memcached. Values read from a remote store come back in the codec's
// generic form.
type Cache struct {
	config *Config
	store  store.Store
	codec  codec.Codec
}

// NewCache creates the store selected by config.StoreType
func NewCache(config *Config) (*Cache, error) {
	if config == nil {
		config = NewDefaultConfig()
	}

	c, err := codec.New(config.Codec)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize codec: %w", err)
	}

	var cacheStore store.Store
	switch config.StoreType {
	case StoreTypeMemory:
		cacheStore, err = createMemoryStore(config)
	case StoreTypeRedis:
		cacheStore, err = createRedisStore(config, c)
	case StoreTypeMemcached:
		cacheStore, err = createMemcachedStore(config, c)
	default:
		return nil, fmt.Errorf("unsupported store type: %v", config.StoreType)
	}
	if err != nil {
		return nil, err
	}

	return &Cache{config: config, store: cacheStore, codec: c}, nil
}

func createMemoryStore(config *Config) (store.Store, error) {
	if config.CleanupInterval > 0 {
		return memory.NewWithCleanup(config.MaxEntries, config.CleanupInterval)
	}
	return memory.New(config.MaxEntries)
}

func createRedisStore(config *Config, c codec.Codec) (store.Store, error) {
	if config.Redis == nil {
		return nil, fmt.Errorf("redis configuration is required when using StoreTypeRedis")
	}

	redisConfig := &redisstore.Config{
		Client:    config.Redis.Client,
		KeyPrefix: config.Redis.KeyPrefix,
		Codec:     c,
	}

	if redisConfig.Client == nil {
		client := redis.NewClient(&redis.Options{
			Addr:     config.Redis.Addr,
			Password: config.Redis.Password,
			DB:       config.Redis.DB,
		})

		if err := client.Ping(context.Background()).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		redisConfig.Client = client
		redisConfig.OwnsClient = true
	}

	return redisstore.New(redisConfig)
}

func createMemcachedStore(config *Config, c codec.Codec) (store.Store, error) {
	if config.Memcached == nil {
		return nil, fmt.Errorf("memcached configuration is required when using StoreTypeMemcached")
	}

	return memcached.New(&memcached.Config{
		Client:    config.Memcached.Client,
		Servers:   config.Memcached.Servers,
		Timeout:   config.Memcached.Timeout,
		KeyPrefix: config.Memcached.KeyPrefix,
		Codec:     c,
	})
}

// Get retrieves a value by key
func (c *Cache) Get(ctx context.Context, key string) (any, bool, error) {
	e, found, err := c.store.Get(ctx, key)
	if err != nil || !found {
		return nil, false, err
	}
	return e.Value, true, nil
}

// Set stores value under key for ttl. A non-positive ttl selects
// Config.DefaultTimeout; when that is zero too the entry does not expire.
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.config.DefaultTimeout
	}

	var e *entry.Entry
	if ttl > 0 {
		e = entry.New(value, ttl)
	} else {
		e = entry.NewWithoutTTL(value)
	}
	return c.store.Set(ctx, key, e)
}

// Delete removes a key. Deleting an absent key is not an error.
func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.store.Delete(ctx, key)
}

// Has checks if a live entry exists for key
func (c *Cache) Has(ctx context.Context, key string) (bool, error) {
	_, found, err := c.store.Get(ctx, key)
	return found, err
}

// TTL returns the remaining lifetime of key. The second result is false
// when the key is absent or never expires.
func (c *Cache) TTL(ctx context.Context, key string) (time.Duration, bool, error) {
	e, found, err := c.store.Get(ctx, key)
	if err != nil || !found || !e.HasExpiry() {
		return 0, false, err
	}
	return e.TTL(), true, nil
}

// Keys returns all current keys. Memcached cannot enumerate its keys and
// returns ErrUnsupported.
func (c *Cache) Keys(ctx context.Context) ([]string, error) {
	return c.store.Keys(ctx)
}

// Len returns the number of live entries
func (c *Cache) Len(ctx context.Context) (int, error) {
	if m, ok := c.store.(*memory.Store); ok {
		return m.Len(), nil
	}
	keys, err := c.store.Keys(ctx)
	return len(keys), err
}

// Clear removes all entries. On memcached this flushes the whole instance.
func (c *Cache) Clear(ctx context.Context) error {
	return c.store.Clear(ctx)
}

// Cleanup removes expired entries from stores that expire in process and
// returns the number removed
func (c *Cache) Cleanup() int {
	if s, ok := c.store.(store.TTLStore); ok {
		return s.Cleanup()
	}
	return 0
}

// Close releases the store. Remote entries are left in place.
func (c *Cache) Close() error {
	return c.store.Close()
}

// Codec returns the codec remote stores encode values with
func (c *Cache) Codec() codec.Codec {
	return c.codec
}

// StoreType returns the kind of store behind the cache
func (c *Cache) StoreType() StoreType {
	return c.config.StoreType
}

// entries returns the live entries for keys, skipping keys that vanished
func (c *Cache) entries(ctx context.Context, keys []string) (map[string]*entry.Entry, error) {
	out := make(map[string]*entry.Entry, len(keys))
	for _, key := range keys {
		e, found, err := c.store.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if found {
			out[key] = e
		}
	}
	return out, nil
}

// IsUnsupported reports whether err comes from an operation the store
// cannot perform
func IsUnsupported(err error) bool {
	return errors.Is(err, store.ErrUnsupported)
}

var _ Backend = (*Cache)(nil)
