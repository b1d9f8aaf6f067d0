package redis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vnykmshr/cachehelper-go/internal/entry"
	"github.com/vnykmshr/cachehelper-go/internal/store"
	"github.com/vnykmshr/cachehelper-go/pkg/codec"
)

// DefaultKeyPrefix is prepended to every key written to Redis
const DefaultKeyPrefix = "cachehelper:"

const scanCount = 256

// Store implements a Redis-backed cache store. Entries are encoded with the
// configured codec and expire through Redis' own TTL.
type Store struct {
	client     redis.Cmdable
	keyPrefix  string
	defaultTTL time.Duration
	codec      codec.Codec
	closer     io.Closer
}

// Config holds Redis store configuration
type Config struct {
	// Client is the Redis client to use
	Client redis.Cmdable

	// KeyPrefix is prepended to all cache keys to avoid conflicts
	KeyPrefix string

	// DefaultTTL is the TTL for entries without explicit expiration
	DefaultTTL time.Duration

	// Codec encodes stored entries (default MessagePack)
	Codec codec.Codec

	// OwnsClient makes Close close Client
	OwnsClient bool
}

// envelope is an entry as stored in Redis
type envelope struct {
	Value     any        `msgpack:"v" json:"v"`
	CreatedAt time.Time  `msgpack:"c" json:"c"`
	ExpiresAt *time.Time `msgpack:"e,omitempty" json:"e,omitempty"`
}

// New creates a new Redis store with the given configuration
func New(config *Config) (*Store, error) {
	if config == nil || config.Client == nil {
		return nil, fmt.Errorf("redis client is required")
	}

	keyPrefix := config.KeyPrefix
	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
	}

	c := config.Codec
	if c == nil {
		c = codec.Default
	}

	s := &Store{
		client:     config.Client,
		keyPrefix:  keyPrefix,
		defaultTTL: config.DefaultTTL,
		codec:      c,
	}
	if closer, ok := config.Client.(io.Closer); ok && config.OwnsClient {
		s.closer = closer
	}
	return s, nil
}

// Get retrieves an entry by key. The value comes back in the codec's
// generic form.
func (s *Store) Get(ctx context.Context, key string) (*entry.Entry, bool, error) {
	redisKey := s.buildKey(key)
	data, err := s.client.Get(ctx, redisKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", redisKey, err)
	}

	var env envelope
	if err := s.codec.Unmarshal(data, &env); err != nil {
		// unreadable entries are dropped so the next call recomputes
		_ = s.client.Del(ctx, redisKey).Err() //nolint:errcheck // best effort, the decode error is returned
		return nil, false, fmt.Errorf("redis decode %s: %w", redisKey, err)
	}

	e := &entry.Entry{Value: env.Value, CreatedAt: env.CreatedAt, ExpiresAt: env.ExpiresAt}
	if e.IsExpired() {
		return nil, false, nil
	}
	return e, true, nil
}

// Set stores an entry with the given key
func (s *Store) Set(ctx context.Context, key string, e *entry.Entry) error {
	redisKey := s.buildKey(key)

	var ttl time.Duration
	if e.HasExpiry() {
		ttl = e.TTL()
		if ttl <= 0 {
			return s.client.Del(ctx, redisKey).Err()
		}
	} else if s.defaultTTL > 0 {
		ttl = s.defaultTTL
	}

	data, err := s.codec.Marshal(envelope{Value: e.Value, CreatedAt: e.CreatedAt, ExpiresAt: e.ExpiresAt})
	if err != nil {
		return fmt.Errorf("redis encode %s: %w", redisKey, err)
	}

	if ttl > 0 {
		err = s.client.SetEx(ctx, redisKey, data, ttl).Err()
	} else {
		err = s.client.Set(ctx, redisKey, data, 0).Err()
	}
	if err != nil {
		return fmt.Errorf("redis set %s: %w", redisKey, err)
	}
	return nil
}

// Delete removes an entry by key
func (s *Store) Delete(ctx context.Context, key string) error {
	redisKey := s.buildKey(key)
	if err := s.client.Del(ctx, redisKey).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", redisKey, err)
	}
	return nil
}

// Keys returns all keys under the store's prefix
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	redisKeys, err := s.scan(ctx)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(redisKeys))
	for _, redisKey := range redisKeys {
		if key, ok := s.extractKey(redisKey); ok {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// Clear removes all entries under the store's prefix
func (s *Store) Clear(ctx context.Context) error {
	redisKeys, err := s.scan(ctx)
	if err != nil {
		return err
	}
	if len(redisKeys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, redisKeys...).Err(); err != nil {
		return fmt.Errorf("redis clear: %w", err)
	}
	return nil
}

// Close closes the client when the store owns it. Entries are left in
// Redis.
func (s *Store) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// KeyPrefix returns the prefix added to every key
func (s *Store) KeyPrefix() string {
	return s.keyPrefix
}

func (s *Store) scan(ctx context.Context) ([]string, error) {
	var (
		all    []string
		cursor uint64
	)
	pattern := s.buildKey("*")
	for {
		keys, next, err := s.client.Scan(ctx, cursor, pattern, scanCount).Result()
		if err != nil {
			return nil, fmt.Errorf("redis scan %s: %w", pattern, err)
		}
		all = append(all, keys...)
		if next == 0 {
			return all, nil
		}
		cursor = next
	}
}

// buildKey creates a Redis key with the configured prefix
func (s *Store) buildKey(key string) string {
	return s.keyPrefix + key
}

// extractKey extracts the cache key from a Redis key
func (s *Store) extractKey(redisKey string) (string, bool) {
	if !strings.HasPrefix(redisKey, s.keyPrefix) {
		return "", false
	}
	return strings.TrimPrefix(redisKey, s.keyPrefix), true
}

// Ensure Store implements the required interfaces
var _ store.Store = (*Store)(nil)
