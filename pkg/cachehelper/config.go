package cachehelper

import (
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vnykmshr/cachehelper-go/internal/store/memcached"
	redisstore "github.com/vnykmshr/cachehelper-go/internal/store/redis"
	"github.com/vnykmshr/cachehelper-go/pkg/codec"
	"github.com/vnykmshr/cachehelper-go/pkg/keys"
	"github.com/vnykmshr/cachehelper-go/pkg/metrics"
)

// StoreType defines the type of backend store to use
type StoreType int

const (
	// StoreTypeMemory uses in-process LRU storage (default)
	StoreTypeMemory StoreType = iota

	// StoreTypeRedis uses Redis as the backend store
	StoreTypeRedis

	// StoreTypeMemcached uses memcached as the backend store
	StoreTypeMemcached
)

func (s StoreType) String() string {
	switch s {
	case StoreTypeMemory:
		return "memory"
	case StoreTypeRedis:
		return "redis"
	case StoreTypeMemcached:
		return "memcached"
	default:
		return "unknown"
	}
}

// RedisConfig holds Redis-specific configuration
type RedisConfig struct {
	// Client is a pre-configured Redis client (optional)
	// If provided, Addr, Password, and DB are ignored
	Client redis.Cmdable

	// Addr is the Redis server address (host:port)
	Addr string

	// Password for Redis authentication (optional)
	Password string

	// DB is the Redis database number (default: 0)
	DB int

	// KeyPrefix is prepended to all cache keys (default: "cachehelper:")
	KeyPrefix string
}

// MemcachedClient is the subset of *memcache.Client the memcached store uses
type MemcachedClient = memcached.Client

// MemcachedConfig holds memcached-specific configuration
type MemcachedConfig struct {
	// Client is a pre-configured memcache client (optional)
	// If provided, Servers and Timeout are ignored
	Client MemcachedClient

	// Servers lists memcached addresses (host:port)
	Servers []string

	// Timeout is the socket read/write timeout (memcache default when zero)
	Timeout time.Duration

	// KeyPrefix is prepended to all cache keys (default: "ch:")
	KeyPrefix string
}

// MetricsConfig holds metrics-specific configuration
type MetricsConfig struct {
	// Exporter is the metrics exporter to use
	Exporter metrics.Exporter

	// Enabled determines whether metrics collection is active
	Enabled bool

	// CacheName is used as a label to identify this memoizer instance
	CacheName string

	// ReportingInterval controls how often stats are exported (0 disables)
	ReportingInterval time.Duration

	// Labels are additional labels applied to all metrics
	Labels metrics.Labels
}

// Config defines the configuration options for a Memoizer and its backend
type Config struct {
	// StoreType determines the backend store (memory, Redis or memcached)
	StoreType StoreType

	// MaxEntries sets the maximum number of entries in the memory store
	MaxEntries int

	// DefaultTimeout is how long memoized results live when a wrapped
	// function sets no timeout of its own (0 keeps them until removed)
	DefaultTimeout time.Duration

	// CleanupInterval is how often expired entries are removed from the
	// memory store (0 disables the background sweep)
	CleanupInterval time.Duration

	// MaxDepth bounds collection nesting in key arguments.
	// keys.Unbounded disables the bound.
	MaxDepth int

	// MaxKeyLength bounds the length of a stored key, prefix included
	MaxKeyLength int

	// ReservedKeyLength is held back from MaxKeyLength for the decoration
	// the backend adds to every key, such as its key prefix
	ReservedKeyLength int

	// Backend replaces the store selected by StoreType
	Backend Backend

	// Hooks defines event callbacks for memoized calls
	Hooks *Hooks

	// Logger receives backend and key derivation failures
	Logger Logger

	// Redis holds Redis-specific configuration (used when StoreType is StoreTypeRedis)
	Redis *RedisConfig

	// Memcached holds memcached-specific configuration (used when StoreType is StoreTypeMemcached)
	Memcached *MemcachedConfig

	// Metrics holds metrics configuration
	Metrics *MetricsConfig

	// Codec selects how remote stores encode values
	Codec *codec.Config

	// Singleflight makes concurrent identical misses share one computation
	Singleflight bool
}

// NewDefaultConfig returns a configuration for an in-process memoizer
func NewDefaultConfig() *Config {
	return &Config{
		StoreType:       StoreTypeMemory,
		MaxEntries:      1000,
		DefaultTimeout:  5 * time.Minute,
		CleanupInterval: time.Minute,
		MaxDepth:        keys.DefaultMaxDepth,
		MaxKeyLength:    keys.DefaultMaxKeyLength,
		Hooks:           &Hooks{},
		Logger:          NewNoOpLogger(),
		Codec:           codec.NewDefaultConfig(),
	}
}

// NewRedisConfig returns a configuration for a Redis-backed memoizer.
// ReservedKeyLength accounts for the default key prefix.
func NewRedisConfig(addr string) *Config {
	config := NewDefaultConfig()
	config.StoreType = StoreTypeRedis
	config.Redis = &RedisConfig{
		Addr:      addr,
		KeyPrefix: redisstore.DefaultKeyPrefix,
	}
	config.ReservedKeyLength = len(redisstore.DefaultKeyPrefix)
	config.CleanupInterval = 0
	return config
}

// NewRedisConfigWithClient returns a Redis configuration using an existing client
func NewRedisConfigWithClient(client redis.Cmdable) *Config {
	config := NewRedisConfig("")
	config.Redis.Client = client
	return config
}

// NewMemcachedConfig returns a configuration for a memcached-backed memoizer.
// ReservedKeyLength accounts for the default key prefix.
func NewMemcachedConfig(servers ...string) *Config {
	config := NewDefaultConfig()
	config.StoreType = StoreTypeMemcached
	config.Memcached = &MemcachedConfig{
		Servers:   servers,
		KeyPrefix: memcached.DefaultKeyPrefix,
	}
	config.ReservedKeyLength = len(memcached.DefaultKeyPrefix)
	config.CleanupInterval = 0
	return config
}

// WithMaxEntries sets the maximum number of memory store entries
func (c *Config) WithMaxEntries(maxEntries int) *Config {
	c.MaxEntries = maxEntries
	return c
}

// WithDefaultTimeout sets how long memoized results live by default
func (c *Config) WithDefaultTimeout(timeout time.Duration) *Config {
	c.DefaultTimeout = timeout
	return c
}

// WithCleanupInterval sets the memory store cleanup interval
func (c *Config) WithCleanupInterval(interval time.Duration) *Config {
	c.CleanupInterval = interval
	return c
}

// WithMaxDepth sets the nesting bound for key arguments
func (c *Config) WithMaxDepth(depth int) *Config {
	c.MaxDepth = depth
	return c
}

// WithMaxKeyLength sets the total key length bound
func (c *Config) WithMaxKeyLength(length int) *Config {
	c.MaxKeyLength = length
	return c
}

// WithReservedKeyLength sets the key length held back for backend decoration
func (c *Config) WithReservedKeyLength(length int) *Config {
	c.ReservedKeyLength = length
	return c
}

// WithBackend replaces the configured store with backend
func (c *Config) WithBackend(backend Backend) *Config {
	c.Backend = backend
	return c
}

// WithHooks sets the event hooks
func (c *Config) WithHooks(hooks *Hooks) *Config {
	c.Hooks = hooks
	return c
}

// WithLogger sets the logger
func (c *Config) WithLogger(logger Logger) *Config {
	c.Logger = logger
	return c
}

// WithCodec sets the codec configuration used by remote stores
func (c *Config) WithCodec(codecConfig *codec.Config) *Config {
	c.Codec = codecConfig
	return c
}

// WithCompression enables compression of values written to remote stores
func (c *Config) WithCompression(compression *codec.CompressionConfig) *Config {
	if c.Codec == nil {
		c.Codec = codec.NewDefaultConfig()
	}
	c.Codec.Compression = compression
	return c
}

// WithSingleflight enables or disables shared computation of concurrent misses
func (c *Config) WithSingleflight(enabled bool) *Config {
	c.Singleflight = enabled
	return c
}

// WithRedis configures Redis as the backend store. ReservedKeyLength is
// set to the length of the effective key prefix.
func (c *Config) WithRedis(redisConfig *RedisConfig) *Config {
	c.StoreType = StoreTypeRedis
	c.Redis = redisConfig
	if redisConfig != nil {
		if redisConfig.KeyPrefix == "" {
			redisConfig.KeyPrefix = redisstore.DefaultKeyPrefix
		}
		c.ReservedKeyLength = len(redisConfig.KeyPrefix)
	}
	return c
}

// WithRedisClient configures Redis with an existing client
func (c *Config) WithRedisClient(client redis.Cmdable) *Config {
	return c.WithRedis(&RedisConfig{Client: client})
}

// WithRedisKeyPrefix sets the Redis key prefix and reserves its length
func (c *Config) WithRedisKeyPrefix(prefix string) *Config {
	if c.Redis == nil {
		c.Redis = &RedisConfig{}
	}
	c.Redis.KeyPrefix = prefix
	c.ReservedKeyLength = len(prefix)
	return c
}

// WithMemcached configures memcached as the backend store. ReservedKeyLength
// is set to the length of the effective key prefix.
func (c *Config) WithMemcached(memcachedConfig *MemcachedConfig) *Config {
	c.StoreType = StoreTypeMemcached
	c.Memcached = memcachedConfig
	if memcachedConfig != nil {
		if memcachedConfig.KeyPrefix == "" {
			memcachedConfig.KeyPrefix = memcached.DefaultKeyPrefix
		}
		c.ReservedKeyLength = len(memcachedConfig.KeyPrefix)
	}
	return c
}

// WithMemcachedClient configures memcached with an existing client
func (c *Config) WithMemcachedClient(client MemcachedClient) *Config {
	return c.WithMemcached(&MemcachedConfig{Client: client})
}

// WithMetrics sets the metrics configuration
func (c *Config) WithMetrics(metricsConfig *MetricsConfig) *Config {
	c.Metrics = metricsConfig
	return c
}

// WithMetricsExporter enables metrics with the given exporter
func (c *Config) WithMetricsExporter(exporter metrics.Exporter, cacheName string) *Config {
	if c.Metrics == nil {
		c.Metrics = &MetricsConfig{}
	}
	c.Metrics.Exporter = exporter
	c.Metrics.Enabled = true
	c.Metrics.CacheName = cacheName
	return c
}

// WithMetricsLabels sets additional metric labels
func (c *Config) WithMetricsLabels(labels metrics.Labels) *Config {
	if c.Metrics == nil {
		c.Metrics = &MetricsConfig{}
	}
	c.Metrics.Labels = labels
	return c
}

// WithMetricsReportingInterval sets how often stats are exported
func (c *Config) WithMetricsReportingInterval(interval time.Duration) *Config {
	if c.Metrics == nil {
		c.Metrics = &MetricsConfig{}
	}
	c.Metrics.ReportingInterval = interval
	return c
}

// Validate reports the first configuration error, if any
func (c *Config) Validate() error {
	if c.MaxDepth < keys.Unbounded {
		return fmt.Errorf("invalid MaxDepth %d: must be >= 0 or keys.Unbounded", c.MaxDepth)
	}
	if c.MaxKeyLength < 0 {
		return fmt.Errorf("invalid MaxKeyLength %d", c.MaxKeyLength)
	}
	if c.ReservedKeyLength < 0 {
		return fmt.Errorf("invalid ReservedKeyLength %d", c.ReservedKeyLength)
	}
	if budget := c.maxKeyLength() - c.ReservedKeyLength; budget <= keys.HashWidth {
		return fmt.Errorf("key budget %d (MaxKeyLength %d - ReservedKeyLength %d) must exceed the %d byte hash suffix",
			budget, c.maxKeyLength(), c.ReservedKeyLength, keys.HashWidth)
	}
	if c.DefaultTimeout < 0 {
		return fmt.Errorf("invalid DefaultTimeout %s", c.DefaultTimeout)
	}
	if c.Backend != nil {
		return nil
	}

	switch c.StoreType {
	case StoreTypeMemory:
		if c.MaxEntries <= 0 {
			return fmt.Errorf("invalid MaxEntries %d: memory store needs a positive capacity", c.MaxEntries)
		}
	case StoreTypeRedis:
		if c.Redis == nil || (c.Redis.Client == nil && c.Redis.Addr == "") {
			return fmt.Errorf("redis configuration with a client or address is required when using StoreTypeRedis")
		}
	case StoreTypeMemcached:
		if c.Memcached == nil || (c.Memcached.Client == nil && len(c.Memcached.Servers) == 0) {
			return fmt.Errorf("memcached configuration with a client or servers is required when using StoreTypeMemcached")
		}
	default:
		return fmt.Errorf("unsupported store type: %v", c.StoreType)
	}
	return nil
}

func (c *Config) maxKeyLength() int {
	if c.MaxKeyLength == 0 {
		return keys.DefaultMaxKeyLength
	}
	return c.MaxKeyLength
}
