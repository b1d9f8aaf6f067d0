// Package codec encodes memoized results for remote cache stores.
//
// Stores that live outside the process (Redis, Memcached) keep bytes, so a
// result is marshalled on Set and unmarshalled on Get. Decoding without the
// caller's type yields the codec's generic form (maps, int8, float64...);
// Convert re-shapes such values into the type a memoized function declares.
package codec

import (
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Codec encodes and decodes values for cache storage
type Codec interface {
	// Marshal serializes v into bytes
	Marshal(v any) ([]byte, error)

	// Unmarshal deserializes data into v, which must be a pointer
	Unmarshal(data []byte, v any) error

	// Name returns the codec identifier used for diagnostics
	Name() string
}

// Format selects the serialization format
type Format string

const (
	FormatMsgPack Format = "msgpack"
	FormatJSON    Format = "json"
)

// MsgPack encodes values as MessagePack. It is the default codec.
type MsgPack struct{}

// Marshal serializes v to MessagePack bytes
func (MsgPack) Marshal(v any) ([]byte, error) {
	return msgpack.Marshal(v)
}

// Unmarshal deserializes MessagePack bytes into v
func (MsgPack) Unmarshal(data []byte, v any) error {
	return msgpack.Unmarshal(data, v)
}

// Name returns "msgpack"
func (MsgPack) Name() string { return string(FormatMsgPack) }

// JSON encodes values with encoding/json, for human-readable store contents
type JSON struct{}

// Marshal serializes v to JSON bytes
func (JSON) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Unmarshal deserializes JSON bytes into v
func (JSON) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// Name returns "json"
func (JSON) Name() string { return string(FormatJSON) }

// Default is the codec used when none is configured
var Default Codec = MsgPack{}

// Config holds codec configuration
type Config struct {
	// Format selects the serialization format
	Format Format

	// Compression configures optional compression of encoded values
	Compression *CompressionConfig
}

// NewDefaultConfig returns MessagePack without compression
func NewDefaultConfig() *Config {
	return &Config{
		Format:      FormatMsgPack,
		Compression: NewDefaultCompressionConfig(),
	}
}

// WithFormat sets the serialization format
func (c *Config) WithFormat(format Format) *Config {
	c.Format = format
	return c
}

// WithCompression sets the compression configuration
func (c *Config) WithCompression(compression *CompressionConfig) *Config {
	c.Compression = compression
	return c
}

// New builds the codec described by config. A nil config yields Default.
func New(config *Config) (Codec, error) {
	if config == nil {
		return Default, nil
	}

	var base Codec
	switch config.Format {
	case "", FormatMsgPack:
		base = MsgPack{}
	case FormatJSON:
		base = JSON{}
	default:
		return nil, fmt.Errorf("unsupported codec format: %s", config.Format)
	}

	if config.Compression == nil || !config.Compression.Enabled {
		return base, nil
	}

	compressor, err := NewCompressor(config.Compression)
	if err != nil {
		return nil, err
	}
	return NewCompressed(base, compressor, config.Compression.MinSize), nil
}

// Ensure interfaces are implemented
var (
	_ Codec = MsgPack{}
	_ Codec = JSON{}
	_ Codec = (*Compressed)(nil)
)
