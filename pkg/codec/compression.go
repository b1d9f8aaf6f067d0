package codec

import (
	"bytes"
	"compress/gzip"
	"compress/zlib"
	"errors"
	"fmt"
	"io"
)

// Compressor compresses encoded cache values
type Compressor interface {
	// Compress compresses the given data and returns compressed bytes
	Compress(data []byte) ([]byte, error)

	// Decompress decompresses the given compressed bytes
	Decompress(compressed []byte) ([]byte, error)

	// Name returns the name of the compressor
	Name() string
}

// CompressorType represents different compression algorithms
type CompressorType string

const (
	CompressorNone    CompressorType = "none"
	CompressorGzip    CompressorType = "gzip"
	CompressorDeflate CompressorType = "deflate"
)

// CompressionConfig holds compression configuration
type CompressionConfig struct {
	// Enabled determines whether compression is enabled
	Enabled bool

	// Algorithm specifies which compression algorithm to use
	Algorithm CompressorType

	// MinSize is the encoded size in bytes below which values are stored raw
	MinSize int

	// Level is the compression level (1-9 for gzip/deflate, -1 for default)
	Level int
}

// NewDefaultCompressionConfig creates a disabled gzip configuration
func NewDefaultCompressionConfig() *CompressionConfig {
	return &CompressionConfig{
		Enabled:   false,
		Algorithm: CompressorGzip,
		MinSize:   1024,
		Level:     -1,
	}
}

// WithEnabled sets whether compression is enabled
func (c *CompressionConfig) WithEnabled(enabled bool) *CompressionConfig {
	c.Enabled = enabled
	return c
}

// WithAlgorithm sets the compression algorithm
func (c *CompressionConfig) WithAlgorithm(algorithm CompressorType) *CompressionConfig {
	c.Algorithm = algorithm
	return c
}

// WithMinSize sets the minimum size threshold for compression
func (c *CompressionConfig) WithMinSize(minSize int) *CompressionConfig {
	c.MinSize = minSize
	return c
}

// WithLevel sets the compression level
func (c *CompressionConfig) WithLevel(level int) *CompressionConfig {
	c.Level = level
	return c
}

// NewCompressor creates the compressor selected by config
func NewCompressor(config *CompressionConfig) (Compressor, error) {
	if config == nil || !config.Enabled {
		return nopCompressor{}, nil
	}

	switch config.Algorithm {
	case CompressorNone:
		return nopCompressor{}, nil
	case CompressorGzip:
		return &gzipCompressor{level: config.Level}, nil
	case CompressorDeflate:
		return &deflateCompressor{level: config.Level}, nil
	default:
		return nil, fmt.Errorf("unsupported compression algorithm: %s", config.Algorithm)
	}
}

type nopCompressor struct{}

func (nopCompressor) Compress(data []byte) ([]byte, error)       { return data, nil }
func (nopCompressor) Decompress(compressed []byte) ([]byte, error) { return compressed, nil }
func (nopCompressor) Name() string                                 { return string(CompressorNone) }

type gzipCompressor struct {
	level int
}

func (g *gzipCompressor) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, g.level)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip writer: %w", err)
	}
	return finish(&buf, w, data)
}

func (g *gzipCompressor) Decompress(compressed []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer r.Close()
	return io.ReadAll(r)
}

func (g *gzipCompressor) Name() string { return string(CompressorGzip) }

type deflateCompressor struct {
	level int
}

func (d *deflateCompressor) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, d.level)
	if err != nil {
		return nil, fmt.Errorf("failed to create deflate writer: %w", err)
	}
	return finish(&buf, w, data)
}

func (d *deflateCompressor) Decompress(compressed []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("failed to create deflate reader: %w", err)
	}
	defer r.Close()
	return io.ReadAll(r)
}

func (d *deflateCompressor) Name() string { return string(CompressorDeflate) }

func finish(buf *bytes.Buffer, w io.WriteCloser, data []byte) ([]byte, error) {
	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to write compressed data: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to flush compressed data: %w", err)
	}
	return buf.Bytes(), nil
}

// Frame flags prefixed to every value a Compressed codec writes
const (
	frameRaw        byte = 0
	frameCompressed byte = 1
)

// ErrCorruptFrame is returned when a Compressed codec reads bytes it did not write
var ErrCorruptFrame = errors.New("codec: corrupt compression frame")

// Compressed wraps a codec and compresses encoded values of at least minSize
// bytes. Each value carries a one-byte frame flag, so values below the
// threshold (or that do not shrink) round-trip uncompressed.
type Compressed struct {
	inner      Codec
	compressor Compressor
	minSize    int
}

// NewCompressed wraps inner with compressor
func NewCompressed(inner Codec, compressor Compressor, minSize int) *Compressed {
	return &Compressed{inner: inner, compressor: compressor, minSize: minSize}
}

// Marshal encodes v with the inner codec and compresses the result when it pays off
func (c *Compressed) Marshal(v any) ([]byte, error) {
	encoded, err := c.inner.Marshal(v)
	if err != nil {
		return nil, err
	}

	if len(encoded) >= c.minSize {
		compressed, err := c.compressor.Compress(encoded)
		if err != nil {
			return nil, fmt.Errorf("failed to compress value: %w", err)
		}
		if len(compressed) < len(encoded) {
			return append([]byte{frameCompressed}, compressed...), nil
		}
	}
	return append([]byte{frameRaw}, encoded...), nil
}

// Unmarshal reverses Marshal
func (c *Compressed) Unmarshal(data []byte, v any) error {
	if len(data) == 0 {
		return ErrCorruptFrame
	}

	payload := data[1:]
	switch data[0] {
	case frameRaw:
	case frameCompressed:
		decompressed, err := c.compressor.Decompress(payload)
		if err != nil {
			return fmt.Errorf("failed to decompress value: %w", err)
		}
		payload = decompressed
	default:
		return fmt.Errorf("%w: flag %d", ErrCorruptFrame, data[0])
	}
	return c.inner.Unmarshal(payload, v)
}

// Name returns "<inner>+<compressor>", e.g. "msgpack+gzip"
func (c *Compressed) Name() string {
	return c.inner.Name() + "+" + c.compressor.Name()
}
