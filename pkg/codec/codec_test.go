package codec

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"
)

type quote struct {
	SKU    string
	Qty    int
	Prices map[string]float64
	At     time.Time
}

func TestCodecsRoundTrip(t *testing.T) {
	orig := quote{
		SKU:    "a-1",
		Qty:    3,
		Prices: map[string]float64{"eur": 9.5},
		At:     time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}

	for _, c := range []Codec{MsgPack{}, JSON{}} {
		t.Run(c.Name(), func(t *testing.T) {
			data, err := c.Marshal(orig)
			if err != nil {
				t.Fatalf("Marshal failed: %v", err)
			}

			var got quote
			if err := c.Unmarshal(data, &got); err != nil {
				t.Fatalf("Unmarshal failed: %v", err)
			}
			if got.SKU != orig.SKU || got.Qty != orig.Qty || got.Prices["eur"] != 9.5 || !got.At.Equal(orig.At) {
				t.Fatalf("round trip mismatch: got %+v, want %+v", got, orig)
			}
		})
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		config  *Config
		want    string
		wantErr bool
	}{
		{"nil config", nil, "msgpack", false},
		{"default", NewDefaultConfig(), "msgpack", false},
		{"json", NewDefaultConfig().WithFormat(FormatJSON), "json", false},
		{"gzip", NewDefaultConfig().WithCompression(NewDefaultCompressionConfig().WithEnabled(true)), "msgpack+gzip", false},
		{"deflate json", NewDefaultConfig().WithFormat(FormatJSON).WithCompression(
			NewDefaultCompressionConfig().WithEnabled(true).WithAlgorithm(CompressorDeflate)), "json+deflate", false},
		{"unknown format", NewDefaultConfig().WithFormat("xml"), "", true},
		{"unknown algorithm", NewDefaultConfig().WithCompression(
			NewDefaultCompressionConfig().WithEnabled(true).WithAlgorithm("lz4")), "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.config)
			if tt.wantErr {
				if err == nil {
					t.Fatal("Expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}
			if c.Name() != tt.want {
				t.Fatalf("Expected codec %q, got %q", tt.want, c.Name())
			}
		})
	}
}

func TestCompressedThreshold(t *testing.T) {
	for _, algo := range []CompressorType{CompressorGzip, CompressorDeflate} {
		t.Run(string(algo), func(t *testing.T) {
			compressor, err := NewCompressor(&CompressionConfig{Enabled: true, Algorithm: algo, Level: -1})
			if err != nil {
				t.Fatalf("NewCompressor failed: %v", err)
			}
			c := NewCompressed(MsgPack{}, compressor, 64)

			small, err := c.Marshal("tiny")
			if err != nil {
				t.Fatalf("Marshal failed: %v", err)
			}
			if small[0] != frameRaw {
				t.Fatalf("Expected small value to be stored raw, flag %d", small[0])
			}

			large := strings.Repeat("compressible ", 200)
			packed, err := c.Marshal(large)
			if err != nil {
				t.Fatalf("Marshal failed: %v", err)
			}
			if packed[0] != frameCompressed {
				t.Fatalf("Expected large value to be compressed, flag %d", packed[0])
			}
			if len(packed) >= len(large) {
				t.Fatalf("Expected compressed size < %d, got %d", len(large), len(packed))
			}

			for _, data := range [][]byte{small, packed} {
				var got string
				if err := c.Unmarshal(data, &got); err != nil {
					t.Fatalf("Unmarshal failed: %v", err)
				}
				if got != "tiny" && got != large {
					t.Fatalf("Unexpected round trip value %q", got)
				}
			}
		})
	}
}

func TestCompressedCorruptFrame(t *testing.T) {
	c := NewCompressed(JSON{}, &gzipCompressor{level: -1}, 0)

	if err := c.Unmarshal(nil, new(string)); !errors.Is(err, ErrCorruptFrame) {
		t.Fatalf("Expected ErrCorruptFrame for empty input, got %v", err)
	}
	if err := c.Unmarshal([]byte{9, '"', 'x', '"'}, new(string)); !errors.Is(err, ErrCorruptFrame) {
		t.Fatalf("Expected ErrCorruptFrame for unknown flag, got %v", err)
	}
}

func TestNopCompressor(t *testing.T) {
	c, err := NewCompressor(nil)
	if err != nil {
		t.Fatalf("NewCompressor failed: %v", err)
	}
	data := []byte("as is")
	out, _ := c.Compress(data)
	if !bytes.Equal(out, data) || c.Name() != "none" {
		t.Fatalf("Expected pass-through compressor, got %q from %s", out, c.Name())
	}
}

func TestConvert(t *testing.T) {
	c := MsgPack{}

	// the generic form a remote store hands back for a quote
	data, _ := c.Marshal(quote{SKU: "b-2", Qty: 7})
	var generic any
	if err := c.Unmarshal(data, &generic); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if _, ok := generic.(map[string]any); !ok {
		t.Fatalf("Expected generic map, got %T", generic)
	}

	v, err := Convert(c, generic, reflect.TypeOf(quote{}))
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if q := v.Interface().(quote); q.SKU != "b-2" || q.Qty != 7 {
		t.Fatalf("Unexpected conversion result %+v", q)
	}

	n, err := Convert(JSON{}, float64(42), reflect.TypeOf(0))
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if n.Int() != 42 {
		t.Fatalf("Expected 42, got %v", n)
	}

	z, err := Convert(c, nil, reflect.TypeOf([]int(nil)))
	if err != nil || !z.IsNil() {
		t.Fatalf("Expected nil slice, got %v (%v)", z, err)
	}

	same, err := Convert(nil, "x", reflect.TypeOf(""))
	if err != nil || same.String() != "x" {
		t.Fatalf("Expected pass-through, got %v (%v)", same, err)
	}

	if _, err := Convert(c, "not a number", reflect.TypeOf(0)); err == nil {
		t.Fatal("Expected conversion error")
	}
}
