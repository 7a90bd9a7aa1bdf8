// Package config carries the tunables a table writer needs, following the
// same options-struct-plus-defaults shape as the original engine's
// pkg/config.Config: a plain struct with JSON tags and a
// NewDefaultConfig constructor, adapted here to functional options since a
// table Writer is built once and never mutated afterward.
package config

import (
	"errors"
	"fmt"

	"github.com/coredb-io/sbtable/pkg/blockfile"
	"github.com/coredb-io/sbtable/pkg/index"
)

// ErrInvalidConfig is returned by Validate when a tunable is out of range.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Config controls how a table Writer lays out data and index blocks.
type Config struct {
	// MaxIndexBlockSizeBytes bounds how large an Index Block is allowed to
	// grow before the Index Writer flushes it (spec.md §6's
	// MAX_INDEX_BLOCK_SIZE_BYTES).
	MaxIndexBlockSizeBytes uint32 `json:"max_index_block_size_bytes"`

	// Alignment is the byte alignment requested from the offheap allocator
	// for each block's backing region.
	Alignment int `json:"alignment"`

	// Compression selects the codec each data and index block is
	// enveloped with before it is appended to a table file.
	Compression blockfile.Codec `json:"compression"`

	// BloomFalsePositiveRate targets the false-positive rate of the
	// per-table bloom filter. Set to 0 to disable the filter entirely.
	BloomFalsePositiveRate float64 `json:"bloom_false_positive_rate"`
}

// Option mutates a Config under construction.
type Option func(*Config)

// WithMaxIndexBlockSizeBytes overrides the default index block size bound.
func WithMaxIndexBlockSizeBytes(n uint32) Option {
	return func(c *Config) { c.MaxIndexBlockSizeBytes = n }
}

// WithAlignment overrides the default block allocation alignment.
func WithAlignment(n int) Option {
	return func(c *Config) { c.Alignment = n }
}

// WithCompression selects the block compression codec.
func WithCompression(codec blockfile.Codec) Option {
	return func(c *Config) { c.Compression = codec }
}

// WithBloomFalsePositiveRate overrides the bloom filter's target
// false-positive rate. A rate of 0 disables the filter.
func WithBloomFalsePositiveRate(rate float64) Option {
	return func(c *Config) { c.BloomFalsePositiveRate = rate }
}

// WithoutBloomFilter disables the per-table bloom filter.
func WithoutBloomFilter() Option {
	return WithBloomFalsePositiveRate(0)
}

// NewDefaultConfig returns a Config with recommended defaults, then applies
// opts in order.
func NewDefaultConfig(opts ...Option) *Config {
	c := &Config{
		MaxIndexBlockSizeBytes: index.DefaultMaxIndexBlockSizeBytes,
		Alignment:              4096,
		Compression:            blockfile.CodecNone,
		BloomFalsePositiveRate: 0.01,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Validate reports whether c's fields are in usable ranges.
func (c *Config) Validate() error {
	if c.MaxIndexBlockSizeBytes == 0 {
		return fmt.Errorf("%w: max index block size must be positive", ErrInvalidConfig)
	}
	if c.Alignment <= 0 || c.Alignment&(c.Alignment-1) != 0 {
		return fmt.Errorf("%w: alignment must be a positive power of two", ErrInvalidConfig)
	}
	if c.BloomFalsePositiveRate < 0 || c.BloomFalsePositiveRate >= 1 {
		return fmt.Errorf("%w: bloom false positive rate must be in [0, 1)", ErrInvalidConfig)
	}
	switch c.Compression {
	case blockfile.CodecNone, blockfile.CodecSnappy, blockfile.CodecZstd:
	default:
		return fmt.Errorf("%w: unknown compression codec %d", ErrInvalidConfig, c.Compression)
	}
	return nil
}
