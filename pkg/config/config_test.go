package config

import (
	"errors"
	"testing"

	"github.com/coredb-io/sbtable/pkg/blockfile"
)

func TestNewDefaultConfigIsValid(t *testing.T) {
	c := NewDefaultConfig()
	if err := c.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if c.BloomFalsePositiveRate != 0.01 {
		t.Fatalf("BloomFalsePositiveRate = %v, want 0.01", c.BloomFalsePositiveRate)
	}
}

func TestOptionsApply(t *testing.T) {
	c := NewDefaultConfig(
		WithMaxIndexBlockSizeBytes(1024),
		WithAlignment(512),
		WithCompression(blockfile.CodecZstd),
		WithoutBloomFilter(),
	)
	if c.MaxIndexBlockSizeBytes != 1024 {
		t.Errorf("MaxIndexBlockSizeBytes = %d, want 1024", c.MaxIndexBlockSizeBytes)
	}
	if c.Alignment != 512 {
		t.Errorf("Alignment = %d, want 512", c.Alignment)
	}
	if c.Compression != blockfile.CodecZstd {
		t.Errorf("Compression = %v, want CodecZstd", c.Compression)
	}
	if c.BloomFalsePositiveRate != 0 {
		t.Errorf("BloomFalsePositiveRate = %v, want 0", c.BloomFalsePositiveRate)
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateRejectsBadAlignment(t *testing.T) {
	c := NewDefaultConfig(WithAlignment(3))
	if err := c.Validate(); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("Validate() = %v, want ErrInvalidConfig", err)
	}
}

func TestValidateRejectsBadBloomRate(t *testing.T) {
	c := NewDefaultConfig(WithBloomFalsePositiveRate(1.5))
	if err := c.Validate(); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("Validate() = %v, want ErrInvalidConfig", err)
	}
}

func TestValidateRejectsZeroIndexBlockSize(t *testing.T) {
	c := NewDefaultConfig(WithMaxIndexBlockSizeBytes(0))
	if err := c.Validate(); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("Validate() = %v, want ErrInvalidConfig", err)
	}
}
