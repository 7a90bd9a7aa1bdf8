// Package bloom implements the probabilistic membership filter that a table
// writer builds alongside its data blocks so a reader can skip a table
// entirely when a key is definitely absent, matching the lifecycle of
// TableBloomFilterWriter in the original implementation: keys are streamed
// in with Put as they are written, and Build produces an immutable filter
// once the last key is known.
package bloom

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/spaolacci/murmur3"
)

// DefaultFalsePositiveRate matches TableBloomFilterWriter's
// FALSE_POSITIVE_PROBABILITY constant.
const DefaultFalsePositiveRate = 0.01

// headerSize is the 4-byte hash-count prefix stored ahead of the bitset.
const headerSize = 4

// ErrCorruptFilter is returned when Decode is given fewer than headerSize
// bytes or a blob with an empty bitset.
var ErrCorruptFilter = fmt.Errorf("bloom: corrupt filter blob")

// Builder accumulates keys and produces a Filter sized for an expected
// element count and target false-positive rate, in the style of
// AmrMurad1-Go-Store's filter.New: m and k are derived analytically rather
// than tuned by hand.
type Builder struct {
	bitsetBits uint64
	numHashes  uint32
	bits       []byte
}

// NewBuilder sizes a filter for expectedEntries elements at
// falsePositiveRate. A non-positive falsePositiveRate falls back to
// DefaultFalsePositiveRate. expectedEntries is clamped to at least 1 so a
// filter can always be built, even for an empty table.
func NewBuilder(expectedEntries int, falsePositiveRate float64) *Builder {
	if expectedEntries < 1 {
		expectedEntries = 1
	}
	if falsePositiveRate <= 0 || falsePositiveRate >= 1 {
		falsePositiveRate = DefaultFalsePositiveRate
	}

	n := float64(expectedEntries)
	m := math.Ceil(-n * math.Log(falsePositiveRate) / (math.Ln2 * math.Ln2))
	if m < 8 {
		m = 8
	}
	k := math.Round((m / n) * math.Ln2)
	if k < 1 {
		k = 1
	}

	numBytes := (uint64(m) + 7) / 8
	// Hash over every bit of the whole bytes stored, so the builder and
	// a decoded Filter (which only knows len(bits)*8) agree on the modulus.
	bitsetBits := numBytes * 8
	return &Builder{
		bitsetBits: bitsetBits,
		numHashes:  uint32(k),
		bits:       make([]byte, numBytes),
	}
}

// Put records key's membership. Safe to call repeatedly with duplicate
// keys; a duplicate simply sets bits that are already set.
func (b *Builder) Put(key []byte) {
	h1, h2 := murmur3.Sum128(key)
	for i := uint32(0); i < b.numHashes; i++ {
		// Kirsch-Mitzenmacher: derive k hashes from two independent ones
		// instead of running murmur3 k separate times.
		combined := h1 + uint64(i)*h2
		bit := combined % b.bitsetBits
		b.bits[bit/8] |= 1 << (bit % 8)
	}
}

// Build finalizes the filter into its on-disk blob form: a little-endian
// uint32 hash count followed by the packed bitset.
func (b *Builder) Build() []byte {
	blob := make([]byte, headerSize+len(b.bits))
	binary.LittleEndian.PutUint32(blob[:headerSize], b.numHashes)
	copy(blob[headerSize:], b.bits)
	return blob
}

// Filter is a decoded, read-only bloom filter blob.
type Filter struct {
	numHashes  uint32
	bits       []byte
	bitsetBits uint64
}

// Decode parses a blob produced by Builder.Build.
func Decode(blob []byte) (*Filter, error) {
	if len(blob) < headerSize {
		return nil, ErrCorruptFilter
	}
	numHashes := binary.LittleEndian.Uint32(blob[:headerSize])
	bits := blob[headerSize:]
	if len(bits) == 0 {
		return nil, ErrCorruptFilter
	}
	return &Filter{numHashes: numHashes, bits: bits, bitsetBits: uint64(len(bits)) * 8}, nil
}

// MayContain reports whether key could be present. False means key is
// definitely absent; true means key is present or this is a false positive.
func (f *Filter) MayContain(key []byte) bool {
	h1, h2 := murmur3.Sum128(key)
	for i := uint32(0); i < f.numHashes; i++ {
		combined := h1 + uint64(i)*h2
		bit := combined % f.bitsetBits
		if f.bits[bit/8]&(1<<(bit%8)) == 0 {
			return false
		}
	}
	return true
}
