package sbm

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/coredb-io/sbtable/pkg/offheap"
	"github.com/coredb-io/sbtable/pkg/varint"
)

// ErrOrderingViolation is returned by Builder.Add when a key does not sort
// strictly after the previously added key.
var ErrOrderingViolation = errors.New("sbm: keys must be added in strictly ascending order")

const headerFixedSize = 4 + 4 // keyPrefixSize + entryCount

// Builder accumulates entries in strictly ascending Key order and freezes
// them into an immutable SBM. Callers must add entries in order; add is a
// programmer error otherwise (spec.md §4.2.1) and is reported through an
// error return rather than a panic, matching this codebase's convention of
// surfacing block-level contract violations as errors (see
// block.Builder.Add in the sstable package this was generalized from).
type Builder struct {
	entries      []Entry
	haveLast     bool
	lastKey      Key
	prefixLen    int
	prefixSource []byte
	allocator    offheap.Allocator
	alignment    int
}

// NewBuilder returns an empty Builder using the default allocator.
func NewBuilder() *Builder {
	return &Builder{allocator: offheap.DefaultAllocator{}, alignment: offheap.DefaultAlignment}
}

// NewBuilderWithAllocator returns an empty Builder that allocates its final
// region through alloc, requesting the given alignment.
func NewBuilderWithAllocator(alloc offheap.Allocator, alignment int) *Builder {
	return &Builder{allocator: alloc, alignment: alignment}
}

// Add appends an entry. key.Bytes and value are copied; the caller's slices
// may be reused immediately after Add returns.
func (b *Builder) Add(key Key, value Value) error {
	if b.haveLast && key.Compare(b.lastKey) <= 0 {
		return fmt.Errorf("%w: %v after %v", ErrOrderingViolation, key, b.lastKey)
	}

	keyCopy := append([]byte(nil), key.Bytes...)
	valCopy := append([]byte(nil), value...)
	entry := Entry{Key: Key{Bytes: keyCopy, SnapshotID: key.SnapshotID}, Value: valCopy}

	if !b.haveLast {
		b.prefixSource = keyCopy
		b.prefixLen = len(keyCopy)
	} else {
		if len(keyCopy) < b.prefixLen {
			b.prefixLen = len(keyCopy)
		}
		for i := 0; i < b.prefixLen; i++ {
			if b.prefixSource[i] != keyCopy[i] {
				b.prefixLen = i
				break
			}
		}
	}

	b.entries = append(b.entries, entry)
	b.haveLast = true
	b.lastKey = entry.Key
	return nil
}

// Len returns the number of entries added so far.
func (b *Builder) Len() int {
	return len(b.entries)
}

// SizeBytes returns the exact number of bytes Build would currently
// serialize, without allocating a region. Used by index.BlockBuilder to
// decide when a level is full (spec.md §4.4).
func (b *Builder) SizeBytes() int {
	total, _ := b.sizeBytes()
	return total
}

// FirstKey returns the key of the first entry added, and whether any entry
// has been added yet.
func (b *Builder) FirstKey() (Key, bool) {
	if len(b.entries) == 0 {
		return Key{}, false
	}
	return b.entries[0].Key, true
}

// sizeBytes computes the exact serialized size, per the formula in
// spec.md §4.2.1, and the absolute entry offsets used both to serialize and
// to populate the entryOffsets table.
func (b *Builder) sizeBytes() (total int, offsets []int) {
	prefixLen := b.prefixLen
	total = headerFixedSize + prefixLen + 4*len(b.entries)
	offsets = make([]int, len(b.entries))
	for i, e := range b.entries {
		offsets[i] = total
		suffixLen := len(e.Key.Bytes) - prefixLen
		total += varint.Size32(uint32(suffixLen))
		total += suffixLen
		total += varint.Size64(e.Key.SnapshotID)
		total += varint.Size32(uint32(len(e.Value)))
		total += len(e.Value)
	}
	return total, offsets
}

// Build consumes the builder, serializing all entries into one freshly
// allocated Region, and returns the resulting SBM. Build may be called only
// once; the builder must not be reused afterward.
func (b *Builder) Build() (*SBM, error) {
	prefixLen := b.prefixLen
	if len(b.entries) == 0 {
		prefixLen = 0
	}

	total, offsets := b.sizeBytes()

	alignment := b.alignment
	if alignment <= 0 {
		alignment = offheap.DefaultAlignment
	}
	region, err := b.allocator.Allocate(total, alignment)
	if err != nil {
		return nil, fmt.Errorf("sbm: allocate block: %w", err)
	}
	buf, err := region.Bytes()
	if err != nil {
		return nil, err
	}

	binary.LittleEndian.PutUint32(buf[0:4], uint32(prefixLen))
	if prefixLen > 0 {
		copy(buf[4:4+prefixLen], b.prefixSource[:prefixLen])
	}
	pos := 4 + prefixLen
	binary.LittleEndian.PutUint32(buf[pos:pos+4], uint32(len(b.entries)))
	pos += 4

	for _, off := range offsets {
		binary.LittleEndian.PutUint32(buf[pos:pos+4], uint32(off))
		pos += 4
	}

	for i, e := range b.entries {
		pos = offsets[i]
		suffix := e.Key.Bytes[prefixLen:]
		pos += varint.PutUvarint32(buf[pos:], uint32(len(suffix)))
		pos += copy(buf[pos:], suffix)
		pos += varint.PutUvarint64(buf[pos:], e.Key.SnapshotID)
		pos += varint.PutUvarint32(buf[pos:], uint32(len(e.Value)))
		pos += copy(buf[pos:], e.Value)
	}

	prefixCopy := append([]byte(nil), buf[4:4+prefixLen]...)
	return &SBM{
		region:     region,
		keyPrefix:  prefixCopy,
		entryCount: uint32(len(b.entries)),
	}, nil
}
