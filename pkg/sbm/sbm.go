package sbm

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/coredb-io/sbtable/pkg/offheap"
	"github.com/coredb-io/sbtable/pkg/varint"
)

// ErrIndexOutOfBounds is returned by Get for an index outside [0, EntryCount).
var ErrIndexOutOfBounds = errors.New("sbm: index out of bounds")

// SBM is an immutable, binary-searchable sorted block of versioned entries,
// backed by a single offheap.Region. It is safe for concurrent reads once
// constructed (spec.md §5); there is no interior mutability.
type SBM struct {
	region     *offheap.Region
	keyPrefix  []byte
	entryCount uint32
}

// NewSBM constructs an SBM view over region, which must already contain a
// fully serialized block in the layout of spec.md §3. Ownership of region
// passes to the returned SBM; callers should not release it directly.
func NewSBM(region *offheap.Region) (*SBM, error) {
	buf, err := region.Bytes()
	if err != nil {
		return nil, err
	}
	if len(buf) < headerFixedSize {
		return nil, fmt.Errorf("sbm: block too small: %d bytes", len(buf))
	}
	prefixLen := binary.LittleEndian.Uint32(buf[0:4])
	if int(prefixLen) > len(buf)-headerFixedSize {
		return nil, fmt.Errorf("sbm: corrupt key prefix length %d", prefixLen)
	}
	prefix := append([]byte(nil), buf[4:4+prefixLen]...)
	countPos := 4 + int(prefixLen)
	if countPos+4 > len(buf) {
		return nil, fmt.Errorf("sbm: block truncated before entry count")
	}
	entryCount := binary.LittleEndian.Uint32(buf[countPos : countPos+4])

	return &SBM{region: region, keyPrefix: prefix, entryCount: entryCount}, nil
}

// EntryCount returns the number of entries in the block.
func (s *SBM) EntryCount() int {
	return int(s.entryCount)
}

// RawBytes returns the block's serialized byte representation, for callers
// (such as an append-only file sink) that need to write the block verbatim.
func (s *SBM) RawBytes() ([]byte, error) {
	return s.region.Bytes()
}

// KeyPrefix returns the block's shared key prefix.
func (s *SBM) KeyPrefix() []byte {
	return s.keyPrefix
}

// Release frees the block's underlying memory region. Any subsequent read
// operation fails with offheap.ErrUseAfterFree.
func (s *SBM) Release() error {
	return s.region.Release()
}

// entryOffset returns the absolute byte offset (from block start) of entry
// i's first varint, as recorded in the entryOffsets table.
func (s *SBM) entryOffset(buf []byte, i int) uint32 {
	prefixLen := len(s.keyPrefix)
	pos := headerFixedSize + prefixLen + 4*i
	return binary.LittleEndian.Uint32(buf[pos : pos+4])
}

// Get reconstructs and returns the entry at index i.
func (s *SBM) Get(i int) (Entry, error) {
	buf, err := s.region.Bytes()
	if err != nil {
		return Entry{}, err
	}
	if i < 0 || uint32(i) >= s.entryCount {
		return Entry{}, fmt.Errorf("%w: index %d, count %d", ErrIndexOutOfBounds, i, s.entryCount)
	}

	off := s.entryOffset(buf, i)
	cursor := buf[off:]

	suffixLen, n, err := varint.Uvarint32(cursor)
	if err != nil {
		return Entry{}, fmt.Errorf("sbm: decode suffix key size: %w", err)
	}
	cursor = cursor[n:]

	key := make([]byte, len(s.keyPrefix)+int(suffixLen))
	copy(key, s.keyPrefix)
	copy(key[len(s.keyPrefix):], cursor[:suffixLen])
	cursor = cursor[suffixLen:]

	snapshotID, n, err := varint.Uvarint64(cursor)
	if err != nil {
		return Entry{}, fmt.Errorf("sbm: decode snapshot id: %w", err)
	}
	cursor = cursor[n:]

	valueLen, n, err := varint.Uvarint32(cursor)
	if err != nil {
		return Entry{}, fmt.Errorf("sbm: decode value size: %w", err)
	}
	cursor = cursor[n:]

	value := make([]byte, valueLen)
	copy(value, cursor[:valueLen])

	return Entry{Key: Key{Bytes: key, SnapshotID: snapshotID}, Value: value}, nil
}

// compareAt implements the comparator of spec.md §4.2.3: prefix bytes first,
// then the stored suffix against the query's remaining bytes, then length,
// then snapshot id. It reads directly from the packed region without
// materializing an Entry.
func (s *SBM) compareAt(buf []byte, index int, query Key) (int, error) {
	prefix := s.keyPrefix
	queryBytes := query.Bytes
	compareCount := len(prefix)
	if len(queryBytes) < compareCount {
		compareCount = len(queryBytes)
	}
	for i := 0; i < compareCount; i++ {
		if prefix[i] != queryBytes[i] {
			if prefix[i] < queryBytes[i] {
				return -1, nil
			}
			return 1, nil
		}
	}
	if len(queryBytes) < len(prefix) {
		// The query is a proper prefix of the shared prefix, so every
		// stored key is longer and sorts after it.
		return 1, nil
	}
	queryRemaining := queryBytes[compareCount:]

	off := s.entryOffset(buf, index)
	cursor := buf[off:]
	suffixLen, n, err := varint.Uvarint32(cursor)
	if err != nil {
		return 0, fmt.Errorf("sbm: decode suffix key size: %w", err)
	}
	cursor = cursor[n:]
	storedSuffix := cursor[:suffixLen]
	cursor = cursor[suffixLen:]

	compareCount = len(storedSuffix)
	if len(queryRemaining) < compareCount {
		compareCount = len(queryRemaining)
	}
	for i := 0; i < compareCount; i++ {
		if storedSuffix[i] != queryRemaining[i] {
			if storedSuffix[i] < queryRemaining[i] {
				return -1, nil
			}
			return 1, nil
		}
	}

	if diff := len(storedSuffix) - len(queryRemaining); diff != 0 {
		if diff < 0 {
			return -1, nil
		}
		return 1, nil
	}

	snapshotID, _, err := varint.Uvarint64(cursor)
	if err != nil {
		return 0, fmt.Errorf("sbm: decode snapshot id: %w", err)
	}
	switch {
	case snapshotID < query.SnapshotID:
		return -1, nil
	case snapshotID > query.SnapshotID:
		return 1, nil
	default:
		return 0, nil
	}
}

// FloorIndex returns the largest index i with entry[i].Key <= key, or -1 if
// no such entry exists.
func (s *SBM) FloorIndex(key Key) (int, error) {
	buf, err := s.region.Bytes()
	if err != nil {
		return 0, err
	}
	low, high := 0, int(s.entryCount)-1
	for low <= high {
		mid := int(uint(low+high) >> 1)
		cmp, err := s.compareAt(buf, mid, key)
		if err != nil {
			return 0, err
		}
		switch {
		case cmp < 0:
			low = mid + 1
		case cmp > 0:
			high = mid - 1
		default:
			return mid, nil
		}
	}
	return low - 1, nil
}

// CeilingIndex returns the smallest index i with entry[i].Key >= key, or
// EntryCount() if no such entry exists.
func (s *SBM) CeilingIndex(key Key) (int, error) {
	buf, err := s.region.Bytes()
	if err != nil {
		return 0, err
	}
	low, high := 0, int(s.entryCount)-1
	for low <= high {
		mid := int(uint(low+high) >> 1)
		cmp, err := s.compareAt(buf, mid, key)
		if err != nil {
			return 0, err
		}
		switch {
		case cmp < 0:
			low = mid + 1
		case cmp > 0:
			high = mid - 1
		default:
			return mid, nil
		}
	}
	return low, nil
}
