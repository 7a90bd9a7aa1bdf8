package index

import (
	"encoding/binary"
	"fmt"

	"github.com/coredb-io/sbtable/pkg/blockfile"
	"github.com/coredb-io/sbtable/pkg/sbm"
)

// Reader fetches Index Blocks from a random-access byte source and
// descends the tree the way spec.md §2's read data flow describes: read
// the footer to find the root, then binary-search down by StartKey until a
// leaf record is reached.
type Reader struct {
	src  *blockfile.Source
	root uint64
}

// NewReader reads the 8-byte root-offset footer from the end of src and
// returns a Reader ready to descend from it.
func NewReader(src *blockfile.Source) (*Reader, error) {
	size := src.Size()
	if size < 8 {
		return nil, fmt.Errorf("index: file too small for root offset footer: %d bytes", size)
	}
	var buf [8]byte
	if err := src.ReadAt(buf[:], size-8); err != nil {
		return nil, fmt.Errorf("index: read root offset footer: %w", err)
	}
	return &Reader{src: src, root: binary.LittleEndian.Uint64(buf[:])}, nil
}

// RootOffset returns the file offset of the root index block's length
// prefix.
func (r *Reader) RootOffset() uint64 {
	return r.root
}

// FetchBlock reads and parses the length-prefixed, enveloped block whose
// length prefix begins at offset (spec.md §4.4.3: the offset an
// IndexRecord carries always points at the length prefix, not the
// payload).
func (r *Reader) FetchBlock(offset uint64) (*Block, error) {
	var lenBuf [4]byte
	if err := r.src.ReadAt(lenBuf[:], int64(offset)); err != nil {
		return nil, fmt.Errorf("index: read block length prefix at %d: %w", offset, err)
	}
	length := binary.LittleEndian.Uint32(lenBuf[:])

	envelope := make([]byte, length)
	if err := r.src.ReadAt(envelope, int64(offset)+4); err != nil {
		return nil, fmt.Errorf("index: read block at %d: %w", offset, err)
	}

	raw, err := blockfile.DecodeEnvelope(envelope)
	if err != nil {
		return nil, fmt.Errorf("index: decode block at %d: %w", offset, err)
	}

	return NewBlockFromBytes(raw)
}

// FindLeaf descends from the root, binary-searching each Index Block's
// start keys via FloorRecord, until it reaches a record with IsLeaf set,
// and returns that record. found is false if key sorts before every entry
// in the root block.
func (r *Reader) FindLeaf(key sbm.Key) (rec Record, found bool, err error) {
	offset := r.root
	for {
		block, err := r.FetchBlock(offset)
		if err != nil {
			return Record{}, false, err
		}
		next, ok, err := block.FloorRecord(key)
		block.Release()
		if err != nil {
			return Record{}, false, err
		}
		if !ok {
			return Record{}, false, nil
		}
		if next.IsLeaf {
			return next, true, nil
		}
		offset = next.Offset
	}
}
