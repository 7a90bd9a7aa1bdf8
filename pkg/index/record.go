// Package index implements the Index Record, Index Block, and hierarchical
// Index Writer described in spec.md §4.3-4.4: a balanced, pointer-linked
// tree of index blocks over a sequence of data blocks, written to an
// append-only file and finalized with a root-offset footer.
package index

import (
	"encoding/binary"
	"fmt"

	"github.com/coredb-io/sbtable/pkg/sbm"
)

// recordValueSize is the fixed size of an encoded Record's value payload:
// 8 bytes for the child offset plus 1 byte for the isLeaf flag.
const recordValueSize = 9

// Record names a child block: the first (lowest) key it contains, the file
// offset of its length prefix, and whether the child is a leaf data block or
// another index block.
type Record struct {
	StartKey sbm.Key
	Offset   uint64
	IsLeaf   bool
}

// encodeValue packs Offset and IsLeaf into the 9-byte value payload stored
// alongside StartKey in the backing Sorted Byte Map.
func encodeValue(offset uint64, isLeaf bool) []byte {
	buf := make([]byte, recordValueSize)
	binary.LittleEndian.PutUint64(buf[:8], offset)
	if isLeaf {
		buf[8] = 1
	}
	return buf
}

// decodeValue is the inverse of encodeValue.
func decodeValue(buf []byte) (offset uint64, isLeaf bool, err error) {
	if len(buf) != recordValueSize {
		return 0, false, fmt.Errorf("index: malformed record value: %d bytes, want %d", len(buf), recordValueSize)
	}
	return binary.LittleEndian.Uint64(buf[:8]), buf[8] != 0, nil
}

// recordFromEntry reconstructs a Record from an sbm.Entry read out of an
// index block.
func recordFromEntry(e sbm.Entry) (Record, error) {
	offset, isLeaf, err := decodeValue(e.Value)
	if err != nil {
		return Record{}, err
	}
	return Record{StartKey: e.Key, Offset: offset, IsLeaf: isLeaf}, nil
}
