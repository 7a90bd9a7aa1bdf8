package index

import (
	"fmt"

	"github.com/coredb-io/sbtable/pkg/offheap"
	"github.com/coredb-io/sbtable/pkg/sbm"
)

// BlockBuilder accumulates Records in ascending start-key order and freezes
// them into a Block. An Index Block is structurally a Sorted Byte Map whose
// value payload is a child offset and leaf flag rather than an opaque value
// (spec.md §4.3).
type BlockBuilder struct {
	builder    *sbm.Builder
	startedAt  Record
	haveStart  bool
	recordsLen int
}

// NewBlockBuilder returns an empty BlockBuilder.
func NewBlockBuilder() *BlockBuilder {
	return &BlockBuilder{builder: sbm.NewBuilder()}
}

// AddRecord appends r. Records must be added in strictly ascending
// StartKey order, the same contract sbm.Builder.Add enforces.
func (b *BlockBuilder) AddRecord(r Record) error {
	if err := b.builder.Add(r.StartKey, encodeValue(r.Offset, r.IsLeaf)); err != nil {
		return fmt.Errorf("index: add record: %w", err)
	}
	if !b.haveStart {
		b.startedAt = r
		b.haveStart = true
	}
	b.recordsLen++
	return nil
}

// SizeBytes returns the current serialized size upper bound, used by
// Writer.Write to decide when a level is full.
func (b *BlockBuilder) SizeBytes() uint32 {
	return uint32(b.builder.SizeBytes())
}

// Len reports how many records have been added.
func (b *BlockBuilder) Len() int {
	return b.recordsLen
}

// StartRecord returns the first record added to this builder, used to
// propagate the block's start key upward when it is flushed.
func (b *BlockBuilder) StartRecord() (Record, bool) {
	return b.startedAt, b.haveStart
}

// Build freezes the builder into an immutable Block.
func (b *BlockBuilder) Build() (*Block, error) {
	block, err := b.builder.Build()
	if err != nil {
		return nil, fmt.Errorf("index: build block: %w", err)
	}
	start, _ := b.StartRecord()
	return &Block{sbm: block, start: start}, nil
}

// Block is a sorted, immutable block of Records: structurally a Sorted
// Byte Map, specialized to index-record semantics.
type Block struct {
	sbm   *sbm.SBM
	start Record
}

// StartRecord returns the first (lowest start key) record in the block.
func (blk *Block) StartRecord() Record {
	return blk.start
}

// EntryCount returns the number of records in the block.
func (blk *Block) EntryCount() int {
	return blk.sbm.EntryCount()
}

// RawBytes returns the block's serialized bytes, for appending to an
// append-only file sink.
func (blk *Block) RawBytes() ([]byte, error) {
	return blk.sbm.RawBytes()
}

// Release frees the block's underlying memory region.
func (blk *Block) Release() error {
	return blk.sbm.Release()
}

// Record returns the record at index i.
func (blk *Block) Record(i int) (Record, error) {
	entry, err := blk.sbm.Get(i)
	if err != nil {
		return Record{}, err
	}
	return recordFromEntry(entry)
}

// FloorRecord returns the record with the largest start key <= key, and
// whether one exists. This is the operation a reader uses to descend the
// index tree (spec.md §2's read data flow).
func (blk *Block) FloorRecord(key sbm.Key) (Record, bool, error) {
	idx, err := blk.sbm.FloorIndex(key)
	if err != nil {
		return Record{}, false, err
	}
	if idx < 0 {
		return Record{}, false, nil
	}
	rec, err := blk.Record(idx)
	if err != nil {
		return Record{}, false, err
	}
	return rec, true, nil
}

// NewBlockFromBytes parses a Block out of previously-serialized bytes, for
// use by a reader.
func NewBlockFromBytes(data []byte) (*Block, error) {
	region := offheap.NewRegionFromBytes(data)
	s, err := sbm.NewSBM(region)
	if err != nil {
		return nil, fmt.Errorf("index: parse block: %w", err)
	}
	blk := &Block{sbm: s}
	if s.EntryCount() > 0 {
		rec, err := blk.Record(0)
		if err != nil {
			return nil, err
		}
		blk.start = rec
	}
	return blk, nil
}
