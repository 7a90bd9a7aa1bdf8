package sbtable

import (
	"fmt"

	"github.com/coredb-io/sbtable/pkg/sbm"
)

// Iterator scans every entry across every leaf block in ascending Key
// order, chaining each leaf's own sbm.Iterator behind an in-order walk of
// the index tree's leaf records.
type Iterator struct {
	r           *Reader
	leafOffsets []uint64
	nextLeaf    int
	curLeaf     *sbm.SBM
	cur         *sbm.Iterator
	err         error
}

// NewIterator returns an ascending iterator over the whole table. The
// index tree is walked once up front to collect leaf offsets in order;
// leaf blocks themselves are still fetched lazily.
func (r *Reader) NewIterator() (*Iterator, error) {
	offsets, err := r.collectLeafOffsets()
	if err != nil {
		return nil, err
	}
	return &Iterator{r: r, leafOffsets: offsets}, nil
}

func (r *Reader) collectLeafOffsets() ([]uint64, error) {
	var offsets []uint64
	var walk func(offset uint64) error
	walk = func(offset uint64) error {
		block, err := r.idx.FetchBlock(offset)
		if err != nil {
			return err
		}
		defer block.Release()

		n := block.EntryCount()
		for i := 0; i < n; i++ {
			rec, err := block.Record(i)
			if err != nil {
				return err
			}
			if rec.IsLeaf {
				offsets = append(offsets, rec.Offset)
			} else if err := walk(rec.Offset); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(r.idx.RootOffset()); err != nil {
		return nil, err
	}
	return offsets, nil
}

// Next advances to the next entry, returning false at end of scan or on
// error (check Err to distinguish the two).
func (it *Iterator) Next() bool {
	if it.err != nil {
		return false
	}
	for {
		if it.cur != nil {
			if it.cur.Next() {
				return true
			}
			if err := it.cur.Err(); err != nil {
				it.err = err
				return false
			}
			if it.curLeaf != nil {
				it.curLeaf.Release()
				it.curLeaf = nil
			}
			it.cur = nil
		}

		if it.nextLeaf >= len(it.leafOffsets) {
			return false
		}
		leaf, err := it.r.fetchLeaf(it.leafOffsets[it.nextLeaf])
		it.nextLeaf++
		if err != nil {
			it.err = fmt.Errorf("sbtable: fetch leaf during scan: %w", err)
			return false
		}
		it.curLeaf = leaf
		it.cur = leaf.Ascending()
	}
}

// Entry returns the entry Next just advanced to.
func (it *Iterator) Entry() sbm.Entry {
	return it.cur.Entry()
}

// Err returns the first error encountered during the scan, if any.
func (it *Iterator) Err() error {
	return it.err
}

// Close releases any leaf block the iterator is still holding open. Safe
// to call after Next has returned false.
func (it *Iterator) Close() {
	if it.curLeaf != nil {
		it.curLeaf.Release()
		it.curLeaf = nil
	}
	it.cur = nil
}
