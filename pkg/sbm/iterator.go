package sbm

// Iterator is a finite, non-restartable, pull-based cursor over an SBM's
// entries. It does not support removal (spec.md §9).
type Iterator struct {
	sbm       *SBM
	index     int
	step      int
	limitLow  int // inclusive
	limitHigh int // inclusive
	cur       Entry
	err       error
	started   bool
}

// Next advances the iterator and reports whether a new entry is available.
// Callers must check Err after Next returns false.
func (it *Iterator) Next() bool {
	if it.err != nil {
		return false
	}
	if !it.started {
		it.started = true
	} else {
		it.index += it.step
	}
	if it.index < it.limitLow || it.index > it.limitHigh {
		return false
	}
	entry, err := it.sbm.Get(it.index)
	if err != nil {
		it.err = err
		return false
	}
	it.cur = entry
	return true
}

// Entry returns the entry the iterator is currently positioned at.
func (it *Iterator) Entry() Entry {
	return it.cur
}

// Err returns the first error encountered during iteration, if any.
func (it *Iterator) Err() error {
	return it.err
}

// Ascending returns an iterator over all entries in ascending order.
func (s *SBM) Ascending() *Iterator {
	return &Iterator{sbm: s, index: 0, step: 1, limitLow: 0, limitHigh: int(s.entryCount) - 1}
}

// AscendingFrom returns an ascending iterator starting at the first entry
// whose byte key is >= fromKey, including the lowest-snapshot version
// of that byte key (spec.md §4.2.2: seeks with SnapshotID reset to 0).
func (s *SBM) AscendingFrom(fromKey []byte) (*Iterator, error) {
	start, err := s.CeilingIndex(Key{Bytes: fromKey, SnapshotID: 0})
	if err != nil {
		return nil, err
	}
	return &Iterator{sbm: s, index: start, step: 1, limitLow: 0, limitHigh: int(s.entryCount) - 1}, nil
}

// Descending returns an iterator over all entries in descending order.
func (s *SBM) Descending() *Iterator {
	return &Iterator{sbm: s, index: int(s.entryCount) - 1, step: -1, limitLow: 0, limitHigh: int(s.entryCount) - 1}
}

// DescendingFrom returns a descending iterator starting at the last entry
// whose byte key is <= fromKey, including the highest-snapshot
// version of that byte key (spec.md §4.2.2: seeks with SnapshotID set to
// MaxSnapshotID).
func (s *SBM) DescendingFrom(fromKey []byte) (*Iterator, error) {
	start, err := s.FloorIndex(Key{Bytes: fromKey, SnapshotID: MaxSnapshotID})
	if err != nil {
		return nil, err
	}
	return &Iterator{sbm: s, index: start, step: -1, limitLow: 0, limitHigh: int(s.entryCount) - 1}, nil
}
