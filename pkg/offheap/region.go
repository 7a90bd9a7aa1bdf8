// Package offheap models the memory-region lifecycle the table format's
// original implementation manages by hand: a builder allocates one region
// per block, hands it to a reader, and exactly one owner releases it. Go's
// garbage collector makes manual deallocation unnecessary, but the table
// format's contract still requires fail-fast behavior on double release and
// on any read after release, so that lifecycle bug class is caught the same
// way regardless of host language. Region wraps a plain byte slice rather
// than real off-heap memory; Allocator's alignment argument records the
// original page-alignment intent (spec.md §9) without requiring an
// unsafe-pointer allocator to satisfy it.
package offheap

import (
	"errors"
	"sync/atomic"
)

// ErrUseAfterFree is returned by any Region operation performed after Release.
var ErrUseAfterFree = errors.New("offheap: use after free")

// ErrDoubleFree is returned by Release when the region was already released.
var ErrDoubleFree = errors.New("offheap: double free")

// Region is a single-owner allocation. It is safe to share for reads across
// goroutines once populated, per the read-only shared-immutable model of
// spec.md §5, but Release must be called exactly once.
type Region struct {
	data []byte
	free int32
}

// newRegion wraps data as a live Region of the given size.
func newRegion(data []byte) *Region {
	return &Region{data: data}
}

// Bytes returns the region's backing slice. It fails with ErrUseAfterFree if
// the region has been released.
func (r *Region) Bytes() ([]byte, error) {
	if r.IsFree() {
		return nil, ErrUseAfterFree
	}
	return r.data, nil
}

// Len returns the size of the region in bytes, regardless of liveness.
func (r *Region) Len() int {
	return len(r.data)
}

// IsFree reports whether Release has already been called.
func (r *Region) IsFree() bool {
	return atomic.LoadInt32(&r.free) != 0
}

// Release deallocates the region. It is idempotent-checked: a second call
// returns ErrDoubleFree rather than silently succeeding.
func (r *Region) Release() error {
	if !atomic.CompareAndSwapInt32(&r.free, 0, 1) {
		return ErrDoubleFree
	}
	r.data = nil
	return nil
}

// Allocator produces zero-initialized Regions. The alignment argument is
// advisory bookkeeping only (see the package doc comment); DefaultAllocator
// does not attempt to control the Go runtime's slice placement.
type Allocator interface {
	Allocate(size, alignment int) (*Region, error)
}

// DefaultAllocator is the host-provided allocator used unless a caller
// injects a different one (spec.md §6).
type DefaultAllocator struct{}

// Allocate returns a new zero-initialized Region of the requested size.
func (DefaultAllocator) Allocate(size, alignment int) (*Region, error) {
	if size < 0 {
		return nil, errors.New("offheap: negative size")
	}
	if alignment <= 0 {
		alignment = DefaultAlignment
	}
	return newRegion(make([]byte, size)), nil
}

// DefaultAlignment is the alignment used when a caller does not specify one,
// replacing the queried process page size from the original implementation
// (spec.md §9).
const DefaultAlignment = 4096

// NewRegionFromBytes wraps an already-serialized buffer as a live Region
// without going through an Allocator. Used by readers that are handed bytes
// they did not allocate themselves (e.g. sbm.NewSBM from a file read).
func NewRegionFromBytes(data []byte) *Region {
	return newRegion(data)
}
