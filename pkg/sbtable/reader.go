package sbtable

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"github.com/coredb-io/sbtable/pkg/blockfile"
	"github.com/coredb-io/sbtable/pkg/bloom"
	"github.com/coredb-io/sbtable/pkg/index"
	"github.com/coredb-io/sbtable/pkg/offheap"
	"github.com/coredb-io/sbtable/pkg/sbm"
)

// ErrNotFound is returned by Get when key is absent from the table.
var ErrNotFound = errors.New("sbtable: key not found")

// Reader opens a table's data/index/filter file triad for point lookups
// and full scans.
type Reader struct {
	data   *blockfile.Source
	idxSrc *blockfile.Source
	footer *Footer
	idx    *index.Reader
	filter *bloom.Filter
}

// Open opens the table rooted at basePath. The filter file is optional;
// its absence (or the table having been written without one) just skips
// the negative-lookup fast path.
func Open(basePath string) (*Reader, error) {
	data, err := blockfile.OpenSource(basePath + dataSuffix)
	if err != nil {
		return nil, fmt.Errorf("sbtable: open data file: %w", err)
	}

	size := data.Size()
	if size < footerSize {
		data.Close()
		return nil, fmt.Errorf("sbtable: data file too small: %d bytes", size)
	}
	footerBuf := make([]byte, footerSize)
	if err := data.ReadAt(footerBuf, size-footerSize); err != nil {
		data.Close()
		return nil, fmt.Errorf("sbtable: read footer: %w", err)
	}
	footer, err := decodeFooter(footerBuf)
	if err != nil {
		data.Close()
		return nil, err
	}

	idxSrc, err := blockfile.OpenSource(basePath + indexSuffix)
	if err != nil {
		data.Close()
		return nil, fmt.Errorf("sbtable: open index file: %w", err)
	}
	idxReader, err := index.NewReader(idxSrc)
	if err != nil {
		data.Close()
		idxSrc.Close()
		return nil, fmt.Errorf("sbtable: read index footer: %w", err)
	}

	var filter *bloom.Filter
	if blob, err := os.ReadFile(basePath + filterSuffix); err == nil {
		filter, err = bloom.Decode(blob)
		if err != nil {
			data.Close()
			idxSrc.Close()
			return nil, fmt.Errorf("sbtable: decode filter: %w", err)
		}
	} else if !os.IsNotExist(err) {
		data.Close()
		idxSrc.Close()
		return nil, fmt.Errorf("sbtable: read filter file: %w", err)
	}

	return &Reader{data: data, idxSrc: idxSrc, footer: footer, idx: idxReader, filter: filter}, nil
}

// NumEntries returns the entry count recorded in the table's footer.
func (r *Reader) NumEntries() uint32 { return r.footer.NumEntries }

// Close releases the reader's open file handles.
func (r *Reader) Close() error {
	err1 := r.data.Close()
	err2 := r.idxSrc.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

// fetchLeaf reads and decodes the length-prefixed, enveloped leaf SBM at
// offset in the data file, using the same wire convention index.Reader
// uses for index blocks.
func (r *Reader) fetchLeaf(offset uint64) (*sbm.SBM, error) {
	var lenBuf [4]byte
	if err := r.data.ReadAt(lenBuf[:], int64(offset)); err != nil {
		return nil, fmt.Errorf("sbtable: read leaf length prefix at %d: %w", offset, err)
	}
	length := binary.LittleEndian.Uint32(lenBuf[:])

	envelope := make([]byte, length)
	if err := r.data.ReadAt(envelope, int64(offset)+4); err != nil {
		return nil, fmt.Errorf("sbtable: read leaf block at %d: %w", offset, err)
	}
	raw, err := blockfile.DecodeEnvelope(envelope)
	if err != nil {
		return nil, fmt.Errorf("sbtable: decode leaf block at %d: %w", offset, err)
	}
	return sbm.NewSBM(offheap.NewRegionFromBytes(raw))
}

// Get looks up key, first consulting the bloom filter (if present) to
// short-circuit a definite miss, then descending the index tree to the
// candidate leaf block and binary-searching it directly.
func (r *Reader) Get(key sbm.Key) (sbm.Value, error) {
	if r.filter != nil && !r.filter.MayContain(key.Bytes) {
		return nil, ErrNotFound
	}

	leafRec, found, err := r.idx.FindLeaf(key)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}

	leaf, err := r.fetchLeaf(leafRec.Offset)
	if err != nil {
		return nil, err
	}
	defer leaf.Release()

	idx, err := leaf.FloorIndex(key)
	if err != nil {
		return nil, err
	}
	if idx < 0 {
		return nil, ErrNotFound
	}
	entry, err := leaf.Get(idx)
	if err != nil {
		return nil, err
	}
	if !entry.Key.Equal(key) {
		return nil, ErrNotFound
	}
	return entry.Value, nil
}
