// Package sbtable composes the lower-level block, index and filter
// primitives into a complete on-disk table, the way HeftyDB's per-table
// triad of data/index/filter files does: a Writer streams sorted entries in
// and produces three files sharing a base path, and a Reader opens them
// back up for point lookups and full scans.
package sbtable

import (
	"fmt"

	"github.com/coredb-io/sbtable/pkg/blockfile"
	"github.com/coredb-io/sbtable/pkg/bloom"
	"github.com/coredb-io/sbtable/pkg/config"
	"github.com/coredb-io/sbtable/pkg/index"
	"github.com/coredb-io/sbtable/pkg/offheap"
	"github.com/coredb-io/sbtable/pkg/sbm"
	"github.com/coredb-io/sbtable/pkg/tablelog"
)

// dataSuffix, indexSuffix and filterSuffix name the three files a table is
// split across, mirroring Paths.tablePath/indexPath/filterPath.
const (
	dataSuffix   = ".data"
	indexSuffix  = ".index"
	filterSuffix = ".filter"
)

// Writer builds a table file triad from entries presented in strictly
// ascending Key order, the same contract sbm.Builder.Add enforces on a
// single block.
type Writer struct {
	cfg      *config.Config
	logger   tablelog.Logger
	basePath string

	dataSink *blockfile.FileSink
	idxSink  *blockfile.FileSink
	idxWr    *index.Writer

	bloomBuilder *bloom.Builder

	leaf      *sbm.Builder
	leafFirst sbm.Key
	haveLeaf  bool

	numEntries uint32
	closed     bool
}

// NewWriter creates the data and index files at basePath+{.data,.index}
// and returns a Writer ready to accept entries; the .filter file is written
// by Finish when the bloom filter is enabled. approxEntries sizes the bloom
// filter the way TableBloomFilterWriter.open's approxRecordCount does.
func NewWriter(basePath string, approxEntries int, cfg *config.Config, opts ...Option) (*Writer, error) {
	if cfg == nil {
		cfg = config.NewDefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	dataSink, err := blockfile.NewFileSink(basePath + dataSuffix)
	if err != nil {
		return nil, fmt.Errorf("sbtable: open data file: %w", err)
	}
	idxSink, err := blockfile.NewFileSink(basePath + indexSuffix)
	if err != nil {
		dataSink.Abort()
		return nil, fmt.Errorf("sbtable: open index file: %w", err)
	}

	w := &Writer{
		cfg:      cfg,
		logger:   tablelog.Noop{},
		basePath: basePath,
		dataSink: dataSink,
		idxSink:  idxSink,
		leaf:     sbm.NewBuilderWithAllocator(offheap.DefaultAllocator{}, cfg.Alignment),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.idxWr = index.NewWriter(idxSink,
		index.WithMaxIndexBlockSizeBytes(cfg.MaxIndexBlockSizeBytes),
		index.WithCompression(cfg.Compression),
		index.WithLogger(w.logger),
	)
	if cfg.BloomFalsePositiveRate > 0 {
		w.bloomBuilder = bloom.NewBuilder(approxEntries, cfg.BloomFalsePositiveRate)
	}
	return w, nil
}

// Option configures a Writer at construction.
type Option func(*Writer)

// WithLogger attaches a logger used for both the writer itself and the
// index writer it drives.
func WithLogger(l tablelog.Logger) Option {
	return func(w *Writer) { w.logger = l }
}

// Add appends key/value in ascending Key order, the same ordering
// contract sbm.Builder.Add enforces within a single block.
func (w *Writer) Add(key sbm.Key, value sbm.Value) error {
	if w.closed {
		return fmt.Errorf("sbtable: writer already closed")
	}
	if !w.haveLeaf {
		w.leafFirst = key
		w.haveLeaf = true
	}
	if err := w.leaf.Add(key, value); err != nil {
		return err
	}
	if w.bloomBuilder != nil {
		w.bloomBuilder.Put(key.Bytes)
	}
	w.numEntries++

	if uint32(w.leaf.SizeBytes()) >= w.cfg.MaxIndexBlockSizeBytes {
		return w.flushLeaf()
	}
	return nil
}

// flushLeaf serializes the pending leaf SBM, envelopes and appends it to
// the data file, and records its start key in the index tree.
func (w *Writer) flushLeaf() error {
	if w.leaf.Len() == 0 {
		return nil
	}
	built, err := w.leaf.Build()
	if err != nil {
		return err
	}
	raw, err := built.RawBytes()
	if err != nil {
		built.Release()
		return err
	}
	envelope, err := blockfile.EncodeEnvelope(raw, w.cfg.Compression)
	built.Release()
	if err != nil {
		return fmt.Errorf("sbtable: envelope leaf block: %w", err)
	}

	off, err := w.dataSink.AppendU32(uint32(len(envelope)))
	if err != nil {
		return fmt.Errorf("sbtable: write leaf length prefix: %w", err)
	}
	if _, err := w.dataSink.Append(envelope); err != nil {
		return fmt.Errorf("sbtable: write leaf block: %w", err)
	}

	if err := w.idxWr.Write(index.Record{StartKey: w.leafFirst, Offset: off, IsLeaf: true}); err != nil {
		return fmt.Errorf("sbtable: promote leaf record: %w", err)
	}

	w.leaf = sbm.NewBuilderWithAllocator(offheap.DefaultAllocator{}, w.cfg.Alignment)
	w.haveLeaf = false
	return nil
}

// Finish flushes any pending leaf, closes out the index tree, writes the
// bloom filter file, and appends the table Footer to the data file.
func (w *Writer) Finish() error {
	if w.closed {
		return fmt.Errorf("sbtable: writer already closed")
	}
	w.closed = true

	if err := w.flushLeaf(); err != nil {
		w.dataSink.Abort()
		w.idxSink.Abort()
		return err
	}

	rootOffset, err := w.idxWr.Finish()
	if err != nil {
		w.dataSink.Abort()
		return fmt.Errorf("sbtable: finish index: %w", err)
	}

	var bloomOffset uint64
	var bloomSize uint32
	if w.bloomBuilder != nil {
		blob := w.bloomBuilder.Build()
		filterSink, err := blockfile.NewFileSink(w.basePath + filterSuffix)
		if err != nil {
			return fmt.Errorf("sbtable: open filter file: %w", err)
		}
		if _, err := filterSink.Append(blob); err != nil {
			filterSink.Abort()
			return fmt.Errorf("sbtable: write filter blob: %w", err)
		}
		if err := filterSink.Finalize(); err != nil {
			return fmt.Errorf("sbtable: finalize filter file: %w", err)
		}
		bloomSize = uint32(len(blob))
	}

	footer := newFooter(rootOffset, w.numEntries, bloomOffset, bloomSize)
	if _, err := w.dataSink.Append(footer.encode()); err != nil {
		return fmt.Errorf("sbtable: write footer: %w", err)
	}
	if err := w.dataSink.Finalize(); err != nil {
		return fmt.Errorf("sbtable: finalize data file: %w", err)
	}

	w.logger.Info("finished table: %d entries, index root %d", w.numEntries, rootOffset)
	return nil
}
