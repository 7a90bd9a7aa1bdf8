package index

import (
	"fmt"

	"github.com/coredb-io/sbtable/pkg/blockfile"
	"github.com/coredb-io/sbtable/pkg/tablelog"
)

// DefaultMaxIndexBlockSizeBytes is the tunable spec.md §6 names, matching
// the original implementation's MAX_INDEX_BLOCK_SIZE_BYTES.
const DefaultMaxIndexBlockSizeBytes = 65536

// ErrWriterClosed is returned by Write and Finish once Finish has already
// run.
var ErrWriterClosed = fmt.Errorf("index: writer already closed")

// Writer streams data-block index records into a balanced, pointer-linked
// tree of Index Blocks over an append-only file, implementing the cascade
// in spec.md §4.4 exactly: at most one level grows per Write call, and a
// promoted record's start key equals the flushed block's own start record.
type Writer struct {
	sink                   blockfile.Sink
	maxIndexBlockSizeBytes uint32
	codec                  blockfile.Codec
	levels                 []*BlockBuilder
	closed                 bool
	logger                 tablelog.Logger
}

// Option configures a Writer.
type Option func(*Writer)

// WithCompression selects the codec used to wrap each index block before it
// is appended to the file. Defaults to blockfile.CodecNone.
func WithCompression(codec blockfile.Codec) Option {
	return func(w *Writer) { w.codec = codec }
}

// WithLogger attaches a logger; defaults to tablelog.Noop.
func WithLogger(l tablelog.Logger) Option {
	return func(w *Writer) { w.logger = l }
}

// WithMaxIndexBlockSizeBytes overrides DefaultMaxIndexBlockSizeBytes.
func WithMaxIndexBlockSizeBytes(n uint32) Option {
	return func(w *Writer) { w.maxIndexBlockSizeBytes = n }
}

// NewWriter returns a Writer appending index blocks to sink.
func NewWriter(sink blockfile.Sink, opts ...Option) *Writer {
	w := &Writer{
		sink:                   sink,
		maxIndexBlockSizeBytes: DefaultMaxIndexBlockSizeBytes,
		codec:                  blockfile.CodecNone,
		logger:                 tablelog.Noop{},
		levels:                 []*BlockBuilder{NewBlockBuilder()},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write cascades record into the level-0 builder, promoting a meta record
// upward through as many already-full levels as necessary, and growing the
// tree by one level if every existing level was full (spec.md §4.4.1).
func (w *Writer) Write(record Record) error {
	if w.closed {
		return ErrWriterClosed
	}

	pending := &record
	for i := 0; i < len(w.levels) && pending != nil; i++ {
		level := w.levels[i]

		if level.SizeBytes() >= w.maxIndexBlockSizeBytes {
			meta, err := w.writeIndexBlock(level)
			if err != nil {
				return err
			}
			w.logger.Debug("flushed index level %d (%d records) at offset %d", i, level.Len(), meta.Offset)

			newLevel := NewBlockBuilder()
			if err := newLevel.AddRecord(*pending); err != nil {
				return err
			}
			w.levels[i] = newLevel
			pending = &meta
		} else {
			if err := level.AddRecord(*pending); err != nil {
				return err
			}
			pending = nil
		}
	}

	if pending != nil {
		newLevel := NewBlockBuilder()
		if err := newLevel.AddRecord(*pending); err != nil {
			return err
		}
		w.levels = append(w.levels, newLevel)
		w.logger.Debug("grew index tree to %d levels", len(w.levels))
	}

	return nil
}

// Finish drains every open level bottom-up, carrying a single pending
// record upward at each step (spec.md §4.4.2), and writes the resulting
// root offset as the file's 8-byte footer.
func (w *Writer) Finish() (rootOffset uint64, err error) {
	if w.closed {
		return 0, ErrWriterClosed
	}
	w.closed = true

	var pending *Record
	for i := 0; i < len(w.levels); i++ {
		level := w.levels[i]
		if pending != nil {
			if err := level.AddRecord(*pending); err != nil {
				return 0, err
			}
		}
		meta, err := w.writeIndexBlock(level)
		if err != nil {
			return 0, err
		}
		pending = &meta
	}

	root := *pending
	if _, err := w.sink.AppendU64(root.Offset); err != nil {
		return 0, fmt.Errorf("index: write root offset footer: %w", err)
	}
	w.logger.Info("finished index tree: %d levels, root offset %d", len(w.levels), root.Offset)

	if err := w.sink.Finalize(); err != nil {
		return 0, fmt.Errorf("index: finalize sink: %w", err)
	}
	return root.Offset, nil
}

// writeIndexBlock serializes builder's accumulated records, envelopes them
// per w.codec, appends the envelope to the file behind a 4-byte length
// prefix, and returns a non-leaf meta record pointing at the length prefix
// (spec.md §4.4.3).
func (w *Writer) writeIndexBlock(builder *BlockBuilder) (Record, error) {
	block, err := builder.Build()
	if err != nil {
		return Record{}, err
	}
	defer block.Release()

	raw, err := block.RawBytes()
	if err != nil {
		return Record{}, err
	}

	envelope, err := blockfile.EncodeEnvelope(raw, w.codec)
	if err != nil {
		return Record{}, fmt.Errorf("index: envelope block: %w", err)
	}

	off, err := w.sink.AppendU32(uint32(len(envelope)))
	if err != nil {
		return Record{}, fmt.Errorf("index: write block length prefix: %w", err)
	}
	if _, err := w.sink.Append(envelope); err != nil {
		return Record{}, fmt.Errorf("index: write block: %w", err)
	}

	start, ok := builder.StartRecord()
	if !ok {
		return Record{}, fmt.Errorf("index: cannot flush an empty index block")
	}

	return Record{StartKey: start.StartKey, Offset: off, IsLeaf: false}, nil
}
