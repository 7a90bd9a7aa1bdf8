// Package blockfile provides the append-only file sink and page-source
// abstractions the table format treats as host-provided collaborators
// (spec.md §6), plus a self-describing block envelope (compression codec,
// length, checksum) layered on top so that data blocks and index blocks can
// be compressed and integrity-checked without changing the literal byte
// layout sbm.Builder produces internally. Grounded on
// pkg/sstable.FileManager/IOManager's temp-file-then-rename write path and
// ReadAt-based random access read path.
package blockfile

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Sink is the append-only byte sink required from the host (spec.md §6).
// Every Append* method returns the file offset at which the write began.
// Finalize commits the sink's contents to its final path; Close alone
// leaves them at a temporary location.
type Sink interface {
	AppendU32(v uint32) (uint64, error)
	AppendU64(v uint64) (uint64, error)
	Append(data []byte) (uint64, error)
	Close() error
	Finalize() error
}

// FileSink implements Sink over a temporary file that is atomically renamed
// into place on Finalize, matching pkg/sstable.FileManager's write path.
type FileSink struct {
	mu      sync.Mutex
	path    string
	tmpPath string
	file    *os.File
	offset  uint64
}

// NewFileSink creates the temporary file backing a new table file at path.
func NewFileSink(path string) (*FileSink, error) {
	dir := filepath.Dir(path)
	tmpPath := filepath.Join(dir, fmt.Sprintf(".%s.tmp", filepath.Base(path)))

	f, err := os.Create(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("blockfile: create temp file: %w", err)
	}
	return &FileSink{path: path, tmpPath: tmpPath, file: f}, nil
}

// AppendU32 writes v as 4 little-endian bytes and returns the pre-write
// file offset.
func (s *FileSink) AppendU32(v uint32) (uint64, error) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	return s.Append(buf[:])
}

// AppendU64 writes v as 8 little-endian bytes and returns the pre-write
// file offset.
func (s *FileSink) AppendU64(v uint64) (uint64, error) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	return s.Append(buf[:])
}

// Append writes data and returns the pre-write file offset.
func (s *FileSink) Append(data []byte) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return 0, fmt.Errorf("blockfile: sink is closed")
	}
	off := s.offset
	n, err := s.file.Write(data)
	if err != nil {
		return 0, fmt.Errorf("blockfile: write: %w", err)
	}
	if n != len(data) {
		return 0, fmt.Errorf("blockfile: short write: %d of %d bytes", n, len(data))
	}
	s.offset += uint64(n)
	return off, nil
}

// Sync flushes the file to stable storage.
func (s *FileSink) Sync() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	return s.file.Sync()
}

// Close closes the underlying file handle without finalizing the rename.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

// Finalize syncs, closes, and renames the temporary file into place. It
// must be called exactly once, mirroring FileManager.FinalizeFile.
func (s *FileSink) Finalize() error {
	if err := s.Sync(); err != nil {
		return fmt.Errorf("blockfile: sync: %w", err)
	}
	if err := s.Close(); err != nil {
		return fmt.Errorf("blockfile: close: %w", err)
	}
	if err := os.Rename(s.tmpPath, s.path); err != nil {
		return fmt.Errorf("blockfile: rename temp file: %w", err)
	}
	return nil
}

// Abort discards the temporary file, leaving no trace of an aborted write.
func (s *FileSink) Abort() error {
	_ = s.Close()
	return os.Remove(s.tmpPath)
}
