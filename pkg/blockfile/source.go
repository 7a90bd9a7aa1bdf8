package blockfile

import (
	"fmt"
	"os"
	"sync"
)

// Source is a random-access byte source over a finished table file,
// grounded on pkg/sstable.IOManager.
type Source struct {
	mu       sync.RWMutex
	path     string
	file     *os.File
	fileSize int64
}

// OpenSource opens path for random-access reads.
func OpenSource(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("blockfile: open: %w", err)
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("blockfile: stat: %w", err)
	}
	return &Source{path: path, file: f, fileSize: stat.Size()}, nil
}

// Size returns the total file size in bytes.
func (s *Source) Size() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fileSize
}

// ReadAt reads len(buf) bytes starting at offset.
func (s *Source) ReadAt(buf []byte, offset int64) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.file == nil {
		return fmt.Errorf("blockfile: source is closed")
	}
	n, err := s.file.ReadAt(buf, offset)
	if err != nil {
		return fmt.Errorf("blockfile: read at %d: %w", offset, err)
	}
	if n != len(buf) {
		return fmt.Errorf("blockfile: short read at %d: got %d of %d bytes", offset, n, len(buf))
	}
	return nil
}

// Close closes the underlying file handle.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}
