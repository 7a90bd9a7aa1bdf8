package blockfile

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestFileSinkWriteAndFinalize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "table.sbt")

	sink, err := NewFileSink(path)
	if err != nil {
		t.Fatalf("NewFileSink: %v", err)
	}

	off1, err := sink.AppendU32(42)
	if err != nil {
		t.Fatalf("AppendU32: %v", err)
	}
	if off1 != 0 {
		t.Fatalf("first append offset = %d, want 0", off1)
	}

	off2, err := sink.Append([]byte("hello"))
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if off2 != 4 {
		t.Fatalf("second append offset = %d, want 4", off2)
	}

	off3, err := sink.AppendU64(7)
	if err != nil {
		t.Fatalf("AppendU64: %v", err)
	}
	if off3 != 9 {
		t.Fatalf("third append offset = %d, want 9", off3)
	}

	if err := sink.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	want := []byte{42, 0, 0, 0}
	want = append(want, []byte("hello")...)
	want = append(want, 7, 0, 0, 0, 0, 0, 0, 0)
	if !bytes.Equal(data, want) {
		t.Fatalf("file contents = % x, want % x", data, want)
	}
}

func TestFileSinkAbortRemovesTempFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "table.sbt")

	sink, err := NewFileSink(path)
	if err != nil {
		t.Fatalf("NewFileSink: %v", err)
	}
	if _, err := sink.Append([]byte("data")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := sink.Abort(); err != nil {
		t.Fatalf("Abort: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("final path should not exist after Abort")
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("temp directory not cleaned up: %v", entries)
	}
}

func TestSourceReadAt(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "table.sbt")
	if err := os.WriteFile(path, []byte("0123456789"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	src, err := OpenSource(path)
	if err != nil {
		t.Fatalf("OpenSource: %v", err)
	}
	defer src.Close()

	if src.Size() != 10 {
		t.Fatalf("Size() = %d, want 10", src.Size())
	}

	buf := make([]byte, 4)
	if err := src.ReadAt(buf, 3); err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if string(buf) != "3456" {
		t.Fatalf("ReadAt = %q, want 3456", buf)
	}
}
