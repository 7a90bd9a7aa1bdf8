package sbtable

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/coredb-io/sbtable/pkg/blockfile"
	"github.com/coredb-io/sbtable/pkg/config"
	"github.com/coredb-io/sbtable/pkg/sbm"
)

func writeTable(t *testing.T, cfg *config.Config, n int) string {
	t.Helper()
	base := filepath.Join(t.TempDir(), "table")
	w, err := NewWriter(base, n, cfg)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	for i := 0; i < n; i++ {
		key := sbm.Key{Bytes: []byte(fmt.Sprintf("key-%05d", i)), SnapshotID: 1}
		value := sbm.Value(fmt.Sprintf("value-%05d", i))
		if err := w.Add(key, value); err != nil {
			t.Fatalf("Add(%d): %v", i, err)
		}
	}
	if err := w.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	return base
}

func TestWriteAndGetRoundTrip(t *testing.T) {
	cfg := config.NewDefaultConfig(config.WithMaxIndexBlockSizeBytes(256))
	base := writeTable(t, cfg, 500)

	r, err := Open(base)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	if r.NumEntries() != 500 {
		t.Fatalf("NumEntries() = %d, want 500", r.NumEntries())
	}

	for i := 0; i < 500; i++ {
		key := sbm.Key{Bytes: []byte(fmt.Sprintf("key-%05d", i)), SnapshotID: 1}
		value, err := r.Get(key)
		if err != nil {
			t.Fatalf("Get(%d): %v", i, err)
		}
		want := fmt.Sprintf("value-%05d", i)
		if string(value) != want {
			t.Fatalf("Get(%d) = %q, want %q", i, value, want)
		}
	}

	if _, err := r.Get(sbm.Key{Bytes: []byte("missing"), SnapshotID: 1}); err != ErrNotFound {
		t.Fatalf("Get(missing) = %v, want ErrNotFound", err)
	}
}

func TestFullScanVisitsEveryEntryInOrder(t *testing.T) {
	cfg := config.NewDefaultConfig(config.WithMaxIndexBlockSizeBytes(200))
	const n = 300
	base := writeTable(t, cfg, n)

	r, err := Open(base)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	it, err := r.NewIterator()
	if err != nil {
		t.Fatalf("NewIterator: %v", err)
	}
	defer it.Close()

	count := 0
	for it.Next() {
		e := it.Entry()
		want := fmt.Sprintf("key-%05d", count)
		if string(e.Key.Bytes) != want {
			t.Fatalf("entry %d key = %q, want %q", count, e.Key.Bytes, want)
		}
		count++
	}
	if err := it.Err(); err != nil {
		t.Fatalf("scan error: %v", err)
	}
	if count != n {
		t.Fatalf("scanned %d entries, want %d", count, n)
	}
}

func TestBloomFilterRejectsAbsentKeys(t *testing.T) {
	cfg := config.NewDefaultConfig(config.WithBloomFalsePositiveRate(0.01))
	base := writeTable(t, cfg, 200)

	r, err := Open(base)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	if r.filter == nil {
		t.Fatalf("expected a bloom filter to have been written")
	}

	rejected := 0
	for i := 0; i < 1000; i++ {
		k := []byte(fmt.Sprintf("absent-%d", i))
		if !r.filter.MayContain(k) {
			rejected++
		}
	}
	if rejected == 0 {
		t.Fatalf("bloom filter rejected none of 1000 absent keys")
	}
}

func TestWithoutBloomFilterOpensFine(t *testing.T) {
	cfg := config.NewDefaultConfig(config.WithoutBloomFilter())
	base := writeTable(t, cfg, 50)

	r, err := Open(base)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	if r.filter != nil {
		t.Fatalf("expected no bloom filter to have been written")
	}
	key := sbm.Key{Bytes: []byte("key-00010"), SnapshotID: 1}
	if _, err := r.Get(key); err != nil {
		t.Fatalf("Get: %v", err)
	}
}

func TestCompressedTableRoundTrip(t *testing.T) {
	cfg := config.NewDefaultConfig(
		config.WithMaxIndexBlockSizeBytes(256),
		config.WithCompression(blockfile.CodecSnappy),
	)
	base := writeTable(t, cfg, 200)

	r, err := Open(base)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	key := sbm.Key{Bytes: []byte("key-00099"), SnapshotID: 1}
	value, err := r.Get(key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(value) != "value-00099" {
		t.Fatalf("Get = %q, want value-00099", value)
	}
}
