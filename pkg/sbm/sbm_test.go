package sbm

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"testing"

	"github.com/coredb-io/sbtable/pkg/offheap"
)

func TestGetOutOfBounds(t *testing.T) {
	b := NewBuilder()
	if err := b.Add(Key{Bytes: []byte("a")}, nil); err != nil {
		t.Fatalf("Add: %v", err)
	}
	block, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if _, err := block.Get(1); !errors.Is(err, ErrIndexOutOfBounds) {
		t.Fatalf("Get(1) = %v, want ErrIndexOutOfBounds", err)
	}
	if _, err := block.Get(-1); !errors.Is(err, ErrIndexOutOfBounds) {
		t.Fatalf("Get(-1) = %v, want ErrIndexOutOfBounds", err)
	}
}

func TestUseAfterFree(t *testing.T) {
	b := NewBuilder()
	if err := b.Add(Key{Bytes: []byte("a")}, Value("1")); err != nil {
		t.Fatalf("Add: %v", err)
	}
	block, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := block.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, err := block.Get(0); err != offheap.ErrUseAfterFree {
		t.Fatalf("Get after release = %v, want ErrUseAfterFree", err)
	}
	if _, err := block.FloorIndex(Key{Bytes: []byte("a")}); err != offheap.ErrUseAfterFree {
		t.Fatalf("FloorIndex after release = %v, want ErrUseAfterFree", err)
	}
}

// linearFloor and linearCeiling implement the naive reference algorithms
// spec.md §8 property 4 requires binary search to match.
func linearFloor(keys []Key, q Key) int {
	best := -1
	for i, k := range keys {
		if k.Compare(q) <= 0 {
			best = i
		}
	}
	return best
}

func linearCeiling(keys []Key, q Key) int {
	for i, k := range keys {
		if k.Compare(q) >= 0 {
			return i
		}
	}
	return len(keys)
}

func TestFloorCeilingMatchesLinearScan(t *testing.T) {
	r := rand.New(rand.NewSource(42))

	for trial := 0; trial < 50; trial++ {
		n := r.Intn(40) + 1
		seen := map[string]bool{}
		var keys []Key
		for len(keys) < n {
			byteKey := fmt.Sprintf("key-%03d", r.Intn(n*3))
			snap := uint64(r.Intn(5))
			id := fmt.Sprintf("%s#%d", byteKey, snap)
			if seen[id] {
				continue
			}
			seen[id] = true
			keys = append(keys, Key{Bytes: []byte(byteKey), SnapshotID: snap})
		}
		sort.Slice(keys, func(i, j int) bool { return keys[i].Compare(keys[j]) < 0 })

		b := NewBuilder()
		for _, k := range keys {
			if err := b.Add(k, Value("v")); err != nil {
				t.Fatalf("Add: %v", err)
			}
		}
		block, err := b.Build()
		if err != nil {
			t.Fatalf("Build: %v", err)
		}

		for q := 0; q < 30; q++ {
			query := Key{Bytes: []byte(fmt.Sprintf("key-%03d", r.Intn(n*3))), SnapshotID: uint64(r.Intn(6))}

			wantFloor := linearFloor(keys, query)
			gotFloor, err := block.FloorIndex(query)
			if err != nil {
				t.Fatalf("FloorIndex: %v", err)
			}
			if gotFloor != wantFloor {
				t.Fatalf("trial %d query %+v: FloorIndex = %d, want %d (keys=%v)", trial, query, gotFloor, wantFloor, keys)
			}

			wantCeil := linearCeiling(keys, query)
			gotCeil, err := block.CeilingIndex(query)
			if err != nil {
				t.Fatalf("CeilingIndex: %v", err)
			}
			if gotCeil != wantCeil {
				t.Fatalf("trial %d query %+v: CeilingIndex = %d, want %d (keys=%v)", trial, query, gotCeil, wantCeil, keys)
			}

			diff := gotCeil - gotFloor
			if diff != 0 && diff != 1 {
				t.Fatalf("trial %d query %+v: ceiling-floor = %d, want 0 or 1", trial, query, diff)
			}
		}
		block.Release()
	}
}

func TestAscendingDescendingFrom(t *testing.T) {
	b := NewBuilder()
	data := []string{"a", "b", "c", "d"}
	for _, k := range data {
		if err := b.Add(Key{Bytes: []byte(k)}, Value(k)); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	block, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	it, err := block.AscendingFrom([]byte("b"))
	if err != nil {
		t.Fatalf("AscendingFrom: %v", err)
	}
	var got []string
	for it.Next() {
		got = append(got, string(it.Entry().Key.Bytes))
	}
	if fmt.Sprint(got) != fmt.Sprint([]string{"b", "c", "d"}) {
		t.Fatalf("AscendingFrom(b) = %v", got)
	}

	dit, err := block.DescendingFrom([]byte("c"))
	if err != nil {
		t.Fatalf("DescendingFrom: %v", err)
	}
	got = nil
	for dit.Next() {
		got = append(got, string(dit.Entry().Key.Bytes))
	}
	if fmt.Sprint(got) != fmt.Sprint([]string{"c", "b", "a"}) {
		t.Fatalf("DescendingFrom(c) = %v", got)
	}
}
