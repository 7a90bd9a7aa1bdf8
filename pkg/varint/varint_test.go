package varint

import (
	"math/rand"
	"testing"
)

func TestSize32(t *testing.T) {
	cases := []struct {
		v    uint32
		size int
	}{
		{0, 1},
		{127, 1},
		{128, 2},
		{16383, 2},
		{16384, 3},
		{0x0FFFFFFF, 4},
		{0xFFFFFFFF, 5},
	}
	for _, c := range cases {
		if got := Size32(c.v); got != c.size {
			t.Errorf("Size32(%d) = %d, want %d", c.v, got, c.size)
		}
	}
}

func TestEncodeBoundaryBytes(t *testing.T) {
	cases := []struct {
		v    uint32
		want []byte
	}{
		{127, []byte{0x7f}},
		{128, []byte{0x80, 0x01}},
		{16384, []byte{0x80, 0x80, 0x01}},
		{0xFFFFFFFF, []byte{0xff, 0xff, 0xff, 0xff, 0x0f}},
	}
	for _, c := range cases {
		buf := make([]byte, Size32(c.v))
		n := PutUvarint32(buf, c.v)
		if n != len(c.want) {
			t.Fatalf("PutUvarint32(%d) wrote %d bytes, want %d", c.v, n, len(c.want))
		}
		for i := range c.want {
			if buf[i] != c.want[i] {
				t.Fatalf("PutUvarint32(%d) = % x, want % x", c.v, buf, c.want)
			}
		}
	}
}

func TestRoundTrip32(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 10000; i++ {
		v := r.Uint32()
		buf := AppendUvarint32(nil, v)
		if len(buf) != Size32(v) {
			t.Fatalf("encoded length %d != Size32 %d for v=%d", len(buf), Size32(v), v)
		}
		got, n, err := Uvarint32(buf)
		if err != nil {
			t.Fatalf("Uvarint32(%v) error: %v", buf, err)
		}
		if got != v {
			t.Fatalf("Uvarint32 round trip: got %d, want %d", got, v)
		}
		if n != len(buf) {
			t.Fatalf("Uvarint32 consumed %d bytes, want %d", n, len(buf))
		}
	}
}

func TestRoundTrip64(t *testing.T) {
	r := rand.New(rand.NewSource(2))
	for i := 0; i < 10000; i++ {
		v := r.Uint64()
		buf := AppendUvarint64(nil, v)
		if len(buf) != Size64(v) {
			t.Fatalf("encoded length %d != Size64 %d for v=%d", len(buf), Size64(v), v)
		}
		got, n, err := Uvarint64(buf)
		if err != nil {
			t.Fatalf("Uvarint64(%v) error: %v", buf, err)
		}
		if got != v {
			t.Fatalf("Uvarint64 round trip: got %d, want %d", got, v)
		}
		if n != len(buf) {
			t.Fatalf("Uvarint64 consumed %d bytes, want %d", n, len(buf))
		}
	}
}

func TestUvarint32TruncatedIsMalformed(t *testing.T) {
	buf := []byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80}
	if _, _, err := Uvarint32(buf); err != ErrMalformedVarint {
		t.Fatalf("expected ErrMalformedVarint, got %v", err)
	}
	if _, _, err := Uvarint64(buf); err != ErrMalformedVarint {
		t.Fatalf("expected ErrMalformedVarint, got %v", err)
	}
}

func TestUvarint32Tolerates64BitEncoding(t *testing.T) {
	// A value encoded as a full ten-byte 64-bit varint still decodes to its
	// low 32 bits.
	buf := AppendUvarint64(nil, uint64(1)<<63|42)
	got, n, err := Uvarint32(buf)
	if err != nil {
		t.Fatalf("Uvarint32 error: %v", err)
	}
	if got != 42 {
		t.Fatalf("Uvarint32 = %d, want 42", got)
	}
	if n != len(buf) {
		t.Fatalf("Uvarint32 consumed %d bytes, want %d", n, len(buf))
	}
}
