// Package varint implements the unsigned little-endian base-128 codec used
// throughout the table format for length prefixes and snapshot ids.
package varint

import "errors"

// ErrMalformedVarint is returned when a decoder consumes more bytes than the
// target width allows without encountering a terminating byte.
var ErrMalformedVarint = errors.New("varint: malformed varint")

// maxVarint32Bytes is the longest 32-bit encoding, sizing encode buffers.
// maxVarint64Bytes bounds how many bytes either decoder will consume before
// declaring the input malformed; Uvarint32 uses it too, so that it accepts
// 64-bit-sized encodings.
const (
	maxVarint32Bytes = 5
	maxVarint64Bytes = 10
)

// Size32 returns the number of bytes needed to encode v as a varint.
func Size32(v uint32) int {
	switch {
	case v < 1<<7:
		return 1
	case v < 1<<14:
		return 2
	case v < 1<<21:
		return 3
	case v < 1<<28:
		return 4
	default:
		return 5
	}
}

// Size64 returns the number of bytes needed to encode v as a varint.
func Size64(v uint64) int {
	n := 1
	for v >= 0x80 {
		v >>= 7
		n++
	}
	return n
}

// PutUvarint32 encodes v into buf, which must have at least Size32(v) bytes,
// and returns the number of bytes written.
func PutUvarint32(buf []byte, v uint32) int {
	i := 0
	for v >= 0x80 {
		buf[i] = byte(v) | 0x80
		v >>= 7
		i++
	}
	buf[i] = byte(v)
	return i + 1
}

// PutUvarint64 encodes v into buf, which must have at least Size64(v) bytes,
// and returns the number of bytes written.
func PutUvarint64(buf []byte, v uint64) int {
	i := 0
	for v >= 0x80 {
		buf[i] = byte(v) | 0x80
		v >>= 7
		i++
	}
	buf[i] = byte(v)
	return i + 1
}

// AppendUvarint32 appends the varint encoding of v to buf and returns the
// extended slice.
func AppendUvarint32(buf []byte, v uint32) []byte {
	var tmp [maxVarint32Bytes]byte
	n := PutUvarint32(tmp[:], v)
	return append(buf, tmp[:n]...)
}

// AppendUvarint64 appends the varint encoding of v to buf and returns the
// extended slice.
func AppendUvarint64(buf []byte, v uint64) []byte {
	var tmp [maxVarint64Bytes]byte
	n := PutUvarint64(tmp[:], v)
	return append(buf, tmp[:n]...)
}

// Uvarint32 decodes a varint from the start of buf, tolerating a
// 64-bit-sized encoding on the wire by consuming and discarding the upper
// bytes (this preserves compatibility with writers that encode small
// negative 32-bit values as 64-bit varints). It returns the low 32 bits of
// the decoded value, the number of bytes consumed, and an error.
func Uvarint32(buf []byte) (uint32, int, error) {
	var result uint32
	shift := uint(0)
	for i := 0; i < len(buf); i++ {
		b := buf[i]
		if shift < 32 {
			result |= uint32(b&0x7f) << shift
		}
		if b < 0x80 {
			return result, i + 1, nil
		}
		shift += 7
		if i+1 >= maxVarint64Bytes {
			return 0, 0, ErrMalformedVarint
		}
	}
	return 0, 0, ErrMalformedVarint
}

// Uvarint64 decodes a varint from the start of buf and returns the value,
// the number of bytes consumed, and an error.
func Uvarint64(buf []byte) (uint64, int, error) {
	var result uint64
	shift := uint(0)
	for i := 0; i < len(buf); i++ {
		b := buf[i]
		result |= uint64(b&0x7f) << shift
		if b < 0x80 {
			return result, i + 1, nil
		}
		shift += 7
		if i+1 >= maxVarint64Bytes {
			return 0, 0, ErrMalformedVarint
		}
	}
	return 0, 0, ErrMalformedVarint
}
