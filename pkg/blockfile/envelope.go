package blockfile

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zstd"

	"github.com/coredb-io/sbtable/pkg/varint"
)

// Codec identifies the compression algorithm wrapping a block's raw bytes.
type Codec uint8

const (
	// CodecNone stores the block's raw bytes unmodified. This is the
	// default, so a table file written without opting into compression
	// keeps each block's own bytes verbatim behind its length prefix; they
	// are still wrapped by the envelope's codec byte, length varint and
	// checksum trailer.
	CodecNone Codec = iota
	// CodecSnappy compresses with klauspost/compress's snappy package.
	CodecSnappy
	// CodecZstd compresses with klauspost/compress/zstd.
	CodecZstd
)

// envelopeChecksumSize is the width of the trailing xxhash64 checksum.
const envelopeChecksumSize = 8

// ErrCorruptEnvelope is returned by DecodeEnvelope when the checksum trailer
// does not match the envelope's contents.
var ErrCorruptEnvelope = errors.New("blockfile: corrupt block envelope")

// EncodeEnvelope wraps raw in a self-describing envelope: a codec byte, the
// varint-encoded uncompressed length, the (possibly compressed) payload,
// and an 8-byte xxhash64 checksum of everything preceding it.
func EncodeEnvelope(raw []byte, codec Codec) ([]byte, error) {
	payload, err := compress(raw, codec)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, 0, 1+varint.Size32(uint32(len(raw)))+len(payload)+envelopeChecksumSize)
	buf = append(buf, byte(codec))
	buf = varint.AppendUvarint32(buf, uint32(len(raw)))
	buf = append(buf, payload...)

	checksum := xxhash.Sum64(buf)
	var trailer [envelopeChecksumSize]byte
	binary.LittleEndian.PutUint64(trailer[:], checksum)
	return append(buf, trailer[:]...), nil
}

// DecodeEnvelope verifies the checksum trailer and returns the decompressed
// original bytes.
func DecodeEnvelope(data []byte) ([]byte, error) {
	if len(data) < 1+envelopeChecksumSize {
		return nil, fmt.Errorf("%w: envelope too small (%d bytes)", ErrCorruptEnvelope, len(data))
	}
	body := data[:len(data)-envelopeChecksumSize]
	wantChecksum := binary.LittleEndian.Uint64(data[len(data)-envelopeChecksumSize:])
	if got := xxhash.Sum64(body); got != wantChecksum {
		return nil, fmt.Errorf("%w: checksum %d, expected %d", ErrCorruptEnvelope, got, wantChecksum)
	}

	codec := Codec(body[0])
	uncompressedLen, n, err := varint.Uvarint32(body[1:])
	if err != nil {
		return nil, fmt.Errorf("blockfile: decode envelope length: %w", err)
	}
	payload := body[1+n:]

	return decompress(payload, codec, int(uncompressedLen))
}

func compress(raw []byte, codec Codec) ([]byte, error) {
	switch codec {
	case CodecNone:
		return raw, nil
	case CodecSnappy:
		return snappy.Encode(nil, raw), nil
	case CodecZstd:
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, fmt.Errorf("blockfile: create zstd encoder: %w", err)
		}
		defer enc.Close()
		return enc.EncodeAll(raw, nil), nil
	default:
		return nil, fmt.Errorf("blockfile: unknown codec %d", codec)
	}
}

func decompress(payload []byte, codec Codec, uncompressedLen int) ([]byte, error) {
	switch codec {
	case CodecNone:
		return payload, nil
	case CodecSnappy:
		dst := make([]byte, 0, uncompressedLen)
		out, err := snappy.Decode(dst, payload)
		if err != nil {
			return nil, fmt.Errorf("blockfile: snappy decode: %w", err)
		}
		return out, nil
	case CodecZstd:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("blockfile: create zstd decoder: %w", err)
		}
		defer dec.Close()
		out, err := dec.DecodeAll(payload, make([]byte, 0, uncompressedLen))
		if err != nil {
			return nil, fmt.Errorf("blockfile: zstd decode: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("blockfile: unknown codec %d", codec)
	}
}
