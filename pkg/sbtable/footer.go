package sbtable

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
)

// footerSize is the fixed on-disk size of a Footer, matching
// pkg/sstable/footer's layout with two extra fields for the bloom filter
// region.
const footerSize = 64

// magic identifies a valid table file; it is intentionally distinct from
// the byte patterns a raw Index Block or SBM could produce.
const magic = uint64(0x53425442_4C4B4653) // "SBTBLKFS" as big-endian ASCII

// currentVersion is the file format version this package writes.
const currentVersion = uint32(1)

// Footer trails every table's data file, mirroring pkg/sstable/footer.Footer's
// role. It records the index root offset, entry count and bloom filter size;
// Reader takes the entry count from it but descends the index tree from the
// index file's own 8-byte root-offset footer.
type Footer struct {
	Magic           uint64
	Version         uint32
	Timestamp       int64
	IndexRootOffset uint64
	NumEntries      uint32
	BloomOffset     uint64
	BloomSize       uint32
	Checksum        uint64
}

// newFooter builds a Footer for a just-finished table.
func newFooter(indexRootOffset uint64, numEntries uint32, bloomOffset uint64, bloomSize uint32) *Footer {
	return &Footer{
		Magic:           magic,
		Version:         currentVersion,
		Timestamp:       time.Now().UnixNano(),
		IndexRootOffset: indexRootOffset,
		NumEntries:      numEntries,
		BloomOffset:     bloomOffset,
		BloomSize:       bloomSize,
	}
}

// encode serializes f to footerSize bytes, computing the trailing checksum
// over every preceding field the same way footer.Footer.Encode does.
func (f *Footer) encode() []byte {
	buf := make([]byte, footerSize)
	binary.LittleEndian.PutUint64(buf[0:8], f.Magic)
	binary.LittleEndian.PutUint32(buf[8:12], f.Version)
	binary.LittleEndian.PutUint64(buf[12:20], uint64(f.Timestamp))
	binary.LittleEndian.PutUint64(buf[20:28], f.IndexRootOffset)
	binary.LittleEndian.PutUint32(buf[28:32], f.NumEntries)
	binary.LittleEndian.PutUint64(buf[32:40], f.BloomOffset)
	binary.LittleEndian.PutUint32(buf[40:44], f.BloomSize)

	f.Checksum = xxhash.Sum64(buf[:44])
	binary.LittleEndian.PutUint64(buf[44:52], f.Checksum)
	// Remaining bytes up to footerSize are reserved and left zero.
	return buf
}

// decodeFooter parses the last footerSize bytes of a table file.
func decodeFooter(data []byte) (*Footer, error) {
	if len(data) < footerSize {
		return nil, fmt.Errorf("sbtable: footer too small: %d bytes, want %d", len(data), footerSize)
	}

	f := &Footer{
		Magic:           binary.LittleEndian.Uint64(data[0:8]),
		Version:         binary.LittleEndian.Uint32(data[8:12]),
		Timestamp:       int64(binary.LittleEndian.Uint64(data[12:20])),
		IndexRootOffset: binary.LittleEndian.Uint64(data[20:28]),
		NumEntries:      binary.LittleEndian.Uint32(data[28:32]),
		BloomOffset:     binary.LittleEndian.Uint64(data[32:40]),
		BloomSize:       binary.LittleEndian.Uint32(data[40:44]),
		Checksum:        binary.LittleEndian.Uint64(data[44:52]),
	}

	if f.Magic != magic {
		return nil, fmt.Errorf("sbtable: bad footer magic %x, want %x", f.Magic, magic)
	}
	if want := xxhash.Sum64(data[:44]); f.Checksum != want {
		return nil, fmt.Errorf("sbtable: footer checksum mismatch: file has %d, computed %d", f.Checksum, want)
	}
	return f, nil
}
