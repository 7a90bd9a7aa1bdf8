package blockfile

import (
	"bytes"
	"errors"
	"testing"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	raw := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog "), 50)

	for _, codec := range []Codec{CodecNone, CodecSnappy, CodecZstd} {
		enc, err := EncodeEnvelope(raw, codec)
		if err != nil {
			t.Fatalf("codec %d: EncodeEnvelope: %v", codec, err)
		}
		if codec == CodecNone && len(enc) < len(raw) {
			t.Fatalf("codec None: envelope shorter than raw input")
		}
		got, err := DecodeEnvelope(enc)
		if err != nil {
			t.Fatalf("codec %d: DecodeEnvelope: %v", codec, err)
		}
		if !bytes.Equal(got, raw) {
			t.Fatalf("codec %d: round trip mismatch", codec)
		}
	}
}

func TestEnvelopeDetectsCorruption(t *testing.T) {
	enc, err := EncodeEnvelope([]byte("hello world"), CodecNone)
	if err != nil {
		t.Fatalf("EncodeEnvelope: %v", err)
	}
	enc[2] ^= 0xFF
	if _, err := DecodeEnvelope(enc); !errors.Is(err, ErrCorruptEnvelope) {
		t.Fatalf("DecodeEnvelope on corrupted data = %v, want ErrCorruptEnvelope", err)
	}
}
