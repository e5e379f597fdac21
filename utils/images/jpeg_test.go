package images

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

func TestWithDensity(t *testing.T) {
	bare := []byte{0xFF, 0xD8, 0xFF, 0xDB, 0x00, 0x04}
	out, err := withDensity(bare, 72)
	if err != nil {
		t.Fatalf("withDensity() error = %v", err)
	}
	if len(out) != len(bare)+18 {
		t.Fatalf("len = %d, want %d", len(out), len(bare)+18)
	}
	if !bytes.Equal(out[:4], []byte{0xFF, 0xD8, 0xFF, 0xE0}) || string(out[6:10]) != "JFIF" {
		t.Errorf("bad header % x", out[:12])
	}
	if out[13] != 1 || binary.BigEndian.Uint16(out[14:]) != 72 || binary.BigEndian.Uint16(out[16:]) != 72 {
		t.Errorf("bad density % x", out[13:18])
	}
	if !bytes.Equal(out[20:], bare[2:]) {
		t.Error("image data must follow header unchanged")
	}

	tagged := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10}
	if out, err := withDensity(tagged, 300); err != nil || !bytes.Equal(out, tagged) {
		t.Errorf("existing header must be kept, got % x, %v", out, err)
	}

	if _, err := withDensity([]byte{0x89, 'P', 'N', 'G'}, 72); !errors.Is(err, errNotJPEG) {
		t.Errorf("withDensity(png) error = %v", err)
	}
}
