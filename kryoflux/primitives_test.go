package kryoflux

import "testing"

func TestReadU16LE(t *testing.T) {
	data := []byte{0x34, 0x12}
	if got := readU16LE(data, 0); got != 0x1234 {
		t.Errorf("readU16LE() = 0x%04x, want 0x1234", got)
	}
}

func TestReadU32LE(t *testing.T) {
	data := []byte{0x78, 0x56, 0x34, 0x12}
	if got := readU32LE(data, 0); got != 0x12345678 {
		t.Errorf("readU32LE() = 0x%08x, want 0x12345678", got)
	}
}

func TestReadU32LEAtOffset(t *testing.T) {
	data := []byte{0xFF, 0xFF, 0x01, 0x00, 0x00, 0x00}
	if got := readU32LE(data, 2); got != 1 {
		t.Errorf("readU32LE() at offset 2 = %d, want 1", got)
	}
}
