package kryoflux

import (
	"errors"
	"testing"
)

// TestDecodeBasicStream builds a small, fully-determined stream (five flux
// transitions, two index pulses) and checks every value the two-pass
// decoder derives from it by hand.
func TestDecodeBasicStream(t *testing.T) {
	b := &streamBuilder{}
	b.flux1(20)
	b.flux1(22)
	b.index(0, 1000) // lands exactly on the boundary before flux[2]
	b.flux1(24)
	b.flux1(26)
	b.index(0, 2000) // lands exactly on the boundary before flux[4]
	b.flux1(28)
	b.streamEnd(0)
	b.eof()

	decoded, err := Decode(b.bytes())
	if err != nil {
		t.Fatalf("Decode() returned error: %v", err)
	}

	fluxValues := decoded.FluxValues()
	wantFlux := []uint32{20, 22, 24, 26, 28}
	if len(fluxValues) != len(wantFlux) {
		t.Fatalf("FluxValues() = %v, want %v", fluxValues, wantFlux)
	}
	for i, v := range wantFlux {
		if fluxValues[i] != v {
			t.Errorf("FluxValues()[%d] = %d, want %d", i, fluxValues[i], v)
		}
	}

	if decoded.FluxCount() != 5 {
		t.Errorf("FluxCount() = %d, want 5", decoded.FluxCount())
	}
	if decoded.IndexCount() != 2 {
		t.Fatalf("IndexCount() = %d, want 2", decoded.IndexCount())
	}
	if decoded.RevolutionCount() != 1 {
		t.Errorf("RevolutionCount() = %d, want 1", decoded.RevolutionCount())
	}

	indexes := decoded.Indexes()

	if indexes[0].FluxPosition != 2 {
		t.Errorf("Indexes()[0].FluxPosition = %d, want 2", indexes[0].FluxPosition)
	}
	if indexes[0].PreIndexTime != 24 {
		t.Errorf("Indexes()[0].PreIndexTime = %d, want 24", indexes[0].PreIndexTime)
	}
	if indexes[0].RotationTime != 66 {
		t.Errorf("Indexes()[0].RotationTime = %d, want 66", indexes[0].RotationTime)
	}

	if indexes[1].FluxPosition != 4 {
		t.Errorf("Indexes()[1].FluxPosition = %d, want 4", indexes[1].FluxPosition)
	}
	if indexes[1].PreIndexTime != 28 {
		t.Errorf("Indexes()[1].PreIndexTime = %d, want 28", indexes[1].PreIndexTime)
	}
	if indexes[1].RotationTime != 54 {
		t.Errorf("Indexes()[1].RotationTime = %d, want 54", indexes[1].RotationTime)
	}

	stat := decoded.Statistic()
	wantAvgRPM := decoded.SampleClockHz() * 60 / 54
	if stat.AvgRPM != wantAvgRPM {
		t.Errorf("Statistic().AvgRPM = %v, want %v", stat.AvgRPM, wantAvgRPM)
	}
	if stat.MinFlux != 20 || stat.MaxFlux != 28 {
		t.Errorf("Statistic() min/max flux = %d/%d, want 20/28", stat.MinFlux, stat.MaxFlux)
	}
}

// TestDecodeSentinelActivation checks that an index pulse landing on the
// unconsumed trailing flux is folded into the flux count, per the resolved
// reading of the aligner's final sentinel-activation check.
func TestDecodeSentinelActivation(t *testing.T) {
	b := &streamBuilder{}
	b.flux1(20)
	b.index(42, 7) // declared at the builder's current position: the sentinel's slot
	b.streamEnd(0)
	b.eof()

	decoded, err := Decode(b.bytes())
	if err != nil {
		t.Fatalf("Decode() returned error: %v", err)
	}

	if decoded.FluxCount() != 2 {
		t.Fatalf("FluxCount() = %d, want 2", decoded.FluxCount())
	}
	fluxValues := decoded.FluxValues()
	if fluxValues[0] != 20 || fluxValues[1] != 42 {
		t.Errorf("FluxValues() = %v, want [20 42]", fluxValues)
	}
	if decoded.IndexCount() != 1 {
		t.Fatalf("IndexCount() = %d, want 1", decoded.IndexCount())
	}
	if decoded.Indexes()[0].FluxPosition != 1 {
		t.Errorf("Indexes()[0].FluxPosition = %d, want 1", decoded.Indexes()[0].FluxPosition)
	}
}

// TestDecodeClockOverride checks that an "sck="/"ick=" pair in the info
// text overrides the default sample/index clocks.
func TestDecodeClockOverride(t *testing.T) {
	b := &streamBuilder{}
	b.info("name=test, sck=1000000, ick=125000")
	b.flux1(20)
	b.flux1(30)
	b.streamEnd(0)
	b.eof()

	decoded, err := Decode(b.bytes())
	if err != nil {
		t.Fatalf("Decode() returned error: %v", err)
	}
	if decoded.SampleClockHz() != 1000000 {
		t.Errorf("SampleClockHz() = %v, want 1000000", decoded.SampleClockHz())
	}
	if decoded.IndexClockHz() != 125000 {
		t.Errorf("IndexClockHz() = %v, want 125000", decoded.IndexClockHz())
	}
	if decoded.FindInfo("name") != "test" {
		t.Errorf("FindInfo(%q) = %q, want %q", "name", decoded.FindInfo("name"), "test")
	}
}

// TestDecodeTruncatedFlux3 checks that a Flux3 block whose declared length
// exceeds the remaining buffer is reported as ErrMissingData.
func TestDecodeTruncatedFlux3(t *testing.T) {
	data := []byte{0x0C, 0x00}

	_, err := Decode(data)
	if !errors.Is(err, ErrMissingData) {
		t.Fatalf("Decode() error = %v, want ErrMissingData", err)
	}
}

// TestDecodeWrongStreamEndPosition checks that a StreamEnd block reporting
// an encoder stream position inconsistent with the decoder's own count is
// reported as ErrWrongPosition.
func TestDecodeWrongStreamEndPosition(t *testing.T) {
	b := &streamBuilder{}
	b.flux1(20)
	b.flux1(22)
	b.streamEndAt(99, 0) // actual position is 2, not 99
	b.eof()

	_, err := Decode(b.bytes())
	if !errors.Is(err, ErrWrongPosition) {
		t.Fatalf("Decode() error = %v, want ErrWrongPosition", err)
	}
}

// TestDecodeMissingEnd checks that a stream exhausted without an OOB EOF
// block is reported as ErrMissingEnd.
func TestDecodeMissingEnd(t *testing.T) {
	b := &streamBuilder{}
	b.flux1(20)
	b.flux1(22)
	b.streamEnd(0)
	// no eof()

	_, err := Decode(b.bytes())
	if !errors.Is(err, ErrMissingEnd) {
		t.Fatalf("Decode() error = %v, want ErrMissingEnd", err)
	}
}

// TestDecodeHardwareBufferError checks that a StreamEnd hardware result
// code of 1 is reported as ErrDevBuffer.
func TestDecodeHardwareBufferError(t *testing.T) {
	b := &streamBuilder{}
	b.flux1(20)
	b.streamEnd(1)
	b.eof()

	_, err := Decode(b.bytes())
	if !errors.Is(err, ErrDevBuffer) {
		t.Fatalf("Decode() error = %v, want ErrDevBuffer", err)
	}
}

// TestDecodeIndexReference checks that an index record declaring a stream
// position beyond the stream's actual final position is reported as
// ErrIndexReference.
func TestDecodeIndexReference(t *testing.T) {
	b := &streamBuilder{}
	b.flux1(20)
	b.flux1(22)
	b.indexAt(500, 0, 0) // declared far past anywhere the stream actually reaches
	b.flux1(24)
	b.streamEnd(0)
	b.eof()

	_, err := Decode(b.bytes())
	if !errors.Is(err, ErrIndexReference) {
		t.Fatalf("Decode() error = %v, want ErrIndexReference", err)
	}
}

// TestDecodeMissingIndex checks that an index record whose declared
// position falls inside a multi-byte flux block, more bytes ahead of the
// next flux transition's own (small) duration, forces a negative overflow
// count and is reported as ErrMissingIndex.
func TestDecodeMissingIndex(t *testing.T) {
	b := &streamBuilder{}
	b.flux1(20)        // flux[0], occupies stream byte 0
	b.indexAt(2, 5, 0) // declared at stream byte 2, inside the following Flux3 block
	b.flux3(500)       // flux[1], occupies stream bytes 1-3
	b.flux1(24)        // flux[2]
	b.streamEnd(0)
	b.eof()

	_, err := Decode(b.bytes())
	if !errors.Is(err, ErrMissingIndex) {
		t.Fatalf("Decode() error = %v, want ErrMissingIndex", err)
	}
}
