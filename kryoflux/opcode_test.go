package kryoflux

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		header   byte
		wantKind opcodeKind
		wantLen  int
	}{
		{"flux2 low", 0x00, opFlux2, 2},
		{"flux2 high", 0x07, opFlux2, 2},
		{"nop1", 0x08, opNop1, 1},
		{"nop2", 0x09, opNop2, 2},
		{"nop3", 0x0A, opNop3, 3},
		{"ovl16", 0x0B, opOvl16, 1},
		{"flux3", 0x0C, opFlux3, 3},
		{"oob", 0x0D, opOOB, 4},
		{"flux1 low", 0x0E, opFlux1, 1},
		{"flux1 high", 0xFF, opFlux1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, length, err := classify(tt.header)
			if err != nil {
				t.Fatalf("classify(0x%02x) returned error: %v", tt.header, err)
			}
			if kind != tt.wantKind {
				t.Errorf("classify(0x%02x) kind = %v, want %v", tt.header, kind, tt.wantKind)
			}
			if length != tt.wantLen {
				t.Errorf("classify(0x%02x) length = %d, want %d", tt.header, length, tt.wantLen)
			}
		})
	}
}
