package kryoflux

import "testing"

func TestFindInfo(t *testing.T) {
	tests := []struct {
		name     string
		infoText string
		key      string
		want     string
	}{
		{"middle key", "name=KryoFlux, sck=24027428.57, hwid=1", "sck", "24027428.57"},
		{"leading key", "sck=24027428.57, hwid=1", "sck", "24027428.57"},
		{"trailing key, no comma", "hwid=1, sck=24027428.57", "sck", "24027428.57"},
		{"missing key", "name=KryoFlux, hwid=1", "sck", ""},
		{"empty text", "", "sck", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := findInfo(tt.infoText, tt.key); got != tt.want {
				t.Errorf("findInfo(%q, %q) = %q, want %q", tt.infoText, tt.key, got, tt.want)
			}
		})
	}
}
