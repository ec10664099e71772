package kryoflux

import "testing"

func TestComputeStatisticsNoIndexes(t *testing.T) {
	stat := computeStatistics(1000, nil, 0, 0, 5, 50)
	if stat.AvgRPM != 0 || stat.AvgBPS != 0 || stat.AvgFluxPerRev != 0 {
		t.Errorf("computeStatistics() with no indexes = %+v, want all derived fields zero", stat)
	}
	if stat.MinFlux != 5 || stat.MaxFlux != 50 {
		t.Errorf("computeStatistics() min/max flux = %d/%d, want 5/50", stat.MinFlux, stat.MaxFlux)
	}
}

func TestComputeStatisticsRPM(t *testing.T) {
	sampleClockHz := 24000000.0
	indexes := []IndexRecord{
		{FluxPosition: 0, RotationTime: 0},
		{FluxPosition: 1000, RotationTime: 4800000}, // 0.2s at 24MHz -> 300 RPM
		{FluxPosition: 2000, RotationTime: 4800000},
	}

	stat := computeStatistics(sampleClockHz, indexes, 0, 0, 0, 0)

	wantRPM := 300.0
	if diff := stat.AvgRPM - wantRPM; diff > 0.01 || diff < -0.01 {
		t.Errorf("computeStatistics() AvgRPM = %v, want ~%v", stat.AvgRPM, wantRPM)
	}
	if stat.MinRPM != stat.MaxRPM {
		t.Errorf("computeStatistics() MinRPM/MaxRPM = %v/%v, want equal for uniform rotation", stat.MinRPM, stat.MaxRPM)
	}
}

func TestComputeStatisticsThroughput(t *testing.T) {
	stat := computeStatistics(1000, nil, 200000, 1000, 0, 0)
	if stat.AvgBPS != 200000 {
		t.Errorf("computeStatistics() AvgBPS = %v, want 200000", stat.AvgBPS)
	}
}

func TestComputeStatisticsAvgFluxPerRev(t *testing.T) {
	indexes := []IndexRecord{
		{FluxPosition: 0},
		{FluxPosition: 100},
		{FluxPosition: 250},
		{FluxPosition: 400},
	}
	stat := computeStatistics(1000, indexes, 0, 0, 0, 0)

	// i from 2 to len-1: (250-100) + (400-250) = 150 + 150, mean = 150
	want := 150.0
	if stat.AvgFluxPerRev != want {
		t.Errorf("computeStatistics() AvgFluxPerRev = %v, want %v", stat.AvgFluxPerRev, want)
	}
}
