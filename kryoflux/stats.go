package kryoflux

// Statistic aggregates the RPM, throughput, and flux-count figures derived
// from a fully-aligned decode.
type Statistic struct {
	AvgRPM        float64
	MinRPM        float64
	MaxRPM        float64
	AvgBPS        float64
	AvgFluxPerRev float64
	MinFlux       uint32
	MaxFlux       uint32
}

// computeStatistics implements §4.5. sampleClockHz must already reflect any
// override recovered from the info text.
func computeStatistics(sampleClockHz float64, indexes []IndexRecord, statDataCount, statDataTime, minFlux, maxFlux uint32) Statistic {
	stat := Statistic{MinFlux: minFlux, MaxFlux: maxFlux}

	if statDataTime > 0 {
		stat.AvgBPS = float64(statDataCount) * 1000 / float64(statDataTime)
	}

	m := len(indexes)
	if m > 1 {
		minRot := indexes[1].RotationTime
		maxRot := indexes[1].RotationTime
		var sum uint64
		for i := 1; i < m; i++ {
			rt := indexes[i].RotationTime
			sum += rt
			if rt < minRot {
				minRot = rt
			}
			if rt > maxRot {
				maxRot = rt
			}
		}
		stat.AvgRPM = sampleClockHz * float64(m-1) * 60 / float64(sum)
		stat.MaxRPM = sampleClockHz * 60 / float64(minRot)
		stat.MinRPM = sampleClockHz * 60 / float64(maxRot)
	}

	// The reference decoder this figure is grounded on sums a constant
	// (index_array[2].fluxPosition - index_array[1].fluxPosition) on every
	// loop iteration; here the mean of the actual consecutive differences
	// is computed instead, over the same iteration range (see DESIGN.md).
	if m > 2 {
		var total int
		for i := 2; i < m; i++ {
			total += indexes[i].FluxPosition - indexes[i-1].FluxPosition
		}
		stat.AvgFluxPerRev = float64(total) / float64(m-2)
	}

	return stat
}
