package kryoflux

// IndexRecord is a hardware index pulse completed against the flux array:
// the flux slot it falls within, and the sample-clock split of that flux's
// duration on either side of the pulse.
type IndexRecord struct {
	// FluxPosition is the index into the flux array of the flux transition
	// that spans the index pulse. Always in [0, flux_count].
	FluxPosition int

	// PreIndexTime is the number of sample clocks from the start of the
	// flux at FluxPosition to the index pulse.
	PreIndexTime uint64

	// RotationTime is the number of sample clocks between this index pulse
	// and the preceding one. For the first index there is no preceding
	// pulse: the value is the sample clocks from the start of the stream's
	// first flux up to this pulse, not a full revolution.
	RotationTime uint64
}

// alignIndexes walks the flux array once, associating each raw index record
// with the flux transition it falls within and computing pre_index_time
// and rotation_time per §4.4. fluxValues and fluxStreamPositions each carry
// fluxCount real entries plus one trailing sentinel entry; fluxValues may be
// mutated in place to back-fill the sentinel's duration.
//
// Returns the completed index records and the (possibly incremented, if the
// sentinel had to be activated) flux count.
func alignIndexes(fluxValues []uint32, fluxStreamPositions []uint32, fluxCount int, raw []indexRecordRaw) ([]IndexRecord, int, error) {
	m := len(raw)
	if m == 0 {
		return nil, fluxCount, nil
	}

	records := make([]IndexRecord, m)

	var itime uint64
	iidx := 0
	nextStreamPos := raw[0].streamPos

	for fidx := 0; fidx < fluxCount && iidx < m; fidx++ {
		itime += uint64(fluxValues[fidx])

		nfidx := fidx + 1
		if fluxStreamPositions[nfidx] < nextStreamPos {
			continue
		}

		// The index pulse landed inside the very first flux: there is no
		// completed flux preceding it to attribute the duration to.
		if fidx == 0 && fluxStreamPositions[0] >= nextStreamPos {
			nfidx = 0
		}

		rec := &records[iidx]
		rec.FluxPosition = nfidx

		iftime := uint64(fluxValues[nfidx])
		sampleCounter := raw[iidx].sampleCounter
		if sampleCounter == 0 {
			// Timer sampled exactly at the edge; recover the residual
			// sub-cell count from the flux's own low 16 bits instead.
			sampleCounter = uint32(iftime & 0xFFFF)
		}

		// The index landed exactly on the sentinel flux: back-fill its
		// duration now that we know the overflow contribution up to here.
		if nfidx >= fluxCount && fluxStreamPositions[nfidx] == nextStreamPos {
			iftime += uint64(sampleCounter)
			fluxValues[nfidx] = uint32(iftime)
		}

		ico := iftime >> 16
		pre := uint64(fluxStreamPositions[nfidx] - nextStreamPos)
		if ico < pre {
			return nil, fluxCount, ErrMissingIndex
		}
		preIndexTime := ((ico - pre) << 16) + uint64(sampleCounter)
		rec.PreIndexTime = preIndexTime

		if iidx > 0 {
			// The boundary flux's full duration was already folded into
			// itime by the accumulation above; remove the portion the
			// previous index already claimed as its own pre_index_time.
			itime -= records[iidx-1].PreIndexTime
		}
		base := itime
		if nfidx == 0 {
			base = 0
		}
		rec.RotationTime = base + preIndexTime

		iidx++
		if iidx < m {
			nextStreamPos = raw[iidx].streamPos
		} else {
			nextStreamPos = 0
		}
		if nfidx != 0 {
			itime = 0
		}
	}

	if iidx < m {
		return nil, fluxCount, ErrMissingIndex
	}

	if records[m-1].FluxPosition >= fluxCount {
		fluxCount++
	}

	return records, fluxCount, nil
}
