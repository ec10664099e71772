package kryoflux

import "fmt"

// indexRecordRaw is an OOB Index block as encountered during the parse pass,
// before the aligner has placed it on a flux transition.
type indexRecordRaw struct {
	streamPos     uint32
	sampleCounter uint32
	indexCounter  uint32
}

// parseResult holds everything the stream parser produces: the flux arrays
// (with a trailing, unconsumed sentinel entry consulted by the aligner),
// the raw index records, the concatenated info text, and the transfer
// bookkeeping counters needed by the statistics finalizer.
type parseResult struct {
	fluxValues          []uint32
	fluxStreamPositions []uint32
	fluxCount           int

	indexRecords []indexRecordRaw

	infoText string

	minFlux uint32
	maxFlux uint32

	statDataCount uint32
	statDataTime  uint32
	statDataTrans uint32
}

// emit appends a completed flux value and the stream position it was
// recorded at, and folds it into the running min/max.
func (r *parseResult) emit(value, streamPos uint32) {
	r.fluxValues = append(r.fluxValues, value)
	r.fluxStreamPositions = append(r.fluxStreamPositions, streamPos)
	r.fluxCount++
	if r.fluxCount == 1 || value < r.minFlux {
		r.minFlux = value
	}
	if r.fluxCount == 1 || value > r.maxFlux {
		r.maxFlux = value
	}
}

// parseStream performs the single linear walk of §4.3: it classifies each
// block, folds flux arithmetic into a pending accumulator, dispatches OOB
// blocks, and validates the stream-position handshake with the encoder.
func parseStream(data []byte) (*parseResult, error) {
	res := &parseResult{}

	var (
		pos           int
		streamPos     uint32
		pendingFlux   uint32
		lastStreamPos uint32
		lastIndexPos  uint32
		hwStatus      uint32 = hwOK
		sawEOF        bool
		sawIndex      bool
	)

	for pos < len(data) {
		h := data[pos]
		kind, blockLen, err := classify(h)
		if err != nil {
			return nil, err
		}

		if kind == opOOB {
			if pos+4 > len(data) {
				return nil, fmt.Errorf("%w: truncated OOB header at offset %d", ErrMissingData, pos)
			}
			subtype := data[pos+1]
			if subtype == oobEOF {
				blockLen = 4
			} else {
				blockLen = 4 + int(readU16LE(data, pos+2))
			}
		}

		if pos+blockLen > len(data) {
			return nil, fmt.Errorf("%w: block at offset %d declares length %d", ErrMissingData, pos, blockLen)
		}

		switch kind {
		case opOvl16:
			pendingFlux += 0x10000

		case opFlux1:
			pendingFlux += uint32(h)
			res.emit(pendingFlux, streamPos)
			pendingFlux = 0

		case opFlux2:
			pendingFlux += uint32(h)<<8 | uint32(data[pos+1])
			res.emit(pendingFlux, streamPos)
			pendingFlux = 0

		case opFlux3:
			pendingFlux += uint32(data[pos+1])<<8 | uint32(data[pos+2])
			res.emit(pendingFlux, streamPos)
			pendingFlux = 0

		case opNop1, opNop2, opNop3:
			// No flux effect; the position advance below covers the block length.

		case opOOB:
			subtype := data[pos+1]
			payloadLen := blockLen - 4
			switch subtype {
			case oobStreamInfo:
				if payloadLen < 8 {
					return nil, fmt.Errorf("%w: StreamInfo payload too short at offset %d", ErrMissingData, pos)
				}
				encoderStreamPos := readU32LE(data, pos+4)
				transferTimeMs := readU32LE(data, pos+8)
				if streamPos != encoderStreamPos {
					return nil, fmt.Errorf("%w: stream_pos=%d encoder_stream_pos=%d", ErrWrongPosition, streamPos, encoderStreamPos)
				}
				if streamPos != lastStreamPos {
					res.statDataCount += streamPos - lastStreamPos
					res.statDataTime += transferTimeMs
					res.statDataTrans++
					lastStreamPos = streamPos
				}

			case oobIndex:
				if payloadLen < 12 {
					return nil, fmt.Errorf("%w: Index payload too short at offset %d", ErrMissingData, pos)
				}
				rec := indexRecordRaw{
					streamPos:     readU32LE(data, pos+4),
					sampleCounter: readU32LE(data, pos+8),
					indexCounter:  readU32LE(data, pos+12),
				}
				res.indexRecords = append(res.indexRecords, rec)
				sawIndex = true
				lastIndexPos = rec.streamPos

			case oobStreamEnd:
				if payloadLen < 8 {
					return nil, fmt.Errorf("%w: StreamEnd payload too short at offset %d", ErrMissingData, pos)
				}
				encoderStreamPos := readU32LE(data, pos+4)
				hwStatus = readU32LE(data, pos+8)
				if hwStatus == hwOK && streamPos != encoderStreamPos {
					return nil, fmt.Errorf("%w: stream_pos=%d encoder_stream_pos=%d", ErrWrongPosition, streamPos, encoderStreamPos)
				}

			case oobInfo:
				textLen := payloadLen - 1
				if textLen < 0 {
					textLen = 0
				}
				segment := string(data[pos+4 : pos+4+textLen])
				if res.infoText != "" {
					res.infoText += ", "
				}
				res.infoText += segment

			case oobEOF:
				sawEOF = true

			default:
				return nil, fmt.Errorf("%w: subtype 0x%02x at offset %d", ErrInvalidOOB, subtype, pos)
			}
		}

		if kind != opOOB {
			streamPos += uint32(blockLen)
		}
		pos += blockLen
	}

	// Trailing sentinel: whatever flux is still pending at EOF, consulted
	// (and possibly completed) by the aligner but never counted as a real
	// flux transition.
	res.fluxValues = append(res.fluxValues, pendingFlux)
	res.fluxStreamPositions = append(res.fluxStreamPositions, streamPos)

	switch {
	case hwStatus == hwBuffer:
		return nil, ErrDevBuffer
	case hwStatus == hwNoIndex:
		return nil, ErrDevIndex
	case hwStatus != hwOK:
		return nil, ErrTransfer
	}

	if !sawEOF {
		return nil, ErrMissingEnd
	}
	if sawIndex && streamPos < lastIndexPos {
		return nil, ErrIndexReference
	}

	return res, nil
}
