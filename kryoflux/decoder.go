package kryoflux

import "strconv"

// Default clock frequencies, used unless the info text carries an "sck" or
// "ick" override (see FindInfo).
const (
	DefaultSampleClockHz = 18432000.0 * 73 / 14 / 4
	DefaultIndexClockHz  = DefaultSampleClockHz / 8
)

// DecodedStream is the frozen, read-only result of decoding one KryoFlux
// Stream file. It is constructed once by Decode and never mutated
// afterward; a decoder is single-use per file.
type DecodedStream struct {
	fluxValues []uint32
	fluxCount  int

	indexes []IndexRecord

	infoText  string
	statistic Statistic

	sampleClockHz float64
	indexClockHz  float64
}

// Decode parses and aligns a complete KryoFlux Stream file already read
// into memory. It runs the stream parser, then the index aligner, then
// applies any sample/index clock overrides recovered from the info text,
// then finalizes statistics. A single sentinel error is returned on the
// first detected problem; no partial result is exposed on error.
func Decode(data []byte) (*DecodedStream, error) {
	parsed, err := parseStream(data)
	if err != nil {
		return nil, err
	}

	indexes, fluxCount, err := alignIndexes(parsed.fluxValues, parsed.fluxStreamPositions, parsed.fluxCount, parsed.indexRecords)
	if err != nil {
		return nil, err
	}

	sampleClockHz := DefaultSampleClockHz
	indexClockHz := DefaultIndexClockHz
	if v := findInfo(parsed.infoText, "sck"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			sampleClockHz = f
		}
	}
	if v := findInfo(parsed.infoText, "ick"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			indexClockHz = f
		}
	}

	stat := computeStatistics(sampleClockHz, indexes, parsed.statDataCount, parsed.statDataTime, parsed.minFlux, parsed.maxFlux)

	return &DecodedStream{
		fluxValues:    parsed.fluxValues,
		fluxCount:     fluxCount,
		indexes:       indexes,
		infoText:      parsed.infoText,
		statistic:     stat,
		sampleClockHz: sampleClockHz,
		indexClockHz:  indexClockHz,
	}, nil
}

// FluxValues returns a copy of the decoded flux durations, in sample clocks.
func (d *DecodedStream) FluxValues() []uint32 {
	out := make([]uint32, d.fluxCount)
	copy(out, d.fluxValues[:d.fluxCount])
	return out
}

// FluxCount returns the number of real flux transitions decoded (the
// trailing sentinel entry is never counted, except when an index pulse
// landed on it, in which case the aligner folds it into this count).
func (d *DecodedStream) FluxCount() int {
	return d.fluxCount
}

// Indexes returns a copy of the completed index records, in stream order.
func (d *DecodedStream) Indexes() []IndexRecord {
	out := make([]IndexRecord, len(d.indexes))
	copy(out, d.indexes)
	return out
}

// IndexCount returns the number of index pulses decoded.
func (d *DecodedStream) IndexCount() int {
	return len(d.indexes)
}

// RevolutionCount returns the number of complete disk revolutions spanned
// by the decoded indexes (one less than IndexCount, since a revolution is
// bounded by two index pulses).
func (d *DecodedStream) RevolutionCount() int {
	return len(d.indexes) - 1
}

// InfoText returns the concatenated hardware info text.
func (d *DecodedStream) InfoText() string {
	return d.infoText
}

// Statistic returns the aggregated RPM/throughput/flux-count figures.
func (d *DecodedStream) Statistic() Statistic {
	return d.statistic
}

// SampleClockHz returns the sample clock frequency used to interpret flux
// durations, either the default or an override recovered from the info text.
func (d *DecodedStream) SampleClockHz() float64 {
	return d.sampleClockHz
}

// IndexClockHz returns the index clock frequency, either the default or an
// override recovered from the info text.
func (d *DecodedStream) IndexClockHz() float64 {
	return d.indexClockHz
}

// FindInfo returns the value of a "name=value" pair in the info text, or ""
// if name is absent.
func (d *DecodedStream) FindInfo(name string) string {
	return findInfo(d.infoText, name)
}
