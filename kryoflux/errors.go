package kryoflux

import "errors"

// Terminal decode errors. The decoder surfaces exactly one of these per
// call; partial results are never exposed alongside an error.
var (
	// ErrMissingData means a block's declared length exceeds the remaining buffer.
	ErrMissingData = errors.New("kryoflux: block length exceeds remaining buffer")

	// ErrInvalidCode means opcode classification failed. Unreachable with the
	// full opcode table in classify, kept as a defensive backstop.
	ErrInvalidCode = errors.New("kryoflux: unrecognized opcode")

	// ErrWrongPosition means a StreamInfo or ok-state StreamEnd block reported
	// an encoder stream position inconsistent with the decoder's own count.
	ErrWrongPosition = errors.New("kryoflux: encoder stream position mismatch")

	// ErrDevBuffer means the hardware reported a buffer under/overflow in StreamEnd.
	ErrDevBuffer = errors.New("kryoflux: hardware buffer under/overflow")

	// ErrDevIndex means the hardware timed out waiting for an index pulse.
	ErrDevIndex = errors.New("kryoflux: hardware timed out waiting for index pulse")

	// ErrTransfer means StreamEnd reported a hardware error code other than
	// buffer under/overflow or index timeout.
	ErrTransfer = errors.New("kryoflux: hardware transfer error")

	// ErrInvalidOOB means an OOB block's subtype is outside the recognized set.
	ErrInvalidOOB = errors.New("kryoflux: unrecognized OOB subtype")

	// ErrMissingEnd means the parser exhausted the buffer without seeing an OOB EOF block.
	ErrMissingEnd = errors.New("kryoflux: stream ended without OOB EOF block")

	// ErrIndexReference means the final stream position is shorter than the
	// last recorded index's stream position.
	ErrIndexReference = errors.New("kryoflux: final stream position precedes last index")

	// ErrMissingIndex means the aligner could not place every index on a flux
	// transition, or a placement implied a negative overflow count.
	ErrMissingIndex = errors.New("kryoflux: could not place every index on a flux transition")
)
