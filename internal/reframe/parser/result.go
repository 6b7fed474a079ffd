// Package parser holds the per-syntax unit grammars used by the reframer.
//
// Every parse function has the same contract: given the pending bytes of a
// reassembly buffer it reports exactly one of a complete unit and the number
// of bytes it occupies, a need for more data, or a fatal grammar violation
// together with the number of bytes to skip to resynchronize (0 when no
// resynchronization point exists).
package parser

import (
	"errors"
	"fmt"
)

// Outcome is the result class of one parse attempt.
type Outcome uint8

const (
	OutcomeUnit Outcome = iota
	OutcomeNeedMoreData
	OutcomeFatal
)

// String returns the string representation of Outcome
func (o Outcome) String() string {
	switch o {
	case OutcomeUnit:
		return "unit"
	case OutcomeNeedMoreData:
		return "need_more_data"
	case OutcomeFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Grammar errors
var (
	ErrNeedMoreData  = errors.New("more data needed")
	ErrMalformed     = errors.New("malformed unit")
	ErrZeroLength    = errors.New("zero-length frame")
	ErrImpossible    = errors.New("structurally impossible size field")
	ErrUnknownFourCC = errors.New("unsupported codec fourcc")
)

// Result is the outcome of parsing at the head of a buffer.
type Result struct {
	Outcome Outcome
	Unit    *Unit
	// Consumed is the number of bytes the unit occupied, container framing included.
	Consumed int
	// Err describes a fatal outcome.
	Err error
	// Resync is the number of bytes to drop after a fatal outcome. Zero means
	// the syntax cannot be resynchronized and the session must abort.
	Resync int
}

func unitResult(u *Unit, n int) Result {
	return Result{Outcome: OutcomeUnit, Unit: u, Consumed: n}
}

func needMore() Result {
	return Result{Outcome: OutcomeNeedMoreData}
}

func fatal(err error, resync int) Result {
	return Result{Outcome: OutcomeFatal, Err: err, Resync: resync}
}

func malformedf(resync int, format string, args ...interface{}) Result {
	return fatal(fmt.Errorf("%w: %s", ErrMalformed, fmt.Sprintf(format, args...)), resync)
}
