package reframe

import (
	"errors"

	"github.com/zsiec/reframe/internal/reframe/buffer"
	"github.com/zsiec/reframe/internal/reframe/detect"
	"github.com/zsiec/reframe/internal/reframe/index"
	"github.com/zsiec/reframe/internal/reframe/parser"
)

// Errors returned by a Session. Match them with errors.Is.
var (
	// ErrNeedMoreData never leaves Feed; it is how parsers suspend.
	ErrNeedMoreData = parser.ErrNeedMoreData
	// ErrUnsupportedFormat is terminal.
	ErrUnsupportedFormat = detect.ErrUnsupportedFormat
	// ErrMalformedUnit is recoverable while the syntax can resynchronize.
	ErrMalformedUnit = parser.ErrMalformed
	// ErrZeroLengthFrame is terminal: the container gives no way to skip it.
	ErrZeroLengthFrame = parser.ErrZeroLength
	// ErrAllocation leaves the reassembly buffer as it was.
	ErrAllocation = buffer.ErrAllocation
	// ErrSeekOutOfRange is logged; the seek falls back to the start of data.
	ErrSeekOutOfRange = index.ErrSeekOutOfRange

	ErrNotConfigured = errors.New("session not configured")
	ErrClosed        = errors.New("session closed")
)

// IsTerminal reports whether err ends the session.
func IsTerminal(err error) bool {
	return errors.Is(err, ErrUnsupportedFormat) ||
		errors.Is(err, ErrZeroLengthFrame) ||
		errors.Is(err, parser.ErrImpossible)
}
