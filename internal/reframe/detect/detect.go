// Package detect classifies the head of a byte stream into one of the
// syntaxes the reframer can extract units from.
package detect

import (
	"errors"
	"fmt"

	"github.com/zsiec/reframe/internal/reframe/parser"
	"github.com/zsiec/reframe/internal/reframe/types"
)

// ErrUnsupportedFormat is returned when the stream matches no supported syntax.
// It is terminal for the stream.
var ErrUnsupportedFormat = errors.New("unsupported format")

// maxProbeOBUs bounds the OBU walk of the raw OBU cross-check.
const maxProbeOBUs = 64

// Hints carries what the host knows about the stream before any byte is inspected.
type Hints struct {
	// Codec is the codec declared out of band, CodecUnknown when none.
	Codec types.CodecType
	// HostTimescale is set when the host supplies timing for the stream.
	HostTimescale bool
	// Boundary is set when buf holds everything available for now: end of
	// stream or the end of a host-framed fragment.
	Boundary bool
}

// Result is a detection outcome.
type Result struct {
	Syntax types.Syntax
	Codec  types.CodecType
	// HeaderSize is the number of leading bytes the syntax consumes once
	// (the IVF file header), zero otherwise.
	HeaderSize int
	// IVF is set for IndexedFrameContainer.
	IVF *parser.IVFHeader
	// Warnings are non-fatal detection notes for the caller to log.
	Warnings []string
}

// Detect classifies buf. It returns parser.ErrNeedMoreData when buf is too
// short to decide, and an error wrapping ErrUnsupportedFormat when no syntax
// matches. The checks run in fixed priority order: IAMF, IVF, declared fixed
// codec, Annex B, raw OBU.
func Detect(buf []byte, hints Hints) (Result, error) {
	if len(buf) == 0 {
		return Result{}, parser.ErrNeedMoreData
	}

	if parser.ProbeIAMF(buf) {
		return Result{Syntax: types.SyntaxObjectAudio, Codec: types.CodecIAMF}, nil
	}
	if iamfPrefixPending(buf) && !hints.Boundary {
		return Result{}, parser.ErrNeedMoreData
	}

	if len(buf) < 4 && !hints.Boundary {
		return Result{}, parser.ErrNeedMoreData
	}
	if parser.ProbeIVF(buf) {
		return detectIVF(buf)
	}

	if hints.Codec.IsVPx() {
		return Result{Syntax: types.SyntaxRawFixedCodec, Codec: hints.Codec}, nil
	}

	switch parser.ProbeAnnexB(buf) {
	case parser.VerdictMatch:
		return Result{Syntax: types.SyntaxAnnexByteStream, Codec: types.CodecAV1}, nil
	case parser.VerdictPending:
		if !hints.Boundary {
			return Result{}, parser.ErrNeedMoreData
		}
	}

	return detectSection5(buf, hints)
}

// iamfPrefixPending reports whether buf could still become an IA sequence header.
func iamfPrefixPending(buf []byte) bool {
	if buf[0]>>3 != parser.IAMFOBUSequenceHeader {
		return false
	}
	_, _, err := parser.ReadIAMFOBU(buf)
	return errors.Is(err, parser.ErrNeedMoreData)
}

func detectIVF(buf []byte) (Result, error) {
	h, size, err := parser.ParseIVFHeader(buf)
	switch {
	case errors.Is(err, parser.ErrNeedMoreData):
		return Result{}, err
	case errors.Is(err, parser.ErrUnknownFourCC):
		return Result{}, fmt.Errorf("%w: IVF fourcc %q", ErrUnsupportedFormat, h.FourCC)
	case err != nil:
		return Result{}, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}

	res := Result{
		Syntax:     types.SyntaxIndexedFrameContainer,
		Codec:      h.Codec,
		HeaderSize: size,
		IVF:        &h,
	}
	if h.Codec == types.CodecVP10 {
		res.Warnings = append(res.Warnings, "VP10 in IVF: experimental codec, decoder support is unlikely")
	}
	return res, nil
}

// detectSection5 accepts buf as a low-overhead OBU stream once an OBU walk
// reaches a frame without a grammar error.
func detectSection5(buf []byte, hints Hints) (Result, error) {
	accept := Result{Syntax: types.SyntaxRawUnitSequence, Codec: types.CodecAV1}

	first, err := parser.ParseOBUHeader(buf)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	if first.Type != parser.OBUTypeTemporalDelimiter && !hints.HostTimescale {
		return Result{}, fmt.Errorf("%w: stream does not start with a temporal delimiter", ErrUnsupportedFormat)
	}

	off := 0
	for i := 0; i < maxProbeOBUs && off < len(buf); i++ {
		obu, n, err := parser.ReadOBU(buf[off:], -1)
		if err != nil {
			if errors.Is(err, parser.ErrNeedMoreData) && !hints.Boundary {
				return Result{}, parser.ErrNeedMoreData
			}
			return Result{}, fmt.Errorf("%w: OBU %d at offset %d: %v", ErrUnsupportedFormat, i, off, err)
		}
		if obu.Header.Type == parser.OBUTypeFrame || obu.Header.Type == parser.OBUTypeFrameHeader {
			return accept, nil
		}
		off += n
	}

	if off >= len(buf) && !hints.Boundary {
		return Result{}, parser.ErrNeedMoreData
	}
	if off == 0 {
		return Result{}, fmt.Errorf("%w: no OBU found", ErrUnsupportedFormat)
	}
	// grammar holds but no frame within the probe window
	return accept, nil
}
