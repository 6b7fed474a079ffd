package reframe

import (
	"github.com/zsiec/reframe/internal/reframe/parser"
	"github.com/zsiec/reframe/internal/reframe/types"
)

// Confidence grades how likely probed bytes belong to a supported syntax.
type Confidence uint8

const (
	NotSupported Confidence = iota
	MaybeSupported
	Supported
)

// String returns the string representation of Confidence
func (c Confidence) String() string {
	switch c {
	case MaybeSupported:
		return "maybe"
	case Supported:
		return "supported"
	default:
		return "not_supported"
	}
}

// ProbeResult is the outcome of Probe.
type ProbeResult struct {
	Confidence Confidence
	Syntax     types.Syntax
	MIME       string
}

const ivfMIME = "video/x-ivf"

// Probe inspects the head of a stream without any session state. IAMF, IVF
// and Annex B signatures are conclusive. A raw OBU stream is supported once
// more than two temporal units parse, and maybe supported when a sequence
// header and a frame parse before the data runs out.
func Probe(data []byte) ProbeResult {
	switch {
	case len(data) == 0:
		return ProbeResult{}
	case parser.ProbeIAMF(data):
		return ProbeResult{Confidence: Supported, Syntax: types.SyntaxObjectAudio, MIME: types.CodecIAMF.MIMEType()}
	case parser.ProbeIVF(data):
		return ProbeResult{Confidence: Supported, Syntax: types.SyntaxIndexedFrameContainer, MIME: ivfMIME}
	case parser.ProbeAnnexB(data) == parser.VerdictMatch:
		return ProbeResult{Confidence: Supported, Syntax: types.SyntaxAnnexByteStream, MIME: types.CodecAV1.MIMEType()}
	}
	return probeSection5(data)
}

func probeSection5(data []byte) ProbeResult {
	var (
		units     int
		seqHeader bool
		frame     bool
		off       int
	)
	for off < len(data) {
		r := parser.ParseSection5(data[off:], false, parser.AV1Options{})
		if r.Outcome == parser.OutcomeNeedMoreData {
			if units > 0 {
				// a complete unit followed by a large one still being written
				units += 2
				break
			}
			// a single oversized unit: accept it on a sequence header with dimensions
			tail := parser.ParseSection5(data[off:], true, parser.AV1Options{})
			if tail.Outcome == parser.OutcomeUnit && tail.Unit.Sequence != nil &&
				tail.Unit.Sequence.Width > 0 && tail.Unit.Sequence.Height > 0 {
				seqHeader, frame = true, true
			}
			break
		}
		if r.Outcome != parser.OutcomeUnit {
			break
		}
		u := r.Unit
		if units > 0 && len(u.Elements) == 0 && !u.HasFrame {
			break
		}
		if u.Sequence != nil {
			seqHeader = true
		}
		if u.HasFrame {
			frame = true
		}
		units++
		off += r.Consumed
		if units > 2 {
			break
		}
	}

	res := ProbeResult{Syntax: types.SyntaxRawUnitSequence, MIME: types.CodecAV1.MIMEType()}
	switch {
	case units > 2:
		res.Confidence = Supported
	case seqHeader && frame:
		res.Confidence = MaybeSupported
	default:
		res = ProbeResult{}
	}
	return res
}
