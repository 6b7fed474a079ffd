package types

// Syntax identifies the byte-level layout a session is reframing.
// It is assigned once per session by the format detector.
type Syntax uint8

const (
	SyntaxUnknown Syntax = iota
	// SyntaxRawUnitSequence is an AV1 low-overhead OBU stream (obu_has_size_field set).
	SyntaxRawUnitSequence
	// SyntaxAnnexByteStream is AV1 Annex B: length-prefixed temporal and frame units.
	SyntaxAnnexByteStream
	// SyntaxIndexedFrameContainer is IVF: a DKIF file header followed by sized, timestamped records.
	SyntaxIndexedFrameContainer
	// SyntaxRawFixedCodec is a VP8/VP9/VP10 elementary stream whose codec is declared by the host.
	SyntaxRawFixedCodec
	// SyntaxObjectAudio is an IAMF OBU stream.
	SyntaxObjectAudio
	// SyntaxUnsupported is terminal.
	SyntaxUnsupported
)

// String returns the string representation of Syntax
func (s Syntax) String() string {
	switch s {
	case SyntaxRawUnitSequence:
		return "obu"
	case SyntaxAnnexByteStream:
		return "annexb"
	case SyntaxIndexedFrameContainer:
		return "ivf"
	case SyntaxRawFixedCodec:
		return "raw_vpx"
	case SyntaxObjectAudio:
		return "iamf"
	case SyntaxUnsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

// IsDetected reports whether detection has produced a usable syntax.
func (s Syntax) IsDetected() bool {
	return s != SyntaxUnknown && s != SyntaxUnsupported
}
