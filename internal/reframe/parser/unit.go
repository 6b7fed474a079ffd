package parser

import "github.com/zsiec/reframe/internal/reframe/types"

// ElementKind classifies header and descriptor elements that feed a decoder
// configuration record.
type ElementKind uint8

const (
	ElementAV1SequenceHeader ElementKind = iota + 1
	ElementAV1Metadata
	ElementIAMFSequenceHeader
	ElementIAMFCodecConfig
	ElementIAMFAudioElement
	ElementIAMFMixPresentation
)

// String returns the string representation of ElementKind
func (k ElementKind) String() string {
	switch k {
	case ElementAV1SequenceHeader:
		return "av1_sequence_header"
	case ElementAV1Metadata:
		return "av1_metadata"
	case ElementIAMFSequenceHeader:
		return "iamf_sequence_header"
	case ElementIAMFCodecConfig:
		return "iamf_codec_config"
	case ElementIAMFAudioElement:
		return "iamf_audio_element"
	case ElementIAMFMixPresentation:
		return "iamf_mix_presentation"
	default:
		return "unknown"
	}
}

// Element is one header/descriptor element as it appeared in the bitstream.
type Element struct {
	Kind ElementKind
	// ID distinguishes several elements of the same kind (IAMF descriptor ids).
	ID   uint64
	Data []byte
}

// SequenceInfo is what the reframer needs from an AV1 sequence header.
type SequenceInfo struct {
	Width, Height           int
	Profile                 uint8
	Level                   uint8
	Tier                    uint8
	HighBitDepth            bool
	TwelveBit               bool
	Monochrome              bool
	SubsamplingX            bool
	SubsamplingY            bool
	ChromaSamplePosition    uint8
	ColorDescription        bool
	ColorPrimaries          uint8
	TransferCharacteristics uint8
	MatrixCoefficients      uint8
	FullRange               bool
	ReducedStillPicture     bool
	// FrameRate is derived from timing_info; zero when absent.
	FrameRate types.Rational
}

// VPInfo carries VP8/VP9 key-frame properties.
type VPInfo struct {
	Width, Height     int
	Profile           uint8
	BitDepth          uint8
	ChromaSubsampling uint8
	ColorSpace        uint8
	FullRange         bool
}

// AudioInfo carries IAMF per-unit and stream timing properties.
type AudioInfo struct {
	SampleRate      uint32
	SamplesPerFrame uint32
	RollDistance    int16
	PreSkip         uint32
	TrimAtStart     uint32
	TrimAtEnd       uint32
}

// Unit is one extracted coded unit before timestamping.
type Unit struct {
	// Payload is the emitted byte payload. It may alias the parsed buffer.
	Payload []byte
	Key     bool
	// HasFrame is false for units that only carried headers.
	HasFrame bool

	// HasPTS is set when the container carried a raw timestamp.
	HasPTS bool
	PTS    uint64

	// RefreshFrameFlags is -1 when it could not be determined.
	RefreshFrameFlags int

	Elements []Element
	Sequence *SequenceInfo
	VP       *VPInfo
	Audio    *AudioInfo

	// Raw AV1 HDR metadata payloads: max_cll/max_fall (4 bytes) and mastering display (24 bytes).
	ContentLightLevel []byte
	MasteringDisplay  []byte

	// Warnings collects tolerated irregularities (superframe index mismatches).
	Warnings []string
}

func newUnit() *Unit {
	return &Unit{RefreshFrameFlags: -1}
}
