package types

import "strings"

// CodecType represents the codecs carried by the supported syntaxes
type CodecType uint8

const (
	CodecUnknown CodecType = iota
	CodecAV1
	CodecVP8
	CodecVP9
	CodecVP10
	// Audio codecs
	CodecIAMF
)

// String returns the string representation of CodecType
func (c CodecType) String() string {
	switch c {
	case CodecAV1:
		return "av1"
	case CodecVP8:
		return "vp8"
	case CodecVP9:
		return "vp9"
	case CodecVP10:
		return "vp10"
	case CodecIAMF:
		return "iamf"
	default:
		return "unknown"
	}
}

// IsVideo returns true if the codec is a video codec
func (c CodecType) IsVideo() bool {
	switch c {
	case CodecAV1, CodecVP8, CodecVP9, CodecVP10:
		return true
	default:
		return false
	}
}

// IsAudio returns true if the codec is an audio codec
func (c CodecType) IsAudio() bool {
	return c == CodecIAMF
}

// IsVPx returns true for the VP8/VP9/VP10 family.
func (c CodecType) IsVPx() bool {
	return c == CodecVP8 || c == CodecVP9 || c == CodecVP10
}

// ParseCodecType parses a codec name as used in configuration and CLI flags.
func ParseCodecType(name string) CodecType {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "av1", "av01":
		return CodecAV1
	case "vp8", "vp80":
		return CodecVP8
	case "vp9", "vp90":
		return CodecVP9
	case "vp10":
		return CodecVP10
	case "iamf":
		return CodecIAMF
	default:
		return CodecUnknown
	}
}

// CodecFromFourCC maps an IVF codec tag to a CodecType.
func CodecFromFourCC(fourcc string) CodecType {
	switch fourcc {
	case "AV01":
		return CodecAV1
	case "VP80":
		return CodecVP8
	case "VP90":
		return CodecVP9
	case "VP10":
		return CodecVP10
	default:
		return CodecUnknown
	}
}

// MIMEType returns the MIME type advertised for the codec.
func (c CodecType) MIMEType() string {
	switch c {
	case CodecAV1:
		return "video/av1"
	case CodecVP8:
		return "video/vp8"
	case CodecVP9:
		return "video/vp9"
	case CodecVP10:
		return "video/vp10"
	case CodecIAMF:
		return "audio/iamf"
	default:
		return "application/octet-stream"
	}
}
