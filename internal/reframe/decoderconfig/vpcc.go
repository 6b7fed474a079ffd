package decoderconfig

import (
	"encoding/binary"

	"github.com/zsiec/reframe/internal/reframe/parser"
	"github.com/zsiec/reframe/internal/reframe/types"
)

// VP9 color_space values
const (
	vp9ColorSpaceUnknown = 0
	vp9ColorSpaceBT601   = 1
	vp9ColorSpaceBT709   = 2
	vp9ColorSpaceSMPTE   = 3
	vp9ColorSpaceBT2020  = 5
	vp9ColorSpaceSRGB    = 7
)

// VPConfig is the content of a VPCodecConfigurationRecord.
type VPConfig struct {
	Profile                 uint8
	Level                   uint8
	BitDepth                uint8
	ChromaSubsampling       uint8
	FullRange               bool
	ColourPrimaries         uint8
	TransferCharacteristics uint8
	MatrixCoefficients      uint8
	Width, Height           int
}

// DefaultVPConfig returns the configuration used until a key frame is parsed.
// VP8 and VP10 keep it for the whole stream apart from dimensions.
func DefaultVPConfig(codec types.CodecType) *VPConfig {
	cfg := &VPConfig{
		BitDepth:                8,
		ChromaSubsampling:       1,
		ColourPrimaries:         2,
		TransferCharacteristics: 2,
		MatrixCoefficients:      2,
	}
	if codec != types.CodecVP9 {
		cfg.Profile = 1
		cfg.Level = 10
	}
	return cfg
}

// WithDimensions returns a copy of c with the key frame dimensions.
func (c *VPConfig) WithDimensions(info *parser.VPInfo) *VPConfig {
	out := *c
	out.Width, out.Height = info.Width, info.Height
	return &out
}

// WithKeyFrame returns a copy of c updated from VP9 key frame properties.
func (c *VPConfig) WithKeyFrame(info *parser.VPInfo) *VPConfig {
	out := *c
	out.Width, out.Height = info.Width, info.Height
	out.Profile = info.Profile
	out.BitDepth = info.BitDepth
	out.ChromaSubsampling = info.ChromaSubsampling
	out.FullRange = info.FullRange
	out.ColourPrimaries, out.TransferCharacteristics, out.MatrixCoefficients = vp9Colorimetry(info.ColorSpace)
	return &out
}

// Marshal serializes the record body: profile, level, bit depth, chroma
// subsampling, range, colorimetry and an empty codec initialization data.
func (c *VPConfig) Marshal() []byte {
	out := make([]byte, 8)
	out[0] = c.Profile
	out[1] = c.Level
	out[2] = c.BitDepth<<4 | (c.ChromaSubsampling&0x07)<<1 | bit(c.FullRange)
	out[3] = c.ColourPrimaries
	out[4] = c.TransferCharacteristics
	out[5] = c.MatrixCoefficients
	binary.BigEndian.PutUint16(out[6:8], 0)
	return out
}

// vp9Colorimetry maps a VP9 color_space to ISO/IEC 23091-2 code points.
func vp9Colorimetry(cs uint8) (primaries, transfer, matrix uint8) {
	switch cs {
	case vp9ColorSpaceBT601:
		return 6, 6, 6
	case vp9ColorSpaceBT709:
		return 1, 1, 1
	case vp9ColorSpaceSMPTE:
		return 7, 7, 7
	case vp9ColorSpaceBT2020:
		return 9, 14, 9
	case vp9ColorSpaceSRGB:
		return 1, 13, 0
	case vp9ColorSpaceUnknown:
		fallthrough
	default:
		return 2, 2, 2
	}
}
