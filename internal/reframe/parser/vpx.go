package parser

import (
	"encoding/binary"
	"fmt"

	"github.com/bluenviron/mediacommon/v2/pkg/codecs/vp9"

	"github.com/zsiec/reframe/internal/reframe/security"
	"github.com/zsiec/reframe/internal/reframe/types"
)

// Superframe is a VP9 block split along its trailing size index.
type Superframe struct {
	Frames    [][]byte
	IndexSize int
	// Mismatch is set when the sub-frame sizes plus the index do not add up
	// to the block size. Some encoders pad the index region.
	Mismatch bool
}

// SplitSuperframe splits a VP9 block. A block without an index yields a
// single frame spanning the whole block.
func SplitSuperframe(data []byte) (Superframe, error) {
	if len(data) == 0 {
		return Superframe{}, fmt.Errorf("%w: empty VP9 block", ErrZeroLength)
	}

	marker := data[len(data)-1]
	if marker&0xE0 != 0xC0 {
		return Superframe{Frames: [][]byte{data}}, nil
	}

	bytesPerSize := int((marker>>3)&0x03) + 1
	count := int(marker&0x07) + 1
	indexSize := 2 + bytesPerSize*count
	if len(data) < indexSize || data[len(data)-indexSize] != marker {
		// marker-looking last byte without a matching index start: plain frame
		return Superframe{Frames: [][]byte{data}}, nil
	}

	sf := Superframe{IndexSize: indexSize}
	idx := data[len(data)-indexSize+1 : len(data)-1]
	limit := len(data) - indexSize
	off := 0
	for i := 0; i < count; i++ {
		var size int
		for b := 0; b < bytesPerSize; b++ {
			size |= int(idx[i*bytesPerSize+b]) << (8 * b)
		}
		if size == 0 {
			continue
		}
		if off+size > limit {
			return Superframe{}, fmt.Errorf("%w: superframe frame %d size %d overruns block", ErrMalformed, i, size)
		}
		sf.Frames = append(sf.Frames, data[off:off+size])
		off += size
	}
	if len(sf.Frames) == 0 {
		return Superframe{}, fmt.Errorf("%w: superframe without frames", ErrMalformed)
	}
	sf.Mismatch = off+indexSize != len(data)
	return sf, nil
}

// ParseVPxPayload parses one VP8/VP9/VP10 frame block.
func ParseVPxPayload(codec types.CodecType, data []byte) (*Unit, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty frame", ErrZeroLength)
	}
	if len(data) > security.MaxUnitSize {
		return nil, fmt.Errorf("%w: "+security.ErrMsgUnitTooLarge, ErrImpossible, len(data), security.MaxUnitSize)
	}

	u := newUnit()
	u.Payload = data
	u.HasFrame = true

	switch codec {
	case types.CodecVP9:
		if err := parseVP9Block(u, data); err != nil {
			return nil, err
		}
	case types.CodecVP8:
		parseVP8Frame(u, data)
	default:
		// VP10 has no frame parser; bit 7 of the first byte is used as the sync hint.
		u.Key = data[0]&0x80 != 0
	}
	return u, nil
}

func parseVP9Block(u *Unit, data []byte) error {
	sf, err := SplitSuperframe(data)
	if err != nil {
		return err
	}
	if sf.Mismatch {
		u.Warnings = append(u.Warnings,
			fmt.Sprintf("VP9 superframe index mismatch: %d frames, index %d bytes, block %d bytes",
				len(sf.Frames), sf.IndexSize, len(data)))
	}

	for i, frame := range sf.Frames {
		var h vp9.Header
		if err := h.Unmarshal(frame); err != nil {
			return fmt.Errorf("%w: VP9 frame %d header: %v", ErrMalformed, i, err)
		}
		if i == 0 {
			u.Key = !h.ShowExistingFrame && !h.NonKeyFrame
		}
		if h.ShowExistingFrame || h.NonKeyFrame || h.ColorConfig == nil {
			continue
		}
		if u.VP != nil {
			continue
		}
		cc := h.ColorConfig
		info := &VPInfo{
			Width:      h.Width(),
			Height:     h.Height(),
			Profile:    h.Profile,
			BitDepth:   cc.BitDepth,
			ColorSpace: cc.ColorSpace,
			FullRange:  cc.ColorRange,
		}
		if info.BitDepth == 0 {
			info.BitDepth = 8
		}
		info.ChromaSubsampling = h.ChromaSubsampling()
		if !cc.SubsamplingX && cc.SubsamplingY {
			// 4:4:0 has no vpcC code; keep full horizontal chroma
			info.ChromaSubsampling = 3
			u.Warnings = append(u.Warnings, "VP9 4:4:0 chroma subsampling has no vpcC code, recorded as 4:4:4")
		}
		u.VP = info
	}
	return nil
}

// parseVP8Frame reads the VP8 frame tag and, on key frames, the dimensions.
func parseVP8Frame(u *Unit, data []byte) {
	u.Key = data[0]&0x01 == 0
	if !u.Key || len(data) < 10 {
		return
	}
	if data[3] != 0x9D || data[4] != 0x01 || data[5] != 0x2A {
		return
	}
	u.VP = &VPInfo{
		Width:    int(binary.LittleEndian.Uint16(data[6:8]) & 0x3FFF),
		Height:   int(binary.LittleEndian.Uint16(data[8:10]) & 0x3FFF),
		Profile:  (data[0] >> 1) & 0x07,
		BitDepth: 8,
	}
}

// ParseRawVPx extracts one host-delimited frame of a raw VPx stream. The
// stream is not self-delimiting, so a unit only exists at a boundary.
func ParseRawVPx(codec types.CodecType, data []byte, boundary bool) Result {
	if !boundary || len(data) == 0 {
		return needMore()
	}
	u, err := ParseVPxPayload(codec, data)
	if err != nil {
		return fatal(err, len(data))
	}
	return unitResult(u, len(data))
}
