package testutil

import (
	"encoding/binary"

	"github.com/zsiec/reframe/internal/reframe/security"
)

// AV1 OBU types used by the builders
const (
	OBUSequenceHeader    = 1
	OBUTemporalDelimiter = 2
	OBUMetadata          = 5
	OBUFrame             = 6
	OBUPadding           = 15
)

// OBU builds a low-overhead AV1 OBU with an obu_size field.
func OBU(obuType uint8, payload []byte) []byte {
	out := []byte{obuType<<3 | 0x02}
	out = security.AppendLEB128(out, uint64(len(payload)))
	return append(out, payload...)
}

// OBUNoSize builds an AV1 OBU without an obu_size field, as Annex B carries them.
func OBUNoSize(obuType uint8, payload []byte) []byte {
	return append([]byte{obuType << 3}, payload...)
}

// TemporalDelimiter returns a sized temporal delimiter OBU.
func TemporalDelimiter() []byte {
	return OBU(OBUTemporalDelimiter, nil)
}

// ColorDescription is an optional AV1 color description.
type ColorDescription struct {
	Primaries, Transfer, Matrix uint8
	FullRange                   bool
}

// SequenceHeaderPayload builds an AV1 main-profile sequence header payload.
func SequenceHeaderPayload(width, height int, color *ColorDescription) []byte {
	return sequenceHeaderPayload(width, height, color, nil)
}

// Timing is the timing_info of a sequence header. TicksPerPicture > 0 sets
// equal_picture_interval.
type Timing struct {
	UnitsInDisplayTick uint32
	TimeScale          uint32
	TicksPerPicture    uint32
}

// TimedSequenceHeader builds a sized sequence header OBU carrying timing_info.
func TimedSequenceHeader(width, height int, timing Timing) []byte {
	return OBU(OBUSequenceHeader, sequenceHeaderPayload(width, height, nil, &timing))
}

func sequenceHeaderPayload(width, height int, color *ColorDescription, timing *Timing) []byte {
	var w BitWriter
	w.Write(0, 3) // seq_profile
	w.Flag(false) // still_picture
	w.Flag(false) // reduced_still_picture_header
	w.Flag(timing != nil)
	if timing != nil {
		w.Write(uint64(timing.UnitsInDisplayTick), 32)
		w.Write(uint64(timing.TimeScale), 32)
		w.Flag(timing.TicksPerPicture > 0) // equal_picture_interval
		if timing.TicksPerPicture > 0 {
			w.UVLC(timing.TicksPerPicture - 1)
		}
		w.Flag(false) // decoder_model_info_present_flag
	}
	w.Flag(false)  // initial_display_delay_present_flag
	w.Write(0, 5)  // operating_points_cnt_minus_1
	w.Write(0, 12) // operating_point_idc[0]
	w.Write(8, 5)  // seq_level_idx[0]
	w.Flag(false)  // seq_tier[0]
	w.Write(15, 4) // frame_width_bits_minus_1
	w.Write(15, 4) // frame_height_bits_minus_1
	w.Write(uint64(width-1), 16)
	w.Write(uint64(height-1), 16)
	w.Flag(false) // frame_id_numbers_present_flag
	w.Flag(false) // use_128x128_superblock
	w.Flag(false) // enable_filter_intra
	w.Flag(false) // enable_intra_edge_filter
	w.Flag(false) // enable_interintra_compound
	w.Flag(false) // enable_masked_compound
	w.Flag(false) // enable_warped_motion
	w.Flag(false) // enable_dual_filter
	w.Flag(true)  // enable_order_hint
	w.Flag(false) // enable_jnt_comp
	w.Flag(false) // enable_ref_frame_mvs
	w.Flag(true)  // seq_choose_screen_content_tools
	w.Flag(true)  // seq_choose_integer_mv
	w.Write(6, 3) // order_hint_bits_minus_1
	w.Flag(false) // enable_superres
	w.Flag(true)  // enable_cdef
	w.Flag(true)  // enable_restoration
	// color_config
	w.Flag(false) // high_bitdepth
	w.Flag(false) // mono_chrome
	w.Flag(color != nil)
	fullRange := false
	if color != nil {
		w.Write(uint64(color.Primaries), 8)
		w.Write(uint64(color.Transfer), 8)
		w.Write(uint64(color.Matrix), 8)
		fullRange = color.FullRange
	}
	w.Flag(fullRange) // color_range
	w.Write(0, 2)     // chroma_sample_position
	w.Flag(false)     // separate_uv_delta_q
	w.Flag(false)     // film_grain_params_present
	w.TrailingBits()
	return w.Bytes()
}

// SequenceHeader builds a sized sequence header OBU.
func SequenceHeader(width, height int) []byte {
	return OBU(OBUSequenceHeader, SequenceHeaderPayload(width, height, nil))
}

// FrameOBU builds a sized frame OBU whose uncompressed header marks a shown
// key or inter frame, followed by size filler bytes.
func FrameOBU(key bool, size int) []byte {
	return OBU(OBUFrame, FramePayload(key, size))
}

// FramePayload is the body of FrameOBU, for size-less OBUs.
func FramePayload(key bool, size int) []byte {
	hdr := byte(0x30) // frame_type=INTER, show_frame=1
	if key {
		hdr = 0x10 // frame_type=KEY, show_frame=1
	}
	payload := make([]byte, size+1)
	payload[0] = hdr
	for i := 1; i < len(payload); i++ {
		payload[i] = byte(i)
	}
	return payload
}

// MetadataOBU builds a metadata OBU of the given metadata_type.
func MetadataOBU(metadataType uint64, body []byte) []byte {
	payload := security.AppendLEB128(nil, metadataType)
	return OBU(OBUMetadata, append(payload, body...))
}

// TemporalUnit concatenates a temporal delimiter and the given OBUs.
func TemporalUnit(obus ...[]byte) []byte {
	out := TemporalDelimiter()
	for _, o := range obus {
		out = append(out, o...)
	}
	return out
}

// AnnexBTemporalUnit wraps size-less OBUs into one Annex B temporal unit with a
// single frame unit.
func AnnexBTemporalUnit(obus ...[]byte) []byte {
	var frame []byte
	for _, o := range obus {
		frame = security.AppendLEB128(frame, uint64(len(o)))
		frame = append(frame, o...)
	}
	tu := security.AppendLEB128(nil, uint64(len(frame)))
	tu = append(tu, frame...)

	out := security.AppendLEB128(nil, uint64(len(tu)))
	return append(out, tu...)
}

// IVFHeader builds a 32-byte DKIF header.
func IVFHeader(fourcc string, width, height uint16, rate, scale, frames uint32) []byte {
	h := make([]byte, 32)
	copy(h[0:4], "DKIF")
	binary.LittleEndian.PutUint16(h[4:6], 0)
	binary.LittleEndian.PutUint16(h[6:8], 32)
	copy(h[8:12], fourcc)
	binary.LittleEndian.PutUint16(h[12:14], width)
	binary.LittleEndian.PutUint16(h[14:16], height)
	binary.LittleEndian.PutUint32(h[16:20], rate)
	binary.LittleEndian.PutUint32(h[20:24], scale)
	binary.LittleEndian.PutUint32(h[24:28], frames)
	return h
}

// IVFRecord builds one frame record: 4-byte size, 8-byte timestamp, payload.
func IVFRecord(payload []byte, pts uint64) []byte {
	rec := make([]byte, 12, 12+len(payload))
	binary.LittleEndian.PutUint32(rec[0:4], uint32(len(payload)))
	binary.LittleEndian.PutUint64(rec[4:12], pts)
	return append(rec, payload...)
}

// IVFFile builds a complete IVF file with consecutive timestamps from 0.
func IVFFile(fourcc string, rate, scale uint32, payloads ...[]byte) []byte {
	out := IVFHeader(fourcc, 640, 360, rate, scale, uint32(len(payloads)))
	for i, p := range payloads {
		out = append(out, IVFRecord(p, uint64(i))...)
	}
	return out
}
