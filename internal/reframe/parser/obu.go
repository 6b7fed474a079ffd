package parser

import (
	"errors"
	"fmt"
	"math"

	"github.com/bluenviron/mediacommon/v2/pkg/codecs/av1"

	"github.com/zsiec/reframe/internal/reframe/security"
	"github.com/zsiec/reframe/internal/reframe/types"
)

// AV1 OBU types
const (
	OBUTypeSequenceHeader       = 1
	OBUTypeTemporalDelimiter    = 2
	OBUTypeFrameHeader          = 3
	OBUTypeTileGroup            = 4
	OBUTypeMetadata             = 5
	OBUTypeFrame                = 6 // Frame header + tile group
	OBUTypeRedundantFrameHeader = 7
	OBUTypeTileList             = 8
	OBUTypePadding              = 15
)

// AV1 frame types
const (
	FrameTypeKey       = 0
	FrameTypeInter     = 1
	FrameTypeIntraOnly = 2
	FrameTypeSwitch    = 3
)

// AV1 metadata types carrying HDR information
const (
	metadataTypeHDRCLL  = 1
	metadataTypeHDRMDCV = 2
)

// OBUHeader is a parsed AV1 OBU header.
type OBUHeader struct {
	Type         uint8
	HasExtension bool
	HasSize      bool
	TemporalID   uint8
	SpatialID    uint8
	// Len is the header length in bytes (1 or 2).
	Len int
}

// OBU is one AV1 open bitstream unit.
type OBU struct {
	Header OBUHeader
	// Data is the whole OBU: header, size field and payload.
	Data    []byte
	Payload []byte
}

// ParseOBUHeader parses the one or two byte OBU header.
func ParseOBUHeader(data []byte) (OBUHeader, error) {
	if len(data) < 1 {
		return OBUHeader{}, ErrNeedMoreData
	}
	h := data[0]
	if h&0x80 != 0 {
		return OBUHeader{}, fmt.Errorf("%w: forbidden bit set in OBU header", ErrMalformed)
	}

	hdr := OBUHeader{
		Type:         (h >> 3) & 0x0F,
		HasExtension: h&0x04 != 0,
		HasSize:      h&0x02 != 0,
		Len:          1,
	}
	if hdr.HasExtension {
		if len(data) < 2 {
			return OBUHeader{}, ErrNeedMoreData
		}
		hdr.TemporalID = data[1] >> 5
		hdr.SpatialID = (data[1] >> 3) & 0x03
		hdr.Len = 2
	}
	return hdr, nil
}

// ReadOBU reads one OBU at the head of data. When the OBU carries no size
// field, externalSize gives its total length (Annex B obu_length); pass -1 when
// the size field is mandatory.
func ReadOBU(data []byte, externalSize int) (OBU, int, error) {
	hdr, err := ParseOBUHeader(data)
	if err != nil {
		return OBU{}, 0, err
	}

	if !hdr.HasSize {
		if externalSize < 0 {
			return OBU{}, 0, fmt.Errorf("%w: OBU type %d without size field", ErrMalformed, hdr.Type)
		}
		if externalSize < hdr.Len || externalSize > len(data) {
			return OBU{}, 0, fmt.Errorf("%w: OBU length %d out of bounds", ErrMalformed, externalSize)
		}
		return OBU{Header: hdr, Data: data[:externalSize], Payload: data[hdr.Len:externalSize]}, externalSize, nil
	}

	size, n, err := security.ReadLEB128(data[hdr.Len:])
	if err != nil {
		if errors.Is(err, security.ErrLEB128Incomplete) {
			return OBU{}, 0, ErrNeedMoreData
		}
		return OBU{}, 0, fmt.Errorf("%w: OBU size: %v", ErrMalformed, err)
	}
	if size > security.MaxUnitSize {
		return OBU{}, 0, fmt.Errorf("%w: "+security.ErrMsgUnitTooLarge, ErrImpossible, size, security.MaxUnitSize)
	}

	start := hdr.Len + n
	total := start + int(size)
	if externalSize >= 0 && total > externalSize {
		return OBU{}, 0, fmt.Errorf("%w: OBU size %d exceeds obu_length %d", ErrMalformed, total, externalSize)
	}
	if total > len(data) {
		return OBU{}, 0, ErrNeedMoreData
	}
	return OBU{Header: hdr, Data: data[:total], Payload: data[start:total]}, total, nil
}

// withSizeField returns the OBU in low-overhead form, adding an obu_size field when absent.
func (o OBU) withSizeField() []byte {
	if o.Header.HasSize {
		return o.Data
	}
	out := make([]byte, 0, len(o.Data)+security.LEB128Size(uint64(len(o.Payload))))
	out = append(out, o.Data[0]|0x02)
	if o.Header.HasExtension {
		out = append(out, o.Data[1])
	}
	out = security.AppendLEB128(out, uint64(len(o.Payload)))
	return append(out, o.Payload...)
}

// AV1Options controls payload shaping of AV1 temporal units.
type AV1Options struct {
	// KeepTemporalDelimiter keeps (or inserts) a temporal delimiter at the start
	// of each emitted unit instead of stripping it.
	KeepTemporalDelimiter bool
}

var temporalDelimiterOBU = []byte{OBUTypeTemporalDelimiter<<3 | 0x02, 0x00}

// temporalUnit accumulates the OBUs of one AV1 temporal unit.
type temporalUnit struct {
	opts     AV1Options
	unit     *Unit
	payload  []byte
	obuCount int
	hasTD    bool
	reduced  bool
}

func newTemporalUnit(opts AV1Options) *temporalUnit {
	return &temporalUnit{opts: opts, unit: newUnit()}
}

func (tu *temporalUnit) add(o OBU) error {
	tu.obuCount++
	if tu.obuCount > security.MaxOBUsPerUnit {
		return fmt.Errorf("%w: "+security.ErrMsgTooManyOBUs, ErrMalformed, tu.obuCount, security.MaxOBUsPerUnit)
	}

	switch o.Header.Type {
	case OBUTypeTemporalDelimiter:
		tu.hasTD = true
		return nil
	case OBUTypeSequenceHeader:
		data := o.withSizeField()
		tu.unit.Elements = append(tu.unit.Elements, Element{Kind: ElementAV1SequenceHeader, Data: data})
		if seq, err := ParseSequenceHeader(data); err == nil {
			tu.unit.Sequence = seq
			tu.reduced = seq.ReducedStillPicture
		}
	case OBUTypeMetadata:
		tu.parseMetadata(o.Payload)
	case OBUTypeFrameHeader, OBUTypeFrame:
		if !tu.unit.HasFrame {
			tu.parseFrameHeader(o.Payload)
		}
		tu.unit.HasFrame = true
	case OBUTypeTileGroup, OBUTypeTileList:
		tu.unit.HasFrame = true
	case OBUTypePadding:
		return nil
	}

	tu.payload = append(tu.payload, o.withSizeField()...)
	return nil
}

func (tu *temporalUnit) parseFrameHeader(payload []byte) {
	if tu.reduced {
		tu.unit.Key = true
		tu.unit.RefreshFrameFlags = 0xFF
		return
	}
	if len(payload) == 0 {
		return
	}
	b := payload[0]
	if b&0x80 != 0 {
		// show_existing_frame
		return
	}
	frameType := (b >> 5) & 0x03
	showFrame := b&0x10 != 0
	tu.unit.Key = frameType == FrameTypeKey
	if tu.unit.Key && showFrame {
		tu.unit.RefreshFrameFlags = 0xFF
	}
}

func (tu *temporalUnit) parseMetadata(payload []byte) {
	mtype, n, err := security.ReadLEB128(payload)
	if err != nil {
		return
	}
	body := payload[n:]
	switch mtype {
	case metadataTypeHDRCLL:
		if len(body) >= 4 {
			tu.unit.ContentLightLevel = append([]byte(nil), body[:4]...)
		}
	case metadataTypeHDRMDCV:
		if len(body) >= 24 {
			tu.unit.MasteringDisplay = append([]byte(nil), body[:24]...)
		}
	}
}

func (tu *temporalUnit) finish() *Unit {
	if tu.opts.KeepTemporalDelimiter {
		tu.unit.Payload = append(append([]byte(nil), temporalDelimiterOBU...), tu.payload...)
	} else {
		tu.unit.Payload = tu.payload
	}
	return tu.unit
}

// ParseSection5 extracts one temporal unit from a low-overhead OBU stream.
//
// Without boundary the unit only completes when the next temporal delimiter is
// visible, so the result does not depend on how bytes were chunked. With
// boundary the end of data also terminates the unit.
func ParseSection5(data []byte, boundary bool, opts AV1Options) Result {
	tu := newTemporalUnit(opts)
	off := 0

	for off < len(data) {
		obu, n, err := ReadOBU(data[off:], -1)
		if err != nil {
			if errors.Is(err, ErrNeedMoreData) {
				if !boundary {
					return needMore()
				}
				return malformedf(len(data), "truncated OBU at offset %d", off)
			}
			if errors.Is(err, ErrImpossible) {
				// no later byte can be trusted as an OBU start
				return fatal(err, 0)
			}
			return fatal(err, off+1)
		}
		if obu.Header.Type == OBUTypeTemporalDelimiter && off > 0 {
			return unitResult(tu.finish(), off)
		}
		if err := tu.add(obu); err != nil {
			return fatal(err, off+1)
		}
		off += n
	}

	if off == 0 || !boundary {
		return needMore()
	}
	return unitResult(tu.finish(), off)
}

// ParseOBUPayload parses a block that holds exactly one temporal unit worth of
// OBUs, as carried in an IVF record or a host-framed packet.
func ParseOBUPayload(data []byte, opts AV1Options) (*Unit, error) {
	tu := newTemporalUnit(opts)
	for off := 0; off < len(data); {
		obu, n, err := ReadOBU(data[off:], -1)
		if err != nil {
			if errors.Is(err, ErrNeedMoreData) {
				return nil, fmt.Errorf("%w: truncated OBU at offset %d", ErrMalformed, off)
			}
			return nil, err
		}
		if err := tu.add(obu); err != nil {
			return nil, err
		}
		off += n
	}
	return tu.finish(), nil
}

// ParseAnnexB extracts one temporal_unit() from an Annex B byte stream.
func ParseAnnexB(data []byte, boundary bool, opts AV1Options) Result {
	tuSize, n, err := security.ReadLEB128(data)
	if err != nil {
		if errors.Is(err, security.ErrLEB128Incomplete) && !boundary {
			return needMore()
		}
		return malformedf(1, "temporal_unit_size: %v", err)
	}
	if tuSize == 0 {
		return malformedf(n, "empty temporal unit")
	}
	if tuSize > security.MaxUnitSize {
		return fatal(fmt.Errorf("%w: "+security.ErrMsgUnitTooLarge, ErrImpossible, tuSize, security.MaxUnitSize), 0)
	}
	total := n + int(tuSize)
	if total > len(data) {
		if !boundary {
			return needMore()
		}
		return malformedf(len(data), "truncated temporal unit: %d of %d bytes", len(data), total)
	}

	tu := newTemporalUnit(opts)
	body := data[n:total]
	for len(body) > 0 {
		fuSize, fn, err := security.ReadLEB128(body)
		if err != nil || int(fuSize) > len(body)-fn {
			return malformedf(total, "frame_unit_size out of temporal unit")
		}
		frame := body[fn : fn+int(fuSize)]
		body = body[fn+int(fuSize):]

		for len(frame) > 0 {
			obuLen, on, err := security.ReadLEB128(frame)
			if err != nil || int(obuLen) > len(frame)-on {
				return malformedf(total, "obu_length out of frame unit")
			}
			obu, _, err := ReadOBU(frame[on:on+int(obuLen)], int(obuLen))
			if err != nil {
				return fatal(fmt.Errorf("annexb OBU: %w", err), total)
			}
			if err := tu.add(obu); err != nil {
				return fatal(err, total)
			}
			frame = frame[on+int(obuLen):]
		}
	}
	return unitResult(tu.finish(), total)
}

// Verdict is the answer of a syntax check over a stream head that may still
// be incomplete.
type Verdict uint8

const (
	VerdictNo Verdict = iota
	VerdictMatch
	// VerdictPending means the head is consistent so far but ends inside the
	// fields that decide.
	VerdictPending
)

// ProbeAnnexB checks whether data starts like an Annex B temporal unit:
// consistent temporal_unit_size, frame_unit_size and obu_length fields and a
// leading temporal delimiter OBU.
func ProbeAnnexB(data []byte) Verdict {
	tuSize, n, err := security.ReadLEB128(data)
	if err != nil {
		return pendingIf(errors.Is(err, security.ErrLEB128Incomplete))
	}
	if tuSize == 0 {
		return VerdictNo
	}
	rest := data[n:]
	fuSize, fn, err := security.ReadLEB128(rest)
	if err != nil {
		return pendingIf(errors.Is(err, security.ErrLEB128Incomplete))
	}
	if fuSize == 0 || fuSize+uint64(fn) > tuSize {
		return VerdictNo
	}
	rest = rest[fn:]
	obuLen, on, err := security.ReadLEB128(rest)
	if err != nil {
		return pendingIf(errors.Is(err, security.ErrLEB128Incomplete))
	}
	if obuLen == 0 || obuLen+uint64(on) > fuSize {
		return VerdictNo
	}
	rest = rest[on:]
	hdr, err := ParseOBUHeader(rest)
	if err != nil {
		return pendingIf(errors.Is(err, ErrNeedMoreData))
	}
	if hdr.Type != OBUTypeTemporalDelimiter || uint64(hdr.Len) > obuLen {
		return VerdictNo
	}
	if !hdr.HasSize {
		return matchIf(obuLen == uint64(hdr.Len))
	}
	size, _, err := security.ReadLEB128(rest[hdr.Len:])
	if err != nil {
		return pendingIf(errors.Is(err, security.ErrLEB128Incomplete))
	}
	return matchIf(size == 0)
}

func pendingIf(ok bool) Verdict {
	if ok {
		return VerdictPending
	}
	return VerdictNo
}

func matchIf(ok bool) Verdict {
	if ok {
		return VerdictMatch
	}
	return VerdictNo
}

// ParseSequenceHeader decodes an AV1 sequence header OBU (header included).
func ParseSequenceHeader(obu []byte) (*SequenceInfo, error) {
	var sh av1.SequenceHeader
	if err := sh.Unmarshal(obu); err != nil {
		return nil, fmt.Errorf("sequence header: %w", err)
	}

	info := &SequenceInfo{
		Width:                   sh.Width(),
		Height:                  sh.Height(),
		Profile:                 sh.SeqProfile,
		ReducedStillPicture:     sh.ReducedStillPictureHeader,
		HighBitDepth:            sh.ColorConfig.HighBitDepth,
		TwelveBit:               sh.ColorConfig.TwelveBit,
		Monochrome:              sh.ColorConfig.MonoChrome,
		SubsamplingX:            sh.ColorConfig.SubsamplingX,
		SubsamplingY:            sh.ColorConfig.SubsamplingY,
		ChromaSamplePosition:    uint8(sh.ColorConfig.ChromaSamplePosition),
		ColorDescription:        sh.ColorConfig.ColorDescriptionPresentFlag,
		ColorPrimaries:          uint8(sh.ColorConfig.ColorPrimaries),
		TransferCharacteristics: uint8(sh.ColorConfig.TransferCharacteristics),
		MatrixCoefficients:      uint8(sh.ColorConfig.MatrixCoefficients),
		FullRange:               sh.ColorConfig.ColorRange,
	}
	if len(sh.SeqLevelIdx) > 0 {
		info.Level = sh.SeqLevelIdx[0]
	}
	if len(sh.SeqTier) > 0 && sh.SeqTier[0] {
		info.Tier = 1
	}
	info.FrameRate = timingRate(sh.TimingInfo)
	return info, nil
}

// timingRate converts timing_info to pictures per second. Without
// equal_picture_interval one picture is assumed per display tick.
func timingRate(ti *av1.SequenceHeader_TimingInfo) types.Rational {
	if ti == nil || ti.TimeScale == 0 || ti.NumUnitsInDisplayTick == 0 {
		return types.Rational{}
	}
	den := uint64(ti.NumUnitsInDisplayTick)
	if ti.EqualPictureInterval {
		den *= uint64(ti.NumTicksPerPictureMinus1) + 1
	}
	if ti.TimeScale > math.MaxInt32 || den > math.MaxInt32 {
		return types.Rational{}
	}
	return types.Rational{Num: int(ti.TimeScale), Den: int(den)}
}
