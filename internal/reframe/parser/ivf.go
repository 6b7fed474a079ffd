package parser

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/zsiec/reframe/internal/reframe/security"
	"github.com/zsiec/reframe/internal/reframe/types"
)

// IVF layout constants
const (
	IVFHeaderSize       = 32
	IVFFrameHeaderSize  = 12
	ivfSignature        = "DKIF"
	ivfMinHeaderVersion = 0
)

// IVFHeader is the DKIF file header.
type IVFHeader struct {
	Version    uint16
	HeaderSize uint16
	FourCC     string
	Codec      types.CodecType
	Width      uint16
	Height     uint16
	// Rate and Scale give the time base: each timestamp unit lasts Scale/Rate seconds.
	Rate       uint32
	Scale      uint32
	FrameCount uint32
}

// FrameRate returns the header time base as a unit rate, or the zero
// Rational when the header carries no usable time base.
func (h IVFHeader) FrameRate() types.Rational {
	if h.Rate == 0 || h.Scale == 0 || (h.Rate <= 1 && h.Scale <= 1) {
		return types.Rational{}
	}
	return types.Rational{Num: int(h.Rate), Den: int(h.Scale)}
}

// ProbeIVF reports whether data starts with the DKIF signature.
func ProbeIVF(data []byte) bool {
	return len(data) >= 4 && bytes.Equal(data[:4], []byte(ivfSignature))
}

// ParseIVFHeader parses the file header and returns the number of bytes it occupies.
func ParseIVFHeader(data []byte) (IVFHeader, int, error) {
	if len(data) < IVFHeaderSize {
		return IVFHeader{}, 0, ErrNeedMoreData
	}
	if !ProbeIVF(data) {
		return IVFHeader{}, 0, fmt.Errorf("%w: missing DKIF signature", ErrMalformed)
	}

	h := IVFHeader{
		Version:    binary.LittleEndian.Uint16(data[4:6]),
		HeaderSize: binary.LittleEndian.Uint16(data[6:8]),
		FourCC:     string(data[8:12]),
		Width:      binary.LittleEndian.Uint16(data[12:14]),
		Height:     binary.LittleEndian.Uint16(data[14:16]),
		Rate:       binary.LittleEndian.Uint32(data[16:20]),
		Scale:      binary.LittleEndian.Uint32(data[20:24]),
		FrameCount: binary.LittleEndian.Uint32(data[24:28]),
	}
	if h.Version != ivfMinHeaderVersion {
		return IVFHeader{}, 0, fmt.Errorf("%w: IVF version %d", ErrMalformed, h.Version)
	}

	size := int(h.HeaderSize)
	if size < IVFHeaderSize {
		size = IVFHeaderSize
	}
	if len(data) < size {
		return IVFHeader{}, 0, ErrNeedMoreData
	}

	h.Codec = types.CodecFromFourCC(h.FourCC)
	if h.Codec == types.CodecUnknown {
		return h, size, fmt.Errorf("%w: %q", ErrUnknownFourCC, h.FourCC)
	}
	return h, size, nil
}

// IVFRecord is one frame record header.
type IVFRecord struct {
	Size uint32
	PTS  uint64
}

// ParseIVFRecordHeader parses the 12-byte record header.
func ParseIVFRecordHeader(data []byte) (IVFRecord, error) {
	if len(data) < IVFFrameHeaderSize {
		return IVFRecord{}, ErrNeedMoreData
	}
	rec := IVFRecord{
		Size: binary.LittleEndian.Uint32(data[0:4]),
		PTS:  binary.LittleEndian.Uint64(data[4:12]),
	}
	if rec.Size == 0 {
		return rec, fmt.Errorf("%w: IVF record declares 0 bytes", ErrZeroLength)
	}
	if rec.Size > security.MaxIVFFrameSize {
		return rec, fmt.Errorf("%w: IVF record declares %d bytes", ErrImpossible, rec.Size)
	}
	return rec, nil
}

// ParseIVFRecord extracts one record and parses its payload for codec.
//
// A zero or oversized declared size cannot be skipped safely, so those are
// fatal without a resynchronization point. Payload grammar errors skip the
// record.
func ParseIVFRecord(codec types.CodecType, data []byte, boundary bool, opts AV1Options) Result {
	rec, err := ParseIVFRecordHeader(data)
	if err != nil {
		if err == ErrNeedMoreData {
			if boundary && len(data) > 0 {
				return malformedf(len(data), "truncated IVF record header: %d bytes", len(data))
			}
			return needMore()
		}
		return fatal(err, 0)
	}

	total := IVFFrameHeaderSize + int(rec.Size)
	if len(data) < total {
		if boundary {
			return malformedf(len(data), "truncated IVF record: %d of %d bytes", len(data), total)
		}
		return needMore()
	}

	payload := data[IVFFrameHeaderSize:total]
	var u *Unit
	if codec == types.CodecAV1 {
		u, err = ParseOBUPayload(payload, opts)
	} else {
		u, err = ParseVPxPayload(codec, payload)
	}
	if err != nil {
		return fatal(err, total)
	}
	u.HasPTS = true
	u.PTS = rec.PTS
	return unitResult(u, total)
}
