package parser

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/zsiec/reframe/internal/reframe/security"
)

// IAMF OBU types
const (
	IAMFOBUCodecConfig       = 0
	IAMFOBUAudioElement      = 1
	IAMFOBUMixPresentation   = 2
	IAMFOBUParameterBlock    = 3
	IAMFOBUTemporalDelimiter = 4
	IAMFOBUAudioFrame        = 5
	IAMFOBUAudioFrameID0     = 6
	IAMFOBUAudioFrameID17    = 23
	IAMFOBUSequenceHeader    = 31
)

const (
	iamfCode          = "iamf"
	opusSampleRate    = 48000
	defaultSampleRate = 48000
)

// IAMFOBU is one parsed IAMF OBU.
type IAMFOBU struct {
	Type        uint8
	Redundant   bool
	TrimAtEnd   uint32
	TrimAtStart uint32
	// Data is the whole OBU, Payload the part after size, trimming and extension fields.
	Data    []byte
	Payload []byte
}

func (o IAMFOBU) isAudioFrame() bool {
	return o.Type == IAMFOBUAudioFrame || (o.Type >= IAMFOBUAudioFrameID0 && o.Type <= IAMFOBUAudioFrameID17)
}

func (o IAMFOBU) isDescriptor() bool {
	switch o.Type {
	case IAMFOBUSequenceHeader, IAMFOBUCodecConfig, IAMFOBUAudioElement, IAMFOBUMixPresentation:
		return true
	}
	return false
}

// ReadIAMFOBU reads one IAMF OBU at the head of data.
func ReadIAMFOBU(data []byte) (IAMFOBU, int, error) {
	if len(data) < 2 {
		return IAMFOBU{}, 0, ErrNeedMoreData
	}
	h := data[0]
	o := IAMFOBU{
		Type:      h >> 3,
		Redundant: h&0x04 != 0,
	}
	trimming := h&0x02 != 0
	extension := h&0x01 != 0

	size, n, err := security.ReadLEB128(data[1:])
	if err != nil {
		if errors.Is(err, security.ErrLEB128Incomplete) {
			return IAMFOBU{}, 0, ErrNeedMoreData
		}
		return IAMFOBU{}, 0, fmt.Errorf("%w: IAMF obu_size: %v", ErrMalformed, err)
	}
	if size > security.MaxUnitSize {
		return IAMFOBU{}, 0, fmt.Errorf("%w: "+security.ErrMsgUnitTooLarge, ErrImpossible, size, security.MaxUnitSize)
	}
	start := 1 + n
	total := start + int(size)
	if total > len(data) {
		return IAMFOBU{}, 0, ErrNeedMoreData
	}
	o.Data = data[:total]
	body := data[start:total]

	if trimming {
		end, en, err := security.ReadLEB128(body)
		if err != nil {
			return IAMFOBU{}, 0, fmt.Errorf("%w: IAMF trim at end", ErrMalformed)
		}
		st, sn, err := security.ReadLEB128(body[en:])
		if err != nil {
			return IAMFOBU{}, 0, fmt.Errorf("%w: IAMF trim at start", ErrMalformed)
		}
		o.TrimAtEnd, o.TrimAtStart = uint32(end), uint32(st)
		body = body[en+sn:]
	}
	if extension {
		extSize, xn, err := security.ReadLEB128(body)
		if err != nil || int(extSize) > len(body)-xn {
			return IAMFOBU{}, 0, fmt.Errorf("%w: IAMF extension header", ErrMalformed)
		}
		body = body[xn+int(extSize):]
	}
	o.Payload = body
	return o, total, nil
}

// ProbeIAMF reports whether data starts with an IA sequence header.
func ProbeIAMF(data []byte) bool {
	o, _, err := ReadIAMFOBU(data)
	if err != nil || o.Type != IAMFOBUSequenceHeader {
		return false
	}
	return len(o.Payload) >= 4 && bytes.Equal(o.Payload[:4], []byte(iamfCode))
}

// IAMFState keeps the descriptor-derived properties an IAMF stream needs
// across temporal units.
type IAMFState struct {
	SampleRate      uint32
	SamplesPerFrame uint32
	RollDistance    int16
	PreSkip         uint32
	CodecID         string

	// substream counts per audio element id
	substreams map[uint64]int
}

// NewIAMFState creates an empty IAMF state.
func NewIAMFState() *IAMFState {
	return &IAMFState{substreams: make(map[uint64]int)}
}

func (s *IAMFState) totalSubstreams() int {
	total := 0
	for _, n := range s.substreams {
		total += n
	}
	return total
}

// ConfigKnown reports whether a codec config descriptor has been parsed.
func (s *IAMFState) ConfigKnown() bool {
	return s.SamplesPerFrame > 0 && s.SampleRate > 0
}

func (s *IAMFState) parseCodecConfig(p []byte) (uint64, error) {
	id, n, err := security.ReadLEB128(p)
	if err != nil || len(p) < n+4 {
		return 0, fmt.Errorf("%w: codec config header", ErrMalformed)
	}
	p = p[n:]
	codec := string(p[:4])
	p = p[4:]
	spf, n, err := security.ReadLEB128(p)
	if err != nil || len(p) < n+2 {
		return 0, fmt.Errorf("%w: codec config num_samples_per_frame", ErrMalformed)
	}
	p = p[n:]
	s.CodecID = codec
	s.SamplesPerFrame = uint32(spf)
	s.RollDistance = int16(binary.BigEndian.Uint16(p[:2]))
	dec := p[2:]

	s.SampleRate = defaultSampleRate
	switch codec {
	case "Opus":
		s.SampleRate = opusSampleRate
		if len(dec) >= 4 {
			s.PreSkip = uint32(binary.BigEndian.Uint16(dec[2:4]))
		}
	case "ipcm":
		if len(dec) >= 6 {
			s.SampleRate = binary.BigEndian.Uint32(dec[2:6])
		}
	}
	return id, nil
}

func (s *IAMFState) parseAudioElement(p []byte) (uint64, error) {
	id, n, err := security.ReadLEB128(p)
	if err != nil || len(p) < n+1 {
		return 0, fmt.Errorf("%w: audio element header", ErrMalformed)
	}
	p = p[n+1:]
	_, n, err = security.ReadLEB128(p) // codec_config_id
	if err != nil {
		return 0, fmt.Errorf("%w: audio element codec_config_id", ErrMalformed)
	}
	p = p[n:]
	count, _, err := security.ReadLEB128(p)
	if err != nil || count == 0 || count > 255 {
		return 0, fmt.Errorf("%w: audio element num_substreams", ErrMalformed)
	}
	if s.substreams == nil {
		s.substreams = make(map[uint64]int)
	}
	s.substreams[id] = int(count)
	return id, nil
}

func descriptorID(p []byte) uint64 {
	id, _, err := security.ReadLEB128(p)
	if err != nil {
		return 0
	}
	return id
}

func audioSubstreamID(o IAMFOBU) (uint64, error) {
	if o.Type != IAMFOBUAudioFrame {
		return uint64(o.Type - IAMFOBUAudioFrameID0), nil
	}
	id, _, err := security.ReadLEB128(o.Payload)
	if err != nil {
		return 0, fmt.Errorf("%w: audio frame substream id", ErrMalformed)
	}
	return id, nil
}

// ParseIAMF extracts one IAMF temporal unit: optional descriptors and
// parameter blocks followed by one audio frame per substream.
//
// The unit ends after the last expected substream frame, or before an OBU
// that can only start a new temporal unit. Without boundary a unit whose end
// is not yet determined waits for more data.
func (s *IAMFState) ParseIAMF(data []byte, boundary bool) Result {
	u := newUnit()
	audio := &AudioInfo{}
	seen := make(map[uint64]bool)
	frames := 0
	off := 0

	for off < len(data) {
		o, n, err := ReadIAMFOBU(data[off:])
		if err != nil {
			if errors.Is(err, ErrNeedMoreData) {
				if !boundary {
					return needMore()
				}
				return malformedf(len(data), "truncated IAMF OBU at offset %d", off)
			}
			if errors.Is(err, ErrImpossible) {
				return fatal(err, 0)
			}
			return fatal(err, off+1)
		}

		if frames > 0 && !o.isAudioFrame() &&
			(o.isDescriptor() || o.Type == IAMFOBUParameterBlock || o.Type == IAMFOBUTemporalDelimiter) {
			return s.finishIAMF(u, audio, frames > 0, data[:off], off)
		}

		switch {
		case o.isDescriptor():
			if !o.Redundant {
				if err := s.addDescriptor(u, o); err != nil {
					return fatal(err, off+n)
				}
			}
		case o.isAudioFrame():
			id, err := audioSubstreamID(o)
			if err != nil {
				return fatal(err, off+n)
			}
			if seen[id] {
				return s.finishIAMF(u, audio, frames > 0, data[:off], off)
			}
			seen[id] = true
			frames++
			if o.TrimAtEnd > audio.TrimAtEnd {
				audio.TrimAtEnd = o.TrimAtEnd
			}
			if o.TrimAtStart > audio.TrimAtStart {
				audio.TrimAtStart = o.TrimAtStart
			}
		}
		off += n

		if frames > 0 && frames == s.totalSubstreams() {
			return s.finishIAMF(u, audio, frames > 0, data[:off], off)
		}
	}

	if off == 0 || !boundary {
		return needMore()
	}
	return s.finishIAMF(u, audio, frames > 0, data[:off], off)
}

func (s *IAMFState) addDescriptor(u *Unit, o IAMFOBU) error {
	el := Element{Data: o.Data}
	switch o.Type {
	case IAMFOBUSequenceHeader:
		el.Kind = ElementIAMFSequenceHeader
	case IAMFOBUCodecConfig:
		id, err := s.parseCodecConfig(o.Payload)
		if err != nil {
			return err
		}
		el.Kind, el.ID = ElementIAMFCodecConfig, id
	case IAMFOBUAudioElement:
		id, err := s.parseAudioElement(o.Payload)
		if err != nil {
			return err
		}
		el.Kind, el.ID = ElementIAMFAudioElement, id
	case IAMFOBUMixPresentation:
		el.Kind, el.ID = ElementIAMFMixPresentation, descriptorID(o.Payload)
	}
	u.Elements = append(u.Elements, el)
	return nil
}

func (s *IAMFState) finishIAMF(u *Unit, audio *AudioInfo, hasFrames bool, payload []byte, consumed int) Result {
	u.Payload = payload
	u.HasFrame = hasFrames
	audio.SampleRate = s.SampleRate
	audio.SamplesPerFrame = s.SamplesPerFrame
	audio.RollDistance = s.RollDistance
	audio.PreSkip = s.PreSkip
	u.Audio = audio
	// every IAMF temporal unit is independently decodable apart from pre-roll
	u.Key = true
	return unitResult(u, consumed)
}
