// Package rtpsource turns AV1 RTP packets into host-framed fragments for a
// reframe session: one fragment per temporal unit, timed on the 90 kHz RTP
// clock.
package rtpsource

import (
	"errors"
	"fmt"

	"github.com/pion/rtp"

	"github.com/zsiec/reframe/internal/logger"
	"github.com/zsiec/reframe/internal/reframe"
	"github.com/zsiec/reframe/internal/reframe/security"
	"github.com/zsiec/reframe/internal/reframe/timestamp"
)

// AV1 aggregation header bits
const (
	aggZ = 0x80 // first element continues an OBU from the previous packet
	aggY = 0x40 // last element continues in the next packet
	aggW = 0x30 // element count, 0 means every element is length prefixed
	aggN = 0x08 // first packet of a coded video sequence
)

const (
	obuTemporalDelimiter = 2
	obuTileList          = 8
)

var temporalDelimiter = []byte{obuTemporalDelimiter<<3 | 0x02, 0x00}

// ErrPayload marks an RTP payload that does not follow the AV1 payload format.
var ErrPayload = errors.New("rtpsource: malformed AV1 payload")

// Depacketizer reassembles OBUs from AV1 RTP packets. It is not safe for
// concurrent use.
type Depacketizer struct {
	mapper *timestamp.RTPMapper
	log    logger.Logger

	// partial OBU spread over packets
	partial    []byte
	fragmented bool

	lastSeq uint16
	haveSeq bool

	tu      [][]byte
	tuSize  int
	tuTS    uint32
	tuPTS   uint64
	inTU    bool
	dropped int
}

// New creates a depacketizer for an RTP clock rate (90 kHz when 0).
func New(clockRate uint32, log logger.Logger) *Depacketizer {
	if log == nil {
		log = logger.NewNullLogger()
	}
	return &Depacketizer{
		mapper: timestamp.NewRTPMapper(clockRate),
		log:    log.WithField("component", "rtpsource"),
	}
}

// ClockRate is the timescale of the fragment PTS values; configure the
// session with it as host timescale.
func (d *Depacketizer) ClockRate() uint32 { return d.mapper.ClockRate() }

// Dropped returns the number of OBUs discarded after packet loss.
func (d *Depacketizer) Dropped() int { return d.dropped }

// PushRaw unmarshals buf as an RTP packet and pushes it.
func (d *Depacketizer) PushRaw(buf []byte) ([]reframe.Fragment, error) {
	var pkt rtp.Packet
	if err := pkt.Unmarshal(buf); err != nil {
		return nil, fmt.Errorf("rtpsource: %w", err)
	}
	return d.Push(&pkt)
}

// Push consumes one packet and returns the temporal units it completed. A
// unit completes on the marker bit, or when a packet with another timestamp
// arrives.
func (d *Depacketizer) Push(pkt *rtp.Packet) ([]reframe.Fragment, error) {
	payload := pkt.Payload
	if len(payload) < 1 {
		return nil, fmt.Errorf("%w: empty payload", ErrPayload)
	}

	var out []reframe.Fragment
	if d.inTU && pkt.Timestamp != d.tuTS {
		out = d.appendUnit(out)
	}

	if d.haveSeq && pkt.SequenceNumber != d.lastSeq+1 {
		if d.fragmented {
			d.log.WithFields(map[string]interface{}{
				"expected": d.lastSeq + 1,
				"got":      pkt.SequenceNumber,
			}).Warn("Packet loss inside a fragmented OBU, dropping it")
			d.partial, d.fragmented = nil, false
			d.dropped++
		}
	}
	d.lastSeq, d.haveSeq = pkt.SequenceNumber, true

	if !d.inTU {
		d.inTU, d.tuTS = true, pkt.Timestamp
		d.tuPTS = d.mapper.ToPTS(pkt.Timestamp)
	}

	agg := payload[0]
	if agg&aggN != 0 {
		d.log.WithField("seq", pkt.SequenceNumber).Debug("New coded video sequence")
	}
	elements, err := splitElements(payload[1:], int(agg&aggW>>4))
	if err != nil {
		d.reset()
		return out, err
	}

	for i, el := range elements {
		first, last := i == 0, i == len(elements)-1
		switch {
		case first && agg&aggZ != 0:
			if !d.fragmented {
				// continuation of an OBU whose start was lost
				d.dropped++
				continue
			}
			d.partial = append(d.partial, el...)
			if last && agg&aggY != 0 {
				continue
			}
			if err := d.addOBU(d.partial); err != nil {
				return out, err
			}
			d.partial, d.fragmented = nil, false
		case last && agg&aggY != 0:
			d.partial = append([]byte(nil), el...)
			d.fragmented = true
		default:
			if err := d.addOBU(el); err != nil {
				return out, err
			}
		}
	}

	if pkt.Marker && !d.fragmented {
		out = d.appendUnit(out)
	}
	return out, nil
}

// Flush returns the pending temporal unit, if any.
func (d *Depacketizer) Flush() []reframe.Fragment {
	if !d.inTU {
		return nil
	}
	return d.appendUnit(nil)
}

// Reset forgets all state including the timestamp base.
func (d *Depacketizer) Reset() {
	d.reset()
	d.haveSeq = false
	d.mapper.Reset()
}

func (d *Depacketizer) reset() {
	d.partial, d.fragmented = nil, false
	d.tu, d.tuSize, d.inTU = nil, 0, false
}

// addOBU stores one OBU element in low-overhead form: with a size field and
// without temporal delimiters, which the fragment gets in front.
func (d *Depacketizer) addOBU(el []byte) error {
	if len(el) == 0 {
		return nil
	}
	h := el[0]
	if h&0x80 != 0 {
		return fmt.Errorf("%w: forbidden bit set in OBU header", ErrPayload)
	}
	typ := (h >> 3) & 0x0F
	if typ == obuTemporalDelimiter || typ == obuTileList {
		return nil
	}

	hdrLen := 1
	if h&0x04 != 0 {
		hdrLen = 2
	}
	if len(el) < hdrLen {
		return fmt.Errorf("%w: truncated OBU header", ErrPayload)
	}

	var obu []byte
	if h&0x02 != 0 {
		obu = append([]byte(nil), el...)
	} else {
		body := el[hdrLen:]
		obu = make([]byte, 0, len(el)+security.LEB128Size(uint64(len(body))))
		obu = append(obu, h|0x02)
		obu = append(obu, el[1:hdrLen]...)
		obu = security.AppendLEB128(obu, uint64(len(body)))
		obu = append(obu, body...)
	}

	if d.tuSize+len(obu) > security.MaxUnitSize {
		d.reset()
		return fmt.Errorf(security.ErrMsgUnitTooLarge, d.tuSize+len(obu), security.MaxUnitSize)
	}
	d.tu = append(d.tu, obu)
	d.tuSize += len(obu)
	return nil
}

func (d *Depacketizer) appendUnit(out []reframe.Fragment) []reframe.Fragment {
	defer func() { d.tu, d.tuSize, d.inTU = nil, 0, false }()
	if len(d.tu) == 0 {
		return out
	}
	data := make([]byte, 0, len(temporalDelimiter)+d.tuSize)
	data = append(data, temporalDelimiter...)
	for _, obu := range d.tu {
		data = append(data, obu...)
	}
	return append(out, reframe.Fragment{
		Data:   data,
		Start:  true,
		End:    true,
		PTS:    d.tuPTS,
		HasPTS: true,
	})
}

// splitElements cuts an aggregation payload into OBU elements. With w > 0 the
// last of w elements has no length prefix.
func splitElements(payload []byte, w int) ([][]byte, error) {
	var elements [][]byte
	off := 0
	for off < len(payload) {
		if w > 0 && len(elements) == w-1 {
			elements = append(elements, payload[off:])
			break
		}
		size, n, err := security.ReadLEB128(payload[off:])
		if err != nil {
			return nil, fmt.Errorf("%w: element length at %d: %v", ErrPayload, off, err)
		}
		off += n
		if size > uint64(len(payload)-off) {
			return nil, fmt.Errorf("%w: element of %d bytes exceeds the %d remaining", ErrPayload, size, len(payload)-off)
		}
		elements = append(elements, payload[off:off+int(size)])
		off += int(size)
	}
	return elements, nil
}
