// Package decoderconfig accumulates the header elements of a stream into a
// decoder configuration record and reports when that record changes.
package decoderconfig

import (
	"hash/crc32"

	"github.com/zsiec/reframe/internal/reframe/parser"
	"github.com/zsiec/reframe/internal/reframe/types"
)

// Update is produced when the configuration or the HDR side data changed.
type Update struct {
	// ConfigChanged is false when only HDR side data changed.
	ConfigChanged bool
	Config        []byte
	Checksum      uint32

	Sequence *parser.SequenceInfo
	VP       *VPConfig
	Audio    *parser.AudioInfo

	// ContentLightLevel (4 bytes) and MasteringDisplay (24 bytes, MPEG SEI
	// layout) are set only when their own checksum changed.
	ContentLightLevel []byte
	MasteringDisplay  []byte
}

// Record is the current decoder configuration of one stream. It is not safe
// for concurrent use.
type Record struct {
	codec    types.CodecType
	elements []parser.Element

	seq   *parser.SequenceInfo
	vp    *VPConfig
	audio *parser.AudioInfo

	serialized []byte
	checksum   uint32
	signaled   bool

	cllCRC, mdcvCRC uint32
}

// New creates an empty record for codec.
func New(codec types.CodecType) *Record {
	r := &Record{codec: codec}
	if codec.IsVPx() {
		r.vp = DefaultVPConfig(codec)
	}
	return r
}

// Codec returns the record codec.
func (r *Record) Codec() types.CodecType { return r.codec }

// Bytes returns the last serialized record, nil before the first signal.
func (r *Record) Bytes() []byte { return r.serialized }

// Checksum returns the checksum of the last signaled configuration.
func (r *Record) Checksum() uint32 { return r.checksum }

// Signaled reports whether a configuration was ever signaled.
func (r *Record) Signaled() bool { return r.signaled }

// Elements returns the accumulated elements in record order.
func (r *Record) Elements() []parser.Element { return r.elements }

// Sequence returns the last parsed AV1 sequence header, if any.
func (r *Record) Sequence() *parser.SequenceInfo { return r.seq }

// Observe folds the header elements of u into the record. It returns an
// update when the configuration checksum differs from the last signaled one
// (or nothing was signaled yet), or when HDR side data changed.
func (r *Record) Observe(u *parser.Unit) (*Update, bool) {
	var (
		upd     *Update
		changed bool
	)
	switch {
	case r.codec == types.CodecAV1:
		upd, changed = r.observeAV1(u)
	case r.codec.IsVPx():
		upd, changed = r.observeVPx(u)
	case r.codec == types.CodecIAMF:
		upd, changed = r.observeIAMF(u)
	}

	if r.codec == types.CodecAV1 && r.signaled {
		cll, mdcv := r.observeHDR(u, changed)
		if cll != nil || mdcv != nil {
			if upd == nil {
				upd = &Update{Config: r.serialized, Checksum: r.checksum, Sequence: r.seq}
			}
			upd.ContentLightLevel, upd.MasteringDisplay = cll, mdcv
		}
	}
	return upd, upd != nil
}

// Reset forgets what was signaled so the next observation signals again.
// Elements are kept.
func (r *Record) Reset() {
	r.signaled = false
	r.cllCRC, r.mdcvCRC = 0, 0
}

func (r *Record) signal(config []byte, crc uint32) (*Update, bool) {
	if r.signaled && crc == r.checksum {
		return nil, false
	}
	r.serialized = config
	r.checksum = crc
	r.signaled = true
	return &Update{
		ConfigChanged: true,
		Config:        config,
		Checksum:      crc,
		Sequence:      r.seq,
		VP:            r.vp,
		Audio:         r.audio,
	}, true
}

func (r *Record) observeAV1(u *parser.Unit) (*Update, bool) {
	var seqOBU []byte
	for _, el := range u.Elements {
		if el.Kind == parser.ElementAV1SequenceHeader {
			seqOBU = el.Data
		}
	}
	if seqOBU == nil {
		return nil, false
	}
	r.replace(u.Elements, false)
	if u.Sequence != nil {
		r.seq = u.Sequence
	}
	return r.signal(MarshalAV1C(r.seq, r.elements), crc32.ChecksumIEEE(seqOBU))
}

func (r *Record) observeVPx(u *parser.Unit) (*Update, bool) {
	switch {
	case u.VP == nil:
	case r.codec == types.CodecVP9:
		r.vp = r.vp.WithKeyFrame(u.VP)
	default:
		r.vp = r.vp.WithDimensions(u.VP)
	}
	cfg := r.vp.Marshal()
	return r.signal(cfg, crc32.ChecksumIEEE(cfg))
}

func (r *Record) observeIAMF(u *parser.Unit) (*Update, bool) {
	if len(u.Elements) > 0 {
		reset := false
		for _, el := range u.Elements {
			if el.Kind == parser.ElementIAMFSequenceHeader {
				reset = true
			}
		}
		r.replace(u.Elements, reset)
	}
	if u.Audio != nil && u.Audio.SampleRate > 0 && u.Audio.SamplesPerFrame > 0 {
		a := *u.Audio
		a.TrimAtStart, a.TrimAtEnd = 0, 0
		r.audio = &a
	}
	if len(r.elements) == 0 || r.audio == nil || (r.signaled && len(u.Elements) == 0) {
		return nil, false
	}
	cfg := MarshalIACB(r.elements)
	return r.signal(cfg, crc32.ChecksumIEEE(cfg))
}

// replace swaps in elements of the same kind and id, appending new ones.
// With reset the existing element set is dropped first.
func (r *Record) replace(elements []parser.Element, reset bool) {
	if reset {
		r.elements = nil
	}
	for _, el := range elements {
		el.Data = append([]byte(nil), el.Data...)
		found := false
		for i, cur := range r.elements {
			if cur.Kind == el.Kind && cur.ID == el.ID {
				r.elements[i] = el
				found = true
				break
			}
		}
		if !found {
			r.elements = append(r.elements, el)
		}
	}
}

func (r *Record) observeHDR(u *parser.Unit, configSignaled bool) (cll, mdcv []byte) {
	if configSignaled {
		// a new configuration carries its side data afresh
		r.cllCRC, r.mdcvCRC = 0, 0
	}
	if len(u.ContentLightLevel) == 4 {
		if crc := crc32.ChecksumIEEE(u.ContentLightLevel); crc != r.cllCRC {
			r.cllCRC = crc
			cll = append([]byte(nil), u.ContentLightLevel...)
		}
	}
	if len(u.MasteringDisplay) == 24 {
		if crc := crc32.ChecksumIEEE(u.MasteringDisplay); crc != r.mdcvCRC {
			r.mdcvCRC = crc
			mdcv = MasteringDisplayToMPEG(u.MasteringDisplay)
		}
	}
	return cll, mdcv
}
