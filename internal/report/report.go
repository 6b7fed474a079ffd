// Package report collects what a reframe session delivered into a
// JSON-encodable summary. The HTTP API and the CLI share it.
package report

import (
	"encoding/hex"
	"hash/crc32"

	"github.com/zsiec/reframe/internal/reframe"
)

// Config is one configuration change as reported to clients.
type Config struct {
	Codec         string `json:"codec"`
	Syntax        string `json:"syntax"`
	MIME          string `json:"mime"`
	Width         int    `json:"width,omitempty"`
	Height        int    `json:"height,omitempty"`
	SampleRate    uint32 `json:"sample_rate,omitempty"`
	FrameRate     string `json:"frame_rate,omitempty"`
	Timescale     uint32 `json:"timescale"`
	DecoderConfig string `json:"decoder_config,omitempty"`
	Checksum      uint32 `json:"checksum"`
	Duration      uint64 `json:"duration,omitempty"`
	// DurationTimescale is the unit of Duration.
	DurationTimescale uint32 `json:"duration_timescale,omitempty"`
	Approximate       bool   `json:"approximate,omitempty"`
	Bitrate           uint64 `json:"bitrate,omitempty"`
	Delay             int64  `json:"delay,omitempty"`
	HDR               bool   `json:"hdr,omitempty"`
}

// Unit is one coded unit without its payload.
type Unit struct {
	PTS       uint64 `json:"pts"`
	Duration  uint64 `json:"duration"`
	Timescale uint32 `json:"timescale"`
	Size      int    `json:"size"`
	CRC       uint32 `json:"crc"`
	Offset    int64  `json:"offset"`
	Sync      bool   `json:"sync,omitempty"`
	SAP       uint8  `json:"sap,omitempty"`
	Roll      int16  `json:"roll,omitempty"`
	TrimStart uint32 `json:"trim_start,omitempty"`
	TrimEnd   uint32 `json:"trim_end,omitempty"`
	Flags     uint8  `json:"flags,omitempty"`
}

// Summary is the outcome of one demux.
type Summary struct {
	Session string   `json:"session"`
	Syntax  string   `json:"syntax"`
	Codec   string   `json:"codec"`
	Configs []Config `json:"configs"`
	Units   []Unit   `json:"units"`
	// Error is set when the session failed after emitting part of the stream.
	Error string `json:"error,omitempty"`
}

// NewConfig converts a configuration change.
func NewConfig(c reframe.ConfigChange) Config {
	out := Config{
		Codec:             c.Codec.String(),
		Syntax:            c.Syntax.String(),
		MIME:              c.MIME,
		Width:             c.Width,
		Height:            c.Height,
		SampleRate:        c.SampleRate,
		Timescale:         c.Timescale,
		DecoderConfig:     hex.EncodeToString(c.DecoderConfig),
		Checksum:          c.Checksum,
		Duration:          c.Duration,
		DurationTimescale: c.DurationTimescale,
		Approximate:       c.ApproximateDuration,
		Bitrate:           c.Bitrate,
		Delay:             c.Delay,
		HDR:               len(c.ContentLightLevel) > 0 || len(c.MasteringDisplay) > 0,
	}
	if c.FrameRate.IsValid() {
		out.FrameRate = c.FrameRate.String()
	}
	return out
}

// NewUnit converts a coded unit, replacing the payload by its size and CRC-32.
func NewUnit(u reframe.CodedUnit) Unit {
	return Unit{
		PTS:       u.PTS,
		Duration:  u.Duration,
		Timescale: u.Timescale,
		Size:      len(u.Payload),
		CRC:       crc32.ChecksumIEEE(u.Payload),
		Offset:    u.Offset,
		Sync:      u.Sync,
		SAP:       uint8(u.SAP),
		Roll:      u.RollDistance,
		TrimStart: u.TrimAtStart,
		TrimEnd:   u.TrimAtEnd,
		Flags:     u.DependencyFlags(),
	}
}

// Collector is a reframe.Sink building a Summary. Units past MaxUnits are
// counted in Dropped only.
type Collector struct {
	MaxUnits int
	Dropped  int
	summary  Summary
}

// OnConfig implements reframe.Sink.
func (c *Collector) OnConfig(change reframe.ConfigChange) error {
	c.summary.Configs = append(c.summary.Configs, NewConfig(change))
	return nil
}

// OnUnit implements reframe.Sink.
func (c *Collector) OnUnit(u reframe.CodedUnit) error {
	if c.MaxUnits > 0 && len(c.summary.Units) >= c.MaxUnits {
		c.Dropped++
		return nil
	}
	c.summary.Units = append(c.summary.Units, NewUnit(u))
	return nil
}

// Summary returns the collected summary labelled with the session's identity.
func (c *Collector) Summary(s *reframe.Session) Summary {
	out := c.summary
	out.Session = s.ID()
	out.Syntax = s.Syntax().String()
	out.Codec = s.Codec().String()
	if out.Configs == nil {
		out.Configs = []Config{}
	}
	if out.Units == nil {
		out.Units = []Unit{}
	}
	return out
}
