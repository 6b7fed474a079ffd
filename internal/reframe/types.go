package reframe

import (
	"fmt"
	"io"

	"github.com/zsiec/reframe/internal/config"
	"github.com/zsiec/reframe/internal/logger"
	"github.com/zsiec/reframe/internal/reframe/index"
	"github.com/zsiec/reframe/internal/reframe/types"
)

// InputDescriptor is what the host knows about a source before feeding it.
type InputDescriptor struct {
	// Codec is the out-of-band codec, CodecUnknown when the stream must be sniffed.
	Codec types.CodecType
	// HostTimescale is the timescale of fragment PTS values, zero when the
	// host supplies no timing.
	HostTimescale uint32
	// FPS is the host frame rate hint, used when neither configuration nor
	// the stream declares a rate.
	FPS           types.Rational
	Width, Height int
	// Framed is set when every unit arrives as one or more fragments
	// delimited by Start/End hints.
	Framed bool

	// Source gives the indexer its own cursor over the whole input.
	Source     io.ReaderAt
	SourceSize int64
	// CacheKey identifies Source in the index store. Empty disables caching.
	CacheKey string
}

// SourceRef is a host handle whose properties are copied onto emitted units.
// A session releases each ref it holds exactly once.
type SourceRef interface {
	Properties() map[string]interface{}
	Release()
}

// Fragment is one chunk of input.
type Fragment struct {
	Data []byte
	// Start and End delimit units of framed input and are ignored otherwise.
	Start, End bool
	// PTS is in the host timescale and only read on framed unit starts.
	PTS    uint64
	HasPTS bool
	Source SourceRef
}

// SeekRequest asks the host to restart delivery at a byte offset.
type SeekRequest struct {
	Seek   bool
	Offset int64
	// Time is the requested start in seconds.
	Time float64
}

// SAPType is the stream access point class of a unit.
type SAPType uint8

const (
	SAPNone SAPType = 0
	SAP1    SAPType = 1
	SAP4    SAPType = 4
)

// ConfigChange is emitted before the first unit and whenever the decoder
// configuration or HDR side data changes.
type ConfigChange struct {
	Codec      types.CodecType
	Syntax     types.Syntax
	StreamType string
	MIME       string

	Width, Height   int
	SampleRate      uint32
	SamplesPerFrame uint32
	FrameRate       types.Rational
	Timescale       uint32

	HasColor                bool
	ColorPrimaries          uint8
	TransferCharacteristics uint8
	MatrixCoefficients      uint8
	FullRange               bool

	// ConfigChanged is false for updates that only carry HDR side data.
	ConfigChanged bool
	DecoderConfig []byte
	Checksum      uint32

	// ContentLightLevel (4 bytes) and MasteringDisplay (24 bytes, MPEG SEI
	// layout) are only set when they changed.
	ContentLightLevel []byte
	MasteringDisplay  []byte

	// Duration is in DurationTimescale ticks, zero when unknown.
	Duration            uint64
	DurationTimescale   uint32
	ApproximateDuration bool
	Bitrate             uint64
	FrameCount          uint32
	// Delay is the decoder delay in Timescale ticks (negative pre-skip).
	Delay int64
}

// CodedUnit is one extracted unit: a temporal unit, a frame or an IAMF
// temporal unit.
type CodedUnit struct {
	Payload   []byte
	PTS       uint64
	Duration  uint64
	Timescale uint32

	Sync bool
	SAP  SAPType
	// DependsOn and DependedOn use the ISOBMFF sample dependency values,
	// zero when not computed.
	DependsOn  uint8
	DependedOn uint8

	TrimAtStart  uint32
	TrimAtEnd    uint32
	RollDistance int16

	// Offset is the byte offset of the unit in the source, -1 for framed input.
	Offset int64

	ContentLightLevel []byte
	MasteringDisplay  []byte

	Properties map[string]interface{}
}

// DependencyFlags packs the dependency values as in an ISOBMFF sdtp entry.
func (u CodedUnit) DependencyFlags() uint8 {
	return u.DependsOn<<4 | u.DependedOn<<2
}

// Sink receives session output in source order.
type Sink interface {
	OnConfig(ConfigChange) error
	OnUnit(CodedUnit) error
}

// Options tunes a session.
type Options struct {
	// FPS overrides every other frame rate source when valid.
	FPS types.Rational
	// IndexWindow in seconds; see index.Params.Window.
	IndexWindow   float64
	ProbeCeiling  int64
	ForceIndexing bool
	// NoTime ignores host fragment timestamps.
	NoTime bool
	// TemporalDelimiter keeps temporal delimiters in AV1 payloads.
	TemporalDelimiter bool
	// Dependencies computes per-unit dependency flags.
	Dependencies   bool
	MaxBufferBytes int

	Logger     logger.Logger
	IndexStore index.Store
	// WarnRate limits repeated warnings per second, WarnBurst is the bucket size.
	WarnRate  float64
	WarnBurst int
}

// DefaultOptions mirrors the configuration defaults.
func DefaultOptions() Options {
	return Options{
		IndexWindow:  -1,
		ProbeCeiling: index.DefaultProbeCeiling,
		WarnRate:     1,
		WarnBurst:    5,
	}
}

// OptionsFromConfig maps the reframe configuration section onto Options.
// Logger and IndexStore are left for the caller.
func OptionsFromConfig(cfg config.ReframeConfig) (Options, error) {
	fps, err := types.ParseRational(cfg.FPS)
	if err != nil {
		return Options{}, fmt.Errorf("reframe: fps: %w", err)
	}
	return Options{
		FPS:               fps,
		IndexWindow:       cfg.IndexWindow,
		ProbeCeiling:      cfg.ProbeCeiling,
		ForceIndexing:     cfg.ForceIndexing,
		NoTime:            cfg.NoTime,
		TemporalDelimiter: cfg.TemporalDelimiter,
		Dependencies:      cfg.Dependencies,
		MaxBufferBytes:    cfg.MaxBufferBytes,
		WarnRate:          cfg.WarnRate,
		WarnBurst:         cfg.WarnBurst,
	}, nil
}
