// Package reframe turns AV1, VP8/VP9/VP10 and IAMF byte streams into coded
// units with timestamps, sync flags and decoder configuration.
//
// A Session owns one source. The host configures it, feeds bytes in any
// chunking, and receives ConfigChange and CodedUnit values through a Sink in
// source order. A Session is not safe for concurrent use and starts no
// goroutines.
package reframe

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/zsiec/reframe/internal/logger"
	"github.com/zsiec/reframe/internal/metrics"
	"github.com/zsiec/reframe/internal/reframe/buffer"
	"github.com/zsiec/reframe/internal/reframe/decoderconfig"
	"github.com/zsiec/reframe/internal/reframe/index"
	"github.com/zsiec/reframe/internal/reframe/parser"
	"github.com/zsiec/reframe/internal/reframe/timestamp"
	"github.com/zsiec/reframe/internal/reframe/types"
)

// Session reframes one source.
type Session struct {
	id   string
	opts Options
	log  logger.Logger
	warn *logger.RateLimited
	sink Sink

	desc       InputDescriptor
	configured bool
	closed     bool
	// err is the terminal failure, returned by every later call.
	err error

	syntax     types.Syntax
	codec      types.CodecType
	ivf        *parser.IVFHeader
	headerSize int
	parse      index.ParseFunc
	record     *decoderconfig.Record
	av1Opts    parser.AV1Options
	width      int
	height     int

	buf *buffer.Reassembly
	// bufOffset is the source offset of the first pending byte.
	bufOffset int64
	backlog   []Fragment

	fps        types.Rational
	container  bool
	audioRate  bool
	seqRate    bool
	ts         *timestamp.Reconstructor
	resumeAt   uint64
	hostPTS    uint64
	hasHostPTS bool

	playing         bool
	initialPlayDone bool
	produced        int
	emitted         int

	pendingCLL  []byte
	pendingMDCV []byte
	held        SourceRef

	idx      *index.Result
	idxTried bool
	idxFull  bool
}

// New creates a session delivering to sink. A nil sink parses and discards.
func New(sink Sink, opts Options) *Session {
	base := opts.Logger
	if base == nil {
		base = logger.NewNullLogger()
	}
	id := uuid.New().String()
	warn := logger.NewRateLimited(base.WithFields(map[string]interface{}{
		"component":  "reframe",
		"session_id": id,
	}), opts.WarnRate, opts.WarnBurst)

	metrics.SessionStarted()
	return &Session{
		id:     id,
		opts:   opts,
		log:    warn,
		warn:   warn,
		sink:   sink,
		buf:    buffer.NewReassembly(opts.MaxBufferBytes),
		codec:  types.CodecUnknown,
		syntax: types.SyntaxUnknown,
		av1Opts: parser.AV1Options{
			KeepTemporalDelimiter: opts.TemporalDelimiter,
		},
	}
}

// ID returns the session identifier used in logs.
func (s *Session) ID() string { return s.id }

// Syntax returns the detected syntax, SyntaxUnknown before detection.
func (s *Session) Syntax() types.Syntax { return s.syntax }

// Codec returns the detected or declared codec.
func (s *Session) Codec() types.CodecType { return s.codec }

// Emitted returns the number of units delivered to the sink.
func (s *Session) Emitted() int { return s.emitted }

// SuppressedWarnings returns how many warnings the rate limiter dropped.
func (s *Session) SuppressedWarnings() int64 { return s.warn.Suppressed() }

// Err returns the terminal failure, if any.
func (s *Session) Err() error { return s.err }

// Configure records what the host knows about the input. It must be called
// once before Feed.
func (s *Session) Configure(desc InputDescriptor) error {
	if s.closed {
		return ErrClosed
	}
	if s.configured {
		return errors.New("reframe: session already configured")
	}
	if desc.Source != nil && desc.SourceSize <= 0 {
		return fmt.Errorf("reframe: source size %d is not positive", desc.SourceSize)
	}
	if desc.FPS != (types.Rational{}) && !desc.FPS.IsValid() {
		return fmt.Errorf("reframe: invalid frame rate hint %s", desc.FPS)
	}

	s.desc = desc
	s.codec = desc.Codec
	s.width, s.height = desc.Width, desc.Height
	s.configured = true

	s.log.WithFields(map[string]interface{}{
		"codec":          desc.Codec.String(),
		"framed":         desc.Framed,
		"host_timescale": desc.HostTimescale,
		"seekable":       desc.Source != nil,
	}).Debug("Session configured")
	return nil
}

// Feed hands the session the next chunk of input. Complete units are
// delivered to the sink before Feed returns; partial units are retained.
// After a terminal failure Feed returns that failure without doing work.
func (s *Session) Feed(ctx context.Context, frag Fragment) error {
	if err := s.usable(); err != nil {
		return err
	}
	if len(frag.Data) == 0 {
		return nil
	}
	if s.desc.Framed {
		return s.feedFramed(ctx, frag)
	}

	if frag.Source != nil {
		s.hold(frag.Source)
	}
	if err := s.buf.Append(frag.Data); err != nil {
		return fmt.Errorf("reframe: buffering %d bytes: %w", len(frag.Data), err)
	}
	if s.paused() {
		return nil
	}
	return s.extract(ctx, false)
}

func (s *Session) feedFramed(ctx context.Context, frag Fragment) error {
	if s.paused() {
		frag.Data = append([]byte(nil), frag.Data...)
		s.backlog = append(s.backlog, frag)
		return nil
	}
	if err := s.drainBacklog(ctx); err != nil {
		return err
	}
	return s.framed(ctx, frag)
}

func (s *Session) drainBacklog(ctx context.Context) error {
	for len(s.backlog) > 0 && !s.paused() {
		frag := s.backlog[0]
		s.backlog = s.backlog[1:]
		if err := s.framed(ctx, frag); err != nil {
			return err
		}
	}
	if len(s.backlog) == 0 {
		s.backlog = nil
	}
	return nil
}

// framed aggregates host-delimited fragments into one unit buffer and
// extracts it once the unit end is seen.
func (s *Session) framed(ctx context.Context, frag Fragment) error {
	if frag.Start {
		if s.buf.Len() > 0 {
			// the previous unit never saw its end
			s.log.Debugf("Flushing %d bytes of an unterminated unit", s.buf.Len())
			err := s.extract(ctx, true)
			s.dropPending()
			if err != nil {
				return err
			}
		}
		if !s.opts.NoTime && frag.HasPTS && s.desc.HostTimescale > 0 {
			s.hostPTS, s.hasHostPTS = frag.PTS, true
		}
		if frag.Source != nil {
			s.hold(frag.Source)
		}
	}

	if err := s.buf.Append(frag.Data); err != nil {
		return fmt.Errorf("reframe: buffering %d bytes: %w", len(frag.Data), err)
	}
	if !frag.End {
		return nil
	}
	err := s.extract(ctx, true)
	s.dropPending()
	return err
}

// dropPending discards whatever a framed unit left behind.
func (s *Session) dropPending() {
	s.bufOffset += int64(s.buf.Len())
	s.buf.Reset()
}

// EndOfStream extracts everything still buffered, treating the end of data
// as a unit boundary, and releases the held source reference.
func (s *Session) EndOfStream(ctx context.Context) error {
	if err := s.usable(); err != nil {
		return err
	}
	defer s.release()

	if err := s.drainBacklog(ctx); err != nil {
		return err
	}
	if s.paused() {
		return nil
	}

	for s.buf.Len() > 0 {
		before := s.buf.Len()
		if err := s.extract(ctx, true); err != nil {
			return err
		}
		if s.buf.Len() == before {
			break
		}
	}

	if !s.syntax.IsDetected() && s.buf.Len() > 0 {
		return s.fail("undetected", fmt.Errorf("%w: stream ended after %d bytes without a recognizable header",
			ErrUnsupportedFormat, s.buf.Len()))
	}
	if s.buf.Len() > 0 && s.playing {
		s.log.Warnf("Discarding %d trailing bytes at end of stream", s.buf.Len())
		metrics.RecordUnitDropped(s.syntax.String(), "trailing")
	}

	s.log.WithFields(map[string]interface{}{
		"units":    s.emitted,
		"restarts": s.restarts(),
	}).Debug("End of stream")
	return nil
}

// Play starts or restarts delivery at start seconds. When the session can
// seek its source and delivery must restart elsewhere, the returned request
// carries the byte offset the host has to resume feeding from. The first play
// from the beginning needs no seek.
func (s *Session) Play(ctx context.Context, start float64) (SeekRequest, error) {
	if err := s.usable(); err != nil {
		return SeekRequest{}, err
	}
	if !s.playing {
		s.playing = true
		s.resetTimeline(0)
	}
	if s.desc.Source == nil {
		return SeekRequest{}, nil
	}

	var (
		pos int64
		at  uint64
	)
	if start > 0 {
		if err := s.ensureDetected(); err != nil {
			return SeekRequest{}, err
		}
		if idx := s.ensureIndex(ctx, true); idx != nil {
			entry, err := idx.Seek(start)
			if err != nil {
				s.log.WithError(err).Warn("Seek falls back to start of data")
			} else {
				pos = entry.Offset
				at = uint64(entry.Duration * float64(s.timescale()))
			}
		}
	}

	first := !s.initialPlayDone
	s.initialPlayDone = true
	if first && pos == 0 {
		return SeekRequest{}, nil
	}

	s.buf.Reset()
	s.backlog = nil
	if pos == 0 {
		pos = int64(s.headerSize)
	}
	s.bufOffset = pos
	s.resetTimeline(at)

	s.log.WithFields(map[string]interface{}{
		"start":  start,
		"offset": pos,
	}).Debug("Requesting source seek")
	return SeekRequest{Seek: true, Offset: pos, Time: start}, nil
}

// Stop halts delivery. Buffered bytes and timing are discarded and the held
// source reference is released; the configuration record and the index are
// kept.
func (s *Session) Stop() {
	s.playing = false
	s.buf.Reset()
	s.backlog = nil
	s.hasHostPTS = false
	s.resetTimeline(0)
	s.release()
}

// SetSpeed is accepted for interface completeness; speed has no effect on
// reframing.
func (s *Session) SetSpeed(float64) {}

// Playing reports whether delivery is active.
func (s *Session) Playing() bool { return s.playing }

// Close releases the session. It is safe to call more than once.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.release()
	s.buf.Reset()
	s.backlog = nil
	metrics.SessionEnded()
	return nil
}

func (s *Session) usable() error {
	switch {
	case s.closed:
		return ErrClosed
	case !s.configured:
		return ErrNotConfigured
	case s.err != nil:
		return s.err
	}
	return nil
}

// paused reports that an output exists but delivery is stopped, in which
// case input is retained untouched.
func (s *Session) paused() bool {
	return !s.playing && s.hasDestination()
}

// hasDestination reports whether extracted units have somewhere to go: a
// sink and either a signaled configuration or host-supplied timing.
func (s *Session) hasDestination() bool {
	if s.sink == nil {
		return false
	}
	return s.desc.HostTimescale > 0 || (s.record != nil && s.record.Signaled())
}

func (s *Session) hold(ref SourceRef) {
	if s.held != nil {
		s.held.Release()
	}
	s.held = ref
}

func (s *Session) release() {
	if s.held != nil {
		s.held.Release()
		s.held = nil
	}
}

// fail makes err terminal.
func (s *Session) fail(reason string, err error) error {
	s.err = err
	metrics.IncrementTerminalFailures(s.syntax.String(), reason)
	if !s.syntax.IsDetected() || s.produced == 0 {
		s.syntax = types.SyntaxUnsupported
	}
	s.log.WithError(err).WithField("reason", reason).Error("Session failed")
	s.buf.Reset()
	s.backlog = nil
	return err
}
