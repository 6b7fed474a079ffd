package reframe

import (
	"context"
	"errors"
	"fmt"

	"github.com/zsiec/reframe/internal/metrics"
	"github.com/zsiec/reframe/internal/reframe/decoderconfig"
	"github.com/zsiec/reframe/internal/reframe/detect"
	"github.com/zsiec/reframe/internal/reframe/parser"
	"github.com/zsiec/reframe/internal/reframe/timestamp"
	"github.com/zsiec/reframe/internal/reframe/types"
)

// extract runs the parser over the pending bytes until it needs more data,
// delivery pauses or the buffer is empty. boundary tells the parser that the
// pending bytes end at a unit boundary (end of stream, end of a framed unit).
func (s *Session) extract(ctx context.Context, boundary bool) error {
	defer s.buf.Compact()

loop:
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !s.syntax.IsDetected() {
			ok, err := s.detect(boundary)
			if err != nil || !ok {
				return err
			}
		}
		if skip := int64(s.headerSize) - s.bufOffset; skip > 0 {
			if int64(s.buf.Len()) < skip {
				return nil
			}
			s.consume(int(skip))
		}
		if s.buf.Len() == 0 {
			return nil
		}

		r := s.parse(s.buf.Bytes(), boundary)
		switch r.Outcome {
		case parser.OutcomeNeedMoreData:
			break loop
		case parser.OutcomeFatal:
			if err := s.malformed(r); err != nil {
				return err
			}
			continue
		}

		s.produced++
		if err := s.observe(ctx, r.Unit); err != nil {
			return err
		}
		if !s.hasDestination() {
			s.drop(r, "no_destination")
			continue
		}
		if !s.playing {
			// retained as-is until delivery resumes
			break loop
		}
		if err := s.emit(r.Unit, r.Consumed); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) consume(n int) {
	// n never exceeds the pending length: parsers report sizes within data
	_ = s.buf.Consume(n)
	s.bufOffset += int64(n)
}

// detect classifies the pending bytes once. It reports false while more
// data is needed.
func (s *Session) detect(boundary bool) (bool, error) {
	res, err := detect.Detect(s.buf.Bytes(), s.hints(boundary))
	if errors.Is(err, parser.ErrNeedMoreData) {
		return false, nil
	}
	if err != nil {
		return false, s.fail("detect", err)
	}
	if err := s.adopt(res); err != nil {
		return false, s.fail("detect", err)
	}
	return true, nil
}

func (s *Session) hints(boundary bool) detect.Hints {
	return detect.Hints{
		Codec:         s.desc.Codec,
		HostTimescale: s.desc.HostTimescale > 0,
		Boundary:      boundary,
	}
}

// adopt installs a detection result: parser, configuration record, frame
// rate and timeline.
func (s *Session) adopt(res detect.Result) error {
	parse, err := newParser(res.Syntax, res.Codec, s.av1Opts)
	if err != nil {
		return err
	}
	s.syntax, s.codec = res.Syntax, res.Codec
	s.parse = parse
	s.headerSize = res.HeaderSize
	s.record = decoderconfig.New(res.Codec)

	if res.IVF != nil {
		s.ivf = res.IVF
		if w := int(res.IVF.Width); w > s.width {
			s.width = w
		}
		if h := int(res.IVF.Height); h > s.height {
			s.height = h
		}
	}

	s.fps, s.container = s.resolveRate()
	s.ts = s.newTimeline()
	s.ts.Reset(s.resumeAt)

	s.log = s.warn.WithFields(map[string]interface{}{
		"syntax": s.syntax.String(),
		"codec":  s.codec.String(),
	})
	for _, w := range res.Warnings {
		s.log.Warn(w)
	}
	s.log.WithFields(map[string]interface{}{
		"fps":         s.fps.String(),
		"header_size": s.headerSize,
		"timing":      s.ts.Mode().String(),
	}).Info("Detected stream format")
	return nil
}

// resolveRate picks the unit rate: configured, then the IVF time base (whose
// timestamps are then trusted), then the host hint, then the default. An AV1
// timing_info rate later replaces the last two, see adoptSequenceRate.
func (s *Session) resolveRate() (types.Rational, bool) {
	switch {
	case s.opts.FPS.IsValid():
		return s.opts.FPS, false
	case s.ivf != nil && s.ivf.FrameRate().IsValid():
		return s.ivf.FrameRate(), !s.desc.Framed
	case s.desc.FPS.IsValid():
		return s.desc.FPS, false
	}
	return types.DefaultFrameRate, false
}

func (s *Session) newTimeline() *timestamp.Reconstructor {
	if s.container {
		return timestamp.NewContainer(s.fps)
	}
	return timestamp.NewSynthetic(s.fps, s.desc.HostTimescale)
}

func (s *Session) resetTimeline(at uint64) {
	s.resumeAt = at
	if s.ts != nil {
		s.ts.Reset(at)
	}
}

func (s *Session) timescale() uint32 {
	if s.ts != nil {
		return s.ts.Timescale()
	}
	if s.desc.HostTimescale > 0 {
		return s.desc.HostTimescale
	}
	return uint32(s.fps.Num)
}

func (s *Session) restarts() int {
	if s.ts == nil {
		return 0
	}
	return s.ts.Restarts()
}

// malformed handles a fatal parse outcome: skip to the resynchronization
// point, or fail the session when there is none or nothing was ever parsed.
func (s *Session) malformed(r parser.Result) error {
	metrics.IncrementMalformedUnits(s.syntax.String())

	if r.Resync <= 0 {
		if errors.Is(r.Err, parser.ErrZeroLength) {
			return s.fail("zero_length", fmt.Errorf("reframe: unit at offset %d: %w", s.bufOffset, r.Err))
		}
		return s.fail("unrecoverable", fmt.Errorf("%w: unit at offset %d: %w", ErrMalformedUnit, s.bufOffset, r.Err))
	}
	if s.produced == 0 {
		return s.fail("malformed", fmt.Errorf("%w: first unit at offset %d: %w", ErrUnsupportedFormat, s.bufOffset, r.Err))
	}

	s.log.WithError(r.Err).WithFields(map[string]interface{}{
		"offset":  s.bufOffset,
		"skipped": r.Resync,
	}).Warn("Dropping malformed unit")
	metrics.RecordUnitDropped(s.syntax.String(), "malformed")
	s.consume(r.Resync)
	return nil
}

func (s *Session) drop(r parser.Result, reason string) {
	if s.sink != nil && s.codec == types.CodecAV1 && r.Unit.HasFrame {
		s.log.Warnf("Dropping %d bytes of AV1 data before the first sequence header", r.Consumed)
	} else {
		s.log.Debugf("Dropping %d byte unit: %s", r.Consumed, reason)
	}
	metrics.RecordUnitDropped(s.syntax.String(), reason)
	s.consume(r.Consumed)
}

// observe feeds the configuration record and forwards changes to the sink.
func (s *Session) observe(ctx context.Context, u *parser.Unit) error {
	for _, w := range u.Warnings {
		s.log.Warn(w)
	}

	upd, ok := s.record.Observe(u)
	if !ok {
		return nil
	}
	if upd.ConfigChanged {
		metrics.IncrementConfigChanges(s.codec.String())
		if upd.Audio != nil {
			s.adoptAudioRate(upd.Audio)
		}
		if upd.Sequence != nil {
			s.adoptSequenceRate(upd.Sequence)
		}
	}
	if upd.ContentLightLevel != nil {
		s.pendingCLL = upd.ContentLightLevel
	}
	if upd.MasteringDisplay != nil {
		s.pendingMDCV = upd.MasteringDisplay
	}
	if s.sink == nil {
		return nil
	}

	change := s.configChange(upd)
	if idx := s.ensureIndex(ctx, false); idx != nil {
		change.Duration = idx.Duration
		change.DurationTimescale = idx.Timescale
		change.ApproximateDuration = idx.Approximate
		change.Bitrate = idx.Bitrate
	}
	if err := s.sink.OnConfig(change); err != nil {
		return fmt.Errorf("reframe: delivering configuration: %w", err)
	}
	return nil
}

// adoptAudioRate switches IAMF timing to one unit per audio frame. Later
// rate changes keep the running timeline.
func (s *Session) adoptAudioRate(a *parser.AudioInfo) {
	rate := types.Rational{Num: int(a.SampleRate), Den: int(a.SamplesPerFrame)}
	if s.audioRate || !rate.IsValid() {
		if s.audioRate && rate != s.fps {
			s.log.Warnf("IAMF frame rate changed to %s, keeping %s", rate, s.fps)
		}
		return
	}
	s.audioRate = true
	s.fps, s.container = rate, false
	s.ts = s.newTimeline()
	s.ts.Reset(s.resumeAt)
}

// adoptSequenceRate takes the AV1 timing_info rate when neither
// configuration nor an IVF time base fixed one. Only the first sequence
// header with timing_info counts.
func (s *Session) adoptSequenceRate(seq *parser.SequenceInfo) {
	rate := seq.FrameRate
	if s.seqRate || !rate.IsValid() {
		if s.seqRate && rate.IsValid() && rate != s.fps {
			s.log.Warnf("AV1 timing_info rate changed to %s, keeping %s", rate, s.fps)
		}
		return
	}
	if s.opts.FPS.IsValid() || (s.ivf != nil && s.ivf.FrameRate().IsValid()) {
		return
	}
	s.seqRate = true
	if rate == s.fps {
		return
	}
	s.log.WithField("fps", rate.String()).Info("Using AV1 timing_info frame rate")
	s.fps, s.container = rate, false
	s.ts = s.newTimeline()
	s.ts.Reset(s.resumeAt)
	// an index built at the previous rate has wrong durations
	s.idx, s.idxTried, s.idxFull = nil, false, false
}

func (s *Session) configChange(upd *decoderconfig.Update) ConfigChange {
	c := ConfigChange{
		Codec:             s.codec,
		Syntax:            s.syntax,
		StreamType:        "video",
		MIME:              s.codec.MIMEType(),
		Width:             s.width,
		Height:            s.height,
		FrameRate:         s.fps,
		Timescale:         s.timescale(),
		ConfigChanged:     upd.ConfigChanged,
		DecoderConfig:     upd.Config,
		Checksum:          upd.Checksum,
		ContentLightLevel: upd.ContentLightLevel,
		MasteringDisplay:  upd.MasteringDisplay,
	}
	if s.ivf != nil {
		c.FrameCount = s.ivf.FrameCount
	}

	switch {
	case upd.Sequence != nil:
		seq := upd.Sequence
		c.Width, c.Height = max(c.Width, seq.Width), max(c.Height, seq.Height)
		if seq.ColorDescription {
			c.HasColor = true
			c.ColorPrimaries = seq.ColorPrimaries
			c.TransferCharacteristics = seq.TransferCharacteristics
			c.MatrixCoefficients = seq.MatrixCoefficients
		}
		c.FullRange = seq.FullRange
	case upd.VP != nil:
		vp := upd.VP
		c.Width, c.Height = max(c.Width, vp.Width), max(c.Height, vp.Height)
		c.HasColor = true
		c.ColorPrimaries = vp.ColourPrimaries
		c.TransferCharacteristics = vp.TransferCharacteristics
		c.MatrixCoefficients = vp.MatrixCoefficients
		c.FullRange = vp.FullRange
	case upd.Audio != nil:
		c.StreamType = "audio"
		c.Width, c.Height = 0, 0
		c.SampleRate = upd.Audio.SampleRate
		c.SamplesPerFrame = upd.Audio.SamplesPerFrame
		c.Delay = -int64(upd.Audio.PreSkip)
	}
	if s.codec.IsAudio() {
		c.StreamType = "audio"
	}
	s.width, s.height = max(s.width, c.Width), max(s.height, c.Height)
	return c
}

// emit consumes the unit at the head of the buffer and delivers it.
func (s *Session) emit(u *parser.Unit, n int) error {
	offset := s.bufOffset
	if s.desc.Framed {
		offset = -1
	}
	payload := append([]byte(nil), u.Payload...)
	s.consume(n)

	if !u.HasFrame {
		s.log.Debugf("Skipping %d byte unit without frame data", n)
		metrics.RecordUnitDropped(s.syntax.String(), "no_frame")
		return nil
	}

	if s.hasHostPTS {
		s.ts.SetCursor(s.hostPTS)
		s.hasHostPTS = false
	}
	pts, restarted := s.ts.Next(u.PTS)
	if restarted {
		s.log.WithField("pts", pts).Warn("Timestamp less than previous timestamp, assuming concatenation")
		metrics.IncrementTimestampRestarts(s.syntax.String())
	}

	cu := CodedUnit{
		Payload:   payload,
		PTS:       pts,
		Duration:  s.ts.UnitDuration(),
		Timescale: s.ts.Timescale(),
		Sync:      u.Key,
		Offset:    offset,
	}
	if u.Key {
		cu.SAP = SAP1
	}
	if a := u.Audio; a != nil && s.codec == types.CodecIAMF {
		cu.TrimAtStart, cu.TrimAtEnd = a.TrimAtStart, a.TrimAtEnd
		if a.RollDistance != 0 {
			cu.RollDistance = a.RollDistance
			cu.SAP = SAP4
		}
		if a.TrimAtEnd > 0 && uint64(a.TrimAtEnd) < cu.Duration {
			cu.Duration -= uint64(a.TrimAtEnd)
		}
	}
	if s.opts.Dependencies && s.codec.IsVideo() {
		cu.DependsOn = 1
		if u.Key {
			cu.DependsOn = 2
		}
		if s.codec == types.CodecAV1 && u.RefreshFrameFlags >= 0 {
			cu.DependedOn = 2
			if u.RefreshFrameFlags != 0 {
				cu.DependedOn = 1
			}
		}
	}
	cu.ContentLightLevel, cu.MasteringDisplay = s.pendingCLL, s.pendingMDCV
	s.pendingCLL, s.pendingMDCV = nil, nil
	if s.held != nil {
		cu.Properties = copyProperties(s.held.Properties())
	}

	s.emitted++
	metrics.RecordUnitEmitted(s.syntax.String(), s.codec.String(), len(payload))
	if err := s.sink.OnUnit(cu); err != nil {
		return fmt.Errorf("reframe: delivering unit at %d: %w", pts, err)
	}
	return nil
}

func copyProperties(in map[string]interface{}) map[string]interface{} {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
