package index

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/zsiec/reframe/internal/reframe/buffer"
	"github.com/zsiec/reframe/internal/reframe/parser"
	"github.com/zsiec/reframe/internal/reframe/types"
)

// DefaultProbeCeiling bounds the indexing pass over large sources.
const DefaultProbeCeiling = 20_000_000

// ErrDisabled is returned by Build when the window disables indexing.
var ErrDisabled = errors.New("indexing disabled")

// ParseFunc parses one unit at the head of data. Implementations keep
// whatever cross-unit state their syntax needs (IAMF descriptors).
type ParseFunc func(data []byte, boundary bool) parser.Result

// Params configures one indexing pass.
type Params struct {
	Syntax     types.Syntax
	Codec      types.CodecType
	HeaderSize int64
	FPS        types.Rational
	Parse      ParseFunc

	// Window is the minimum spacing between entries in seconds. Negative
	// values index with |Window| only when the source fits under the probe
	// ceiling, zero disables indexing.
	Window       float64
	ProbeCeiling int64
	// Force indexes large sources instead of probing them.
	Force bool
	// ChunkSize is the read size, DefaultReadChunkSize when zero.
	ChunkSize int
}

// plan resolves the window against the source size.
func (p Params) plan(size int64) (window float64, probe int64) {
	window = p.Window
	if window >= 0 {
		return window, 0
	}
	if p.Force {
		return 1, 0
	}
	ceiling := p.ProbeCeiling
	if ceiling <= 0 {
		ceiling = DefaultProbeCeiling
	}
	if size > ceiling {
		return window, ceiling
	}
	return -window, 0
}

// Build walks src from the end of the container header and returns the
// stream duration and a sparse list of sync-point entries.
//
// Sources above the probe ceiling (negative window, no force) are only read
// up to the ceiling; their duration is extrapolated from the probed prefix
// and flagged approximate, and no entries are produced.
func Build(ctx context.Context, src io.ReaderAt, size int64, p Params) (*Result, error) {
	if p.Parse == nil {
		return nil, fmt.Errorf("index: no parser for %s", p.Syntax)
	}
	if !p.FPS.IsValid() {
		return nil, fmt.Errorf("index: invalid frame rate %s", p.FPS)
	}
	if p.Syntax == types.SyntaxRawFixedCodec {
		return nil, fmt.Errorf("%w: %s has no unit boundaries", ErrDisabled, p.Syntax)
	}

	window, probe := p.plan(size)
	if window <= 0 && probe == 0 {
		return nil, ErrDisabled
	}

	chunk := p.ChunkSize
	if chunk <= 0 {
		chunk = buffer.DefaultReadChunkSize
	}
	den := uint64(p.FPS.Den)
	num := uint64(p.FPS.Num)
	usePTS := p.Syntax == types.SyntaxIndexedFrameContainer && p.Codec != types.CodecAV1

	var (
		buf      = buffer.NewReassembly(0)
		scratch  = make([]byte, chunk)
		readPos  = p.HeaderSize
		unitPos  = p.HeaderSize
		eof      = readPos >= size
		duration uint64
		curDur   uint64
		lastMark uint64
		maxPTS   uint64
		lastPTS  uint64
		res      = &Result{Timescale: uint32(num), HeaderSize: p.HeaderSize}
	)
	threshold := window * float64(num)

	for {
		if probe > 0 && unitPos > probe {
			break
		}
		if buf.Len() == 0 && eof {
			break
		}

		r := p.Parse(buf.Bytes(), eof)
		if r.Outcome == parser.OutcomeNeedMoreData && !eof {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			n, err := src.ReadAt(scratch, readPos)
			if n > 0 {
				if aerr := buf.Append(scratch[:n]); aerr != nil {
					return nil, fmt.Errorf("index: %w", aerr)
				}
				readPos += int64(n)
			}
			if err == io.EOF || readPos >= size {
				eof = true
			} else if err != nil {
				return nil, fmt.Errorf("index: read at %d: %w", readPos, err)
			}
			continue
		}
		if r.Outcome != parser.OutcomeUnit {
			// the pass stops at the first unit it cannot parse
			break
		}

		start := unitPos
		if err := buf.Consume(r.Consumed); err != nil {
			return nil, fmt.Errorf("index: %w", err)
		}
		unitPos += int64(r.Consumed)
		u := r.Unit
		if !u.HasFrame {
			// header-only units carry no time
			continue
		}
		res.Units++

		at := duration
		if usePTS && u.HasPTS {
			pts := u.PTS * den
			if pts+maxPTS < lastPTS {
				maxPTS = lastPTS + den
			}
			pts += maxPTS
			at = pts
			duration = pts
			curDur = pts - lastMark
			lastPTS = pts
		} else {
			duration += den
			curDur += den
		}

		sync := u.Key || p.Syntax == types.SyntaxObjectAudio || usePTS
		if probe == 0 && start > 0 && sync && float64(curDur) > threshold {
			res.Entries = append(res.Entries, Entry{Offset: start, Duration: float64(at) / float64(num)})
			lastMark = duration
			curDur = 0
		}
	}

	body := size - p.HeaderSize
	if probe > 0 {
		res.Approximate = true
		if probed := unitPos - p.HeaderSize; probed > 0 && body > probed {
			duration = uint64(math.Round(float64(duration) * float64(body) / float64(probed)))
		}
	}
	res.Duration = duration
	if duration > 0 && body > 0 {
		res.Bitrate = uint64(body) * 8 * num / duration
	}
	return res, nil
}
