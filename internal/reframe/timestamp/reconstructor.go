// Package timestamp assigns presentation times to extracted units, either
// from container timestamps or by counting units at a fixed rate.
package timestamp

import (
	"github.com/zsiec/reframe/internal/reframe/types"
)

// Mode selects how a Reconstructor derives times.
type Mode uint8

const (
	// ModeSynthetic counts units at the frame rate.
	ModeSynthetic Mode = iota
	// ModeContainer scales per-unit container timestamps.
	ModeContainer
)

func (m Mode) String() string {
	if m == ModeContainer {
		return "container"
	}
	return "synthetic"
}

// Reconstructor produces non-decreasing unit times in its output timescale.
// It is not safe for concurrent use.
type Reconstructor struct {
	mode      Mode
	timescale uint32
	unitDur   uint64

	// container mode
	offset int64
	// synthetic mode
	cursor uint64

	last     uint64
	emitted  bool
	restarts int
}

// NewContainer creates a reconstructor for container timestamps expressed in
// units of fps.Den/fps.Num seconds. The output timescale is fps.Num.
func NewContainer(fps types.Rational) *Reconstructor {
	return &Reconstructor{
		mode:      ModeContainer,
		timescale: uint32(fps.Num),
		unitDur:   uint64(fps.Den),
	}
}

// NewSynthetic creates a reconstructor that advances one frame duration per
// unit. With a host timescale the output uses it, otherwise fps.Num.
func NewSynthetic(fps types.Rational, hostTimescale uint32) *Reconstructor {
	r := &Reconstructor{mode: ModeSynthetic}
	if hostTimescale > 0 {
		r.timescale = hostTimescale
		r.unitDur = uint64(fps.Den) * uint64(hostTimescale) / uint64(fps.Num)
	} else {
		r.timescale = uint32(fps.Num)
		r.unitDur = uint64(fps.Den)
	}
	return r
}

// Mode returns the reconstruction mode.
func (r *Reconstructor) Mode() Mode { return r.mode }

// Timescale returns the output timescale in ticks per second.
func (r *Reconstructor) Timescale() uint32 { return r.timescale }

// UnitDuration returns the nominal unit duration in output ticks.
func (r *Reconstructor) UnitDuration() uint64 { return r.unitDur }

// Restarts returns how many container timestamp restarts were absorbed.
func (r *Reconstructor) Restarts() int { return r.restarts }

// Last returns the last emitted time and whether any unit was emitted.
func (r *Reconstructor) Last() (uint64, bool) { return r.last, r.emitted }

// Next returns the time of the next unit. raw is the container timestamp and
// is ignored in synthetic mode. restarted reports that the container time went
// backwards and was rebased after the previous unit (a concatenated source).
func (r *Reconstructor) Next(raw uint64) (ts uint64, restarted bool) {
	switch r.mode {
	case ModeContainer:
		scaled := int64(raw * r.unitDur)
		ts = uint64(scaled + r.offset)
		if r.emitted && ts < r.last {
			ts = r.last + r.unitDur
			r.offset = int64(ts) - scaled
			r.restarts++
			restarted = true
		}
	default:
		ts = r.cursor
		r.cursor += r.unitDur
	}
	r.last = ts
	r.emitted = true
	return ts, restarted
}

// SetCursor moves the synthetic cursor to a host-supplied time, in output
// ticks. Times behind the last emitted unit are clamped so output never goes
// backwards.
func (r *Reconstructor) SetCursor(ts uint64) {
	if r.emitted && ts < r.last {
		ts = r.last
	}
	r.cursor = ts
}

// Reset forgets emitted history and restarts synthetic counting at at.
func (r *Reconstructor) Reset(at uint64) {
	r.offset = 0
	r.cursor = at
	r.last = 0
	r.emitted = false
}
