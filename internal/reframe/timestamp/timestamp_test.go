package timestamp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zsiec/reframe/internal/reframe/types"
)

func TestContainerMode(t *testing.T) {
	r := NewContainer(types.Rational{Num: 30000, Den: 1001})
	assert.Equal(t, ModeContainer, r.Mode())
	assert.Equal(t, uint32(30000), r.Timescale())

	for raw := uint64(0); raw < 4; raw++ {
		ts, restarted := r.Next(raw)
		assert.False(t, restarted)
		assert.Equal(t, raw*1001, ts)
	}
}

func TestContainerModeRestart(t *testing.T) {
	r := NewContainer(types.Rational{Num: 25, Den: 1})

	var got []uint64
	for _, raw := range []uint64{0, 1, 2, 0, 1, 2} {
		ts, _ := r.Next(raw)
		got = append(got, ts)
	}
	// the second run is appended after the first one
	assert.Equal(t, []uint64{0, 1, 2, 3, 4, 5}, got)
	assert.Equal(t, 1, r.Restarts())

	ts, restarted := r.Next(1)
	assert.True(t, restarted)
	assert.Equal(t, uint64(6), ts)
}

func TestContainerModeMonotonic(t *testing.T) {
	r := NewContainer(types.Rational{Num: 1000, Den: 40})
	raws := []uint64{5, 6, 7, 3, 9, 1, 1, 200, 2}

	var prev uint64
	for i, raw := range raws {
		ts, _ := r.Next(raw)
		if i > 0 {
			assert.GreaterOrEqual(t, ts, prev, "unit %d", i)
		}
		prev = ts
	}
}

func TestSyntheticMode(t *testing.T) {
	t.Run("frame_rate_timescale", func(t *testing.T) {
		r := NewSynthetic(types.Rational{Num: 25000, Den: 1000}, 0)
		assert.Equal(t, uint32(25000), r.Timescale())
		for i := uint64(0); i < 3; i++ {
			ts, restarted := r.Next(999)
			assert.False(t, restarted)
			assert.Equal(t, i*1000, ts)
		}
	})

	t.Run("host_timescale", func(t *testing.T) {
		r := NewSynthetic(types.Rational{Num: 30, Den: 1}, 90000)
		assert.Equal(t, uint32(90000), r.Timescale())
		assert.Equal(t, uint64(3000), r.UnitDuration())

		r.SetCursor(9000)
		ts, _ := r.Next(0)
		assert.Equal(t, uint64(9000), ts)
		ts, _ = r.Next(0)
		assert.Equal(t, uint64(12000), ts)

		// host time going backwards is clamped
		r.SetCursor(100)
		ts, _ = r.Next(0)
		assert.Equal(t, uint64(12000), ts)
	})
}

func TestReset(t *testing.T) {
	r := NewContainer(types.Rational{Num: 25, Den: 1})
	r.Next(10)
	r.Next(11)
	r.Reset(0)

	_, emitted := r.Last()
	assert.False(t, emitted)
	ts, restarted := r.Next(4)
	assert.False(t, restarted)
	assert.Equal(t, uint64(4), ts)

	s := NewSynthetic(types.Rational{Num: 25, Den: 1}, 0)
	s.Next(0)
	s.Reset(50)
	ts, _ = s.Next(0)
	assert.Equal(t, uint64(50), ts)
}

func TestRTPMapper(t *testing.T) {
	m := NewRTPMapper(0)
	assert.Equal(t, uint32(DefaultRTPClockRate), m.ClockRate())

	assert.Equal(t, uint64(0), m.ToPTS(1000))
	assert.Equal(t, uint64(3000), m.ToPTS(4000))
	assert.Equal(t, uint64(6000), m.ToPTS(7000))
}

func TestRTPMapperWrap(t *testing.T) {
	m := NewRTPMapper(90000)
	base := uint32(0xFFFFF000)

	require.Equal(t, uint64(0), m.ToPTS(base))
	assert.Equal(t, uint64(0xF00), m.ToPTS(0xFFFFFF00))
	assert.Equal(t, uint64(0x100)+(1<<32)-uint64(base), m.ToPTS(0x00000100))
	assert.Equal(t, 1, m.WrapCount())

	// small backward step is reordering, not a wrap
	m.ToPTS(0x000000F0)
	assert.Equal(t, 1, m.WrapCount())
}

func TestRTPMapperPlausible(t *testing.T) {
	m := NewRTPMapper(90000)
	assert.True(t, m.Plausible(12345))

	m.ToPTS(0xFFFFFF00)
	assert.True(t, m.Plausible(0x00000200))
	assert.False(t, m.Plausible(0x7FFFFFFF))

	m.Reset()
	assert.Equal(t, uint64(0), m.ToPTS(500))
	assert.Equal(t, 0, m.WrapCount())
}
