package timestamp

import (
	"sync"
)

// DefaultRTPClockRate is the RTP video clock.
const DefaultRTPClockRate = 90000

// RTPMapper converts 32-bit RTP timestamps into a monotonically extended
// 64-bit timeline starting at zero.
type RTPMapper struct {
	clockRate uint32
	base      uint32
	last      uint32
	wrapCount int
	started   bool

	mu sync.Mutex
}

// NewRTPMapper creates a mapper for the given clock rate (90 kHz when 0).
func NewRTPMapper(clockRate uint32) *RTPMapper {
	if clockRate == 0 {
		clockRate = DefaultRTPClockRate
	}
	return &RTPMapper{clockRate: clockRate}
}

// ToPTS maps an RTP timestamp. The first timestamp maps to 0.
func (m *RTPMapper) ToPTS(rtpTimestamp uint32) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.started {
		m.base = rtpTimestamp
		m.last = rtpTimestamp
		m.started = true
		return 0
	}

	// a large backward jump is a wrap, a small one is reordering
	if rtpTimestamp < m.last && m.last-rtpTimestamp > 0x80000000 {
		m.wrapCount++
	}
	m.last = rtpTimestamp

	pts := int64(m.wrapCount)<<32 + int64(rtpTimestamp) - int64(m.base)
	if pts < 0 {
		// reordered packet from before the first one
		return 0
	}
	return uint64(pts)
}

// ClockRate returns the RTP clock rate.
func (m *RTPMapper) ClockRate() uint32 {
	return m.clockRate
}

// WrapCount returns the number of 32-bit wraps seen.
func (m *RTPMapper) WrapCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.wrapCount
}

// Plausible reports whether rtpTimestamp is within ten seconds of the last
// timestamp seen, wrap included.
func (m *RTPMapper) Plausible(rtpTimestamp uint32) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.started {
		return true
	}
	delta := rtpTimestamp - m.last // modular
	return uint64(delta) < uint64(m.clockRate)*10
}

// Reset forgets the base so the next timestamp maps to 0 again.
func (m *RTPMapper) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.base, m.last, m.wrapCount, m.started = 0, 0, 0, false
}
