package server

import (
	"sync"

	"golang.org/x/time/rate"
)

// Admission gates demux requests: a token bucket bounds the request rate and
// a slot count bounds concurrent sessions.
type Admission struct {
	limiter  *rate.Limiter
	maxTotal int
	inUse    int
	mu       sync.Mutex
}

// NewAdmission creates an admission gate. maxTotal <= 0 leaves concurrency
// unbounded and perSecond <= 0 leaves the rate unbounded.
func NewAdmission(maxTotal int, perSecond float64, burst int) *Admission {
	a := &Admission{maxTotal: maxTotal}
	if perSecond > 0 {
		if burst < 1 {
			burst = 1
		}
		a.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
	return a
}

// Allow takes a rate token.
func (a *Admission) Allow() bool {
	return a.limiter == nil || a.limiter.Allow()
}

// TryAcquire takes a session slot.
func (a *Admission) TryAcquire() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.maxTotal > 0 && a.inUse >= a.maxTotal {
		return false
	}
	a.inUse++
	return true
}

// Release returns a slot taken by TryAcquire.
func (a *Admission) Release() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.inUse > 0 {
		a.inUse--
	}
}

// InUse returns the number of sessions holding a slot.
func (a *Admission) InUse() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.inUse
}

// Limit returns the slot count, zero when unbounded.
func (a *Admission) Limit() int {
	if a.maxTotal < 0 {
		return 0
	}
	return a.maxTotal
}
