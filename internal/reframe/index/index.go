// Package index builds a sparse time index over a seekable source and
// resolves seek requests against it.
package index

import (
	"errors"
	"fmt"
)

// ErrSeekOutOfRange is returned with the fallback position when a seek cannot
// be resolved against the index.
var ErrSeekOutOfRange = errors.New("seek out of range")

// Entry is one index point: the byte offset of a sync unit and the stream
// time, in seconds, at which that unit starts.
type Entry struct {
	Offset   int64   `msgpack:"o"`
	Duration float64 `msgpack:"d"`
}

// Result is the outcome of one indexing pass.
type Result struct {
	// Duration is expressed in Timescale ticks.
	Duration  uint64 `msgpack:"duration"`
	Timescale uint32 `msgpack:"timescale"`
	// Approximate is set when the duration was extrapolated from a probe prefix.
	Approximate bool `msgpack:"approx"`
	// Bitrate in bits per second, zero when the duration is unknown.
	Bitrate    uint64  `msgpack:"bitrate"`
	HeaderSize int64   `msgpack:"header_size"`
	Units      int     `msgpack:"units"`
	Entries    []Entry `msgpack:"entries"`
}

// Seconds returns the duration in seconds.
func (r *Result) Seconds() float64 {
	if r == nil || r.Timescale == 0 {
		return 0
	}
	return float64(r.Duration) / float64(r.Timescale)
}

// Seek resolves t (seconds) to the last entry whose time is at or before t,
// or to the first entry when t precedes every entry. Without entries, or for
// a negative t, it returns the post-header position and ErrSeekOutOfRange.
func (r *Result) Seek(t float64) (Entry, error) {
	fallback := Entry{}
	if r != nil {
		fallback.Offset = r.HeaderSize
	}
	if r == nil || len(r.Entries) == 0 {
		return fallback, fmt.Errorf("%w: no index entries for %.3fs", ErrSeekOutOfRange, t)
	}
	if t < 0 {
		return fallback, fmt.Errorf("%w: negative time %.3fs", ErrSeekOutOfRange, t)
	}

	best := r.Entries[0]
	for _, e := range r.Entries[1:] {
		if e.Duration > t {
			break
		}
		best = e
	}
	return best, nil
}
