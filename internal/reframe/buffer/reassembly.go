package buffer

import (
	"fmt"

	"github.com/zsiec/reframe/internal/reframe/security"
)

// Reassembly is a growable byte buffer with a consumed cursor.
//
// Bytes in [consumed, length) are pending; bytes before consumed are logically
// gone and are reclaimed by Compact. The zero value is ready to use with the
// default size limit. Reassembly is not safe for concurrent use.
type Reassembly struct {
	data     []byte // len(data) is the logical length
	consumed int
	limit    int
}

// NewReassembly creates a buffer that refuses to hold more than limit pending bytes.
// A limit <= 0 selects security.MaxBufferSize.
func NewReassembly(limit int) *Reassembly {
	if limit <= 0 {
		limit = security.MaxBufferSize
	}
	return &Reassembly{limit: limit}
}

// Append copies p after the current logical end, growing capacity geometrically.
// On failure the buffer is left untouched.
func (b *Reassembly) Append(p []byte) error {
	if len(p) == 0 {
		return nil
	}
	limit := b.limit
	if limit <= 0 {
		limit = security.MaxBufferSize
	}

	pending := len(b.data) - b.consumed
	if pending+len(p) > limit {
		return &ErrCapacityExceeded{Buffered: pending, Required: len(p), Limit: limit}
	}

	if len(b.data)+len(p) > cap(b.data) {
		// Reclaim the consumed prefix before deciding whether to grow.
		b.Compact()
		if need := len(b.data) + len(p); need > cap(b.data) {
			newCap := cap(b.data) * 2
			if newCap < DefaultInitialCapacity {
				newCap = DefaultInitialCapacity
			}
			for newCap < need {
				newCap *= 2
			}
			grown := make([]byte, len(b.data), newCap)
			copy(grown, b.data)
			b.data = grown
		}
	}

	b.data = append(b.data, p...)
	return nil
}

// Bytes returns the pending bytes. The slice is only valid until the next
// Append, Compact or Reset.
func (b *Reassembly) Bytes() []byte {
	return b.data[b.consumed:]
}

// Len returns the number of pending bytes.
func (b *Reassembly) Len() int {
	return len(b.data) - b.consumed
}

// Consumed returns the consumed cursor.
func (b *Reassembly) Consumed() int {
	return b.consumed
}

// Consume advances the consumed cursor by n bytes.
func (b *Reassembly) Consume(n int) error {
	if n < 0 || n > b.Len() {
		return fmt.Errorf(security.ErrMsgInvalidBounds, b.consumed, n, len(b.data))
	}
	b.consumed += n
	return nil
}

// Compact moves [consumed, length) to the front in one overlap-safe copy and
// resets consumed to 0.
func (b *Reassembly) Compact() {
	if b.consumed == 0 {
		return
	}
	n := copy(b.data, b.data[b.consumed:])
	b.data = b.data[:n]
	b.consumed = 0
}

// Reset discards all pending bytes, keeping the allocation.
func (b *Reassembly) Reset() {
	b.data = b.data[:0]
	b.consumed = 0
}

// Cap returns the current capacity.
func (b *Reassembly) Cap() int {
	return cap(b.data)
}
