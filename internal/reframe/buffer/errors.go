package buffer

import (
	"errors"
	"fmt"
)

// ErrAllocation is matched by every capacity failure of a Reassembly buffer.
var ErrAllocation = errors.New("reassembly buffer allocation failed")

// ErrCapacityExceeded provides detailed information about a rejected append
type ErrCapacityExceeded struct {
	Buffered int
	Required int
	Limit    int
}

func (e *ErrCapacityExceeded) Error() string {
	return fmt.Sprintf("reassembly buffer cannot hold %d more bytes: %d buffered, limit %d",
		e.Required, e.Buffered, e.Limit)
}

// Unwrap lets errors.Is match ErrAllocation.
func (e *ErrCapacityExceeded) Unwrap() error {
	return ErrAllocation
}
