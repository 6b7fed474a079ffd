package security

import (
	"errors"
)

// LEB128 decoding errors
var (
	ErrLEB128Overflow     = errors.New("LEB128 value overflows 32-bit size field")
	ErrLEB128TooManyBytes = errors.New("LEB128 encoding exceeds maximum allowed bytes")
	ErrLEB128Incomplete   = errors.New("LEB128 encoding is incomplete")
)

// ReadLEB128 reads an unsigned LEB128 value as used by AV1 and IAMF size fields.
// Returns the value, number of bytes read, and any error.
//
// ErrLEB128Incomplete means the input ended inside the encoding and more bytes
// may complete it; the other errors are grammar violations.
func ReadLEB128(data []byte) (uint64, int, error) {
	var value uint64

	for i := 0; i < MaxLEB128Bytes; i++ {
		if i >= len(data) {
			return 0, i, ErrLEB128Incomplete
		}
		b := data[i]
		value |= uint64(b&0x7F) << (7 * uint(i))

		if b&0x80 == 0 {
			if value > MaxLEB128Value {
				return 0, i + 1, ErrLEB128Overflow
			}
			return value, i + 1, nil
		}
	}

	return 0, MaxLEB128Bytes, ErrLEB128TooManyBytes
}

// AppendLEB128 appends the LEB128 encoding of value to dst.
func AppendLEB128(dst []byte, value uint64) []byte {
	for {
		b := byte(value & 0x7F)
		value >>= 7
		if value != 0 {
			b |= 0x80
		}
		dst = append(dst, b)
		if value == 0 {
			return dst
		}
	}
}

// LEB128Size returns the number of bytes needed to encode a value
func LEB128Size(value uint64) int {
	size := 1
	for value >>= 7; value != 0; value >>= 7 {
		size++
	}
	return size
}
