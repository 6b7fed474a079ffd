// Package testutil builds synthetic AV1, VPx, IVF and IAMF byte streams for tests.
package testutil

import "math/bits"

// BitWriter writes MSB-first bit fields.
type BitWriter struct {
	buf  []byte
	nbit int
}

// Write appends the low n bits of v.
func (w *BitWriter) Write(v uint64, n int) {
	for i := n - 1; i >= 0; i-- {
		if w.nbit%8 == 0 {
			w.buf = append(w.buf, 0)
		}
		if (v>>uint(i))&1 == 1 {
			w.buf[len(w.buf)-1] |= 1 << uint(7-w.nbit%8)
		}
		w.nbit++
	}
}

// Flag appends a single bit.
func (w *BitWriter) Flag(b bool) {
	if b {
		w.Write(1, 1)
	} else {
		w.Write(0, 1)
	}
}

// UVLC appends v as an unsigned exp-Golomb code.
func (w *BitWriter) UVLC(v uint32) {
	x := uint64(v) + 1
	n := bits.Len64(x) - 1
	w.Write(0, n)
	w.Write(x, n+1)
}

// TrailingBits appends AV1 trailing bits: a one bit then zeros to the byte boundary.
func (w *BitWriter) TrailingBits() {
	w.Write(1, 1)
	for w.nbit%8 != 0 {
		w.Write(0, 1)
	}
}

// Bytes returns the written bytes, zero padded to a byte boundary.
func (w *BitWriter) Bytes() []byte {
	return w.buf
}
