package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadLEB128(t *testing.T) {
	tests := []struct {
		name      string
		data      []byte
		want      uint64
		wantBytes int
		wantErr   error
	}{
		{name: "zero", data: []byte{0x00}, want: 0, wantBytes: 1},
		{name: "one_byte_value", data: []byte{0x7F}, want: 127, wantBytes: 1},
		{name: "two_byte_value", data: []byte{0x80, 0x01}, want: 128, wantBytes: 2},
		{name: "large_value", data: []byte{0xE5, 0x8E, 0x26}, want: 624485, wantBytes: 3},
		{name: "max_uint32", data: []byte{0xFF, 0xFF, 0xFF, 0xFF, 0x0F}, want: 0xFFFFFFFF, wantBytes: 5},
		{name: "padded_encoding", data: []byte{0x81, 0x80, 0x80, 0x00}, want: 1, wantBytes: 4},
		{name: "with_trailing_data", data: []byte{0x7F, 0xAA, 0xBB}, want: 127, wantBytes: 1},
		{name: "empty_data", data: []byte{}, wantErr: ErrLEB128Incomplete},
		{name: "incomplete_encoding", data: []byte{0x80}, wantBytes: 1, wantErr: ErrLEB128Incomplete},
		{name: "overflow_32bit", data: []byte{0xFF, 0xFF, 0xFF, 0xFF, 0x1F}, wantBytes: 5, wantErr: ErrLEB128Overflow},
		{
			name:      "too_many_bytes",
			data:      []byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x00},
			wantBytes: MaxLEB128Bytes,
			wantErr:   ErrLEB128TooManyBytes,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, n, err := ReadLEB128(tt.data)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
			if tt.name != "empty_data" {
				assert.Equal(t, tt.wantBytes, n)
			}
		})
	}
}

func TestAppendLEB128RoundTrip(t *testing.T) {
	for _, v := range []uint64{0, 1, 127, 128, 300, 16383, 16384, 624485, 0xFFFFFFFF} {
		enc := AppendLEB128(nil, v)
		assert.Len(t, enc, LEB128Size(v))

		got, n, err := ReadLEB128(enc)
		require.NoError(t, err)
		assert.Equal(t, v, got)
		assert.Equal(t, len(enc), n)
	}
}

func TestAppendLEB128(t *testing.T) {
	out := AppendLEB128([]byte{0xAA}, 128)
	assert.Equal(t, []byte{0xAA, 0x80, 0x01}, out)
}
