package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zsiec/reframe/internal/reframe/testutil"
	"github.com/zsiec/reframe/internal/reframe/types"
)

func TestSplitSuperframe(t *testing.T) {
	altref := testutil.VP9Frame(false, 0, 0, 30)
	shown := testutil.VP9Frame(false, 0, 0, 12)

	t.Run("plain_frame", func(t *testing.T) {
		sf, err := SplitSuperframe(shown)
		require.NoError(t, err)
		require.Len(t, sf.Frames, 1)
		assert.Equal(t, shown, sf.Frames[0])
		assert.Equal(t, 0, sf.IndexSize)
	})

	t.Run("two_frames", func(t *testing.T) {
		block := testutil.VP9Superframe(1, altref, shown)
		sf, err := SplitSuperframe(block)
		require.NoError(t, err)
		require.Len(t, sf.Frames, 2)
		assert.Equal(t, altref, sf.Frames[0])
		assert.Equal(t, shown, sf.Frames[1])
		assert.Equal(t, 4, sf.IndexSize)
		assert.False(t, sf.Mismatch)
	})

	t.Run("two_byte_sizes", func(t *testing.T) {
		big := testutil.VP9Frame(false, 0, 0, 300)
		sf, err := SplitSuperframe(testutil.VP9Superframe(2, big, shown))
		require.NoError(t, err)
		require.Len(t, sf.Frames, 2)
		assert.Equal(t, big, sf.Frames[0])
		assert.Equal(t, 6, sf.IndexSize)
	})

	t.Run("padded_block_is_tolerated", func(t *testing.T) {
		block := testutil.VP9Superframe(1, altref, shown)
		marker := block[len(block)-1]
		// one padding byte between the frames and the index
		padded := append(append([]byte(nil), block[:len(altref)+len(shown)]...), 0x00)
		padded = append(padded, block[len(altref)+len(shown):]...)
		require.Equal(t, marker, padded[len(padded)-1])

		sf, err := SplitSuperframe(padded)
		require.NoError(t, err)
		assert.Len(t, sf.Frames, 2)
		assert.True(t, sf.Mismatch)
	})

	t.Run("overrun_is_malformed", func(t *testing.T) {
		block := testutil.VP9Superframe(1, altref, shown)
		block[len(block)-3] = 0xFF // first size
		_, err := SplitSuperframe(block)
		assert.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := SplitSuperframe(nil)
		assert.ErrorIs(t, err, ErrZeroLength)
	})
}

func TestParseVPxPayloadVP9(t *testing.T) {
	key := testutil.VP9Frame(true, 1280, 720, 40)
	u, err := ParseVPxPayload(types.CodecVP9, key)
	require.NoError(t, err)
	assert.True(t, u.Key)
	require.NotNil(t, u.VP)
	assert.Equal(t, 1280, u.VP.Width)
	assert.Equal(t, 720, u.VP.Height)
	assert.Equal(t, uint8(0), u.VP.Profile)
	assert.Equal(t, uint8(8), u.VP.BitDepth)
	assert.Equal(t, uint8(1), u.VP.ChromaSubsampling)

	inter := testutil.VP9Superframe(1, testutil.VP9Frame(false, 0, 0, 20), testutil.VP9Frame(false, 0, 0, 10))
	u, err = ParseVPxPayload(types.CodecVP9, inter)
	require.NoError(t, err)
	assert.False(t, u.Key)
	assert.Nil(t, u.VP)
	assert.Equal(t, inter, u.Payload)
	assert.Empty(t, u.Warnings)

	_, err = ParseVPxPayload(types.CodecVP9, []byte{0x00, 0x01, 0x02})
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestParseVPxPayloadVP9Chroma(t *testing.T) {
	tests := []struct {
		name     string
		x, y     bool
		want     uint8
		warnings int
	}{
		{"444", false, false, 3, 0},
		{"422", true, false, 2, 0},
		{"420", true, true, 1, 0},
		{"440", false, true, 3, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := ParseVPxPayload(types.CodecVP9, testutil.VP9Profile1KeyFrame(640, 480, tt.x, tt.y, 16))
			require.NoError(t, err)
			assert.True(t, u.Key)
			require.NotNil(t, u.VP)
			assert.Equal(t, uint8(1), u.VP.Profile)
			assert.Equal(t, uint8(2), u.VP.ColorSpace)
			assert.True(t, u.VP.FullRange)
			assert.Equal(t, tt.want, u.VP.ChromaSubsampling)
			assert.Len(t, u.Warnings, tt.warnings)
		})
	}
}

func TestParseVPxPayloadVP8(t *testing.T) {
	u, err := ParseVPxPayload(types.CodecVP8, testutil.VP8Frame(true, 320, 240, 16))
	require.NoError(t, err)
	assert.True(t, u.Key)
	require.NotNil(t, u.VP)
	assert.Equal(t, 320, u.VP.Width)
	assert.Equal(t, 240, u.VP.Height)

	u, err = ParseVPxPayload(types.CodecVP8, testutil.VP8Frame(false, 0, 0, 16))
	require.NoError(t, err)
	assert.False(t, u.Key)
	assert.Nil(t, u.VP)
}

func TestParseRawVPx(t *testing.T) {
	frame := testutil.VP8Frame(true, 64, 64, 8)

	assert.Equal(t, OutcomeNeedMoreData, ParseRawVPx(types.CodecVP8, frame, false).Outcome)

	res := ParseRawVPx(types.CodecVP8, frame, true)
	require.Equal(t, OutcomeUnit, res.Outcome)
	assert.Equal(t, len(frame), res.Consumed)
	assert.False(t, res.Unit.HasPTS)
}
