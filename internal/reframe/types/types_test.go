package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRational(t *testing.T) {
	tests := []struct {
		in      string
		want    Rational
		wantErr bool
	}{
		{in: "", want: Rational{}},
		{in: "30000/1001", want: Rational{Num: 30000, Den: 1001}},
		{in: " 25 / 1 ", want: Rational{Num: 25, Den: 1}},
		{in: "25", want: Rational{Num: 25, Den: 1}},
		{in: "1", want: Rational{Num: 1, Den: 1}},
		{in: "-3", wantErr: true},
		{in: "29.97", want: Rational{Num: 29970, Den: 1000}},
		{in: "0/1", wantErr: true},
		{in: "abc", wantErr: true},
		{in: "1/x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRational(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRational(t *testing.T) {
	ntsc := Rational{Num: 30000, Den: 1001}
	assert.True(t, ntsc.IsValid())
	assert.False(t, Rational{}.IsValid())
	assert.Zero(t, Rational{Num: 1}.Float64())
	assert.InDelta(t, 29.97, ntsc.Float64(), 0.001)
	assert.Equal(t, "30000/1001", ntsc.String())
}

func TestCodecType(t *testing.T) {
	assert.Equal(t, CodecAV1, CodecFromFourCC("AV01"))
	assert.Equal(t, CodecVP9, CodecFromFourCC("VP90"))
	assert.Equal(t, CodecUnknown, CodecFromFourCC("H264"))
	assert.Equal(t, CodecVP8, ParseCodecType("VP8"))
	assert.True(t, CodecVP10.IsVPx())
	assert.False(t, CodecAV1.IsVPx())
	assert.True(t, CodecIAMF.IsAudio())
	assert.False(t, CodecIAMF.IsVideo())
	assert.Equal(t, "audio/iamf", CodecIAMF.MIMEType())
}

func TestSyntax(t *testing.T) {
	assert.Equal(t, "ivf", SyntaxIndexedFrameContainer.String())
	assert.True(t, SyntaxObjectAudio.IsDetected())
	assert.False(t, SyntaxUnsupported.IsDetected())
	assert.False(t, SyntaxUnknown.IsDetected())
}
