package detect

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zsiec/reframe/internal/reframe/parser"
	"github.com/zsiec/reframe/internal/reframe/testutil"
	"github.com/zsiec/reframe/internal/reframe/types"
)

func annexBStream() []byte {
	return testutil.AnnexBTemporalUnit(
		testutil.OBUNoSize(testutil.OBUTemporalDelimiter, nil),
		testutil.OBUNoSize(testutil.OBUFrame, []byte{0x10, 1, 2, 3}),
	)
}

func section5Stream() []byte {
	return testutil.TemporalUnit(testutil.SequenceHeader(640, 360), testutil.FrameOBU(true, 16))
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name       string
		data       []byte
		hints      Hints
		wantSyntax types.Syntax
		wantCodec  types.CodecType
	}{
		{
			name:       "iamf",
			data:       testutil.IAMFDescriptors(960, 1),
			wantSyntax: types.SyntaxObjectAudio,
			wantCodec:  types.CodecIAMF,
		},
		{
			name:       "ivf_av1",
			data:       testutil.IVFFile("AV01", 30, 1, section5Stream()),
			wantSyntax: types.SyntaxIndexedFrameContainer,
			wantCodec:  types.CodecAV1,
		},
		{
			name:       "ivf_vp8",
			data:       testutil.IVFFile("VP80", 30, 1, testutil.VP8Frame(true, 64, 64, 10)),
			wantSyntax: types.SyntaxIndexedFrameContainer,
			wantCodec:  types.CodecVP8,
		},
		{
			name:       "declared_vp9",
			data:       testutil.VP9Frame(true, 64, 64, 10),
			hints:      Hints{Codec: types.CodecVP9},
			wantSyntax: types.SyntaxRawFixedCodec,
			wantCodec:  types.CodecVP9,
		},
		{
			name:       "annexb",
			data:       annexBStream(),
			wantSyntax: types.SyntaxAnnexByteStream,
			wantCodec:  types.CodecAV1,
		},
		{
			name:       "section5",
			data:       section5Stream(),
			wantSyntax: types.SyntaxRawUnitSequence,
			wantCodec:  types.CodecAV1,
		},
		{
			name:       "section5_without_delimiter_with_host_timing",
			data:       append(testutil.SequenceHeader(640, 360), testutil.FrameOBU(true, 16)...),
			hints:      Hints{HostTimescale: true},
			wantSyntax: types.SyntaxRawUnitSequence,
			wantCodec:  types.CodecAV1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Detect(tt.data, tt.hints)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSyntax, res.Syntax)
			assert.Equal(t, tt.wantCodec, res.Codec)
		})
	}
}

func TestDetectPriority(t *testing.T) {
	// a declared codec never overrides a self-describing container
	res, err := Detect(testutil.IVFFile("VP90", 30, 1, testutil.VP9Frame(true, 64, 64, 4)), Hints{Codec: types.CodecVP8})
	require.NoError(t, err)
	assert.Equal(t, types.SyntaxIndexedFrameContainer, res.Syntax)
	assert.Equal(t, types.CodecVP9, res.Codec)

	res, err = Detect(testutil.IAMFDescriptors(960, 1), Hints{Codec: types.CodecVP9})
	require.NoError(t, err)
	assert.Equal(t, types.SyntaxObjectAudio, res.Syntax)

	// the declared codec wins over byte patterns that only look like Annex B
	res, err = Detect(annexBStream(), Hints{Codec: types.CodecVP9})
	require.NoError(t, err)
	assert.Equal(t, types.SyntaxRawFixedCodec, res.Syntax)

	// AV1 declared out of band still goes through the byte checks
	res, err = Detect(annexBStream(), Hints{Codec: types.CodecAV1})
	require.NoError(t, err)
	assert.Equal(t, types.SyntaxAnnexByteStream, res.Syntax)
}

func TestDetectIVFHeader(t *testing.T) {
	data := testutil.IVFFile("VP90", 30000, 1001, testutil.VP9Frame(true, 64, 64, 4))
	res, err := Detect(data, Hints{})
	require.NoError(t, err)
	assert.Equal(t, parser.IVFHeaderSize, res.HeaderSize)
	require.NotNil(t, res.IVF)
	assert.Equal(t, types.Rational{Num: 30000, Den: 1001}, res.IVF.FrameRate())
	assert.Empty(t, res.Warnings)

	res, err = Detect(testutil.IVFHeader("VP10", 64, 64, 30, 1, 0), Hints{})
	require.NoError(t, err)
	assert.Equal(t, types.CodecVP10, res.Codec)
	assert.Len(t, res.Warnings, 1)
}

func TestDetectUnsupported(t *testing.T) {
	tests := []struct {
		name  string
		data  []byte
		hints Hints
	}{
		{name: "ivf_unknown_fourcc", data: testutil.IVFHeader("H264", 64, 64, 30, 1, 0)},
		{name: "no_delimiter_no_host_timing", data: section5Stream()[2:]},
		{name: "forbidden_bit", data: []byte{0x80, 0x00, 0x00, 0x00}},
		{name: "grammar_error_before_frame", data: append(testutil.TemporalDelimiter(), 0x0A, 0x00, 0x00, 0x00), hints: Hints{Boundary: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Detect(tt.data, tt.hints)
			assert.ErrorIs(t, err, ErrUnsupportedFormat)
		})
	}
}

func TestDetectNeedsMoreData(t *testing.T) {
	ivf := testutil.IVFHeader("AV01", 64, 64, 30, 1, 0)
	tests := []struct {
		name string
		data []byte
	}{
		{name: "empty", data: nil},
		{name: "short_ivf_header", data: ivf[:16]},
		{name: "short_signature", data: ivf[:2]},
		{name: "delimiter_only", data: testutil.TemporalDelimiter()},
		{name: "partial_sequence_header", data: section5Stream()[:6]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Detect(tt.data, Hints{})
			assert.ErrorIs(t, err, parser.ErrNeedMoreData)
		})
	}
}

func TestDetectAnnexBHeadAcrossReads(t *testing.T) {
	// two-byte size fields leave the first frame header several bytes in
	tu := testutil.AnnexBTemporalUnit(
		testutil.OBUNoSize(testutil.OBUTemporalDelimiter, nil),
		testutil.OBUNoSize(testutil.OBUFrame, testutil.FramePayload(true, 200)),
	)

	for n := 1; n < len(tu); n++ {
		res, err := Detect(tu[:n], Hints{})
		if errors.Is(err, parser.ErrNeedMoreData) {
			continue
		}
		require.NoError(t, err, "head of %d bytes", n)
		assert.Equal(t, types.SyntaxAnnexByteStream, res.Syntax, "head of %d bytes", n)
	}

	// at a boundary the undecided head falls through to the raw OBU check
	_, err := Detect(tu[:4], Hints{Boundary: true})
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}
