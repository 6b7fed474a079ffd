package reframe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zsiec/reframe/internal/config"
	"github.com/zsiec/reframe/internal/reframe/testutil"
	"github.com/zsiec/reframe/internal/reframe/types"
)

func TestProbe(t *testing.T) {
	seq := testutil.SequenceHeader(640, 360)
	key := testutil.TemporalUnit(seq, testutil.FrameOBU(true, 32))
	inter := testutil.TemporalUnit(testutil.FrameOBU(false, 32))

	var fourUnits []byte
	for _, tu := range [][]byte{key, inter, inter, inter} {
		fourUnits = append(fourUnits, tu...)
	}

	tests := []struct {
		name       string
		data       []byte
		confidence Confidence
		syntax     types.Syntax
		mime       string
	}{
		{
			name: "empty",
		},
		{
			name: "zeros",
			data: make([]byte, 64),
		},
		{
			name:       "ivf",
			data:       testutil.IVFFile("AV01", 30, 1, key),
			confidence: Supported,
			syntax:     types.SyntaxIndexedFrameContainer,
			mime:       "video/x-ivf",
		},
		{
			name:       "iamf",
			data:       append(testutil.IAMFDescriptors(960, 1), testutil.IAMFAudioFrame(0, 8)...),
			confidence: Supported,
			syntax:     types.SyntaxObjectAudio,
			mime:       "audio/iamf",
		},
		{
			name: "annex b",
			data: testutil.AnnexBTemporalUnit(
				testutil.OBUNoSize(testutil.OBUTemporalDelimiter, nil),
				testutil.OBUNoSize(testutil.OBUFrame, []byte{0x10, 1, 2, 3}),
			),
			confidence: Supported,
			syntax:     types.SyntaxAnnexByteStream,
			mime:       "video/av1",
		},
		{
			name:       "raw OBU stream",
			data:       fourUnits,
			confidence: Supported,
			syntax:     types.SyntaxRawUnitSequence,
			mime:       "video/av1",
		},
		{
			name:       "one unit then a partial one",
			data:       append(append([]byte(nil), key...), inter[:4]...),
			confidence: Supported,
			syntax:     types.SyntaxRawUnitSequence,
			mime:       "video/av1",
		},
		{
			name:       "single unit with sequence header",
			data:       key,
			confidence: MaybeSupported,
			syntax:     types.SyntaxRawUnitSequence,
			mime:       "video/av1",
		},
		{
			name: "single unit without sequence header",
			data: inter,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Probe(tt.data)
			assert.Equal(t, tt.confidence, got.Confidence, got.Confidence.String())
			if tt.confidence != NotSupported {
				assert.Equal(t, tt.syntax, got.Syntax)
				assert.Equal(t, tt.mime, got.MIME)
			}
		})
	}
}

func TestConfidenceString(t *testing.T) {
	assert.Equal(t, "not_supported", NotSupported.String())
	assert.Equal(t, "maybe", MaybeSupported.String())
	assert.Equal(t, "supported", Supported.String())
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.Default().Reframe
	cfg.FPS = "30000/1001"
	cfg.Dependencies = true

	opts, err := OptionsFromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, types.Rational{Num: 30000, Den: 1001}, opts.FPS)
	assert.Equal(t, -1.0, opts.IndexWindow)
	assert.True(t, opts.Dependencies)
	assert.Equal(t, 64<<20, opts.MaxBufferBytes)

	cfg.FPS = "fast"
	_, err = OptionsFromConfig(cfg)
	assert.Error(t, err)
}
