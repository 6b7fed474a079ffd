package reframe

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingReader struct{}

func (failingReader) ReadAt([]byte, int64) (int, error) { return 0, errors.New("disk gone") }

func TestDriveWholeSource(t *testing.T) {
	ctx := context.Background()
	_, offsets, data := section5Clip()
	sink := &recordingSink{}
	s := newSession(t, sink, DefaultOptions(), InputDescriptor{Source: bytes.NewReader(data), SourceSize: int64(len(data))})

	require.NoError(t, Drive(ctx, s, bytes.NewReader(data), int64(len(data)), 0))
	require.Len(t, sink.units, 5)
	for i, u := range sink.units {
		assert.Equal(t, offsets[i], u.Offset)
	}
}

func TestDriveReadError(t *testing.T) {
	s := newSession(t, &recordingSink{}, DefaultOptions(), InputDescriptor{})
	err := Drive(context.Background(), s, failingReader{}, 100, 0)
	assert.ErrorContains(t, err, "disk gone")
}

func TestDriveCancelled(t *testing.T) {
	_, _, data := section5Clip()
	s := newSession(t, &recordingSink{}, DefaultOptions(), InputDescriptor{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Drive(ctx, s, bytes.NewReader(data), int64(len(data)), 0)
	assert.ErrorIs(t, err, context.Canceled)
}
