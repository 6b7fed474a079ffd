package buffer

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReassemblyAppendConsumeCompact(t *testing.T) {
	b := NewReassembly(0)

	require.NoError(t, b.Append([]byte("hello ")))
	require.NoError(t, b.Append([]byte("world")))
	assert.Equal(t, 11, b.Len())

	require.NoError(t, b.Consume(6))
	assert.Equal(t, []byte("world"), b.Bytes())
	assert.Equal(t, 6, b.Consumed())

	b.Compact()
	assert.Equal(t, 0, b.Consumed())
	assert.Equal(t, []byte("world"), b.Bytes())

	require.NoError(t, b.Append([]byte("!")))
	assert.Equal(t, []byte("world!"), b.Bytes())
}

func TestReassemblyCompactOverlapping(t *testing.T) {
	// pending region overlaps its destination
	b := NewReassembly(0)
	src := make([]byte, 100)
	for i := range src {
		src[i] = byte(i)
	}
	require.NoError(t, b.Append(src))
	require.NoError(t, b.Consume(10))

	b.Compact()
	assert.Equal(t, src[10:], b.Bytes())
}

func TestReassemblyGrowth(t *testing.T) {
	b := NewReassembly(0)
	chunk := bytes.Repeat([]byte{0xAB}, DefaultInitialCapacity/2+1)

	require.NoError(t, b.Append(chunk))
	first := b.Cap()
	assert.GreaterOrEqual(t, first, DefaultInitialCapacity)

	require.NoError(t, b.Append(chunk))
	require.NoError(t, b.Append(chunk))
	assert.Greater(t, b.Cap(), first)
	assert.Equal(t, 3*len(chunk), b.Len())
}

func TestReassemblyGrowthReclaimsConsumed(t *testing.T) {
	b := NewReassembly(0)
	chunk := bytes.Repeat([]byte{1}, DefaultInitialCapacity-8)
	require.NoError(t, b.Append(chunk))
	capBefore := b.Cap()
	require.NoError(t, b.Consume(len(chunk)-4))

	require.NoError(t, b.Append(bytes.Repeat([]byte{2}, 100)))
	assert.Equal(t, capBefore, b.Cap())
	assert.Equal(t, 104, b.Len())
	assert.Equal(t, []byte{1, 1, 1, 1, 2}, b.Bytes()[:5])
}

func TestReassemblyLimit(t *testing.T) {
	b := NewReassembly(10)
	require.NoError(t, b.Append([]byte("12345678")))

	err := b.Append([]byte("abc"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAllocation))

	var capErr *ErrCapacityExceeded
	require.True(t, errors.As(err, &capErr))
	assert.Equal(t, 8, capErr.Buffered)
	assert.Equal(t, 3, capErr.Required)

	// buffer state untouched by the failed append
	assert.Equal(t, []byte("12345678"), b.Bytes())

	require.NoError(t, b.Consume(5))
	require.NoError(t, b.Append([]byte("abc")))
	assert.Equal(t, []byte("678abc"), b.Bytes())
}

func TestReassemblyConsumeBounds(t *testing.T) {
	b := NewReassembly(0)
	require.NoError(t, b.Append([]byte("abc")))
	assert.Error(t, b.Consume(4))
	assert.Error(t, b.Consume(-1))
	assert.Equal(t, 3, b.Len())
}

func TestReassemblyEmptyAppendAndReset(t *testing.T) {
	var b Reassembly
	require.NoError(t, b.Append(nil))
	assert.Equal(t, 0, b.Len())

	require.NoError(t, b.Append([]byte("xyz")))
	b.Reset()
	assert.Equal(t, 0, b.Len())
	assert.Equal(t, 0, b.Consumed())
}
