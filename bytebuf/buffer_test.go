package bytebuf

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferWriteAndRead(t *testing.T) {
	b := Get(16)
	defer b.Release()

	n, err := b.Write([]byte("hello "))
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	_, err = b.Write([]byte("world"))
	require.NoError(t, err)

	assert.Equal(t, "hello world", b.String())
	assert.Equal(t, 11, b.Len())
	assert.Equal(t, []byte("hello world"), b.Bytes())
}

func TestBufferGrowsPastRequestedCapacity(t *testing.T) {
	b := Get(8)
	defer b.Release()

	payload := bytes.Repeat([]byte("x"), 10_000)
	_, err := b.Write(payload)
	require.NoError(t, err)
	assert.Equal(t, payload, b.Bytes())
}

func TestBufferReadFrom(t *testing.T) {
	b := Get(4)
	defer b.Release()

	payload := strings.Repeat("abc", 5_000)
	n, err := b.ReadFrom(strings.NewReader(payload))
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), n)
	assert.Equal(t, payload, b.String())
}

func TestBufferReleaseIdempotent(t *testing.T) {
	b := Get(16)
	_, err := b.Write([]byte("payload"))
	require.NoError(t, err)

	b.Release()
	b.Release()
	require.NoError(t, b.Close())

	assert.Nil(t, b.Bytes())
	assert.Zero(t, b.Len())
}

func TestBufferReuseAfterRelease(t *testing.T) {
	first := Get(16)
	_, err := first.Write([]byte("stale content"))
	require.NoError(t, err)
	first.Release()

	// a pooled buffer comes back empty whether or not it is the same
	// backing array
	second := Get(16)
	defer second.Release()
	assert.Zero(t, second.Len())

	_, err = second.Write([]byte("fresh"))
	require.NoError(t, err)
	assert.Equal(t, "fresh", second.String())
}

func TestWrapDoesNotPool(t *testing.T) {
	raw := []byte("wrapped")
	b := Wrap(raw)
	assert.Equal(t, "wrapped", b.String())

	b.Release()
	assert.Nil(t, b.Bytes())
	assert.Equal(t, []byte("wrapped"), raw, "releasing a wrapped buffer leaves the original slice alone")
}

func TestWrapNilIsEmpty(t *testing.T) {
	b := Wrap(nil)
	assert.Zero(t, b.Len())
	assert.Empty(t, b.String())
	b.Release()
}
