package ocidigest

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeStreamRewinds(t *testing.T) {
	data := []byte("hello module")
	buf := bytes.NewReader(data)

	d, err := ComputeStream(buf)
	require.NoError(t, err)
	assert.Equal(t, FromBytes(data), d)

	// A second read must still see the full content: ComputeStream must
	// rewind after reading.
	pos, err := buf.Seek(0, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), pos)
}

func TestTrim(t *testing.T) {
	d := FromBytes([]byte("x"))
	assert.Len(t, Trim(d), 64)
	assert.NotContains(t, Trim(d), ":")
}

func TestVerify(t *testing.T) {
	data := []byte("module contents")
	assert.True(t, Verify(data, FromBytes(data)))
	assert.False(t, Verify(data, FromBytes([]byte("other"))))
}

func TestWriterMatchesFromBytes(t *testing.T) {
	data := []byte("streamed module layer")
	w := NewWriter()
	_, err := w.Write(data)
	require.NoError(t, err)
	assert.Equal(t, FromBytes(data), w.Digest())
}
