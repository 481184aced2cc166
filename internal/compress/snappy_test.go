package compress

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnappyRoundTrip(t *testing.T) {
	data := bytes.Repeat([]byte("snappy fast-path codec "), 300)

	compressed, err := CompressSnappy(data)
	require.NoError(t, err)

	out, err := DecompressSnappy(compressed, len(data))
	require.NoError(t, err)
	assert.Equal(t, data, out)
}

func TestEngineWithSnappyCodec(t *testing.T) {
	e := NewEngineWithCodec(ModeAlways, CodecSnappy)
	data := bytes.Repeat([]byte("payload bytes for the snappy engine path "), 200)

	wire, compressed, err := e.CompressChunk(data)
	require.NoError(t, err)
	assert.True(t, compressed)

	out, err := e.DecompressChunk(wire, len(data))
	require.NoError(t, err)
	assert.Equal(t, data, out)
}

func TestIsKnownCompressedFamilyRecognizesSnappy(t *testing.T) {
	sample := []byte{0xFF, 0x06, 0x00, 0x00, 0x73, 0x4E, 0x61, 0x50, 0x70, 0x59}
	name, known := IsKnownCompressedFamily(sample)
	assert.True(t, known)
	assert.Equal(t, "snappy", name)
}
