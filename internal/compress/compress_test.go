package compress

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressDecompressRoundTrip(t *testing.T) {
	cases := [][]byte{
		[]byte(""),
		[]byte("a"),
		bytes.Repeat([]byte("hello world, compress me please "), 500),
	}

	for _, data := range cases {
		compressed, err := Compress(data)
		require.NoError(t, err)

		out, err := Decompress(compressed, len(data))
		require.NoError(t, err)
		assert.Equal(t, data, out)
	}
}

func TestDecompressSizeMismatchIsFatal(t *testing.T) {
	data := bytes.Repeat([]byte("x"), 10000)
	compressed, err := Compress(data)
	require.NoError(t, err)

	_, err = Decompress(compressed, len(data)-1)
	assert.ErrorIs(t, err, ErrSizeMismatch)
}

func TestMaxCompressedSizeBound(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	data := make([]byte, 64*1024)
	_, _ = rnd.Read(data)

	compressed, err := Compress(data)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(compressed), MaxCompressedSize(len(data)))
}

func TestIsCompressibleDetectsKnownFamilies(t *testing.T) {
	gzipMagic := []byte{0x1F, 0x8B, 0x08, 0x00}
	assert.False(t, IsCompressible(gzipMagic))

	pngMagic := []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0}
	assert.False(t, IsCompressible(pngMagic))
}

func TestIsCompressibleAcceptsRepetitiveText(t *testing.T) {
	data := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog "), 200)
	assert.True(t, IsCompressible(data))
}

func TestIsCompressibleRejectsRandomData(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))
	data := make([]byte, SampleSize)
	_, _ = rnd.Read(data)
	assert.False(t, IsCompressible(data))
}

func TestEngineAdaptiveSkipsIncompressible(t *testing.T) {
	e := NewEngine(ModeAdaptive)
	rnd := rand.New(rand.NewSource(7))
	data := make([]byte, SampleSize)
	_, _ = rnd.Read(data)

	wire, compressed, err := e.CompressChunk(data)
	require.NoError(t, err)
	assert.False(t, compressed)
	assert.Equal(t, data, wire)
	assert.Equal(t, uint64(1), e.SkippedCompressions())
}
