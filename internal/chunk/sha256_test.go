package chunk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSHA256Vector(t *testing.T) {
	got, err := SHA256Stream(strings.NewReader("abc"))
	require.NoError(t, err)
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", got)
}

func TestSHA256EmptyInput(t *testing.T) {
	got, err := SHA256Stream(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, EmptySHA256, got)
}

func TestSHA256BytesMatchesStream(t *testing.T) {
	data := []byte("file contents for hashing")
	fromBytes := SHA256Bytes(data)
	fromStream, err := SHA256Stream(strings.NewReader(string(data)))
	require.NoError(t, err)
	assert.Equal(t, fromStream, fromBytes)
}
