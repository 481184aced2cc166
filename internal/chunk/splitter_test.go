package chunk

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixedSplitterProducesExactSizedChunksExceptLast(t *testing.T) {
	data := bytes.Repeat([]byte("x"), 250000)
	s := NewFixedSplitter(bytes.NewReader(data), 65536)

	var total int
	var sizes []int
	for {
		payload, err := s.Next()
		if len(payload) > 0 {
			sizes = append(sizes, len(payload))
			total += len(payload)
		}
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
	}

	assert.Equal(t, len(data), total)
	for _, sz := range sizes[:len(sizes)-1] {
		assert.Equal(t, 65536, sz)
	}
	assert.LessOrEqual(t, sizes[len(sizes)-1], 65536)
}

func TestCDCSplitterReassemblesToOriginal(t *testing.T) {
	data := bytes.Repeat([]byte("content defined chunking test data "), 10000)
	s, err := NewCDCSplitter(bytes.NewReader(data), 64*1024, 1024*1024)
	require.NoError(t, err)

	var reassembled []byte
	for {
		payload, err := s.Next()
		if len(payload) > 0 {
			chunkCopy := make([]byte, len(payload))
			copy(chunkCopy, payload)
			reassembled = append(reassembled, chunkCopy...)
		}
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
	}

	assert.Equal(t, data, reassembled)
}
