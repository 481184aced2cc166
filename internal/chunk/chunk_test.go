package chunk

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpectedTotalChunks(t *testing.T) {
	const chunkSize = 256 * 1024
	const fileSize = int64(2.5 * 1024 * 1024) // 2.5 MiB

	got := ExpectedTotalChunks(fileSize, chunkSize)
	assert.Equal(t, uint64(10), got)

	lastChunkSize := fileSize - int64(9*chunkSize)
	assert.Equal(t, int64(262144), lastChunkSize)
}

func TestFileMetadataValidate(t *testing.T) {
	m := FileMetadata{FileSize: 2500000, ChunkSize: 262144, TotalChunks: ExpectedTotalChunks(2500000, 262144)}
	assert.True(t, m.Validate())

	m.TotalChunks++
	assert.False(t, m.Validate())
}

func TestVerifyChecksumRoundTrip(t *testing.T) {
	data := []byte("payload bytes for checksum verification")
	h := Header{Checksum: CRC32(data)}
	c := Chunk{Header: h}
	assert.True(t, c.VerifyChecksum(data))
}
