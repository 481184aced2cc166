package protocol

import (
	"testing"

	"github.com/FairForge/vaultaire/internal/chunk"
	"github.com/FairForge/vaultaire/internal/quota"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateFilenameRejectsTraversal(t *testing.T) {
	assert.NoError(t, ValidateFilename("report.csv"))
	assert.Error(t, ValidateFilename(""))
	assert.Error(t, ValidateFilename("../etc/passwd"))
	assert.Error(t, ValidateFilename("a/b"))
	assert.Error(t, ValidateFilename(`a\b`))
}

func TestAcceptUploadHappyPath(t *testing.T) {
	deps := HandshakeDeps{MaxFileSize: 0, Overwrite: true}
	accept, err := AcceptUpload(UploadRequest{Filename: "x.bin", FileSize: 1000}, deps, chunk.NewTransferID())
	require.Nil(t, err)
	require.NotNil(t, accept)
	assert.Equal(t, uint32(256*1024), accept.ChunkSize)
}

func TestAcceptUploadRejectsOversizedFile(t *testing.T) {
	deps := HandshakeDeps{MaxFileSize: 100}
	_, err := AcceptUpload(UploadRequest{Filename: "x.bin", FileSize: 200}, deps, chunk.NewTransferID())
	require.NotNil(t, err)
	assert.Equal(t, CodeFileTooLarge, err.Code)
}

func TestAcceptUploadRejectsQuotaExceeded(t *testing.T) {
	m := quota.NewManager(t.TempDir(), 100)
	m.RecordBytesAdded(90)
	deps := HandshakeDeps{Quota: m}
	_, err := AcceptUpload(UploadRequest{Filename: "x.bin", FileSize: 50}, deps, chunk.NewTransferID())
	require.NotNil(t, err)
	assert.Equal(t, CodeQuotaExceeded, err.Code)
}

func TestAcceptUploadRejectsExistingFileWithoutOverwrite(t *testing.T) {
	deps := HandshakeDeps{Overwrite: false, Exists: func(string) bool { return true }}
	_, err := AcceptUpload(UploadRequest{Filename: "x.bin", FileSize: 10}, deps, chunk.NewTransferID())
	require.NotNil(t, err)
	assert.Equal(t, CodeFileAlreadyExists, err.Code)
}

func TestAcceptDownloadNotFound(t *testing.T) {
	lookup := func(string) (chunk.FileMetadata, bool) { return chunk.FileMetadata{}, false }
	_, err := AcceptDownload(DownloadRequest{Filename: "missing.bin"}, lookup, chunk.NewTransferID(), 256*1024)
	require.NotNil(t, err)
	assert.Equal(t, CodeServerFileNotFound, err.Code)
}

func TestAcceptDownloadFound(t *testing.T) {
	lookup := func(string) (chunk.FileMetadata, bool) {
		return chunk.FileMetadata{FileSize: 2621440, TotalChunks: 10, SHA256Hash: "abc"}, true
	}
	accept, err := AcceptDownload(DownloadRequest{Filename: "x.bin"}, lookup, chunk.NewTransferID(), 256*1024)
	require.Nil(t, err)
	assert.Equal(t, int64(2621440), accept.FileSize)
	assert.Equal(t, uint64(10), accept.TotalChunks)
}
