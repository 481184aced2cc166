package protocol

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/FairForge/vaultaire/internal/chunk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResumeStateCanResume(t *testing.T) {
	r := &ResumeState{TransferID: chunk.NewTransferID(), FileSize: 10}
	assert.True(t, r.CanResume())

	empty := &ResumeState{}
	assert.False(t, empty.CanResume())
}

func TestResumeStateValidateAgainstDetectsChangedFile(t *testing.T) {
	r := &ResumeState{FileHash: "abc", FileSize: 100}
	assert.Nil(t, r.ValidateAgainst("abc", 100))

	err := r.ValidateAgainst("different", 100)
	require.NotNil(t, err)
	assert.Equal(t, CodeResumeFileChanged, err.Code)
}

func TestSaveAndLoadResumeStateRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")

	want := &ResumeState{
		TransferID:     chunk.NewTransferID(),
		Direction:      DirectionUpload,
		LocalPath:      "/tmp/in.bin",
		RemoteName:     "in.bin",
		FileHash:       "deadbeef",
		FileSize:       2560000,
		LastChunkIndex: 5,
		LastOffset:     5 * 256 * 1024,
		SavedAt:        time.Now().Truncate(time.Second).UTC(),
		MissingChunks:  []uint64{6, 7, 8, 9},
	}

	require.NoError(t, SaveResumeState(path, want))

	got, err := LoadResumeState(path)
	require.NoError(t, err)
	assert.Equal(t, want.TransferID, got.TransferID)
	assert.Equal(t, want.FileHash, got.FileHash)
	assert.Equal(t, want.LastChunkIndex, got.LastChunkIndex)
	assert.Equal(t, want.MissingChunks, got.MissingChunks)
}

func TestLoadResumeStateCorrupted(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))

	_, err := LoadResumeState(path)
	require.Error(t, err)
	var pe *Error
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, CodeResumeStateCorrupted, pe.Code)
}
