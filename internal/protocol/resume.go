package protocol

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/FairForge/vaultaire/internal/chunk"
)

// ResumeState is the initiator-owned record that lets a transfer continue
// across a reconnection (§3). It is invalidated whenever the source file's
// hash changes since it was saved.
type ResumeState struct {
	TransferID     chunk.TransferID `json:"transfer_id"`
	Direction      Direction        `json:"direction"`
	LocalPath      string           `json:"local_path"`
	RemoteName     string           `json:"remote_name"`
	FileHash       string           `json:"file_hash"`
	FileSize       int64            `json:"file_size"`
	LastChunkIndex uint64           `json:"last_chunk_index"`
	LastOffset     int64            `json:"last_offset"`
	SavedAt        time.Time        `json:"saved_at"`
	MissingChunks  []uint64         `json:"missing_chunks,omitempty"`
}

// CanResume reports whether the state is resumable at all: a non-nil
// transfer ID and a positive file size.
func (r *ResumeState) CanResume() bool {
	return r != nil && !r.TransferID.IsNil() && r.FileSize > 0
}

// ValidateAgainst checks the state against the server's current view of the
// file (hash and size); mismatch means the file changed underneath the
// transfer and resume must be refused with resume_file_changed.
func (r *ResumeState) ValidateAgainst(serverHash string, serverSize int64) *Error {
	if r.FileHash != serverHash || r.FileSize != serverSize {
		return NewError(CodeResumeFileChanged, "source file changed since resume state was saved")
	}
	return nil
}

// SaveResumeState persists state to path atomically: write to a sibling
// .tmp file, then rename over the destination, mirroring the write-through
// semantics §7 requires of downloaded file data.
func SaveResumeState(path string, state *ResumeState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// LoadResumeState reads a resume state previously written by
// SaveResumeState. Code CodeResumeStateCorrupted is returned when the file
// exists but cannot be parsed.
func LoadResumeState(path string) (*ResumeState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var state ResumeState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, NewError(CodeResumeStateCorrupted, err.Error())
	}
	return &state, nil
}
