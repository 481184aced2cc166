package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/FairForge/vaultaire/internal/chunk"
)

// uploadAssembly tracks one in-progress upload's destination file: chunks
// land at their chunk_offset via WriteAt in whatever order they arrive, and
// the assembly is considered done once every chunk_index in [0, TotalChunks)
// has been seen.
type uploadAssembly struct {
	mu       sync.Mutex
	file     *os.File
	tmpPath  string
	destPath string
	meta     chunk.FileMetadata
	received map[uint64]bool
}

// uploadTracker keys in-progress assemblies by transfer id so concurrent
// write-stage workers for the same transfer share one destination file
// handle instead of racing to create it.
type uploadTracker struct {
	mu   sync.Mutex
	byID map[chunk.TransferID]*uploadAssembly
}

func newUploadTracker() *uploadTracker {
	return &uploadTracker{byID: make(map[chunk.TransferID]*uploadAssembly)}
}

// assemblyFor returns the assembly for id, creating its .tmp destination
// file on first use.
func (t *uploadTracker) assemblyFor(id chunk.TransferID, destRoot string, meta chunk.FileMetadata) (*uploadAssembly, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if a, ok := t.byID[id]; ok {
		return a, nil
	}

	if err := os.MkdirAll(destRoot, 0o755); err != nil {
		return nil, fmt.Errorf("create destination root: %w", err)
	}
	destPath := filepath.Join(destRoot, meta.Filename)
	tmpPath := destPath + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create partial file: %w", err)
	}

	a := &uploadAssembly{
		file:     f,
		tmpPath:  tmpPath,
		destPath: destPath,
		meta:     meta,
		received: make(map[uint64]bool),
	}
	t.byID[id] = a
	return a, nil
}

func (t *uploadTracker) forget(id chunk.TransferID) {
	t.mu.Lock()
	delete(t.byID, id)
	t.mu.Unlock()
}

// writeChunk records one chunk's bytes at its offset and reports whether
// every chunk_index the transfer expects has now been received.
func (a *uploadAssembly) writeChunk(h chunk.Header, payload []byte) (complete bool, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, err := a.file.WriteAt(payload, int64(h.ChunkOffset)); err != nil {
		return false, fmt.Errorf("write chunk %d at offset %d: %w", h.ChunkIndex, h.ChunkOffset, err)
	}
	a.received[h.ChunkIndex] = true
	return uint64(len(a.received)) >= a.meta.TotalChunks, nil
}

// finish closes the partial file, verifies its whole-file SHA-256 against
// meta.SHA256Hash, and either renames it into place or deletes it on
// mismatch (file_hash_mismatch, §4.G).
func (a *uploadAssembly) finish() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.file.Close(); err != nil {
		return fmt.Errorf("close partial file for %s: %w", a.meta.Filename, err)
	}

	f, err := os.Open(a.tmpPath)
	if err != nil {
		return fmt.Errorf("reopen partial file for verification: %w", err)
	}
	sum, err := chunk.SHA256Stream(f)
	_ = f.Close()
	if err != nil {
		return fmt.Errorf("hash assembled file: %w", err)
	}

	if sum != a.meta.SHA256Hash {
		_ = os.Remove(a.tmpPath)
		return fmt.Errorf("assembled file %s: hash %s does not match expected %s (file_hash_mismatch)",
			a.meta.Filename, sum, a.meta.SHA256Hash)
	}

	if err := os.Rename(a.tmpPath, a.destPath); err != nil {
		return fmt.Errorf("rename partial file into place: %w", err)
	}
	return nil
}
