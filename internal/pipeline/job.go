package pipeline

import (
	"context"

	"github.com/FairForge/vaultaire/internal/chunk"
)

// Job carries one chunk through the pipeline. Ownership of Payload hands off
// between stages without copying or locking; a Job must not be touched by
// more than one worker at a time.
type Job struct {
	Ctx        context.Context
	TransferID chunk.TransferID
	Header     chunk.Header
	Payload    []byte

	WorkerID int

	// Meta describes the file this chunk belongs to: filename, total size,
	// chunk count, and expected whole-file hash. It is the same value for
	// every job in one transfer, carried on each job so the write/read
	// stages don't need a side channel keyed by transfer id to find it.
	Meta chunk.FileMetadata

	// OriginalSize is the uncompressed length. ReadStage sets it on the
	// download chain; no stage reads it back or reports statistics from it.
	OriginalSize int64
}

// canceled reports whether the job's owning transfer has been canceled.
func (j *Job) canceled() bool {
	return j.Ctx != nil && j.Ctx.Err() != nil
}
