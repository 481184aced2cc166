package pipeline

import "errors"

var (
	// ErrBackpressure is returned by SubmitUploadChunk when the entry
	// stage's queue is full; the caller must slow its network reader.
	ErrBackpressure = errors.New("pipeline: stage queue full, backpressure")

	// ErrAlreadyInitialized is returned by Start on a pipeline that is not stopped.
	ErrAlreadyInitialized = errors.New("pipeline: already started")

	// ErrNotInitialized is returned by Stop on a pipeline that is not running.
	ErrNotInitialized = errors.New("pipeline: not running")

	// ErrCanceled is observed by a job whose per-transfer context was
	// canceled; it returns silently without advancing to the next stage.
	ErrCanceled = errors.New("pipeline: operation canceled")
)
