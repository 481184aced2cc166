package compress

import "errors"

var (
	// ErrSizeMismatch is fatal: the decompressed length didn't match the
	// original_size recorded in the chunk header.
	ErrSizeMismatch = errors.New("compress: decompressed size mismatch")
	// ErrCompressFailed and ErrDecompressFailed are retryable at the chunk level.
	ErrCompressFailed   = errors.New("compress: compression failed")
	ErrDecompressFailed = errors.New("compress: decompression failed")
)
