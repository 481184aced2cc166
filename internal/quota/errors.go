package quota

import "errors"

var (
	// ErrQuotaExceeded is returned by CheckQuota when admitting need bytes
	// would push usage past the total quota.
	ErrQuotaExceeded = errors.New("quota: would exceed total quota")

	// ErrFileTooLarge is returned by CheckFileSize when a single file
	// exceeds the configured per-file maximum.
	ErrFileTooLarge = errors.New("quota: file exceeds maximum allowed size")
)
