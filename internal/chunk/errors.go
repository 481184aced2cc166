package chunk

import "errors"

// Sentinel errors surfaced by this package. Callers in the protocol and
// pipeline layers map these onto the numeric error bands of §7.
var (
	ErrHeaderSize      = errors.New("chunk: header must be exactly 48 bytes")
	ErrReservedNonZero = errors.New("chunk: reserved bytes must be zero")
	ErrSizeInvariant   = errors.New("chunk: compressed_size exceeds 2*original_size+64")
	ErrSizeMismatch    = errors.New("chunk: compressed_size must equal original_size when uncompressed")
	ErrChecksumMismatch = errors.New("chunk: crc32 checksum mismatch")
)
