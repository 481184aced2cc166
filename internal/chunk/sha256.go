package chunk

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
)

// SHA256Stream computes the hex-encoded SHA-256 digest of everything read
// from r, without buffering the whole stream in memory.
func SHA256Stream(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// SHA256Bytes computes the hex-encoded SHA-256 digest of data.
func SHA256Bytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// EmptySHA256 is the SHA-256 of a zero-length input, used as the boundary
// value for empty-file transfers (§8).
const EmptySHA256 = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
