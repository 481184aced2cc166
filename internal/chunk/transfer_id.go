// Package chunk implements the framed, self-describing chunk format used by
// the transfer protocol: the 48-byte header, CRC32 per-chunk integrity, and
// SHA-256 whole-file integrity.
package chunk

import (
	"encoding/json"

	"github.com/google/uuid"
)

// TransferID is a 128-bit UUID (version 4) identifying one upload or
// download. The zero value is the null transfer id.
type TransferID uuid.UUID

// NilTransferID is the all-zeros transfer id.
var NilTransferID TransferID

// NewTransferID generates a random version-4 transfer id.
func NewTransferID() TransferID {
	return TransferID(uuid.New())
}

// String returns the canonical hyphenated hex form.
func (t TransferID) String() string {
	return uuid.UUID(t).String()
}

// IsNil reports whether this is the null transfer id.
func (t TransferID) IsNil() bool {
	return t == NilTransferID
}

// Bytes returns the 16-byte representation.
func (t TransferID) Bytes() [16]byte {
	return [16]byte(t)
}

// Less orders transfer ids by lexicographic byte comparison.
func (t TransferID) Less(other TransferID) bool {
	for i := range t {
		if t[i] != other[i] {
			return t[i] < other[i]
		}
	}
	return false
}

// ParseTransferID parses the canonical hyphenated hex form produced by String.
func ParseTransferID(s string) (TransferID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return NilTransferID, err
	}
	return TransferID(u), nil
}

// TransferIDFromBytes builds a transfer id from 16 raw bytes.
func TransferIDFromBytes(b [16]byte) TransferID {
	return TransferID(b)
}

// MarshalJSON renders the canonical hyphenated hex form rather than a raw
// byte array, so persisted resume state and protocol logs stay readable.
func (t TransferID) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON parses the canonical hyphenated hex form.
func (t *TransferID) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseTransferID(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
