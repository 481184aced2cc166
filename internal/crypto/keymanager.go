package crypto

import (
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// MasterKeySize is the required length of the master key passed to
// DeriveTransferKey.
const MasterKeySize = 32

// DeriveTransferKey derives a per-transfer subkey from a master key via
// HKDF-SHA256, salted with the transfer ID so that distinct transfers derive
// distinct subkeys; a resumed transfer keeps its transfer ID and so derives
// the same subkey as before the interruption. Key rotation
// and multi-tenant key storage are out of scope here; this is only the
// derivation step the pipeline's encrypt/decrypt stages need.
func DeriveTransferKey(masterKey []byte, transferID string, keySize int) ([]byte, error) {
	if len(masterKey) != MasterKeySize {
		return nil, fmt.Errorf("master key must be %d bytes, got %d", MasterKeySize, len(masterKey))
	}
	if keySize <= 0 {
		return nil, fmt.Errorf("key size must be positive, got %d", keySize)
	}

	reader := hkdf.New(sha256.New, masterKey, []byte(transferID), []byte("vaultaire-chunk-key"))
	key := make([]byte, keySize)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("derive transfer key: %w", err)
	}
	return key, nil
}
