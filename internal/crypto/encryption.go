// Package crypto supplies the optional encrypt/decrypt pipeline stage
// engines (§4.F's "decrypt?"/"encrypt?" hooks, §3's per-chunk Encrypted
// flag). Key management and key rotation are intentionally out of scope;
// this package only derives a per-transfer subkey from a caller-supplied
// master key and seals/opens chunk payloads with it.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
)

// Algorithm names an AEAD construction available to the pipeline's
// encryption stage.
type Algorithm string

const (
	AlgorithmNone       Algorithm = "none"
	AlgorithmChaCha20   Algorithm = "xchacha20poly1305"
	AlgorithmAESGCM     Algorithm = "aes256gcm"
)

// Encryptor seals and opens chunk payloads under a caller-supplied key. All
// implementations here are stateless and safe for concurrent use, so one
// Encryptor per pipeline worker (or one shared instance) both work.
type Encryptor interface {
	Seal(key, plaintext []byte) (ciphertext, nonce []byte, err error)
	Open(key, nonce, ciphertext []byte) (plaintext []byte, err error)
	Algorithm() Algorithm
	KeySize() int
	NonceSize() int
}

// NewEncryptor builds the Encryptor for algo. An empty value selects the
// default XChaCha20-Poly1305 engine; AlgorithmNone yields a pass-through
// encryptor.
func NewEncryptor(algo Algorithm) (Encryptor, error) {
	switch algo {
	case AlgorithmChaCha20, "":
		return chaCha20Poly1305Encryptor{}, nil
	case AlgorithmAESGCM:
		return aesGCMEncryptor{}, nil
	case AlgorithmNone:
		return noopEncryptor{}, nil
	default:
		return nil, fmt.Errorf("unsupported encryption algorithm %q", algo)
	}
}

// chaCha20Poly1305Encryptor is the default engine: XChaCha20-Poly1305's
// 24-byte random nonce makes per-chunk random nonces safe at any transfer
// volume, unlike AES-GCM's 96-bit nonce.
type chaCha20Poly1305Encryptor struct{}

func (chaCha20Poly1305Encryptor) Algorithm() Algorithm { return AlgorithmChaCha20 }
func (chaCha20Poly1305Encryptor) KeySize() int         { return chacha20poly1305.KeySize }
func (chaCha20Poly1305Encryptor) NonceSize() int       { return chacha20poly1305.NonceSizeX }

func (e chaCha20Poly1305Encryptor) Seal(key, plaintext []byte) ([]byte, []byte, error) {
	if len(key) != e.KeySize() {
		return nil, nil, fmt.Errorf("chacha20poly1305: key must be %d bytes, got %d", e.KeySize(), len(key))
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, nil, fmt.Errorf("build aead: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, nil, fmt.Errorf("generate nonce: %w", err)
	}
	return aead.Seal(nil, nonce, plaintext, nil), nonce, nil
}

func (e chaCha20Poly1305Encryptor) Open(key, nonce, ciphertext []byte) ([]byte, error) {
	if len(key) != e.KeySize() {
		return nil, fmt.Errorf("chacha20poly1305: key must be %d bytes, got %d", e.KeySize(), len(key))
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("build aead: %w", err)
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("open sealed chunk: %w", err)
	}
	return plaintext, nil
}

// aesGCMEncryptor is the stdlib alternative (no ecosystem AEAD improves on
// crypto/cipher's GCM mode), offered for environments standardized on
// AES-NI hardware acceleration.
type aesGCMEncryptor struct{}

func (aesGCMEncryptor) Algorithm() Algorithm { return AlgorithmAESGCM }
func (aesGCMEncryptor) KeySize() int         { return 32 }
func (aesGCMEncryptor) NonceSize() int       { return 12 }

func (e aesGCMEncryptor) Seal(key, plaintext []byte) ([]byte, []byte, error) {
	if len(key) != e.KeySize() {
		return nil, nil, fmt.Errorf("aes-gcm: key must be %d bytes, got %d", e.KeySize(), len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, fmt.Errorf("build cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, fmt.Errorf("build gcm: %w", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, nil, fmt.Errorf("generate nonce: %w", err)
	}
	return gcm.Seal(nil, nonce, plaintext, nil), nonce, nil
}

func (e aesGCMEncryptor) Open(key, nonce, ciphertext []byte) ([]byte, error) {
	if len(key) != e.KeySize() {
		return nil, fmt.Errorf("aes-gcm: key must be %d bytes, got %d", e.KeySize(), len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("build cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("build gcm: %w", err)
	}
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("open sealed chunk: %w", err)
	}
	return plaintext, nil
}

// noopEncryptor backs the "decrypt?"/"encrypt?" stage hooks when
// encryption isn't configured: the chunk's Encrypted flag is simply never
// set, and this engine never touches the payload.
type noopEncryptor struct{}

func (noopEncryptor) Algorithm() Algorithm { return AlgorithmNone }
func (noopEncryptor) KeySize() int         { return 0 }
func (noopEncryptor) NonceSize() int       { return 0 }
func (noopEncryptor) Seal(_, plaintext []byte) ([]byte, []byte, error) {
	return plaintext, nil, nil
}
func (noopEncryptor) Open(_, _, ciphertext []byte) ([]byte, error) { return ciphertext, nil }

// Overhead returns the per-chunk byte cost (auth tag + nonce) an algorithm
// adds over the plaintext, so callers can size buffers without a trial
// Seal.
func Overhead(algo Algorithm) int {
	switch algo {
	case AlgorithmChaCha20:
		return 16 + chacha20poly1305.NonceSizeX
	case AlgorithmAESGCM:
		return 16 + 12
	default:
		return 0
	}
}
