// Package compress implements the adaptive LZ4 compression engine from §4.B:
// compress/decompress plus a compressibility probe that skips data which is
// already compressed.
package compress

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/lz4"
)

// SampleSize is how much of the input the compressibility probe inspects.
const SampleSize = 4 * 1024

// NonCompressibleRatio is the trial-compression threshold: a sample that
// compresses to this fraction of its size or worse is declared incompressible.
const NonCompressibleRatio = 0.91

// MaxCompressedSize returns the LZ4-safe worst-case output size for an input
// of length n: n + n/255 + 16.
func MaxCompressedSize(n int) int {
	return n + n/255 + 16
}

// Compress LZ4-compresses data.
func Compress(data []byte) ([]byte, error) {
	var out bytes.Buffer
	w := lz4.NewWriter(&out)
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("compress: close: %w", err)
	}
	return out.Bytes(), nil
}

// Decompress LZ4-decompresses data, which must expand to exactly
// originalSize; a mismatch is fatal per §4.B.
func Decompress(data []byte, originalSize int) ([]byte, error) {
	r := lz4.NewReader(bytes.NewReader(data))
	out := make([]byte, originalSize)
	n, err := io.ReadFull(r, out)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, fmt.Errorf("decompress: %w", err)
	}
	if n != originalSize {
		return nil, fmt.Errorf("decompress: expected %d bytes, got %d: %w", originalSize, n, ErrSizeMismatch)
	}
	// Confirm the stream doesn't have trailing bytes beyond originalSize.
	var extra [1]byte
	if m, _ := r.Read(extra[:]); m > 0 {
		return nil, fmt.Errorf("decompress: %w", ErrSizeMismatch)
	}
	return out, nil
}
