package compress

import "github.com/golang/snappy"

// CompressSnappy is the alternate fast-path codec (§4.B): lower compression
// ratio than LZ4 but cheaper per byte, offered for workers pinned to
// latency-sensitive transfers rather than the default throughput-oriented
// LZ4 path.
func CompressSnappy(data []byte) ([]byte, error) {
	return snappy.Encode(nil, data), nil
}

// DecompressSnappy reverses CompressSnappy.
func DecompressSnappy(data []byte, originalSize int) ([]byte, error) {
	out, err := snappy.Decode(make([]byte, 0, originalSize), data)
	if err != nil {
		return nil, err
	}
	if len(out) != originalSize {
		return nil, ErrSizeMismatch
	}
	return out, nil
}
