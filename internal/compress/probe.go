package compress

import "bytes"

// magicPrefix is a known pre-compressed-family signature checked against the
// start of a sample.
type magicPrefix struct {
	name  string
	bytes []byte
}

// knownFamilies lists magic bytes for formats that are already compressed
// and should never be re-compressed (§4.B policy (a)).
var knownFamilies = []magicPrefix{
	{"zip", []byte{0x50, 0x4B, 0x03, 0x04}},
	{"gzip", []byte{0x1F, 0x8B}},
	{"jpeg", []byte{0xFF, 0xD8, 0xFF}},
	{"png", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}},
	{"webp", []byte("RIFF")}, // followed by size + "WEBP"; prefix check is sufficient here
	{"7z", []byte{0x37, 0x7A, 0xBC, 0xAF, 0x27, 0x1C}},
	{"xz", []byte{0xFD, 0x37, 0x7A, 0x58, 0x5A, 0x00}},
	{"zstd", []byte{0x28, 0xB5, 0x2F, 0xFD}},
	{"snappy", []byte{0xFF, 0x06, 0x00, 0x00}}, // snappy framing stream identifier
}

// IsKnownCompressedFamily reports whether sample begins with the magic bytes
// of a known pre-compressed format.
func IsKnownCompressedFamily(sample []byte) (string, bool) {
	for _, f := range knownFamilies {
		if bytes.HasPrefix(sample, f.bytes) {
			return f.name, true
		}
	}
	// ISO base media (mp4) boxes start with a 4-byte size then "ftyp".
	if len(sample) >= 8 && bytes.Equal(sample[4:8], []byte("ftyp")) {
		return "mp4", true
	}
	return "", false
}

// IsCompressible implements the adaptive policy from §4.B: it samples the
// first SampleSize bytes, declares non-compressible if they match a known
// pre-compressed family or a trial LZ4 compression yields ratio >= 0.91.
func IsCompressible(data []byte) bool {
	sample := data
	if len(sample) > SampleSize {
		sample = sample[:SampleSize]
	}
	if len(sample) == 0 {
		return false
	}
	if _, known := IsKnownCompressedFamily(sample); known {
		return false
	}

	compressed, err := Compress(sample)
	if err != nil {
		// Can't probe; be conservative and attempt real compression.
		return true
	}
	ratio := float64(len(compressed)) / float64(len(sample))
	return ratio < NonCompressibleRatio
}
