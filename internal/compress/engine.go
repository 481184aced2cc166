package compress

// Mode selects how the engine decides whether to compress a chunk.
type Mode int

const (
	// ModeAdaptive samples each input and skips compression when it looks
	// incompressible (§4.B policy).
	ModeAdaptive Mode = iota
	// ModeAlways always compresses, regardless of the probe.
	ModeAlways
	// ModeNever never compresses.
	ModeNever
)

// Codec selects the wire compression format.
type Codec int

const (
	// CodecLZ4 is the default, throughput-oriented codec.
	CodecLZ4 Codec = iota
	// CodecSnappy trades ratio for lower per-chunk CPU cost.
	CodecSnappy
)

// Engine is the per-worker compression engine referenced by the pipeline
// context (§4.F): one Engine per worker_id, no locking on the hot path.
type Engine struct {
	mode  Mode
	codec Codec

	skippedCompressions uint64
}

// NewEngine creates a compression engine in the given mode, defaulting to
// the LZ4 codec.
func NewEngine(mode Mode) *Engine {
	return &Engine{mode: mode, codec: CodecLZ4}
}

// NewEngineWithCodec creates a compression engine with an explicit codec.
func NewEngineWithCodec(mode Mode, codec Codec) *Engine {
	return &Engine{mode: mode, codec: codec}
}

func (e *Engine) compress(data []byte) ([]byte, error) {
	if e.codec == CodecSnappy {
		return CompressSnappy(data)
	}
	return Compress(data)
}

// DecompressChunk reverses CompressChunk using the engine's configured
// codec. Callers must decompress with the same codec a chunk was
// compressed with; the wire header carries no codec tag, so mixing codecs
// within one transfer is the caller's responsibility to avoid.
func (e *Engine) DecompressChunk(data []byte, originalSize int) ([]byte, error) {
	if e.codec == CodecSnappy {
		return DecompressSnappy(data, originalSize)
	}
	return Decompress(data, originalSize)
}

// SkippedCompressions returns how many inputs this engine declared
// non-compressible and left untouched.
func (e *Engine) SkippedCompressions() uint64 {
	return e.skippedCompressions
}

// CompressChunk applies the engine's policy to one chunk payload. It returns
// the bytes to put on the wire and whether the compressed flag should be set.
func (e *Engine) CompressChunk(data []byte) (wire []byte, compressed bool, err error) {
	switch e.mode {
	case ModeNever:
		e.skippedCompressions++
		return data, false, nil
	case ModeAlways:
		out, err := e.compress(data)
		if err != nil {
			return nil, false, err
		}
		return out, true, nil
	default: // ModeAdaptive
		if !IsCompressible(data) {
			e.skippedCompressions++
			return data, false, nil
		}
		out, err := e.compress(data)
		if err != nil {
			return nil, false, err
		}
		return out, true, nil
	}
}
