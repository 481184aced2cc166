package chunk

import (
	"io"

	"github.com/restic/chunker"
)

// Splitter carves a file's byte stream into payloads for the pipeline's
// read stage to wrap in a Header. Fixed carries §3's primary mode: every
// payload but the last is exactly ChunkSize bytes, matching the wire
// header's original_size/total_chunks invariants directly. CDC trades that
// fixed-boundary guarantee for content-defined boundaries, which lets
// unrelated files sharing a run of bytes dedup at the chunk-storage layer
// instead of just at the whole-file level.
type Splitter interface {
	// Next returns the next payload, or io.EOF when the stream is
	// exhausted. The returned slice is only valid until the next call.
	Next() ([]byte, error)
}

// fixedSplitter implements the primary, fixed-size mode.
type fixedSplitter struct {
	r         io.Reader
	chunkSize int
	buf       []byte
}

// NewFixedSplitter returns the default splitter: every chunk but the last
// is exactly chunkSize bytes, per §3's size invariants.
func NewFixedSplitter(r io.Reader, chunkSize int) Splitter {
	return &fixedSplitter{r: r, chunkSize: chunkSize, buf: make([]byte, chunkSize)}
}

func (s *fixedSplitter) Next() ([]byte, error) {
	n, err := io.ReadFull(s.r, s.buf)
	if n == 0 {
		if err == nil {
			err = io.EOF
		}
		return nil, err
	}
	if err == io.ErrUnexpectedEOF {
		err = nil
	}
	return s.buf[:n], err
}

// cdcSplitter wraps restic/chunker's FastCDC implementation for the quota
// manager's cross-file dedup scan, where content-defined boundaries find
// duplicate runs that fixed offsets would miss.
type cdcSplitter struct {
	c   *chunker.Chunker
	buf []byte
}

// NewCDCSplitter returns a content-defined chunk splitter bounded by
// [minSize, maxSize], both in bytes.
func NewCDCSplitter(r io.Reader, minSize, maxSize int) (Splitter, error) {
	pol, err := chunker.RandomPolynomial()
	if err != nil {
		return nil, err
	}
	c := chunker.NewWithBoundaries(r, pol, uint(minSize), uint(maxSize))
	return &cdcSplitter{c: c, buf: make([]byte, maxSize)}, nil
}

func (s *cdcSplitter) Next() ([]byte, error) {
	chunk, err := s.c.Next(s.buf)
	if err != nil {
		return nil, err
	}
	return chunk.Data, nil
}
