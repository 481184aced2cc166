package bandwidth

import (
	"context"
	"io"
)

// ThrottledReader wraps an io.Reader, acquiring a token for every byte read
// before returning it to the caller. Grounded on the driver-level throttled
// reader wrapping golang.org/x/time/rate, generalized to this package's
// richer Limiter (blocking/non-blocking/disable semantics §4.C needs that
// rate.Limiter alone can't express).
type ThrottledReader struct {
	reader  io.Reader
	limiter *Limiter
	ctx     context.Context
}

// NewThrottledReader wraps r with bandwidth shaping under limiter.
func NewThrottledReader(ctx context.Context, r io.Reader, limiter *Limiter) *ThrottledReader {
	return &ThrottledReader{reader: r, limiter: limiter, ctx: ctx}
}

func (t *ThrottledReader) Read(p []byte) (int, error) {
	n, err := t.reader.Read(p)
	if n > 0 {
		if waitErr := t.limiter.Acquire(t.ctx, float64(n)); waitErr != nil {
			return 0, waitErr
		}
	}
	return n, err
}

// ThrottledWriter wraps an io.Writer with the same token-per-byte shaping.
type ThrottledWriter struct {
	writer  io.Writer
	limiter *Limiter
	ctx     context.Context
}

// NewThrottledWriter wraps w with bandwidth shaping under limiter.
func NewThrottledWriter(ctx context.Context, w io.Writer, limiter *Limiter) *ThrottledWriter {
	return &ThrottledWriter{writer: w, limiter: limiter, ctx: ctx}
}

func (t *ThrottledWriter) Write(p []byte) (int, error) {
	if err := t.limiter.Acquire(t.ctx, float64(len(p))); err != nil {
		return 0, err
	}
	return t.writer.Write(p)
}
