package cloud

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"net"
	"time"
)

// RetryPolicy is cloud_retry_policy (§4.H), adapted directly from the
// teacher's generic exponential-backoff RetryPolicy and specialized with
// the provider-request retryability rules instead of a caller-supplied
// retry-everything predicate.
type RetryPolicy struct {
	maxAttempts  int
	initialDelay time.Duration
	maxDelay     time.Duration
	multiplier   float64
	jitter       bool
}

// RetryOption configures a RetryPolicy.
type RetryOption func(*RetryPolicy)

func WithMaxAttempts(n int) RetryOption    { return func(p *RetryPolicy) { p.maxAttempts = n } }
func WithInitialDelay(d time.Duration) RetryOption {
	return func(p *RetryPolicy) { p.initialDelay = d }
}
func WithMaxDelay(d time.Duration) RetryOption { return func(p *RetryPolicy) { p.maxDelay = d } }
func WithMultiplier(m float64) RetryOption     { return func(p *RetryPolicy) { p.multiplier = m } }
func WithJitter(enabled bool) RetryOption      { return func(p *RetryPolicy) { p.jitter = enabled } }

// NewRetryPolicy builds a policy with conservative defaults: 3 attempts,
// 200ms initial delay, 10s cap, factor 2, jitter on.
func NewRetryPolicy(opts ...RetryOption) *RetryPolicy {
	p := &RetryPolicy{
		maxAttempts:  3,
		initialDelay: 200 * time.Millisecond,
		maxDelay:     10 * time.Second,
		multiplier:   2.0,
		jitter:       true,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// RetryableStatus reports whether an HTTP status code is retryable per
// §4.H: 408, 429, 500, 502, 503, 504.
func RetryableStatus(status int) bool {
	switch status {
	case 408, 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// RetryableError reports whether err looks like a connection reset, DNS
// failure, or other transient network condition worth retrying.
func RetryableError(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true // connection reset, refused, or timed out
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

// Execute runs fn, retrying on a true shouldRetry(err) verdict, with
// exponential backoff. Non-retryable errors (4xx auth/authorization/
// not-found) return immediately.
func (p *RetryPolicy) Execute(ctx context.Context, shouldRetry func(error) bool, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < p.maxAttempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !shouldRetry(err) || attempt == p.maxAttempts-1 {
			return lastErr
		}

		delay := p.delay(attempt)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}

func (p *RetryPolicy) delay(attempt int) time.Duration {
	d := float64(p.initialDelay) * math.Pow(p.multiplier, float64(attempt))
	if d > float64(p.maxDelay) {
		d = float64(p.maxDelay)
	}
	if p.jitter {
		d *= 0.5 + rand.Float64()
	}
	return time.Duration(d)
}
