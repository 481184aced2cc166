package protocol

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// ConnectionState mirrors the client-visible connection lifecycle during
// reconnection attempts.
type ConnectionState int

const (
	ConnConnected ConnectionState = iota
	ConnReconnecting
	ConnDisconnected
)

// ReconnectPolicy implements the exponential backoff of §4.G: base
// initial_delay, factor backoff_multiplier (default 2.0), cap max_delay, up
// to max_attempts, driving the client's reconnecting state instead of a
// bare retry loop.
type ReconnectPolicy struct {
	maxAttempts  int
	initialDelay time.Duration
	maxDelay     time.Duration
	multiplier   float64
	jitter       bool
}

// ReconnectOption configures a ReconnectPolicy.
type ReconnectOption func(*ReconnectPolicy)

func WithMaxAttempts(n int) ReconnectOption {
	return func(p *ReconnectPolicy) { p.maxAttempts = n }
}

func WithInitialDelay(d time.Duration) ReconnectOption {
	return func(p *ReconnectPolicy) { p.initialDelay = d }
}

func WithMaxDelay(d time.Duration) ReconnectOption {
	return func(p *ReconnectPolicy) { p.maxDelay = d }
}

func WithMultiplier(m float64) ReconnectOption {
	return func(p *ReconnectPolicy) { p.multiplier = m }
}

func WithJitter(enabled bool) ReconnectOption {
	return func(p *ReconnectPolicy) { p.jitter = enabled }
}

// NewReconnectPolicy builds a policy with conservative defaults.
func NewReconnectPolicy(opts ...ReconnectOption) *ReconnectPolicy {
	p := &ReconnectPolicy{
		maxAttempts:  5,
		initialDelay: 500 * time.Millisecond,
		maxDelay:     30 * time.Second,
		multiplier:   2.0,
		jitter:       true,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Delay returns the backoff delay before the given zero-based attempt.
func (p *ReconnectPolicy) Delay(attempt int) time.Duration {
	d := float64(p.initialDelay) * math.Pow(p.multiplier, float64(attempt))
	if d > float64(p.maxDelay) {
		d = float64(p.maxDelay)
	}
	if p.jitter {
		d *= 0.5 + rand.Float64()
	}
	return time.Duration(d)
}

// MaxAttempts returns the configured attempt ceiling.
func (p *ReconnectPolicy) MaxAttempts() int { return p.maxAttempts }

// Run retries connect until it succeeds, ctx is canceled, or max_attempts is
// exhausted (returning an *Error with CodeReconnectExhausted).
// onStateChange, if non-nil, is called with ConnReconnecting before each
// wait and ConnConnected on success.
func (p *ReconnectPolicy) Run(ctx context.Context, connect func(ctx context.Context) error, onStateChange func(ConnectionState)) error {
	var lastErr error
	for attempt := 0; attempt < p.maxAttempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if attempt > 0 {
			if onStateChange != nil {
				onStateChange(ConnReconnecting)
			}
			select {
			case <-time.After(p.Delay(attempt - 1)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if err := connect(ctx); err == nil {
			if onStateChange != nil {
				onStateChange(ConnConnected)
			}
			return nil
		} else {
			lastErr = err
		}
	}

	if onStateChange != nil {
		onStateChange(ConnDisconnected)
	}
	return NewError(CodeReconnectExhausted, lastErr.Error())
}
