// Package bandwidth implements the token-bucket bandwidth limiter from §4.C:
// rate R bytes/s, one-second burst capacity, blocking and non-blocking
// acquisition, and a disabled (R=0) mode.
package bandwidth

import (
	"context"
	"sync"
	"time"
)

// pollInterval bounds how long Acquire can overshoot a refill before
// re-checking; kept short so SetLimit(0) wakes waiters promptly.
const pollInterval = 5 * time.Millisecond

// Limiter rate-shapes a flow using a token bucket. A Limiter with rate 0 is
// disabled: Acquire returns immediately and AvailableTokens reports -1
// ("unbounded").
type Limiter struct {
	mu         sync.Mutex
	rate       float64 // bytes/sec; 0 = disabled
	capacity   float64 // one-second burst == rate
	tokens     float64
	lastRefill time.Time
	now        func() time.Time
}

// NewLimiter creates a limiter at the given byte/s rate. rate == 0 disables
// shaping entirely.
func NewLimiter(rate float64) *Limiter {
	return &Limiter{
		rate:       rate,
		capacity:   rate,
		tokens:     rate,
		lastRefill: time.Now(),
		now:        time.Now,
	}
}

// refill tops up tokens based on elapsed time. Caller must hold l.mu.
func (l *Limiter) refill() {
	if l.rate <= 0 {
		return
	}
	now := l.now()
	elapsed := now.Sub(l.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	l.tokens = minF(l.capacity, l.tokens+l.rate*elapsed)
	l.lastRefill = now
}

// Acquire blocks until n tokens are available, the limiter is disabled, or
// ctx is cancelled. On cancellation no tokens are consumed.
func (l *Limiter) Acquire(ctx context.Context, n float64) error {
	for {
		l.mu.Lock()
		l.refill()
		if l.rate <= 0 {
			l.mu.Unlock()
			return nil
		}
		if l.tokens >= n {
			l.tokens -= n
			l.mu.Unlock()
			return nil
		}
		l.mu.Unlock()

		if ctx != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(pollInterval):
			}
		} else {
			time.Sleep(pollInterval)
		}
	}
}

// TryAcquire attempts to take n tokens without blocking. It returns true on
// success.
func (l *Limiter) TryAcquire(n float64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.rate <= 0 {
		return true
	}
	l.refill()
	if l.tokens >= n {
		l.tokens -= n
		return true
	}
	return false
}

// SetLimit changes the rate, rescaling current tokens proportionally
// (t <- min(C', t*C'/C)). Blocked Acquire callers notice the new rate on
// their next poll and, if the new rate is 0, return immediately.
func (l *Limiter) SetLimit(rate float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refill()
	oldCapacity := l.capacity
	newCapacity := rate

	if oldCapacity > 0 {
		l.tokens = minF(newCapacity, l.tokens*newCapacity/oldCapacity)
	} else {
		l.tokens = newCapacity
	}
	l.rate = rate
	l.capacity = newCapacity
}

// AvailableTokens returns the current token count, or -1 if the limiter is
// disabled ("unbounded" per §4.C).
func (l *Limiter) AvailableTokens() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.rate <= 0 {
		return -1
	}
	l.refill()
	return l.tokens
}

// Rate returns the configured rate in bytes/sec (0 means disabled).
func (l *Limiter) Rate() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rate
}

// Capacity returns the current burst capacity, equal to Rate() per §4.C.
func (l *Limiter) Capacity() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.capacity
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
