// Package stats implements the transfer statistics collector from §4.D:
// moving-window throughput, ETA, compression ratio, and a consistent
// snapshot read.
package stats

import (
	"sync"
	"sync/atomic"
	"time"
)

// maxSamples bounds the throughput sample deque: at most 10 samples, one
// taken roughly every 100ms.
const maxSamples = 10

// sampleInterval is the minimum spacing between throughput samples.
const sampleInterval = 100 * time.Millisecond

// etaRecomputeInterval bounds how often ETA is recalculated.
const etaRecomputeInterval = 500 * time.Millisecond

type sample struct {
	at    time.Time
	bytes int64
}

// Collector accumulates counters for one transfer and derives rate/ETA from
// a bounded window of recent samples. All counter fields use atomics;
// Snapshot is a best-effort consistent read, not a single atomic operation
// across fields (§5: callers must tolerate <=1 sample of skew).
type Collector struct {
	mu sync.Mutex

	total int64

	bytesTransferred  int64 // bytes moved, before compression
	bytesOnWire       int64 // bytes actually transferred over the network
	chunksProcessed   int64
	chunksCompressed  int64
	errors            int64
	compressionSaved  int64
	skippedCompressed int64

	startedAt time.Time

	samples    []sample
	lastSample time.Time

	lastETA     time.Duration
	lastETAComp time.Time

	now func() time.Time
}

// New creates an idle collector. Call Start to begin a transfer.
func New() *Collector {
	return &Collector{now: time.Now}
}

// Start begins tracking a transfer of the given total size in bytes.
func (c *Collector) Start(total int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.total = total
	c.startedAt = now
	c.samples = []sample{{at: now, bytes: 0}}
	c.lastSample = now
	atomic.StoreInt64(&c.bytesTransferred, 0)
	atomic.StoreInt64(&c.bytesOnWire, 0)
	atomic.StoreInt64(&c.chunksProcessed, 0)
	atomic.StoreInt64(&c.chunksCompressed, 0)
	atomic.StoreInt64(&c.errors, 0)
	atomic.StoreInt64(&c.compressionSaved, 0)
}

// RecordBytesTransferred records n bytes moved; onWire is the number of
// those bytes that actually crossed the network (after compression).
func (c *Collector) RecordBytesTransferred(n int64, onWire int64) {
	total := atomic.AddInt64(&c.bytesTransferred, n)
	atomic.AddInt64(&c.bytesOnWire, onWire)

	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if now.Sub(c.lastSample) >= sampleInterval {
		c.samples = append(c.samples, sample{at: now, bytes: total})
		if len(c.samples) > maxSamples {
			c.samples = c.samples[len(c.samples)-maxSamples:]
		}
		c.lastSample = now
	}
}

// RecordChunkProcessed increments the processed-chunk counter; compressed
// indicates whether that chunk's payload was compressed.
func (c *Collector) RecordChunkProcessed(compressed bool) {
	atomic.AddInt64(&c.chunksProcessed, 1)
	if compressed {
		atomic.AddInt64(&c.chunksCompressed, 1)
	} else {
		atomic.AddInt64(&c.skippedCompressed, 1)
	}
}

// RecordCompressionSaved adds original-size-minus-compressed-size bytes
// saved by a compression stage.
func (c *Collector) RecordCompressionSaved(saved int64) {
	if saved > 0 {
		atomic.AddInt64(&c.compressionSaved, saved)
	}
}

// RecordError increments the error counter. code is recorded by the caller's
// logger; the collector only counts occurrences.
func (c *Collector) RecordError(code int) {
	atomic.AddInt64(&c.errors, 1)
}

// CurrentRate returns bytes/sec computed from the newest and oldest sample
// in the window: (newest.bytes - oldest.bytes) / elapsed.
func (c *Collector) CurrentRate() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentRateLocked()
}

func (c *Collector) currentRateLocked() float64 {
	if len(c.samples) < 2 {
		return 0
	}
	oldest := c.samples[0]
	newest := c.samples[len(c.samples)-1]
	elapsed := newest.at.Sub(oldest.at).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(newest.bytes-oldest.bytes) / elapsed
}

// AverageRate returns cumulative bytes transferred divided by elapsed time
// since Start.
func (c *Collector) AverageRate() float64 {
	c.mu.Lock()
	elapsed := c.now().Sub(c.startedAt).Seconds()
	c.mu.Unlock()
	if elapsed <= 0 {
		return 0
	}
	return float64(atomic.LoadInt64(&c.bytesTransferred)) / elapsed
}

// ETA returns the estimated remaining time, recomputed at most every
// etaRecomputeInterval; clamped to zero when finished or the rate is zero.
func (c *Collector) ETA() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if now.Sub(c.lastETAComp) < etaRecomputeInterval && c.lastETAComp != (time.Time{}) {
		return c.lastETA
	}

	transferred := atomic.LoadInt64(&c.bytesTransferred)
	remaining := c.total - transferred
	if remaining <= 0 {
		c.lastETA = 0
		c.lastETAComp = now
		return 0
	}

	rate := c.currentRateLocked()
	if rate <= 0 {
		rate = func() float64 {
			elapsed := now.Sub(c.startedAt).Seconds()
			if elapsed <= 0 {
				return 0
			}
			return float64(transferred) / elapsed
		}()
	}
	if rate <= 0 {
		c.lastETA = 0
		c.lastETAComp = now
		return 0
	}

	eta := time.Duration(float64(remaining)/rate) * time.Second
	c.lastETA = eta
	c.lastETAComp = now
	return eta
}

// CompressionRatio returns bytes_on_wire / bytes_transferred.
func (c *Collector) CompressionRatio() float64 {
	transferred := atomic.LoadInt64(&c.bytesTransferred)
	if transferred == 0 {
		return 1
	}
	return float64(atomic.LoadInt64(&c.bytesOnWire)) / float64(transferred)
}

// Snapshot is a consistent-enough read of all counters for reporting.
type Snapshot struct {
	Total             int64
	BytesTransferred  int64
	BytesOnWire       int64
	ChunksProcessed   int64
	ChunksCompressed  int64
	SkippedCompressed int64
	Errors            int64
	CompressionSaved  int64
	CurrentRateBps    float64
	AverageRateBps    float64
	CompressionRatio  float64
	ETA               time.Duration
	Elapsed           time.Duration
}

// Snapshot returns a point-in-time read of every counter.
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	elapsed := c.now().Sub(c.startedAt)
	total := c.total
	c.mu.Unlock()

	return Snapshot{
		Total:             total,
		BytesTransferred:  atomic.LoadInt64(&c.bytesTransferred),
		BytesOnWire:       atomic.LoadInt64(&c.bytesOnWire),
		ChunksProcessed:   atomic.LoadInt64(&c.chunksProcessed),
		ChunksCompressed:  atomic.LoadInt64(&c.chunksCompressed),
		SkippedCompressed: atomic.LoadInt64(&c.skippedCompressed),
		Errors:            atomic.LoadInt64(&c.errors),
		CompressionSaved:  atomic.LoadInt64(&c.compressionSaved),
		CurrentRateBps:    c.CurrentRate(),
		AverageRateBps:    c.AverageRate(),
		CompressionRatio:  c.CompressionRatio(),
		ETA:               c.ETA(),
		Elapsed:           elapsed,
	}
}
