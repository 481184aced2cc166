// Package quota implements directory usage accounting, monotonic one-shot
// warning thresholds, and a cleanup policy for a storage root, using a
// counter-and-threshold style generalized to disk usage for a single
// storage root and enriched with a periodic directory-scan refresh.
package quota

import (
	"io/fs"
	"path/filepath"
	"sync"
)

// defaultThresholds are the warning percentages that fire once each as usage
// climbs past them.
var defaultThresholds = []float64{80, 90, 95}

// Usage is a point-in-time read of the manager's accounting.
type Usage struct {
	TotalQuota     int64
	UsedBytes      int64
	AvailableBytes int64
	UsagePercent   float64
	FileCount      int64
}

// Option configures a Manager at construction.
type Option func(*Manager)

// WithMaxFileSize sets the per-file size ceiling enforced by CheckFileSize.
// Zero (the default) means unlimited.
func WithMaxFileSize(n int64) Option {
	return func(m *Manager) { m.maxFileSize = n }
}

// WithThresholds overrides the default {80, 90, 95} warning percentages.
func WithThresholds(pct ...float64) Option {
	return func(m *Manager) { m.thresholds = pct }
}

// WithOnThreshold registers a callback fired the first time usage crosses
// each threshold, until ResetThresholdTriggers is called.
func WithOnThreshold(fn func(pct float64)) Option {
	return func(m *Manager) { m.onThreshold = fn }
}

// WithOnQuotaExceeded registers a callback fired on every accounting update
// for which used >= total and total > 0.
func WithOnQuotaExceeded(fn func()) Option {
	return func(m *Manager) { m.onQuotaExceeded = fn }
}

// Manager tracks disk usage for a single storage root against a total quota.
// A zero total quota means unlimited: CheckQuota always succeeds and
// on_quota_exceeded never fires.
type Manager struct {
	mu sync.Mutex

	root        string
	totalQuota  int64
	maxFileSize int64

	usedBytes int64
	fileCount int64

	thresholds []float64
	triggered  map[float64]bool

	onThreshold     func(pct float64)
	onQuotaExceeded func()
}

// NewManager creates a quota manager rooted at dir with the given total
// quota in bytes. A totalQuota of zero means unlimited.
func NewManager(root string, totalQuota int64, opts ...Option) *Manager {
	m := &Manager{
		root:       root,
		totalQuota: totalQuota,
		thresholds: append([]float64(nil), defaultThresholds...),
		triggered:  make(map[float64]bool),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CheckQuota reports whether admitting need more bytes would exceed the
// total quota. A zero total quota always returns nil.
func (m *Manager) CheckQuota(need int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.totalQuota == 0 {
		return nil
	}
	if m.usedBytes+need > m.totalQuota {
		return ErrQuotaExceeded
	}
	return nil
}

// CheckFileSize reports whether a single file of size n is within the
// configured per-file maximum. A zero maximum means unlimited.
func (m *Manager) CheckFileSize(n int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.maxFileSize > 0 && n > m.maxFileSize {
		return ErrFileTooLarge
	}
	return nil
}

// RefreshUsage rescans the storage root from scratch, summing regular-file
// sizes and counting them. It replaces any usage accumulated by the
// incremental counters.
func (m *Manager) RefreshUsage() error {
	var total int64
	var count int64

	err := filepath.WalkDir(m.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			info, err := d.Info()
			if err != nil {
				return err
			}
			total += info.Size()
			count++
		}
		return nil
	})
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.usedBytes = total
	m.fileCount = count
	m.checkSignalsLocked()
	m.mu.Unlock()
	return nil
}

// RecordBytesAdded increments the usage counter by n bytes without a full
// directory rescan.
func (m *Manager) RecordBytesAdded(n int64) {
	m.mu.Lock()
	m.usedBytes += n
	m.checkSignalsLocked()
	m.mu.Unlock()
}

// RecordBytesRemoved decrements the usage counter by n bytes, clamped at
// zero. Removing usage never un-triggers an already-fired threshold.
func (m *Manager) RecordBytesRemoved(n int64) {
	m.mu.Lock()
	m.usedBytes -= n
	if m.usedBytes < 0 {
		m.usedBytes = 0
	}
	m.mu.Unlock()
}

// RecordFileAdded increments the tracked file count.
func (m *Manager) RecordFileAdded() {
	m.mu.Lock()
	m.fileCount++
	m.mu.Unlock()
}

// RecordFileRemoved decrements the tracked file count, clamped at zero.
func (m *Manager) RecordFileRemoved() {
	m.mu.Lock()
	if m.fileCount > 0 {
		m.fileCount--
	}
	m.mu.Unlock()
}

// Usage returns a consistent snapshot of the current accounting.
func (m *Manager) Usage() Usage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.usageLocked()
}

func (m *Manager) usageLocked() Usage {
	available := m.totalQuota - m.usedBytes
	if available < 0 {
		available = 0
	}
	var pct float64
	if m.totalQuota > 0 {
		pct = float64(m.usedBytes) / float64(m.totalQuota) * 100
	}
	return Usage{
		TotalQuota:     m.totalQuota,
		UsedBytes:      m.usedBytes,
		AvailableBytes: available,
		UsagePercent:   pct,
		FileCount:      m.fileCount,
	}
}

// ResetThresholdTriggers clears every one-shot threshold trigger, allowing
// each to fire again the next time usage climbs past it.
func (m *Manager) ResetThresholdTriggers() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.triggered = make(map[float64]bool)
}

// QuotaExceeded reports whether used >= total and total > 0, without
// mutating any trigger state.
func (m *Manager) QuotaExceeded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.totalQuota > 0 && m.usedBytes >= m.totalQuota
}

// checkSignalsLocked fires newly-crossed threshold callbacks and the
// quota-exceeded callback. Must be called with m.mu held.
func (m *Manager) checkSignalsLocked() {
	if m.totalQuota <= 0 {
		return
	}
	pct := float64(m.usedBytes) / float64(m.totalQuota) * 100
	for _, threshold := range m.thresholds {
		if pct >= threshold && !m.triggered[threshold] {
			m.triggered[threshold] = true
			if m.onThreshold != nil {
				m.onThreshold(threshold)
			}
		}
	}
	if m.usedBytes >= m.totalQuota && m.onQuotaExceeded != nil {
		m.onQuotaExceeded()
	}
}
