package quota

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// CleanupPolicy enumerates files under a storage root and deletes the
// oldest first until usage falls at or below a target: an oldest-first
// expiry scan generalized from a fixed TTL to a usage-percent target.
type CleanupPolicy struct {
	Enabled           bool
	TriggerThreshold  float64       // execute_cleanup runs once usage_percent >= this
	TargetThreshold   float64       // deletion stops once usage_percent <= this
	DeleteOldestFirst bool          // false reverses the scan order
	Exclusions        []string      // substrings; matching paths are never deleted
	MinFileAge        time.Duration // files younger than this are never deleted

	// now is overridable for deterministic tests.
	now func() time.Time
}

// NewCleanupPolicy returns a disabled policy with conservative defaults;
// callers opt in by setting Enabled.
func NewCleanupPolicy() *CleanupPolicy {
	return &CleanupPolicy{
		Enabled:           false,
		TriggerThreshold:  90,
		TargetThreshold:   70,
		DeleteOldestFirst: true,
		now:               time.Now,
	}
}

type cleanupCandidate struct {
	path    string
	size    int64
	modTime time.Time
}

// ExecuteCleanup runs the deletion sweep against root if the policy is
// enabled and current usage is at or past TriggerThreshold. It returns the
// number of bytes freed. m's usage counters are decremented for every file
// removed.
func (p *CleanupPolicy) ExecuteCleanup(m *Manager) (int64, error) {
	if !p.Enabled {
		return 0, nil
	}

	usage := m.Usage()
	if usage.UsagePercent < p.TriggerThreshold {
		return 0, nil
	}

	nowFn := p.now
	if nowFn == nil {
		nowFn = time.Now
	}
	now := nowFn()

	var candidates []cleanupCandidate
	err := filepath.WalkDir(m.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if p.excluded(path) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if now.Sub(info.ModTime()) < p.MinFileAge {
			return nil
		}
		candidates = append(candidates, cleanupCandidate{path: path, size: info.Size(), modTime: info.ModTime()})
		return nil
	})
	if err != nil {
		return 0, err
	}

	sort.Slice(candidates, func(i, j int) bool {
		if p.DeleteOldestFirst {
			return candidates[i].modTime.Before(candidates[j].modTime)
		}
		return candidates[i].modTime.After(candidates[j].modTime)
	})

	var freed int64
	for _, c := range candidates {
		if m.Usage().UsagePercent <= p.TargetThreshold {
			break
		}
		if err := os.Remove(c.path); err != nil {
			continue
		}
		m.RecordBytesRemoved(c.size)
		m.RecordFileRemoved()
		freed += c.size
	}
	return freed, nil
}

func (p *CleanupPolicy) excluded(path string) bool {
	for _, substr := range p.Exclusions {
		if strings.Contains(path, substr) {
			return true
		}
	}
	return false
}
