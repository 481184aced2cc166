package quota

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnlimitedQuotaAlwaysOK(t *testing.T) {
	m := NewManager(t.TempDir(), 0)
	assert.NoError(t, m.CheckQuota(1<<40))
	assert.False(t, m.QuotaExceeded())
}

func TestCheckQuotaRejectsOverage(t *testing.T) {
	m := NewManager(t.TempDir(), 1000)
	m.RecordBytesAdded(900)
	assert.NoError(t, m.CheckQuota(100))
	assert.ErrorIs(t, m.CheckQuota(101), ErrQuotaExceeded)
}

func TestCheckFileSize(t *testing.T) {
	m := NewManager(t.TempDir(), 0, WithMaxFileSize(1024))
	assert.NoError(t, m.CheckFileSize(1024))
	assert.ErrorIs(t, m.CheckFileSize(1025), ErrFileTooLarge)
}

func TestThresholdsFireOnceMonotonically(t *testing.T) {
	var fired []float64
	m := NewManager(t.TempDir(), 1000, WithOnThreshold(func(pct float64) {
		fired = append(fired, pct)
	}))

	m.RecordBytesAdded(800) // 80.0% -> crosses 80
	m.RecordBytesAdded(5)   // 80.5% -> no new crossing
	assert.Equal(t, []float64{80}, fired)

	m.RecordBytesAdded(95) // 90.0% -> crosses 90 only (below 95)
	assert.Equal(t, []float64{80, 90}, fired)

	m.RecordBytesRemoved(200) // 70.0%; 80 stays triggered despite dropping below it
	m.RecordBytesAdded(200)   // back to 90.0%; re-crossing 80/90 does not refire
	assert.Equal(t, []float64{80, 90}, fired)

	m.ResetThresholdTriggers()
	m.RecordBytesAdded(1) // 90.1% -> both 80 and 90 re-fire after reset
	assert.Equal(t, []float64{80, 90, 80, 90}, fired)
}

func TestOnQuotaExceededFiresWhenUsedReachesTotal(t *testing.T) {
	exceeded := 0
	m := NewManager(t.TempDir(), 100, WithOnQuotaExceeded(func() { exceeded++ }))

	m.RecordBytesAdded(99)
	assert.Equal(t, 0, exceeded)
	assert.False(t, m.QuotaExceeded())

	m.RecordBytesAdded(1)
	assert.Equal(t, 1, exceeded)
	assert.True(t, m.QuotaExceeded())

	m.RecordBytesAdded(1)
	assert.Equal(t, 2, exceeded)
}

func TestRefreshUsageScansDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.bin"), make([]byte, 100), 0o600))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "b.bin"), make([]byte, 50), 0o600))

	m := NewManager(dir, 1000)
	require.NoError(t, m.RefreshUsage())

	usage := m.Usage()
	assert.Equal(t, int64(150), usage.UsedBytes)
	assert.Equal(t, int64(2), usage.FileCount)
	assert.Equal(t, int64(850), usage.AvailableBytes)
	assert.InDelta(t, 15.0, usage.UsagePercent, 0.001)
}

func TestCleanupPolicyDisabledByDefault(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir, 100)
	m.RecordBytesAdded(99)

	p := NewCleanupPolicy()
	freed, err := p.ExecuteCleanup(m)
	require.NoError(t, err)
	assert.Equal(t, int64(0), freed)
}

func TestCleanupPolicyDeletesOldestFirstUntilTarget(t *testing.T) {
	dir := t.TempDir()
	names := []string{"f1.bin", "f2.bin", "f3.bin", "f4.bin"}
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, name := range names {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, make([]byte, 100), 0o600))
		mtime := base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, os.Chtimes(path, mtime, mtime))
	}

	m := NewManager(dir, 1000)
	require.NoError(t, m.RefreshUsage())
	require.Equal(t, int64(400), m.Usage().UsedBytes)

	p := NewCleanupPolicy()
	p.Enabled = true
	p.TriggerThreshold = 30
	p.TargetThreshold = 15
	p.now = func() time.Time { return base.Add(100 * time.Hour) }

	freed, err := p.ExecuteCleanup(m)
	require.NoError(t, err)
	assert.Equal(t, int64(300), freed)

	_, err = os.Stat(filepath.Join(dir, "f1.bin"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, "f4.bin"))
	assert.NoError(t, err)
}

func TestCleanupPolicyRespectsExclusionsAndMinAge(t *testing.T) {
	dir := t.TempDir()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	old := filepath.Join(dir, "old.bin")
	require.NoError(t, os.WriteFile(old, make([]byte, 100), 0o600))
	require.NoError(t, os.Chtimes(old, base, base))

	protected := filepath.Join(dir, "keep.protected.bin")
	require.NoError(t, os.WriteFile(protected, make([]byte, 100), 0o600))
	require.NoError(t, os.Chtimes(protected, base, base))

	recent := filepath.Join(dir, "recent.bin")
	require.NoError(t, os.WriteFile(recent, make([]byte, 100), 0o600))
	recentTime := base.Add(99 * time.Hour)
	require.NoError(t, os.Chtimes(recent, recentTime, recentTime))

	m := NewManager(dir, 1000)
	require.NoError(t, m.RefreshUsage())

	p := NewCleanupPolicy()
	p.Enabled = true
	p.TriggerThreshold = 1
	p.TargetThreshold = 0
	p.Exclusions = []string{".protected."}
	p.MinFileAge = 10 * time.Hour
	p.now = func() time.Time { return base.Add(100 * time.Hour) }

	freed, err := p.ExecuteCleanup(m)
	require.NoError(t, err)
	assert.Equal(t, int64(100), freed) // only old.bin qualifies

	_, err = os.Stat(old)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(protected)
	assert.NoError(t, err)
	_, err = os.Stat(recent)
	assert.NoError(t, err)
}
