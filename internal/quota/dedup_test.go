package quota

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestScanDedupFindsSharedContentAcrossFiles(t *testing.T) {
	dir := t.TempDir()
	shared := bytes.Repeat([]byte("duplicate run of bytes across files "), 10000)

	writeFile(t, dir, "a.bin", append(append([]byte{}, shared...), []byte("a-only tail")...))
	writeFile(t, dir, "b.bin", append(append([]byte{}, shared...), []byte("b-only tail")...))
	writeFile(t, dir, "c.bin", []byte("entirely unrelated short file"))

	m := NewManager(dir, 0)
	report, err := m.ScanDedup(64*1024, 1024*1024)
	require.NoError(t, err)

	assert.EqualValues(t, 3, report.FilesScanned)
	assert.NotZero(t, report.ChunksScanned)
	assert.NotEmpty(t, report.Sets, "expected at least one chunk shared between a.bin and b.bin")

	for _, set := range report.Sets {
		assert.GreaterOrEqual(t, len(set.Paths), 2)
	}
}

func TestScanDedupReportsNoSetsForDisjointFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.bin", bytes.Repeat([]byte("alpha"), 50000))
	writeFile(t, dir, "b.bin", bytes.Repeat([]byte("beta-"), 50000))

	m := NewManager(dir, 0)
	report, err := m.ScanDedup(64*1024, 1024*1024)
	require.NoError(t, err)

	assert.EqualValues(t, 2, report.FilesScanned)
	assert.Empty(t, report.Sets)
	assert.Zero(t, report.DuplicateBytes)
}
