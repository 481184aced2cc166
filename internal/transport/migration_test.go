package transport

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func alwaysReachable(rtt time.Duration) PathProber {
	return func(path NetworkPath, timeout time.Duration) (time.Duration, error) {
		return rtt, nil
	}
}

func alwaysUnreachable() PathProber {
	return func(path NetworkPath, timeout time.Duration) (time.Duration, error) {
		return 0, fmt.Errorf("path unreachable")
	}
}

func TestMigrationManagerSetCurrentPathTracksPrevious(t *testing.T) {
	m := NewMigrationManager(DefaultMigrationConfig(), alwaysReachable(10*time.Millisecond))

	p1 := NetworkPath{LocalAddress: "10.0.0.1", RemoteAddress: "server", RemotePort: 443}
	p2 := NetworkPath{LocalAddress: "10.0.0.2", RemoteAddress: "server", RemotePort: 443}

	m.SetCurrentPath(p1)
	m.SetCurrentPath(p2)

	current, ok := m.CurrentPath()
	require.True(t, ok)
	assert.Equal(t, "10.0.0.2", current.LocalAddress)

	prev := m.PreviousPaths()
	require.Len(t, prev, 1)
	assert.Equal(t, "10.0.0.1", prev[0].LocalAddress)
}

func TestMigrationManagerMigrateToPathSucceeds(t *testing.T) {
	var events []MigrationEvent
	m := NewMigrationManager(DefaultMigrationConfig(), alwaysReachable(5*time.Millisecond))
	m.OnMigrationEvent(func(e MigrationEventData) { events = append(events, e.Event) })

	m.SetCurrentPath(NetworkPath{LocalAddress: "10.0.0.1", RemoteAddress: "server", RemotePort: 443})

	result, err := m.MigrateToPath(NetworkPath{LocalAddress: "10.0.0.2", RemoteAddress: "server", RemotePort: 443})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, MigrationCompleted, m.State())

	stats := m.GetStatistics()
	assert.Equal(t, uint64(1), stats.TotalMigrations)
	assert.Equal(t, uint64(1), stats.SuccessfulMigrations)
	assert.Contains(t, events, EventMigrationCompleted)
}

func TestMigrationManagerMigrateToPathFailsOnUnreachablePath(t *testing.T) {
	m := NewMigrationManager(DefaultMigrationConfig(), alwaysUnreachable())
	m.SetCurrentPath(NetworkPath{LocalAddress: "10.0.0.1", RemoteAddress: "server", RemotePort: 443})

	result, err := m.MigrateToPath(NetworkPath{LocalAddress: "10.0.0.2", RemoteAddress: "server", RemotePort: 443})
	assert.Error(t, err)
	assert.False(t, result.Success)

	stats := m.GetStatistics()
	assert.Equal(t, uint64(1), stats.FailedMigrations)
	assert.Equal(t, MigrationFailed, m.State())
}

func TestMigrationManagerFallbackToPrevious(t *testing.T) {
	m := NewMigrationManager(DefaultMigrationConfig(), alwaysReachable(5*time.Millisecond))
	original := NetworkPath{LocalAddress: "10.0.0.1", RemoteAddress: "server", RemotePort: 443}
	m.SetCurrentPath(original)

	_, err := m.MigrateToPath(NetworkPath{LocalAddress: "10.0.0.2", RemoteAddress: "server", RemotePort: 443})
	require.NoError(t, err)

	result, err := m.FallbackToPrevious()
	require.NoError(t, err)
	assert.True(t, result.Success)

	current, ok := m.CurrentPath()
	require.True(t, ok)
	assert.Equal(t, original.LocalAddress, current.LocalAddress)
}

func TestMigrationManagerFallbackFailsWithNoHistory(t *testing.T) {
	m := NewMigrationManager(DefaultMigrationConfig(), alwaysReachable(5*time.Millisecond))
	_, err := m.FallbackToPrevious()
	assert.Error(t, err)
}

func TestMigrationManagerIsMigrationAvailable(t *testing.T) {
	cfg := DefaultMigrationConfig()
	cfg.AutoMigrate = false
	m := NewMigrationManager(cfg, alwaysReachable(time.Millisecond))
	assert.False(t, m.IsMigrationAvailable())
}
