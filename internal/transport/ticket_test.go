package transport

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freshTicket(serverID string, now time.Time, lifetime time.Duration) SessionTicket {
	return SessionTicket{
		ServerID:         serverID,
		TicketData:       []byte("opaque-ticket-bytes"),
		IssuedAt:         now,
		ExpiresAt:        now.Add(lifetime),
		MaxEarlyDataSize: 16384,
		ALPNProtocol:     "vaultaire",
		ServerName:       "example.com",
	}
}

func TestTicketStoreStoreAndRetrieve(t *testing.T) {
	store, err := NewTicketStore(DefaultTicketStoreConfig())
	require.NoError(t, err)

	id := ServerID("example.com", 443)
	require.NoError(t, store.Store(freshTicket(id, time.Now(), time.Hour)))

	got, ok := store.Retrieve(id)
	require.True(t, ok)
	assert.Equal(t, "vaultaire", got.ALPNProtocol)
}

func TestTicketStoreRetrieveRejectsNearExpiry(t *testing.T) {
	cfg := DefaultTicketStoreConfig()
	cfg.MinRemainingLifetime = time.Minute
	store, err := NewTicketStore(cfg)
	require.NoError(t, err)

	id := ServerID("example.com", 443)
	require.NoError(t, store.Store(freshTicket(id, time.Now(), 30*time.Second)))

	_, ok := store.Retrieve(id)
	assert.False(t, ok)
}

func TestTicketStoreEvictsOldestAtCapacity(t *testing.T) {
	cfg := DefaultTicketStoreConfig()
	cfg.MaxTickets = 2
	store, err := NewTicketStore(cfg)
	require.NoError(t, err)

	now := time.Now()
	require.NoError(t, store.Store(freshTicket("a:443", now.Add(-2*time.Hour), 24*time.Hour)))
	require.NoError(t, store.Store(freshTicket("b:443", now.Add(-1*time.Hour), 24*time.Hour)))
	require.NoError(t, store.Store(freshTicket("c:443", now, 24*time.Hour)))

	assert.Equal(t, 2, store.Size())
	assert.False(t, store.HasTicket("a:443"))
	assert.True(t, store.HasTicket("c:443"))
}

func TestTicketStoreCleanupExpired(t *testing.T) {
	store, err := NewTicketStore(DefaultTicketStoreConfig())
	require.NoError(t, err)

	now := time.Now()
	require.NoError(t, store.Store(freshTicket("expired:443", now.Add(-2*time.Hour), time.Hour)))
	require.NoError(t, store.Store(freshTicket("valid:443", now, time.Hour)))

	removed := store.CleanupExpired()
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, store.Size())
}

func TestTicketStorePersistsAcrossReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tickets.dat")

	cfg := DefaultTicketStoreConfig()
	cfg.StoragePath = path
	store, err := NewTicketStore(cfg)
	require.NoError(t, err)

	id := ServerID("example.com", 443)
	require.NoError(t, store.Store(freshTicket(id, time.Now(), time.Hour)))

	reloaded, err := NewTicketStore(cfg)
	require.NoError(t, err)
	got, ok := reloaded.Retrieve(id)
	require.True(t, ok)
	assert.Equal(t, []byte("opaque-ticket-bytes"), got.TicketData)
}

func TestTicketStoreRemoveAndClear(t *testing.T) {
	store, err := NewTicketStore(DefaultTicketStoreConfig())
	require.NoError(t, err)

	id := ServerID("example.com", 443)
	require.NoError(t, store.Store(freshTicket(id, time.Now(), time.Hour)))

	assert.True(t, store.Remove(id))
	assert.False(t, store.Remove(id))

	require.NoError(t, store.Store(freshTicket(id, time.Now(), time.Hour)))
	store.Clear()
	assert.Equal(t, 0, store.Size())
}
