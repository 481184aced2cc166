package transport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResumptionManagerStoreAndFetchTicket(t *testing.T) {
	m, err := NewResumptionManager(DefaultResumptionConfig())
	require.NoError(t, err)

	require.NoError(t, m.StoreTicket("example.com", 443, []byte("ticket"), time.Hour, 8192, "vaultaire"))

	data, ok := m.TicketForServer("example.com", 443)
	require.True(t, ok)
	assert.Equal(t, []byte("ticket"), data)
	assert.True(t, m.CanUse0RTT("example.com", 443))
}

func TestResumptionManagerDisabled0RTTNeverReturnsTicket(t *testing.T) {
	cfg := DefaultResumptionConfig()
	cfg.Enable0RTT = false
	m, err := NewResumptionManager(cfg)
	require.NoError(t, err)

	require.NoError(t, m.StoreTicket("example.com", 443, []byte("ticket"), time.Hour, 8192, "vaultaire"))
	_, ok := m.TicketForServer("example.com", 443)
	assert.False(t, ok)
	assert.False(t, m.CanUse0RTT("example.com", 443))
}

func TestResumptionManagerOn0RTTRejectedInvalidatesTicket(t *testing.T) {
	var rejected string
	cfg := DefaultResumptionConfig()
	cfg.On0RTTRejected = func(serverID string) { rejected = serverID }
	m, err := NewResumptionManager(cfg)
	require.NoError(t, err)

	require.NoError(t, m.StoreTicket("example.com", 443, []byte("ticket"), time.Hour, 8192, "vaultaire"))
	m.On0RTTRejected("example.com", 443)

	assert.Equal(t, "example.com:443", rejected)
	assert.False(t, m.Store().HasTicket("example.com:443"))

	accepted, ok := m.WasLastAccepted("example.com", 443)
	assert.True(t, ok)
	assert.False(t, accepted)
}

func TestResumptionManagerOn0RTTAcceptedFiresCallback(t *testing.T) {
	var acceptedID string
	cfg := DefaultResumptionConfig()
	cfg.On0RTTAccepted = func(serverID string) { acceptedID = serverID }
	m, err := NewResumptionManager(cfg)
	require.NoError(t, err)

	m.On0RTTAccepted("example.com", 443)
	assert.Equal(t, "example.com:443", acceptedID)

	accepted, ok := m.WasLastAccepted("example.com", 443)
	assert.True(t, ok)
	assert.True(t, accepted)
}

func TestResumptionManagerDefaultLifetimeApplied(t *testing.T) {
	m, err := NewResumptionManager(DefaultResumptionConfig())
	require.NoError(t, err)

	require.NoError(t, m.StoreTicket("example.com", 443, []byte("ticket"), 0, 8192, "vaultaire"))
	ticket, ok := m.SessionForServer("example.com", 443)
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), ticket.ExpiresAt, time.Minute)
}
