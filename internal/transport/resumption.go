package transport

import (
	"sync"
	"time"
)

// ResumptionConfig configures a ResumptionManager.
type ResumptionConfig struct {
	Enable0RTT      bool
	Store           TicketStoreConfig
	On0RTTRejected  func(serverID string)
	On0RTTAccepted  func(serverID string)
	OnTicketReceived func(SessionTicket)
}

// DefaultResumptionConfig enables 0-RTT with the store's default sizing.
func DefaultResumptionConfig() ResumptionConfig {
	return ResumptionConfig{Enable0RTT: true, Store: DefaultTicketStoreConfig()}
}

// ResumptionManager is the high-level 0-RTT session-resumption facade: it
// owns a TicketStore and tracks, per server, whether 0-RTT was most
// recently accepted or rejected so callers can decide whether to keep
// attempting early data.
type ResumptionManager struct {
	cfg   ResumptionConfig
	store *TicketStore

	mu       sync.Mutex
	accepted map[string]bool
}

// NewResumptionManager builds a manager, loading any persisted tickets.
func NewResumptionManager(cfg ResumptionConfig) (*ResumptionManager, error) {
	store, err := NewTicketStore(cfg.Store)
	if err != nil {
		return nil, err
	}
	return &ResumptionManager{cfg: cfg, store: store, accepted: make(map[string]bool)}, nil
}

// TicketForServer returns the raw ticket bytes to present for 0-RTT, or
// false if no valid ticket exists or 0-RTT is disabled.
func (m *ResumptionManager) TicketForServer(host string, port uint16) ([]byte, bool) {
	if !m.cfg.Enable0RTT {
		return nil, false
	}
	t, ok := m.store.Retrieve(ServerID(host, port))
	if !ok {
		return nil, false
	}
	return t.TicketData, true
}

// SessionForServer returns the full ticket record, for callers that need
// ALPN/early-data-size metadata alongside the raw bytes.
func (m *ResumptionManager) SessionForServer(host string, port uint16) (SessionTicket, bool) {
	return m.store.Retrieve(ServerID(host, port))
}

// StoreTicket records a newly received ticket, applying the configured
// default lifetime when the server didn't specify one.
func (m *ResumptionManager) StoreTicket(host string, port uint16, data []byte, lifetime time.Duration, maxEarlyData uint32, alpn string) error {
	if lifetime <= 0 {
		lifetime = m.cfg.Store.DefaultLifetime
	}
	now := time.Now()
	ticket := SessionTicket{
		ServerID:         ServerID(host, port),
		TicketData:       data,
		IssuedAt:         now,
		ExpiresAt:        now.Add(lifetime),
		MaxEarlyDataSize: maxEarlyData,
		ALPNProtocol:     alpn,
		ServerName:       host,
	}
	if err := m.store.Store(ticket); err != nil {
		return err
	}
	if m.cfg.OnTicketReceived != nil {
		m.cfg.OnTicketReceived(ticket)
	}
	return nil
}

// On0RTTRejected invalidates the stored ticket for host:port (the server
// has signaled it will not honor it again) and fires the rejection hook.
func (m *ResumptionManager) On0RTTRejected(host string, port uint16) {
	id := ServerID(host, port)
	m.setAccepted(id, false)
	m.store.Remove(id)
	if m.cfg.On0RTTRejected != nil {
		m.cfg.On0RTTRejected(id)
	}
}

// On0RTTAccepted records that early data was honored for host:port.
func (m *ResumptionManager) On0RTTAccepted(host string, port uint16) {
	id := ServerID(host, port)
	m.setAccepted(id, true)
	if m.cfg.On0RTTAccepted != nil {
		m.cfg.On0RTTAccepted(id)
	}
}

func (m *ResumptionManager) setAccepted(id string, v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accepted[id] = v
}

// WasLastAccepted reports the outcome of the most recent 0-RTT attempt for
// host:port, if any is on record.
func (m *ResumptionManager) WasLastAccepted(host string, port uint16) (bool, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.accepted[ServerID(host, port)]
	return v, ok
}

// CanUse0RTT reports whether a valid, early-data-capable ticket exists.
func (m *ResumptionManager) CanUse0RTT(host string, port uint16) bool {
	if !m.cfg.Enable0RTT {
		return false
	}
	t, ok := m.store.Retrieve(ServerID(host, port))
	return ok && t.AllowsEarlyData(time.Now())
}

// RemoveTicket deletes any stored ticket for host:port.
func (m *ResumptionManager) RemoveTicket(host string, port uint16) bool {
	return m.store.Remove(ServerID(host, port))
}

// ClearAllTickets empties the underlying store.
func (m *ResumptionManager) ClearAllTickets() { m.store.Clear() }

// Store exposes the underlying TicketStore for direct inspection.
func (m *ResumptionManager) Store() *TicketStore { return m.store }
