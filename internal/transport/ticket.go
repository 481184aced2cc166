// Package transport implements QUIC 0-RTT session resumption and
// connection migration on top of quic-go, adapted from the reference
// session_resumption/connection_migration design (session_resumption.h,
// connection_migration.h) into idiomatic Go: an in-memory/file-backed
// ticket store plus a path-migration state machine.
package transport

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// SessionTicket holds an encrypted QUIC session ticket and the metadata
// needed to decide whether it is still usable for 0-RTT resumption.
type SessionTicket struct {
	ServerID        string
	TicketData      []byte
	IssuedAt        time.Time
	ExpiresAt       time.Time
	MaxEarlyDataSize uint32
	ALPNProtocol    string
	ServerName      string
}

// Valid reports whether the ticket has not yet expired.
func (t SessionTicket) Valid(now time.Time) bool { return now.Before(t.ExpiresAt) }

// AllowsEarlyData reports whether the ticket both permits 0-RTT data and
// has not expired.
func (t SessionTicket) AllowsEarlyData(now time.Time) bool {
	return t.MaxEarlyDataSize > 0 && t.Valid(now)
}

// TicketStoreConfig configures a TicketStore's capacity and persistence.
type TicketStoreConfig struct {
	MaxTickets            int           // 0 = unlimited
	DefaultLifetime       time.Duration // used when a server doesn't specify one
	MinRemainingLifetime  time.Duration // tickets below this are treated as expired
	StoragePath           string        // empty = in-memory only
}

// DefaultTicketStoreConfig returns conservative defaults: 1000 tickets,
// 7-day lifetime, 1-minute expiry margin.
func DefaultTicketStoreConfig() TicketStoreConfig {
	return TicketStoreConfig{
		MaxTickets:           1000,
		DefaultLifetime:      7 * 24 * time.Hour,
		MinRemainingLifetime: time.Minute,
	}
}

// ServerID builds the "host:port" key session tickets are stored under.
func ServerID(host string, port uint16) string {
	return fmt.Sprintf("%s:%d", host, port)
}

// TicketStore is a thread-safe, optionally file-persisted cache of session
// tickets keyed by server_id, with oldest-eviction once MaxTickets is hit.
type TicketStore struct {
	mu      sync.Mutex
	cfg     TicketStoreConfig
	tickets map[string]SessionTicket
	dirty   bool
}

// NewTicketStore builds a store and loads any existing persisted tickets.
func NewTicketStore(cfg TicketStoreConfig) (*TicketStore, error) {
	s := &TicketStore{cfg: cfg, tickets: make(map[string]SessionTicket)}
	if cfg.StoragePath != "" {
		if err := s.load(); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("load session ticket store: %w", err)
		}
	}
	return s, nil
}

// Store saves (or replaces) a ticket, evicting the oldest entry first if
// the store is at capacity.
func (s *TicketStore) Store(ticket SessionTicket) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cfg.MaxTickets > 0 && len(s.tickets) >= s.cfg.MaxTickets {
		if _, exists := s.tickets[ticket.ServerID]; !exists {
			s.evictOldestLocked()
		}
	}
	s.tickets[ticket.ServerID] = ticket
	s.dirty = true
	return s.persistLocked()
}

func (s *TicketStore) evictOldestLocked() {
	var oldestID string
	var oldestAt time.Time
	first := true
	for id, t := range s.tickets {
		if first || t.IssuedAt.Before(oldestAt) {
			oldestID, oldestAt, first = id, t.IssuedAt, false
		}
	}
	if oldestID != "" {
		delete(s.tickets, oldestID)
	}
}

// Retrieve returns the ticket for serverID if present and still valid
// beyond MinRemainingLifetime.
func (s *TicketStore) Retrieve(serverID string) (SessionTicket, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tickets[serverID]
	if !ok {
		return SessionTicket{}, false
	}
	if time.Until(t.ExpiresAt) < s.cfg.MinRemainingLifetime {
		return SessionTicket{}, false
	}
	return t, true
}

// HasTicket reports whether a valid ticket exists for serverID.
func (s *TicketStore) HasTicket(serverID string) bool {
	_, ok := s.Retrieve(serverID)
	return ok
}

// Remove deletes the ticket for serverID, reporting whether one existed.
func (s *TicketStore) Remove(serverID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, existed := s.tickets[serverID]
	if existed {
		delete(s.tickets, serverID)
		s.dirty = true
		_ = s.persistLocked()
	}
	return existed
}

// CleanupExpired removes every ticket whose expiry has passed and returns
// the number removed.
func (s *TicketStore) CleanupExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	removed := 0
	for id, t := range s.tickets {
		if !t.Valid(now) {
			delete(s.tickets, id)
			removed++
		}
	}
	if removed > 0 {
		s.dirty = true
		_ = s.persistLocked()
	}
	return removed
}

// Clear removes every stored ticket.
func (s *TicketStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickets = make(map[string]SessionTicket)
	s.dirty = true
	_ = s.persistLocked()
}

// Size returns the number of currently stored tickets.
func (s *TicketStore) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tickets)
}

// persistLocked writes the store to disk via write-temp-then-rename, the
// same atomic pattern protocol.ResumeState persistence uses for crash
// safety. Caller must hold s.mu.
func (s *TicketStore) persistLocked() error {
	if s.cfg.StoragePath == "" || !s.dirty {
		return nil
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(s.tickets); err != nil {
		return fmt.Errorf("encode ticket store: %w", err)
	}

	tmp := s.cfg.StoragePath + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("write ticket store temp file: %w", err)
	}
	if err := os.Rename(tmp, s.cfg.StoragePath); err != nil {
		return fmt.Errorf("rename ticket store file: %w", err)
	}
	s.dirty = false
	return nil
}

func (s *TicketStore) load() error {
	data, err := os.ReadFile(s.cfg.StoragePath)
	if err != nil {
		return err
	}
	var tickets map[string]SessionTicket
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&tickets); err != nil {
		return fmt.Errorf("decode ticket store: %w", err)
	}
	s.tickets = tickets
	return nil
}

// EnsureParentDir creates the directory component of path if needed,
// allowing StoragePath to point at a not-yet-created state directory.
func EnsureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o700)
}
