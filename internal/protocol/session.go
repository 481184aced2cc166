package protocol

import (
	"fmt"
	"sync"
	"time"

	"github.com/FairForge/vaultaire/internal/chunk"
)

// SessionState is one node of the TransferSession state machine (§3):
// idle -> initializing -> transferring -> (paused <-> transferring) ->
// verifying -> completing -> (completed | failed | cancelled).
type SessionState int

const (
	StateIdle SessionState = iota
	StateInitializing
	StateTransferring
	StatePaused
	StateVerifying
	StateCompleting
	StateCompleted
	StateFailed
	StateCancelled
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInitializing:
		return "initializing"
	case StateTransferring:
		return "transferring"
	case StatePaused:
		return "paused"
	case StateVerifying:
		return "verifying"
	case StateCompleting:
		return "completing"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether s is one of the three terminal states.
func (s SessionState) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// Direction distinguishes an upload session from a download session.
type Direction int

const (
	DirectionUpload Direction = iota
	DirectionDownload
)

// legalTransitions enumerates every edge of the state machine; a
// transition not present here is rejected.
var legalTransitions = map[SessionState][]SessionState{
	StateIdle:         {StateInitializing},
	StateInitializing: {StateTransferring, StateFailed, StateCancelled},
	StateTransferring: {StatePaused, StateVerifying, StateFailed, StateCancelled},
	StatePaused:       {StateTransferring, StateCancelled},
	StateVerifying:    {StateCompleting, StateFailed},
	StateCompleting:   {StateCompleted, StateFailed},
}

// TransferSession tracks one upload or download's lifecycle. Created on a
// client-initiated upload or download; destroyed by the caller after the
// terminal-state callback is delivered and any resume state is persisted.
type TransferSession struct {
	mu sync.Mutex

	ID        chunk.TransferID
	Direction Direction
	Filename  string
	FileSize  int64

	state     SessionState
	createdAt time.Time
	updatedAt time.Time
}

// NewTransferSession creates a session in StateIdle.
func NewTransferSession(id chunk.TransferID, dir Direction, filename string, fileSize int64) *TransferSession {
	now := time.Now()
	return &TransferSession{
		ID:        id,
		Direction: dir,
		Filename:  filename,
		FileSize:  fileSize,
		state:     StateIdle,
		createdAt: now,
		updatedAt: now,
	}
}

// State returns the session's current state.
func (s *TransferSession) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Transition moves the session to next, failing if the edge is not legal.
func (s *TransferSession) Transition(next SessionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Terminal() {
		return fmt.Errorf("protocol: session %s is in terminal state %s", s.ID, s.state)
	}

	for _, allowed := range legalTransitions[s.state] {
		if allowed == next {
			s.state = next
			s.updatedAt = time.Now()
			return nil
		}
	}
	return fmt.Errorf("protocol: illegal transition %s -> %s", s.state, next)
}
