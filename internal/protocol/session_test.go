package protocol

import (
	"testing"

	"github.com/FairForge/vaultaire/internal/chunk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransferSessionHappyPath(t *testing.T) {
	s := NewTransferSession(chunk.NewTransferID(), DirectionUpload, "report.csv", 1024)
	assert.Equal(t, StateIdle, s.State())

	require.NoError(t, s.Transition(StateInitializing))
	require.NoError(t, s.Transition(StateTransferring))
	require.NoError(t, s.Transition(StatePaused))
	require.NoError(t, s.Transition(StateTransferring))
	require.NoError(t, s.Transition(StateVerifying))
	require.NoError(t, s.Transition(StateCompleting))
	require.NoError(t, s.Transition(StateCompleted))
	assert.True(t, s.State().Terminal())
}

func TestTransferSessionRejectsIllegalTransition(t *testing.T) {
	s := NewTransferSession(chunk.NewTransferID(), DirectionDownload, "x.bin", 10)
	err := s.Transition(StateVerifying)
	assert.Error(t, err)
	assert.Equal(t, StateIdle, s.State())
}

func TestTransferSessionTerminalIsSticky(t *testing.T) {
	s := NewTransferSession(chunk.NewTransferID(), DirectionUpload, "x.bin", 10)
	require.NoError(t, s.Transition(StateInitializing))
	require.NoError(t, s.Transition(StateFailed))

	err := s.Transition(StateTransferring)
	assert.Error(t, err)
}
