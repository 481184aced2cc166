package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveTransferKey_Deterministic(t *testing.T) {
	master := make([]byte, MasterKeySize)
	for i := range master {
		master[i] = byte(i)
	}

	k1, err := DeriveTransferKey(master, "transfer-a", 32)
	require.NoError(t, err)
	k2, err := DeriveTransferKey(master, "transfer-a", 32)
	require.NoError(t, err)
	assert.Equal(t, k1, k2)
	assert.Len(t, k1, 32)
}

func TestDeriveTransferKey_DistinctTransfersDiverge(t *testing.T) {
	master := make([]byte, MasterKeySize)

	k1, err := DeriveTransferKey(master, "transfer-a", 32)
	require.NoError(t, err)
	k2, err := DeriveTransferKey(master, "transfer-b", 32)
	require.NoError(t, err)
	assert.NotEqual(t, k1, k2)
}

func TestDeriveTransferKey_RejectsBadMasterKeySize(t *testing.T) {
	_, err := DeriveTransferKey([]byte("too-short"), "transfer-a", 32)
	assert.Error(t, err)
}

func TestDeriveTransferKey_RejectsNonPositiveKeySize(t *testing.T) {
	master := make([]byte, MasterKeySize)
	_, err := DeriveTransferKey(master, "transfer-a", 0)
	assert.Error(t, err)
}
