package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(CodeConnectionTimeout))
	assert.True(t, IsRetryable(CodeServerBusy))
	assert.False(t, IsRetryable(CodeSHA256Mismatch))
	assert.False(t, IsRetryable(CodeQuotaExceeded))
}

func TestErrorMessage(t *testing.T) {
	err := NewError(CodeChunkCRCError, "checksum mismatch on chunk 4")
	assert.Contains(t, err.Error(), "checksum mismatch on chunk 4")
	assert.Contains(t, err.Error(), "-720")
}
