// Package protocol implements the chunked transfer handshake, the
// TransferSession state machine, resume persistence, and the reconnection
// policy of §4.G, plus the numeric error taxonomy of §7.
package protocol

import "fmt"

// Code is a numeric error code in one of the banded ranges from §7.
type Code int

const (
	// Connection band: -700..-709
	CodeConnectionFailed    Code = -700
	CodeConnectionTimeout   Code = -701
	CodeConnectionRefused   Code = -702
	CodeConnectionLost      Code = -703
	CodeReconnectExhausted  Code = -704
	CodeSessionExpired      Code = -705
	CodeServerBusy          Code = -706
	CodeProtocolMismatch    Code = -707

	// Transfer band: -710..-719
	CodeTransferInitFailed Code = -710
	CodeTransferCancelled  Code = -711
	CodeTransferTimeout    Code = -712
	CodeUploadRejected     Code = -713
	CodeDownloadRejected   Code = -714
	CodeTransferDuplicate  Code = -715
	CodeTransferNotFound   Code = -716
	CodeTransferInProgress Code = -717

	// Chunk band: -720..-739
	CodeChunkCRCError      Code = -720
	CodeChunkSequenceError Code = -721
	CodeChunkSizeError     Code = -722
	CodeSHA256Mismatch     Code = -723
	CodeChunkTimeout       Code = -724
	CodeChunkDuplicate     Code = -725

	// Storage band: -740..-749
	CodeQuotaExceeded       Code = -740
	CodeFileTooLarge        Code = -741
	CodeFileAlreadyExists   Code = -742
	CodeStorageFull         Code = -743
	CodeServerFileNotFound  Code = -744
	CodeAccessDenied        Code = -745
	CodeInvalidFilename     Code = -746

	// File I/O band: -750..-759
	CodeReadError      Code = -750
	CodeWriteError     Code = -751
	CodePermission     Code = -752
	CodeNotFound       Code = -753
	CodeDiskFull       Code = -754
	CodeDirNotFound    Code = -755
	CodeLocked         Code = -756

	// Resume band: -760..-779
	CodeResumeStateInvalid    Code = -760
	CodeResumeFileChanged     Code = -761
	CodeResumeStateCorrupted Code = -762
	CodeResumeNotSupported   Code = -763
	CodeResumeSessionMismatch Code = -764

	// Compression band: -780..-789
	CodeCompressFail   Code = -780
	CodeDecompressFail Code = -781
	CodeBufferError    Code = -782
	CodeInvalidData    Code = -783

	// Config band: -790..-799
	CodeConfigInvalid        Code = -790
	CodeConfigChunkSize      Code = -791
	CodeConfigTransport      Code = -792
	CodeConfigStoragePath    Code = -793
	CodeConfigQuota          Code = -794
	CodeConfigReconnect      Code = -795

	// Cloud band: -800..-899 (sub-banded; representative members)
	CodeCloudAuth       Code = -800
	CodeCloudConnection Code = -820
	CodeCloudBucket     Code = -830
	CodeCloudObject     Code = -840
	CodeCloudTransfer   Code = -850
	CodeCloudQuota      Code = -860
	CodeCloudProvider   Code = -870
	CodeCloudConfig     Code = -880
	CodeCloudInternal   Code = -890
)

// retryable is the set of codes the client transparently retries.
var retryable = map[Code]bool{
	CodeConnectionFailed:   true,
	CodeConnectionTimeout:  true,
	CodeConnectionLost:     true,
	CodeServerBusy:         true,
	CodeChunkTimeout:       true,
	CodeTransferTimeout:    true,
	CodeCloudConnection:    true,
}

// IsRetryable reports whether the client should transparently retry an
// operation that failed with code.
func IsRetryable(code Code) bool {
	return retryable[code]
}

// Error pairs a numeric code with a human message, per §7: "every failing
// operation returns (code, human_message)".
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("protocol error %d: %s", e.Code, e.Message)
}

// NewError builds an *Error from a code and message.
func NewError(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}
