package protocol

import (
	"strings"

	"github.com/FairForge/vaultaire/internal/chunk"
	"github.com/FairForge/vaultaire/internal/quota"
)

// UploadRequest is the client's opening frame for an upload.
type UploadRequest struct {
	Filename        string
	FileSize        int64
	TotalChunks     uint64
	SHA256          string
	CompressionMode string
}

// UploadAccept is the server's successful reply.
type UploadAccept struct {
	TransferID chunk.TransferID
	ChunkSize  uint32
}

// ValidateFilename rejects empty names, path separators, and traversal
// segments, per §4.G.
func ValidateFilename(name string) *Error {
	if name == "" {
		return NewError(CodeInvalidFilename, "filename is empty")
	}
	if strings.ContainsAny(name, `/\`) {
		return NewError(CodeInvalidFilename, "filename contains a path separator")
	}
	if name == "." || name == ".." || strings.Contains(name, "..") {
		return NewError(CodeInvalidFilename, "filename contains a traversal segment")
	}
	return nil
}

// HandshakeDeps bundles the collaborators the upload handshake needs to
// validate a request: quota accounting and a per-server file-size ceiling.
type HandshakeDeps struct {
	Quota       *quota.Manager
	MaxFileSize int64
	Overwrite   bool
	Exists      func(filename string) bool
	Busy        func() bool
	ChunkSize   uint32
}

// AcceptUpload validates an UploadRequest against filename rules, the
// configured size ceiling, quota, and an optional overwrite check, in the
// order §4.G specifies. It returns either an UploadAccept or a protocol
// Error describing the rejection reason.
func AcceptUpload(req UploadRequest, deps HandshakeDeps, id chunk.TransferID) (*UploadAccept, *Error) {
	if deps.Busy != nil && deps.Busy() {
		return nil, NewError(CodeServerBusy, "server is at capacity")
	}
	if err := ValidateFilename(req.Filename); err != nil {
		return nil, err
	}
	if deps.MaxFileSize > 0 && req.FileSize > deps.MaxFileSize {
		return nil, NewError(CodeFileTooLarge, "file exceeds the server's maximum size")
	}
	if deps.Quota != nil {
		if err := deps.Quota.CheckQuota(req.FileSize); err != nil {
			return nil, NewError(CodeQuotaExceeded, err.Error())
		}
	}
	if !deps.Overwrite && deps.Exists != nil && deps.Exists(req.Filename) {
		return nil, NewError(CodeFileAlreadyExists, "file already exists and overwrite is disallowed")
	}

	chunkSize := deps.ChunkSize
	if chunkSize == 0 {
		chunkSize = 256 * 1024
	}
	return &UploadAccept{TransferID: id, ChunkSize: chunkSize}, nil
}

// DownloadRequest is the client's opening frame for a download.
type DownloadRequest struct {
	Filename   string
	ResumeFrom int64
}

// DownloadAccept is the server's successful reply.
type DownloadAccept struct {
	TransferID  chunk.TransferID
	FileSize    int64
	TotalChunks uint64
	ChunkSize   uint32
	SHA256      string
}

// FileLookup reports whether filename exists and, if so, its metadata.
type FileLookup func(filename string) (meta chunk.FileMetadata, ok bool)

// AcceptDownload validates a DownloadRequest and builds the accept frame,
// or a not-found error.
func AcceptDownload(req DownloadRequest, lookup FileLookup, id chunk.TransferID, chunkSize uint32) (*DownloadAccept, *Error) {
	if err := ValidateFilename(req.Filename); err != nil {
		return nil, err
	}
	meta, ok := lookup(req.Filename)
	if !ok {
		return nil, NewError(CodeServerFileNotFound, "requested file does not exist")
	}
	return &DownloadAccept{
		TransferID:  id,
		FileSize:    meta.FileSize,
		TotalChunks: meta.TotalChunks,
		ChunkSize:   chunkSize,
		SHA256:      meta.SHA256Hash,
	}, nil
}
