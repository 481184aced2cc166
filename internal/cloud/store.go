// Package cloud defines the provider-agnostic object store surface of §4.H:
// a uniform Store interface that the s3, azureblob, and gcs sub-packages
// each implement, plus the shared retry policy and progress-callback shapes
// every provider is driven through.
package cloud

import (
	"context"
	"io"
	"time"
)

// ObjectMetadata is the per-object metadata shape common across providers
// (§3).
type ObjectMetadata struct {
	Key             string
	Size            int64
	LastModified    time.Time
	ETag            string
	ContentType     string
	ContentEncoding string
	StorageClass    string
	VersionID       string
	MD5             string
	CustomMetadata  map[string]string
}

// UploadOptions configures a single-shot or streaming upload.
type UploadOptions struct {
	ContentType  string
	StorageClass string
	Metadata     map[string]string
}

// ConnectionState is the lifecycle of a Store's underlying transport.
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateError
)

// ListOptions mirrors list_objects_options (§4.H).
type ListOptions struct {
	Prefix            string
	Delimiter         string // defaults to "/"
	MaxKeys           int    // defaults to 1000
	ContinuationToken string
	StartAfter        string
}

// ListResult is the paginated response shape common across providers.
type ListResult struct {
	Objects           []ObjectMetadata
	CommonPrefixes    []string
	IsTruncated       bool
	ContinuationToken string
}

// CopyOptions configures copy_object.
type CopyOptions struct {
	StorageClass string
	Metadata     map[string]string
}

// PresignOptions configures generate_presigned_url.
type PresignOptions struct {
	Method      string // "GET" or "PUT"
	Expiration  time.Duration
	ContentType string
	ContentMD5  string
}

// UploadProgress is delivered during create_upload_stream at
// implementation-chosen granularity (recommended <=100ms).
type UploadProgress struct {
	BytesTransferred int64
	TotalBytes       int64
	SpeedBps         float64
	UploadID         string
	CurrentPart      int
	TotalParts       int
}

// DownloadProgress mirrors UploadProgress for the read path.
type DownloadProgress struct {
	BytesTransferred int64
	TotalBytes       int64
	SpeedBps         float64
}

// UploadStream is returned by CreateUploadStream: callers Write repeatedly,
// then Finalize or Abort.
type UploadStream interface {
	Write(p []byte) (int, error)
	Finalize(ctx context.Context) (ObjectMetadata, error)
	Abort(ctx context.Context) error
	BytesWritten() int64
	UploadID() string
}

// DownloadStream is returned by CreateDownloadStream.
type DownloadStream interface {
	Read(p []byte) (int, error)
	HasMore() bool
	BytesRead() int64
	TotalSize() int64
	Metadata() ObjectMetadata
}

// Store is the uniform interface every provider backend implements (§4.H).
type Store interface {
	Upload(ctx context.Context, key string, data io.Reader, size int64, opts UploadOptions) (ObjectMetadata, error)
	Download(ctx context.Context, key string) (io.ReadCloser, ObjectMetadata, error)
	DeleteObject(ctx context.Context, key string) error
	DeleteObjects(ctx context.Context, keys []string) error
	Exists(ctx context.Context, key string) (bool, error)
	GetMetadata(ctx context.Context, key string) (ObjectMetadata, error)
	ListObjects(ctx context.Context, opts ListOptions) (ListResult, error)
	CopyObject(ctx context.Context, src, dst string, opts CopyOptions) error

	CreateUploadStream(ctx context.Context, key string, opts UploadOptions) (UploadStream, error)
	CreateDownloadStream(ctx context.Context, key string) (DownloadStream, error)

	GeneratePresignedURL(ctx context.Context, key string, opts PresignOptions) (string, error)

	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	IsConnected() bool
	State() ConnectionState
}
