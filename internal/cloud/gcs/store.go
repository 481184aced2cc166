package gcs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/FairForge/vaultaire/internal/cloud"
)

const readWriteScope = "https://www.googleapis.com/auth/devstorage.read_write"

// resumableChunkSize is the per-PUT chunk size for resumable uploads, a
// multiple of GCS's required 256 KiB granularity.
const resumableChunkSize = 8 * 1024 * 1024

const jsonAPI = "https://storage.googleapis.com/storage/v1"
const uploadAPI = "https://storage.googleapis.com/upload/storage/v1"

// Store implements cloud.Store against the GCS JSON API: resumable
// uploads, V4 signed URLs, and oauth2 service-account bearer tokens in
// place of the client library the pack never vendors.
type Store struct {
	bucket     string
	signer     *Signer
	tokenSrc   *TokenSource
	httpClient *http.Client
	connected  atomic.Bool
}

// Config bundles GCS connection parameters. ServiceAccount/PrivateKeyPEM
// come from the service-account JSON key file and drive both bearer-token
// minting (auth.go) and V4 signed-URL RSA signing (signer.go).
type Config struct {
	Bucket         string
	ServiceAccount string
	PrivateKeyPEM  string
}

func New(cfg Config) (*Store, error) {
	signer, err := NewSignerFromPEM(cfg.ServiceAccount, cfg.PrivateKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("build gcs signer: %w", err)
	}

	httpClient := &http.Client{}
	return &Store{
		bucket:     cfg.Bucket,
		signer:     signer,
		tokenSrc:   NewTokenSource(signer, readWriteScope, httpClient),
		httpClient: httpClient,
	}, nil
}

func (s *Store) authedRequest(ctx context.Context, method, rawURL string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	token, err := s.tokenSrc.Token()
	if err != nil {
		return nil, fmt.Errorf("fetch oauth2 token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return req, nil
}

func (s *Store) Connect(ctx context.Context) error {
	req, err := s.authedRequest(ctx, "GET", fmt.Sprintf("%s/b/%s", jsonAPI, s.bucket), nil)
	if err != nil {
		return err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("connect to bucket %s: %w", s.bucket, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("connect to bucket %s: status %d", s.bucket, resp.StatusCode)
	}
	s.connected.Store(true)
	return nil
}

func (s *Store) Disconnect(ctx context.Context) error {
	s.connected.Store(false)
	return nil
}

func (s *Store) IsConnected() bool { return s.connected.Load() }

func (s *Store) State() cloud.ConnectionState {
	if s.connected.Load() {
		return cloud.StateConnected
	}
	return cloud.StateDisconnected
}

// Upload always drives the resumable-upload protocol: POST to open a
// session, then PUT the body (possibly in ranged chunks for large objects),
// matching §4.H's GCS resumable-session requirement for all object sizes.
func (s *Store) Upload(ctx context.Context, key string, data io.Reader, size int64, opts cloud.UploadOptions) (cloud.ObjectMetadata, error) {
	sessionURL, err := s.startResumableSession(ctx, key, opts)
	if err != nil {
		return cloud.ObjectMetadata{}, err
	}

	buf := make([]byte, resumableChunkSize)
	var offset int64
	for {
		n, rerr := io.ReadFull(data, buf)
		final := rerr == io.EOF || rerr == io.ErrUnexpectedEOF
		if n > 0 {
			if err := s.putChunk(ctx, sessionURL, buf[:n], offset, size, final); err != nil {
				return cloud.ObjectMetadata{}, err
			}
			offset += int64(n)
		}
		if final {
			break
		}
		if rerr != nil {
			return cloud.ObjectMetadata{}, fmt.Errorf("read upload chunk at offset %d: %w", offset, rerr)
		}
	}

	return cloud.ObjectMetadata{Key: key, Size: size, ContentType: opts.ContentType}, nil
}

func (s *Store) startResumableSession(ctx context.Context, key string, opts cloud.UploadOptions) (string, error) {
	meta := map[string]interface{}{"name": key}
	if len(opts.Metadata) > 0 {
		meta["metadata"] = opts.Metadata
	}
	body, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("marshal resumable session metadata: %w", err)
	}

	u := fmt.Sprintf("%s/b/%s/o?uploadType=resumable", uploadAPI, s.bucket)
	req, err := s.authedRequest(ctx, "POST", u, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	req.Header.Set("X-Upload-Content-Type", opts.ContentType)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("start resumable session for %s: %w", key, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("start resumable session for %s: status %d", key, resp.StatusCode)
	}

	location := resp.Header.Get("Location")
	if location == "" {
		return "", fmt.Errorf("start resumable session for %s: missing Location header", key)
	}
	return location, nil
}

func (s *Store) putChunk(ctx context.Context, sessionURL string, chunk []byte, offset, totalSize int64, final bool) error {
	req, err := s.authedRequest(ctx, "PUT", sessionURL, bytes.NewReader(chunk))
	if err != nil {
		return err
	}

	end := offset + int64(len(chunk)) - 1
	total := "*"
	if final {
		total = strconv.FormatInt(totalSize, 10)
	}
	req.Header.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%s", offset, end, total))
	req.ContentLength = int64(len(chunk))

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("put resumable chunk at offset %d: %w", offset, err)
	}
	defer resp.Body.Close()

	if final {
		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
			return fmt.Errorf("finalize resumable upload: status %d", resp.StatusCode)
		}
		return nil
	}
	if resp.StatusCode != 308 {
		return fmt.Errorf("put resumable chunk at offset %d: status %d", offset, resp.StatusCode)
	}
	return nil
}

func (s *Store) Download(ctx context.Context, key string) (io.ReadCloser, cloud.ObjectMetadata, error) {
	u := fmt.Sprintf("%s/b/%s/o/%s?alt=media", jsonAPI, s.bucket, url.PathEscape(key))
	req, err := s.authedRequest(ctx, "GET", u, nil)
	if err != nil {
		return nil, cloud.ObjectMetadata{}, err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, cloud.ObjectMetadata{}, fmt.Errorf("get object %s: %w", key, err)
	}
	if resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, cloud.ObjectMetadata{}, fmt.Errorf("get object %s: status %d", key, resp.StatusCode)
	}

	size, _ := strconv.ParseInt(resp.Header.Get("Content-Length"), 10, 64)
	meta := cloud.ObjectMetadata{Key: key, Size: size, ContentType: resp.Header.Get("Content-Type")}
	return resp.Body, meta, nil
}

func (s *Store) DeleteObject(ctx context.Context, key string) error {
	u := fmt.Sprintf("%s/b/%s/o/%s", jsonAPI, s.bucket, url.PathEscape(key))
	req, err := s.authedRequest(ctx, "DELETE", u, nil)
	if err != nil {
		return err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("delete object %s: %w", key, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("delete object %s: status %d", key, resp.StatusCode)
	}
	return nil
}

// DeleteObjects has no GCS JSON-API batch-delete primitive; delete
// sequentially, matching the azureblob provider's fallback.
func (s *Store) DeleteObjects(ctx context.Context, keys []string) error {
	for _, k := range keys {
		if err := s.DeleteObject(ctx, k); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.GetMetadata(ctx, key)
	if err != nil {
		return false, nil
	}
	return true, nil
}

type gcsObjectMeta struct {
	Name         string `json:"name"`
	Size         string `json:"size"`
	ContentType  string `json:"contentType"`
	ETag         string `json:"etag"`
	StorageClass string `json:"storageClass"`
}

func (s *Store) GetMetadata(ctx context.Context, key string) (cloud.ObjectMetadata, error) {
	u := fmt.Sprintf("%s/b/%s/o/%s", jsonAPI, s.bucket, url.PathEscape(key))
	req, err := s.authedRequest(ctx, "GET", u, nil)
	if err != nil {
		return cloud.ObjectMetadata{}, err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return cloud.ObjectMetadata{}, fmt.Errorf("get metadata %s: %w", key, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return cloud.ObjectMetadata{}, fmt.Errorf("get metadata %s: status %d", key, resp.StatusCode)
	}

	var parsed gcsObjectMeta
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return cloud.ObjectMetadata{}, fmt.Errorf("decode metadata for %s: %w", key, err)
	}
	size, _ := strconv.ParseInt(parsed.Size, 10, 64)
	return cloud.ObjectMetadata{
		Key: parsed.Name, Size: size, ContentType: parsed.ContentType,
		ETag: parsed.ETag, StorageClass: parsed.StorageClass,
	}, nil
}

type gcsListResponse struct {
	Items  []gcsObjectMeta `json:"items"`
	Prefixes []string      `json:"prefixes"`
	NextPageToken string   `json:"nextPageToken"`
}

func (s *Store) ListObjects(ctx context.Context, opts cloud.ListOptions) (cloud.ListResult, error) {
	q := url.Values{}
	if opts.Prefix != "" {
		q.Set("prefix", opts.Prefix)
	}
	delim := opts.Delimiter
	if delim == "" {
		delim = "/"
	}
	q.Set("delimiter", delim)
	if opts.MaxKeys > 0 {
		q.Set("maxResults", strconv.Itoa(opts.MaxKeys))
	}
	if opts.ContinuationToken != "" {
		q.Set("pageToken", opts.ContinuationToken)
	}

	u := fmt.Sprintf("%s/b/%s/o?%s", jsonAPI, s.bucket, q.Encode())
	req, err := s.authedRequest(ctx, "GET", u, nil)
	if err != nil {
		return cloud.ListResult{}, err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return cloud.ListResult{}, fmt.Errorf("list objects: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return cloud.ListResult{}, fmt.Errorf("list objects: status %d", resp.StatusCode)
	}

	var parsed gcsListResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return cloud.ListResult{}, fmt.Errorf("decode list response: %w", err)
	}

	result := cloud.ListResult{
		CommonPrefixes:    parsed.Prefixes,
		ContinuationToken: parsed.NextPageToken,
		IsTruncated:       parsed.NextPageToken != "",
	}
	for _, item := range parsed.Items {
		size, _ := strconv.ParseInt(item.Size, 10, 64)
		result.Objects = append(result.Objects, cloud.ObjectMetadata{
			Key: item.Name, Size: size, ContentType: item.ContentType, ETag: item.ETag,
		})
	}
	return result, nil
}

// CopyObject copies src to dst within the store's bucket through the JSON
// API's copyTo endpoint.
func (s *Store) CopyObject(ctx context.Context, src, dst string, opts cloud.CopyOptions) error {
	u := fmt.Sprintf("%s/b/%s/o/%s/copyTo/b/%s/o/%s", jsonAPI, s.bucket, url.PathEscape(src), s.bucket, url.PathEscape(dst))
	req, err := s.authedRequest(ctx, "POST", u, nil)
	if err != nil {
		return err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("copy %s -> %s: %w", src, dst, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("copy %s -> %s: status %d", src, dst, resp.StatusCode)
	}
	return nil
}

func (s *Store) GeneratePresignedURL(ctx context.Context, key string, opts cloud.PresignOptions) (string, error) {
	method := opts.Method
	if method == "" {
		method = "GET"
	}
	return s.signer.SignedURL(method, s.bucket, key, opts.Expiration, time.Now().UTC())
}

func (s *Store) CreateUploadStream(ctx context.Context, key string, opts cloud.UploadOptions) (cloud.UploadStream, error) {
	sessionURL, err := s.startResumableSession(ctx, key, opts)
	if err != nil {
		return nil, err
	}
	return &uploadStream{ctx: ctx, store: s, key: key, sessionURL: sessionURL}, nil
}

func (s *Store) CreateDownloadStream(ctx context.Context, key string) (cloud.DownloadStream, error) {
	body, meta, err := s.Download(ctx, key)
	if err != nil {
		return nil, err
	}
	return &downloadStream{body: body, meta: meta}, nil
}

// uploadStream buffers writes into resumableChunkSize chunks, PUTting each
// against the session URL opened by CreateUploadStream.
type uploadStream struct {
	ctx        context.Context
	store      *Store
	key        string
	sessionURL string

	buf          bytes.Buffer
	offset       int64
	bytesWritten int64
	finalized    bool
}

func (u *uploadStream) Write(p []byte) (int, error) {
	n, err := u.buf.Write(p)
	if err != nil {
		return n, err
	}
	u.bytesWritten += int64(n)
	for u.buf.Len() >= resumableChunkSize {
		chunk := u.buf.Next(resumableChunkSize)
		if err := u.store.putChunk(u.ctx, u.sessionURL, chunk, u.offset, 0, false); err != nil {
			return n, err
		}
		u.offset += int64(len(chunk))
	}
	return n, nil
}

func (u *uploadStream) Finalize(ctx context.Context) (cloud.ObjectMetadata, error) {
	remaining := u.buf.Bytes()
	if err := u.store.putChunk(ctx, u.sessionURL, remaining, u.offset, u.offset+int64(len(remaining)), true); err != nil {
		return cloud.ObjectMetadata{}, err
	}
	u.finalized = true
	return cloud.ObjectMetadata{Key: u.key, Size: u.bytesWritten}, nil
}

func (u *uploadStream) Abort(ctx context.Context) error {
	req, err := u.store.authedRequest(ctx, "DELETE", u.sessionURL, nil)
	if err != nil {
		return err
	}
	resp, err := u.store.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("abort resumable session: %w", err)
	}
	defer resp.Body.Close()
	return nil
}

func (u *uploadStream) BytesWritten() int64 { return u.bytesWritten }
func (u *uploadStream) UploadID() string    { return u.sessionURL }

type downloadStream struct {
	body      io.ReadCloser
	meta      cloud.ObjectMetadata
	bytesRead int64
}

func (d *downloadStream) Read(p []byte) (int, error) {
	n, err := d.body.Read(p)
	d.bytesRead += int64(n)
	return n, err
}

func (d *downloadStream) HasMore() bool                 { return d.bytesRead < d.meta.Size }
func (d *downloadStream) BytesRead() int64              { return d.bytesRead }
func (d *downloadStream) TotalSize() int64              { return d.meta.Size }
func (d *downloadStream) Metadata() cloud.ObjectMetadata { return d.meta }
