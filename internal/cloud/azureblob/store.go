package azureblob

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/FairForge/vaultaire/internal/cloud"
)

// storageResourceScope is the AAD scope OAuth-authenticated Blob REST calls
// request a token for.
const storageResourceScope = "https://storage.azure.com/.default"

// authorizer sets whatever Authorization header a request needs, so Store
// can be driven by either SharedKey signing (signer.go) or an AAD bearer
// token without branching at every call site.
type authorizer interface {
	authorize(req *http.Request, method, resource string, headers map[string]string, contentLength int64) error
}

// sharedKeyAuthorizer signs with the account key using the same
// manual-HMAC style as the S3 provider's signer, generalized to Azure's
// SharedKey scheme.
type sharedKeyAuthorizer struct{ signer *Signer }

func (a *sharedKeyAuthorizer) authorize(req *http.Request, method, resource string, headers map[string]string, contentLength int64) error {
	req.Header.Set("Authorization", a.signer.SignRequest(method, resource, headers, contentLength))
	return nil
}

// aadAuthorizer authenticates with an AAD client-secret credential instead
// of an account key, using azidentity.NewClientSecretCredential to request
// a token scoped to Azure Storage.
type aadAuthorizer struct {
	cred *azidentity.ClientSecretCredential
}

func newAADAuthorizer(tenantID, clientID, clientSecret string) (*aadAuthorizer, error) {
	cred, err := azidentity.NewClientSecretCredential(tenantID, clientID, clientSecret, nil)
	if err != nil {
		return nil, fmt.Errorf("create client secret credential: %w", err)
	}
	return &aadAuthorizer{cred: cred}, nil
}

func (a *aadAuthorizer) authorize(req *http.Request, method, resource string, headers map[string]string, contentLength int64) error {
	token, err := a.cred.GetToken(req.Context(), policy.TokenRequestOptions{Scopes: []string{storageResourceScope}})
	if err != nil {
		return fmt.Errorf("acquire aad token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token.Token)
	return nil
}

// blockSize is the per-block size used for staged block-blob uploads
// (PutBlock / PutBlockList), chosen well under Azure's 4000-block cap.
const blockSize = 4 * 1024 * 1024

const apiVersion = "2020-12-06"

// Store implements cloud.Store against Azure Blob Storage's block-blob
// API, driven directly over net/http and signed with SharedKey auth
// (signer.go), the same manual-signing approach the S3 provider uses.
type Store struct {
	signer    *Signer
	container string
	client    *http.Client
	connected atomic.Bool

	auth authorizer
}

// Config bundles Azure connection parameters. Account/AccountKeyB64 drive
// SharedKey signing; when TenantID/ClientID/ClientSecret are set instead,
// the store authenticates against AAD and never needs the account key
// (presigned URLs still require it, since SAS tokens are derived from the
// account key regardless of the data-plane auth mode).
type Config struct {
	Account       string
	AccountKeyB64 string
	Container     string

	TenantID     string
	ClientID     string
	ClientSecret string
}

func New(cfg Config) (*Store, error) {
	var signer *Signer
	if cfg.AccountKeyB64 != "" {
		s, err := NewSigner(cfg.Account, cfg.AccountKeyB64)
		if err != nil {
			return nil, err
		}
		signer = s
	} else {
		signer = &Signer{Account: cfg.Account}
	}

	var auth authorizer
	if cfg.ClientID != "" && cfg.ClientSecret != "" && cfg.TenantID != "" {
		aad, err := newAADAuthorizer(cfg.TenantID, cfg.ClientID, cfg.ClientSecret)
		if err != nil {
			return nil, err
		}
		auth = aad
	} else if cfg.AccountKeyB64 != "" {
		auth = &sharedKeyAuthorizer{signer: signer}
	} else {
		return nil, fmt.Errorf("azureblob: need either an account key or AAD client-secret credentials")
	}

	return &Store{signer: signer, container: cfg.Container, client: &http.Client{}, auth: auth}, nil
}

func (s *Store) Connect(ctx context.Context) error {
	req, err := s.newRequest(ctx, "GET", "", url.Values{"restype": {"container"}}, nil, 0)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("connect to container %s: %w", s.container, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("connect to container %s: status %d", s.container, resp.StatusCode)
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

// newRequest builds and signs a Blob REST request.
func (s *Store) newRequest(ctx context.Context, method, blob string, query url.Values, body io.Reader, contentLength int64) (*http.Request, error) {
	u := s.signer.BlobURL(s.container, blob)
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	now := time.Now().UTC().Format(http.TimeFormat)
	req.Header.Set("x-ms-date", now)
	req.Header.Set("x-ms-version", apiVersion)
	if contentLength > 0 {
		req.ContentLength = contentLength
	}

	headers := map[string]string{
		"x-ms-date":    now,
		"x-ms-version": apiVersion,
	}
	resource := CanonicalizedResource(s.signer.Account, s.container, blob, query)
	if err := s.auth.authorize(req, method, resource, headers, contentLength); err != nil {
		return nil, err
	}
	return req, nil
}

func (s *Store) Upload(ctx context.Context, key string, data io.Reader, size int64, opts cloud.UploadOptions) (cloud.ObjectMetadata, error) {
	if size > blockSize {
		return s.uploadStaged(ctx, key, data, size, opts)
	}

	buf := make([]byte, size)
	if _, err := io.ReadFull(data, buf); err != nil && err != io.EOF {
		return cloud.ObjectMetadata{}, fmt.Errorf("read upload body: %w", err)
	}

	req, err := s.newRequest(ctx, "PUT", key, nil, bytes.NewReader(buf), size)
	if err != nil {
		return cloud.ObjectMetadata{}, err
	}
	req.Header.Set("x-ms-blob-type", "BlockBlob")
	if opts.ContentType != "" {
		req.Header.Set("Content-Type", opts.ContentType)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return cloud.ObjectMetadata{}, fmt.Errorf("put blob %s: %w", key, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return cloud.ObjectMetadata{}, fmt.Errorf("put blob %s: status %d", key, resp.StatusCode)
	}

	return cloud.ObjectMetadata{Key: key, Size: size, ETag: resp.Header.Get("ETag"), ContentType: opts.ContentType}, nil
}

// uploadStaged drives the block-blob sequence: PutBlock per chunk (base64
// block IDs) followed by PutBlockList to commit them in order.
func (s *Store) uploadStaged(ctx context.Context, key string, data io.Reader, size int64, opts cloud.UploadOptions) (cloud.ObjectMetadata, error) {
	var blockIDs []string
	buf := make([]byte, blockSize)
	index := 0

	for {
		n, rerr := io.ReadFull(data, buf)
		if n > 0 {
			id := blockID(index)
			if err := s.putBlock(ctx, key, id, buf[:n]); err != nil {
				return cloud.ObjectMetadata{}, err
			}
			blockIDs = append(blockIDs, id)
			index++
		}
		if rerr == io.EOF || rerr == io.ErrUnexpectedEOF {
			break
		}
		if rerr != nil {
			return cloud.ObjectMetadata{}, fmt.Errorf("read block %d: %w", index, rerr)
		}
	}

	if err := s.putBlockList(ctx, key, blockIDs, opts); err != nil {
		return cloud.ObjectMetadata{}, err
	}
	return cloud.ObjectMetadata{Key: key, Size: size, ContentType: opts.ContentType}, nil
}

func blockID(index int) string {
	return base64.StdEncoding.EncodeToString([]byte(fmt.Sprintf("block-%08d", index)))
}

func (s *Store) putBlock(ctx context.Context, key, id string, chunk []byte) error {
	query := url.Values{"comp": {"block"}, "blockid": {id}}
	req, err := s.newRequest(ctx, "PUT", key, query, bytes.NewReader(chunk), int64(len(chunk)))
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("put block %s: %w", id, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("put block %s: status %d", id, resp.StatusCode)
	}
	return nil
}

type blockList struct {
	XMLName xml.Name `xml:"BlockList"`
	Latest  []string `xml:"Latest"`
}

func (s *Store) putBlockList(ctx context.Context, key string, ids []string, opts cloud.UploadOptions) error {
	list := blockList{Latest: ids}
	body, err := xml.Marshal(list)
	if err != nil {
		return fmt.Errorf("marshal block list: %w", err)
	}

	query := url.Values{"comp": {"blocklist"}}
	req, err := s.newRequest(ctx, "PUT", key, query, bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return err
	}
	if opts.ContentType != "" {
		req.Header.Set("Content-Type", opts.ContentType)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("put block list for %s: %w", key, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("put block list for %s: status %d", key, resp.StatusCode)
	}
	return nil
}

func (s *Store) Download(ctx context.Context, key string) (io.ReadCloser, cloud.ObjectMetadata, error) {
	req, err := s.newRequest(ctx, "GET", key, nil, nil, 0)
	if err != nil {
		return nil, cloud.ObjectMetadata{}, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, cloud.ObjectMetadata{}, fmt.Errorf("get blob %s: %w", key, err)
	}
	if resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, cloud.ObjectMetadata{}, fmt.Errorf("get blob %s: status %d", key, resp.StatusCode)
	}

	size, _ := strconv.ParseInt(resp.Header.Get("Content-Length"), 10, 64)
	meta := cloud.ObjectMetadata{Key: key, Size: size, ETag: resp.Header.Get("ETag"), ContentType: resp.Header.Get("Content-Type")}
	return resp.Body, meta, nil
}

func (s *Store) DeleteObject(ctx context.Context, key string) error {
	req, err := s.newRequest(ctx, "DELETE", key, nil, nil, 0)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("delete blob %s: %w", key, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("delete blob %s: status %d", key, resp.StatusCode)
	}
	return nil
}

// DeleteObjects has no Azure batch primitive as simple as S3's; issue
// sequential deletes as a best-effort fallback.
func (s *Store) DeleteObjects(ctx context.Context, keys []string) error {
	for _, k := range keys {
		if err := s.DeleteObject(ctx, k); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	req, err := s.newRequest(ctx, "HEAD", key, nil, nil, 0)
	if err != nil {
		return false, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("head blob %s: %w", key, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	return resp.StatusCode < 300, nil
}

func (s *Store) GetMetadata(ctx context.Context, key string) (cloud.ObjectMetadata, error) {
	req, err := s.newRequest(ctx, "HEAD", key, nil, nil, 0)
	if err != nil {
		return cloud.ObjectMetadata{}, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return cloud.ObjectMetadata{}, fmt.Errorf("head blob %s: %w", key, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return cloud.ObjectMetadata{}, fmt.Errorf("head blob %s: status %d", key, resp.StatusCode)
	}
	size, _ := strconv.ParseInt(resp.Header.Get("Content-Length"), 10, 64)
	return cloud.ObjectMetadata{
		Key:         key,
		Size:        size,
		ETag:        resp.Header.Get("ETag"),
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}

type listBlobsResult struct {
	XMLName  xml.Name `xml:"EnumerationResults"`
	Blobs    struct {
		Blob []struct {
			Name       string `xml:"Name"`
			Properties struct {
				ContentLength int64  `xml:"Content-Length"`
				Etag          string `xml:"Etag"`
			} `xml:"Properties"`
		} `xml:"Blob"`
	} `xml:"Blobs"`
	NextMarker string `xml:"NextMarker"`
}

func (s *Store) ListObjects(ctx context.Context, opts cloud.ListOptions) (cloud.ListResult, error) {
	query := url.Values{"restype": {"container"}, "comp": {"list"}}
	if opts.Prefix != "" {
		query.Set("prefix", opts.Prefix)
	}
	if opts.MaxKeys > 0 {
		query.Set("maxresults", strconv.Itoa(opts.MaxKeys))
	}
	if opts.ContinuationToken != "" {
		query.Set("marker", opts.ContinuationToken)
	}

	req, err := s.newRequest(ctx, "GET", "", query, nil, 0)
	if err != nil {
		return cloud.ListResult{}, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return cloud.ListResult{}, fmt.Errorf("list blobs: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return cloud.ListResult{}, fmt.Errorf("list blobs: status %d", resp.StatusCode)
	}

	var parsed listBlobsResult
	if err := xml.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return cloud.ListResult{}, fmt.Errorf("decode list blobs response: %w", err)
	}

	result := cloud.ListResult{ContinuationToken: parsed.NextMarker, IsTruncated: parsed.NextMarker != ""}
	for _, b := range parsed.Blobs.Blob {
		result.Objects = append(result.Objects, cloud.ObjectMetadata{
			Key:  b.Name,
			Size: b.Properties.ContentLength,
			ETag: b.Properties.Etag,
		})
	}
	return result, nil
}

func (s *Store) CopyObject(ctx context.Context, src, dst string, opts cloud.CopyOptions) error {
	req, err := s.newRequest(ctx, "PUT", dst, nil, nil, 0)
	if err != nil {
		return err
	}
	req.Header.Set("x-ms-copy-source", s.signer.BlobURL(s.container, src))
	resp, err := s.client.Do(req)
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
	if len(s.signer.Key) == 0 {
		return "", fmt.Errorf("azureblob: presigned URLs require an account key; store is using AAD credentials")
	}
	perm := "r"
	if strings.EqualFold(opts.Method, "PUT") {
		perm = "cw"
	}
	sas := s.signer.GenerateBlobSAS(s.container, key, time.Now().UTC(), opts.Expiration, perm)
	return s.signer.BlobURL(s.container, key) + "?" + sas, nil
}

func (s *Store) CreateUploadStream(ctx context.Context, key string, opts cloud.UploadOptions) (cloud.UploadStream, error) {
	return &uploadStream{ctx: ctx, store: s, key: key, opts: opts}, nil
}

func (s *Store) CreateDownloadStream(ctx context.Context, key string) (cloud.DownloadStream, error) {
	body, meta, err := s.Download(ctx, key)
	if err != nil {
		return nil, err
	}
	return &downloadStream{body: body, meta: meta}, nil
}

// uploadStream accumulates writes into blockSize-sized staged blocks,
// mirroring the S3 provider's multipart stream but against PutBlock.
type uploadStream struct {
	ctx   context.Context
	store *Store
	key   string
	opts  cloud.UploadOptions

	buf          bytes.Buffer
	blockIDs     []string
	index        int
	bytesWritten int64
}

func (u *uploadStream) Write(p []byte) (int, error) {
	n, err := u.buf.Write(p)
	if err != nil {
		return n, err
	}
	u.bytesWritten += int64(n)
	for u.buf.Len() >= blockSize {
		if err := u.flushBlock(u.buf.Next(blockSize)); err != nil {
			return n, err
		}
	}
	return n, nil
}

func (u *uploadStream) flushBlock(chunk []byte) error {
	id := blockID(u.index)
	if err := u.store.putBlock(u.ctx, u.key, id, chunk); err != nil {
		return err
	}
	u.blockIDs = append(u.blockIDs, id)
	u.index++
	return nil
}

func (u *uploadStream) Finalize(ctx context.Context) (cloud.ObjectMetadata, error) {
	if u.buf.Len() > 0 {
		if err := u.flushBlock(u.buf.Bytes()); err != nil {
			return cloud.ObjectMetadata{}, err
		}
		u.buf.Reset()
	}
	if err := u.store.putBlockList(ctx, u.key, u.blockIDs, u.opts); err != nil {
		return cloud.ObjectMetadata{}, err
	}
	return cloud.ObjectMetadata{Key: u.key, Size: u.bytesWritten}, nil
}

func (u *uploadStream) Abort(ctx context.Context) error {
	return nil // uncommitted blocks expire automatically after 7 days
}

func (u *uploadStream) BytesWritten() int64 { return u.bytesWritten }
func (u *uploadStream) UploadID() string    { return u.key }

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

func (d *downloadStream) HasMore() bool                  { return d.bytesRead < d.meta.Size }
func (d *downloadStream) BytesRead() int64               { return d.bytesRead }
func (d *downloadStream) TotalSize() int64                { return d.meta.Size }
func (d *downloadStream) Metadata() cloud.ObjectMetadata  { return d.meta }
