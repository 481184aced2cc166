package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/FairForge/vaultaire/internal/cloud"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"
)

// multipartThreshold is the default size above which Upload switches to a
// CreateMultipartUpload/UploadPart/CompleteMultipartUpload sequence (§4.H).
const multipartThreshold = 100 * 1024 * 1024

// partSize is the default multipart chunk size, at or above the provider
// minimum of 5 MiB.
const partSize = 5 * 1024 * 1024

// bulkDeleteCap is S3's per-request DeleteObjects limit.
const bulkDeleteCap = 1000

// Store implements cloud.Store against S3-compatible object storage,
// covering the full interface: streaming, presigning, bulk delete,
// listing, and copy.
type Store struct {
	bucket string
	signer *Signer
	logger *zap.Logger
	client *s3.Client

	connected atomic.Bool
}

// Config bundles the S3 connection parameters.
type Config struct {
	Endpoint      string // empty for real AWS; set for S3-compatible endpoints
	AccessKey     string
	SecretKey     string
	Region        string
	Bucket        string
	UsePathStyle  bool
}

// New builds an S3 Store. It does not connect; call Connect first.
func New(cfg Config, logger *zap.Logger) (*Store, error) {
	creds := credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")
	awsCfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithCredentialsProvider(creds),
		config.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return &Store{
		bucket: cfg.Bucket,
		signer: NewSigner(cfg.AccessKey, cfg.SecretKey, cfg.Region),
		logger: logger,
		client: client,
	}, nil
}

func (s *Store) Connect(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		return fmt.Errorf("connect to bucket %s: %w", s.bucket, err)
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

// Upload writes data under key, using a multipart sequence when size
// exceeds multipartThreshold (§4.H). Single-shot puts are used below that.
func (s *Store) Upload(ctx context.Context, key string, data io.Reader, size int64, opts cloud.UploadOptions) (cloud.ObjectMetadata, error) {
	if size > multipartThreshold {
		return s.uploadMultipart(ctx, key, data, size, opts)
	}

	buf := make([]byte, size)
	if _, err := io.ReadFull(data, buf); err != nil && err != io.EOF {
		return cloud.ObjectMetadata{}, fmt.Errorf("read upload body: %w", err)
	}

	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(buf),
	}
	if opts.ContentType != "" {
		input.ContentType = aws.String(opts.ContentType)
	}
	if opts.StorageClass != "" {
		input.StorageClass = types.StorageClass(opts.StorageClass)
	}
	if len(opts.Metadata) > 0 {
		input.Metadata = opts.Metadata
	}

	out, err := s.client.PutObject(ctx, input)
	if err != nil {
		return cloud.ObjectMetadata{}, fmt.Errorf("put object %s: %w", key, err)
	}

	meta := cloud.ObjectMetadata{Key: key, Size: size, ContentType: opts.ContentType, StorageClass: opts.StorageClass}
	if out.ETag != nil {
		meta.ETag = *out.ETag
	}
	if out.VersionId != nil {
		meta.VersionID = *out.VersionId
	}
	return meta, nil
}

// uploadMultipart runs CreateMultipartUpload -> UploadPart x N ->
// CompleteMultipartUpload per §4.H's S3 details.
func (s *Store) uploadMultipart(ctx context.Context, key string, data io.Reader, size int64, opts cloud.UploadOptions) (cloud.ObjectMetadata, error) {
	create, err := s.client.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return cloud.ObjectMetadata{}, fmt.Errorf("create multipart upload: %w", err)
	}
	uploadID := aws.ToString(create.UploadId)

	var completed []types.CompletedPart
	partNumber := int32(1)
	buf := make([]byte, partSize)

	for {
		n, rerr := io.ReadFull(data, buf)
		if n > 0 {
			out, perr := s.client.UploadPart(ctx, &s3.UploadPartInput{
				Bucket:     aws.String(s.bucket),
				Key:        aws.String(key),
				UploadId:   aws.String(uploadID),
				PartNumber: aws.Int32(partNumber),
				Body:       bytes.NewReader(buf[:n]),
			})
			if perr != nil {
				_, _ = s.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
					Bucket: aws.String(s.bucket), Key: aws.String(key), UploadId: aws.String(uploadID),
				})
				return cloud.ObjectMetadata{}, fmt.Errorf("upload part %d: %w", partNumber, perr)
			}
			completed = append(completed, types.CompletedPart{ETag: out.ETag, PartNumber: aws.Int32(partNumber)})
			partNumber++
		}
		if rerr == io.EOF || rerr == io.ErrUnexpectedEOF {
			break
		}
		if rerr != nil {
			_, _ = s.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
				Bucket: aws.String(s.bucket), Key: aws.String(key), UploadId: aws.String(uploadID),
			})
			return cloud.ObjectMetadata{}, fmt.Errorf("read part: %w", rerr)
		}
	}

	_, err = s.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:          aws.String(s.bucket),
		Key:             aws.String(key),
		UploadId:        aws.String(uploadID),
		MultipartUpload: &types.CompletedMultipartUpload{Parts: completed},
	})
	if err != nil {
		return cloud.ObjectMetadata{}, fmt.Errorf("complete multipart upload: %w", err)
	}

	return cloud.ObjectMetadata{Key: key, Size: size, StorageClass: opts.StorageClass}, nil
}

func (s *Store) Download(ctx context.Context, key string) (io.ReadCloser, cloud.ObjectMetadata, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)})
	if err != nil {
		return nil, cloud.ObjectMetadata{}, fmt.Errorf("get object %s: %w", key, err)
	}
	meta := cloud.ObjectMetadata{Key: key}
	if out.ContentLength != nil {
		meta.Size = *out.ContentLength
	}
	if out.ETag != nil {
		meta.ETag = *out.ETag
	}
	return out.Body, meta, nil
}

func (s *Store) DeleteObject(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)})
	if err != nil {
		return fmt.Errorf("delete object %s: %w", key, err)
	}
	return nil
}

// DeleteObjects batches up to bulkDeleteCap keys per request (§4.H).
func (s *Store) DeleteObjects(ctx context.Context, keys []string) error {
	for start := 0; start < len(keys); start += bulkDeleteCap {
		end := start + bulkDeleteCap
		if end > len(keys) {
			end = len(keys)
		}
		batch := keys[start:end]

		ids := make([]types.ObjectIdentifier, len(batch))
		for i, k := range batch {
			ids[i] = types.ObjectIdentifier{Key: aws.String(k)}
		}
		_, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &types.Delete{Objects: ids},
		})
		if err != nil {
			return fmt.Errorf("delete %d objects: %w", len(batch), err)
		}
	}
	return nil
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)})
	if err != nil {
		var nf *types.NotFound
		if errors.As(err, &nf) {
			return false, nil
		}
		return false, fmt.Errorf("head object %s: %w", key, err)
	}
	return true, nil
}

func (s *Store) GetMetadata(ctx context.Context, key string) (cloud.ObjectMetadata, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)})
	if err != nil {
		return cloud.ObjectMetadata{}, fmt.Errorf("head object %s: %w", key, err)
	}
	meta := cloud.ObjectMetadata{Key: key}
	if out.ContentLength != nil {
		meta.Size = *out.ContentLength
	}
	if out.ETag != nil {
		meta.ETag = *out.ETag
	}
	if out.ContentType != nil {
		meta.ContentType = *out.ContentType
	}
	if out.StorageClass != "" {
		meta.StorageClass = string(out.StorageClass)
	}
	return meta, nil
}

func (s *Store) ListObjects(ctx context.Context, opts cloud.ListOptions) (cloud.ListResult, error) {
	delim := opts.Delimiter
	if delim == "" {
		delim = "/"
	}
	maxKeys := int32(opts.MaxKeys)
	if maxKeys == 0 {
		maxKeys = 1000
	}

	input := &s3.ListObjectsV2Input{
		Bucket:    aws.String(s.bucket),
		Prefix:    aws.String(opts.Prefix),
		Delimiter: aws.String(delim),
		MaxKeys:   aws.Int32(maxKeys),
	}
	if opts.ContinuationToken != "" {
		input.ContinuationToken = aws.String(opts.ContinuationToken)
	}
	if opts.StartAfter != "" {
		input.StartAfter = aws.String(opts.StartAfter)
	}

	out, err := s.client.ListObjectsV2(ctx, input)
	if err != nil {
		return cloud.ListResult{}, fmt.Errorf("list objects: %w", err)
	}

	result := cloud.ListResult{IsTruncated: aws.ToBool(out.IsTruncated)}
	if out.NextContinuationToken != nil {
		result.ContinuationToken = *out.NextContinuationToken
	}
	for _, obj := range out.Contents {
		m := cloud.ObjectMetadata{Key: aws.ToString(obj.Key), Size: aws.ToInt64(obj.Size)}
		if obj.ETag != nil {
			m.ETag = *obj.ETag
		}
		if obj.LastModified != nil {
			m.LastModified = *obj.LastModified
		}
		result.Objects = append(result.Objects, m)
	}
	for _, p := range out.CommonPrefixes {
		result.CommonPrefixes = append(result.CommonPrefixes, aws.ToString(p.Prefix))
	}
	return result, nil
}

func (s *Store) CopyObject(ctx context.Context, src, dst string, opts cloud.CopyOptions) error {
	input := &s3.CopyObjectInput{
		Bucket:     aws.String(s.bucket),
		CopySource: aws.String(s.bucket + "/" + src),
		Key:        aws.String(dst),
	}
	if opts.StorageClass != "" {
		input.StorageClass = types.StorageClass(opts.StorageClass)
	}
	_, err := s.client.CopyObject(ctx, input)
	if err != nil {
		return fmt.Errorf("copy %s -> %s: %w", src, dst, err)
	}
	return nil
}

func (s *Store) GeneratePresignedURL(ctx context.Context, key string, opts cloud.PresignOptions) (string, error) {
	if opts.Method != "" && opts.Method != "GET" {
		return "", fmt.Errorf("s3 presign: unsupported method %q", opts.Method)
	}
	return s.signer.PresignGetURL(s.bucket, key, opts.Expiration, time.Now().UTC()), nil
}

// CreateUploadStream begins a multipart upload and returns a stream that
// buffers into part-sized chunks.
func (s *Store) CreateUploadStream(ctx context.Context, key string, opts cloud.UploadOptions) (cloud.UploadStream, error) {
	create, err := s.client.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("create multipart upload: %w", err)
	}
	return &uploadStream{ctx: ctx, store: s, key: key, uploadID: aws.ToString(create.UploadId)}, nil
}

// CreateDownloadStream opens a reader over the whole object at key.
func (s *Store) CreateDownloadStream(ctx context.Context, key string) (cloud.DownloadStream, error) {
	body, meta, err := s.Download(ctx, key)
	if err != nil {
		return nil, err
	}
	return &downloadStream{body: body, meta: meta}, nil
}

// uploadStream buffers writes into partSize-sized chunks and drives them
// through UploadPart, finishing with CompleteMultipartUpload on Finalize or
// AbortMultipartUpload on Abort.
type uploadStream struct {
	ctx      context.Context
	store    *Store
	key      string
	uploadID string

	buf          bytes.Buffer
	parts        []types.CompletedPart
	partNumber   int32
	bytesWritten int64
}

func (u *uploadStream) Write(p []byte) (int, error) {
	n, err := u.buf.Write(p)
	if err != nil {
		return n, err
	}
	u.bytesWritten += int64(n)
	for u.buf.Len() >= partSize {
		if err := u.flushPart(u.buf.Next(partSize)); err != nil {
			return n, err
		}
	}
	return n, nil
}

func (u *uploadStream) flushPart(chunk []byte) error {
	u.partNumber++
	out, err := u.store.client.UploadPart(u.ctx, &s3.UploadPartInput{
		Bucket:     aws.String(u.store.bucket),
		Key:        aws.String(u.key),
		UploadId:   aws.String(u.uploadID),
		PartNumber: aws.Int32(u.partNumber),
		Body:       bytes.NewReader(chunk),
	})
	if err != nil {
		return fmt.Errorf("upload part %d: %w", u.partNumber, err)
	}
	u.parts = append(u.parts, types.CompletedPart{ETag: out.ETag, PartNumber: aws.Int32(u.partNumber)})
	return nil
}

func (u *uploadStream) Finalize(ctx context.Context) (cloud.ObjectMetadata, error) {
	if u.buf.Len() > 0 {
		if err := u.flushPart(u.buf.Bytes()); err != nil {
			return cloud.ObjectMetadata{}, err
		}
		u.buf.Reset()
	}
	_, err := u.store.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:          aws.String(u.store.bucket),
		Key:             aws.String(u.key),
		UploadId:        aws.String(u.uploadID),
		MultipartUpload: &types.CompletedMultipartUpload{Parts: u.parts},
	})
	if err != nil {
		return cloud.ObjectMetadata{}, fmt.Errorf("complete multipart upload: %w", err)
	}
	return cloud.ObjectMetadata{Key: u.key, Size: u.bytesWritten}, nil
}

func (u *uploadStream) Abort(ctx context.Context) error {
	_, err := u.store.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket: aws.String(u.store.bucket), Key: aws.String(u.key), UploadId: aws.String(u.uploadID),
	})
	if err != nil {
		return fmt.Errorf("abort multipart upload: %w", err)
	}
	return nil
}

func (u *uploadStream) BytesWritten() int64 { return u.bytesWritten }
func (u *uploadStream) UploadID() string    { return u.uploadID }

// downloadStream wraps the GetObject response body with position tracking.
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

func (d *downloadStream) HasMore() bool            { return d.bytesRead < d.meta.Size }
func (d *downloadStream) BytesRead() int64         { return d.bytesRead }
func (d *downloadStream) TotalSize() int64         { return d.meta.Size }
func (d *downloadStream) Metadata() cloud.ObjectMetadata { return d.meta }
