// Package azureblob implements the Azure Blob Storage Store backend:
// account-key SAS signing, block-blob staged uploads, and an HTTP client
// driving the Blob REST API directly, in the same manual-signing style the
// teacher uses for S3 (internal/drivers/s3_auth.go) rather than pulling in
// an Azure Storage SDK the pack never vendors.
package azureblob

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"
)

// Signer computes Azure Blob SAS (shared access signature) tokens using
// account-key (SharedKey) authorization.
type Signer struct {
	Account string
	Key     []byte // decoded base64 account key
}

// NewSigner decodes the base64 account key. Returns an error for malformed
// keys so callers fail fast at startup rather than on first request.
func NewSigner(account, base64Key string) (*Signer, error) {
	key, err := base64.StdEncoding.DecodeString(base64Key)
	if err != nil {
		return nil, fmt.Errorf("decode azure account key: %w", err)
	}
	return &Signer{Account: account, Key: key}, nil
}

// BlobURL builds the canonical URL for a blob in container.
func (s *Signer) BlobURL(container, blob string) string {
	return fmt.Sprintf("https://%s.blob.core.windows.net/%s/%s", s.Account, container, url.PathEscape(blob))
}

// SignRequest computes the SharedKey Authorization header value for a Blob
// REST request, following the canonicalized-string construction Azure's
// Shared Key authorization scheme specifies: verb, content headers, then
// sorted x-ms-* headers, then the canonicalized resource path.
func (s *Signer) SignRequest(method, canonicalizedResource string, headers map[string]string, contentLength int64) string {
	canonicalizedHeaders := s.canonicalizeHeaders(headers)

	stringToSign := strings.Join([]string{
		method,
		headers["Content-Encoding"],
		headers["Content-Language"],
		contentLengthOrEmpty(contentLength),
		headers["Content-MD5"],
		headers["Content-Type"],
		"", // Date (we use x-ms-date instead)
		headers["If-Modified-Since"],
		headers["If-Match"],
		headers["If-None-Match"],
		headers["If-Unmodified-Since"],
		headers["Range"],
		canonicalizedHeaders,
		canonicalizedResource,
	}, "\n")

	mac := hmac.New(sha256.New, s.Key)
	mac.Write([]byte(stringToSign))
	signature := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return fmt.Sprintf("SharedKey %s:%s", s.Account, signature)
}

func contentLengthOrEmpty(n int64) string {
	if n <= 0 {
		return ""
	}
	return fmt.Sprintf("%d", n)
}

func (s *Signer) canonicalizeHeaders(headers map[string]string) string {
	var keys []string
	for k := range headers {
		lk := strings.ToLower(k)
		if strings.HasPrefix(lk, "x-ms-") {
			keys = append(keys, lk)
		}
	}
	sort.Strings(keys)

	var parts []string
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s:%s", k, headers[canonicalHeaderKey(headers, k)]))
	}
	return strings.Join(parts, "\n")
}

func canonicalHeaderKey(headers map[string]string, lower string) string {
	for k := range headers {
		if strings.ToLower(k) == lower {
			return k
		}
	}
	return lower
}

// CanonicalizedResource builds the "/account/container/blob" resource path
// Shared Key signing requires, with any query parameters appended sorted.
func CanonicalizedResource(account, container, blob string, query url.Values) string {
	var b strings.Builder
	fmt.Fprintf(&b, "/%s/%s", account, container)
	if blob != "" {
		fmt.Fprintf(&b, "/%s", blob)
	}

	keys := make([]string, 0, len(query))
	for k := range query {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		vals := query[k]
		sort.Strings(vals)
		fmt.Fprintf(&b, "\n%s:%s", strings.ToLower(k), strings.Join(vals, ","))
	}
	return b.String()
}

// GenerateBlobSAS builds a service SAS query string granting permissions
// on a single blob, valid from now until expiry, signed with the account key.
// Mirrors §4.H's generate_presigned_url contract for the Azure provider.
func (s *Signer) GenerateBlobSAS(container, blob string, now time.Time, expiry time.Duration, permissions string) string {
	start := now.Format("2006-01-02T15:04:05Z")
	end := now.Add(expiry).Format("2006-01-02T15:04:05Z")

	canonicalizedResource := fmt.Sprintf("/blob/%s/%s/%s", s.Account, container, blob)

	stringToSign := strings.Join([]string{
		permissions,
		start,
		end,
		canonicalizedResource,
		"",     // signed identifier
		"",     // signed IP
		"https", // signed protocol
		"2020-12-06", // signed version
		"b",          // signed resource: blob
		"",           // signed snapshot time
		"", "", "", "", "", "", // cache control, disposition, encoding, language, type
	}, "\n")

	mac := hmac.New(sha256.New, s.Key)
	mac.Write([]byte(stringToSign))
	signature := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	q := url.Values{}
	q.Set("sv", "2020-12-06")
	q.Set("sr", "b")
	q.Set("sp", permissions)
	q.Set("st", start)
	q.Set("se", end)
	q.Set("spr", "https")
	q.Set("sig", signature)
	return q.Encode()
}
