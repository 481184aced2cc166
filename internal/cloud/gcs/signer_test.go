package gcs

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSigner(t *testing.T) *Signer {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	block := &pem.Block{Type: "PRIVATE KEY", Bytes: der}
	pemBytes := pem.EncodeToMemory(block)

	signer, err := NewSignerFromPEM("test@project.iam.gserviceaccount.com", string(pemBytes))
	require.NoError(t, err)
	return signer
}

func TestNewSignerFromPEMRejectsGarbage(t *testing.T) {
	_, err := NewSignerFromPEM("test@project.iam.gserviceaccount.com", "not a pem key")
	assert.Error(t, err)
}

func TestSignedURLStructure(t *testing.T) {
	signer := testSigner(t)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	got, err := signer.SignedURL("GET", "my-bucket", "path/to/object.bin", time.Hour, now)
	require.NoError(t, err)

	u, err := url.Parse(got)
	require.NoError(t, err)
	assert.Equal(t, "storage.googleapis.com", u.Host)
	assert.Equal(t, "/my-bucket/path/to/object.bin", u.Path)

	q := u.Query()
	assert.Equal(t, "GOOG4-RSA-SHA256", q.Get("X-Goog-Algorithm"))
	assert.Equal(t, "3600", q.Get("X-Goog-Expires"))
	assert.Contains(t, q.Get("X-Goog-Credential"), "test@project.iam.gserviceaccount.com")
	assert.NotEmpty(t, q.Get("X-Goog-Signature"))
}

func TestGcsURIEncodeMatchesRFC3986(t *testing.T) {
	assert.Equal(t, "abcXYZ019-_.~", gcsURIEncode("abcXYZ019-_.~"))
	assert.Equal(t, "a%2Fb", gcsURIEncode("a/b"))
	assert.Equal(t, "a%20b", gcsURIEncode("a b"))
}
