package azureblob

import (
	"encoding/base64"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSigner(t *testing.T) *Signer {
	t.Helper()
	key := base64.StdEncoding.EncodeToString([]byte("0123456789abcdef0123456789abcdef"))
	s, err := NewSigner("testaccount", key)
	require.NoError(t, err)
	return s
}

func TestNewSignerRejectsInvalidBase64(t *testing.T) {
	_, err := NewSigner("acct", "not-valid-base64!!!")
	assert.Error(t, err)
}

func TestBlobURLEscapesPath(t *testing.T) {
	s := testSigner(t)
	assert.Equal(t, "https://testaccount.blob.core.windows.net/uploads/a%20b.txt", s.BlobURL("uploads", "a b.txt"))
}

func TestCanonicalizedResourceSortsQuery(t *testing.T) {
	got := CanonicalizedResource("acct", "container", "blob.txt", url.Values{
		"comp":    {"block"},
		"blockid": {"abc"},
	})
	assert.Equal(t, "/acct/container/blob.txt\nblockid:abc\ncomp:block", got)
}

func TestSignRequestIsDeterministic(t *testing.T) {
	s := testSigner(t)
	headers := map[string]string{"x-ms-date": "Fri, 01 Jan 2021 00:00:00 GMT", "x-ms-version": apiVersion}
	resource := CanonicalizedResource(s.Account, "uploads", "file.bin", nil)

	sig1 := s.SignRequest("PUT", resource, headers, 1024)
	sig2 := s.SignRequest("PUT", resource, headers, 1024)
	assert.Equal(t, sig1, sig2)
	assert.Contains(t, sig1, "SharedKey testaccount:")
}

func TestGenerateBlobSASProducesSignedQuery(t *testing.T) {
	s := testSigner(t)
	now := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	q := s.GenerateBlobSAS("uploads", "file.bin", now, time.Hour, "r")

	values, err := url.ParseQuery(q)
	require.NoError(t, err)
	assert.Equal(t, "r", values.Get("sp"))
	assert.Equal(t, "b", values.Get("sr"))
	assert.NotEmpty(t, values.Get("sig"))
}
