package azureblob

import (
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/FairForge/vaultaire/internal/cloud"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newPresignSmokeServer exposes GeneratePresignedURL behind a tiny chi mux,
// standing in for the control-plane endpoint operators hang presigned-URL
// issuance off in an integration environment.
func newPresignSmokeServer(t *testing.T, s *Store) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	r.Get("/presign/{key}", func(w http.ResponseWriter, req *http.Request) {
		key := chi.URLParam(req, "key")
		presigned, err := s.GeneratePresignedURL(req.Context(), key, cloud.PresignOptions{
			Method:     "GET",
			Expiration: 15 * time.Minute,
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(presigned))
	})
	return httptest.NewServer(r)
}

func TestPresignSmokeServer_RoundTrip(t *testing.T) {
	key := base64.StdEncoding.EncodeToString([]byte("0123456789abcdef0123456789abcdef"))
	store, err := New(Config{Account: "testaccount", AccountKeyB64: key, Container: "uploads"})
	require.NoError(t, err)

	srv := newPresignSmokeServer(t, store)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/presign/report.csv")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestPresignSmokeServer_RejectsAADOnlyStore(t *testing.T) {
	store, err := New(Config{
		Account:      "testaccount",
		Container:    "uploads",
		TenantID:     "tenant",
		ClientID:     "client",
		ClientSecret: "secret",
	})
	require.NoError(t, err)

	srv := newPresignSmokeServer(t, store)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/presign/report.csv")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
