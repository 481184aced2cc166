package gcs

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenEndpoint = "https://oauth2.googleapis.com/token"
const jwtBearerGrantType = "urn:ietf:params:oauth:grant-type:jwt-bearer"
const tokenLifetime = time.Hour

// tokenClaims is the service-account JWT assertion GCS's OAuth2 token
// endpoint expects (RFC 7523), signed RS256 with the same private key the
// Signer uses for V4 URLs.
type tokenClaims struct {
	jwt.RegisteredClaims
	Scope string `json:"scope"`
}

// TokenSource mints short-lived OAuth2 bearer tokens by signing a JWT
// assertion with the service account's RSA key and exchanging it at
// Google's token endpoint, replacing the golang.org/x/oauth2/google
// client library the pack doesn't vendor.
type TokenSource struct {
	signer     *Signer
	scope      string
	httpClient *http.Client

	mu        sync.Mutex
	cached    string
	expiresAt time.Time
}

func NewTokenSource(signer *Signer, scope string, httpClient *http.Client) *TokenSource {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &TokenSource{signer: signer, scope: scope, httpClient: httpClient}
}

// Token returns a cached bearer token, refreshing it if expired or about
// to expire within one minute.
func (t *TokenSource) Token() (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cached != "" && time.Until(t.expiresAt) > time.Minute {
		return t.cached, nil
	}

	assertion, err := t.signAssertion()
	if err != nil {
		return "", fmt.Errorf("sign jwt assertion: %w", err)
	}

	form := url.Values{}
	form.Set("grant_type", jwtBearerGrantType)
	form.Set("assertion", assertion)

	resp, err := t.httpClient.Post(tokenEndpoint, "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("exchange jwt for bearer token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("token exchange: status %d", resp.StatusCode)
	}

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}

	t.cached = body.AccessToken
	t.expiresAt = time.Now().Add(time.Duration(body.ExpiresIn) * time.Second)
	return t.cached, nil
}

func (t *TokenSource) signAssertion() (string, error) {
	now := time.Now()
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.signer.ServiceAccountEmail,
			Audience:  jwt.ClaimStrings{tokenEndpoint},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenLifetime)),
		},
		Scope: t.scope,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	return token.SignedString(t.signer.PrivateKey)
}
