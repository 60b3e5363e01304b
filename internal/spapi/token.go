package spapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/guarzo/pricegap/internal/config"
	"github.com/guarzo/pricegap/internal/model"
)

// expirySafetyMargin is subtracted from the advertised token lifetime so
// a token is never used right at its expiry edge.
const expirySafetyMargin = 60 * time.Second

// TokenCache holds the current short-lived bearer token for the
// marketplace API, refreshing it on demand via the refresh-token grant.
//
// The mutex is held across the refresh exchange, so at most one refresh is
// in flight at a time; concurrent callers block and observe the token the
// in-flight refresh produced.
type TokenCache struct {
	creds      config.Credentials
	tokenURL   string
	httpClient *http.Client

	mu        sync.Mutex
	token     string
	expiresAt time.Time

	now func() time.Time // injectable clock
}

// NewTokenCache creates an empty token cache. The first GetValidToken call
// populates it.
func NewTokenCache(creds config.Credentials, tokenURL string, timeout time.Duration) *TokenCache {
	return &TokenCache{
		creds:      creds,
		tokenURL:   tokenURL,
		httpClient: &http.Client{Timeout: timeout},
		now:        time.Now,
	}
}

// GetValidToken returns the cached token when it is still comfortably
// inside its lifetime and performs a refresh exchange otherwise. A failed
// refresh leaves the cache untouched and the next call retries.
func (tc *TokenCache) GetValidToken(ctx context.Context) (string, error) {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	if tc.token != "" && tc.now().Before(tc.expiresAt) {
		return tc.token, nil
	}

	token, expiresIn, err := tc.refresh(ctx)
	if err != nil {
		return "", err
	}

	tc.token = token
	tc.expiresAt = tc.now().Add(time.Duration(expiresIn)*time.Second - expirySafetyMargin)
	return tc.token, nil
}

// refresh performs the refresh-token grant against the identity provider.
func (tc *TokenCache) refresh(ctx context.Context) (string, int, error) {
	if !tc.creds.Complete() {
		return "", 0, &model.AuthError{Reason: "marketplace credentials missing or placeholder"}
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", tc.creds.RefreshToken)
	form.Set("client_id", tc.creds.ClientID)
	form.Set("client_secret", tc.creds.ClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tc.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, &model.AuthError{Reason: "building token request", Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := tc.httpClient.Do(req)
	if err != nil {
		return "", 0, &model.AuthError{Reason: "token endpoint unreachable", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", 0, &model.AuthError{Reason: "reading token response", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", 0, &model.AuthError{
			Reason: fmt.Sprintf("token endpoint status %d: %s", resp.StatusCode, model.Snippet(string(body), 200)),
		}
	}

	var parsed struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", 0, &model.AuthError{Reason: "malformed token response", Err: err}
	}
	if parsed.AccessToken == "" || parsed.ExpiresIn <= 0 {
		return "", 0, &model.AuthError{Reason: "token response missing access_token or expires_in"}
	}

	return parsed.AccessToken, parsed.ExpiresIn, nil
}
