package spapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/guarzo/pricegap/internal/config"
	"github.com/guarzo/pricegap/internal/model"
)

func testCreds() config.Credentials {
	return config.Credentials{
		ClientID:        "amzn1.application-oa2-client.test",
		ClientSecret:    "client-secret",
		RefreshToken:    "Atzr|refresh",
		AccessKeyID:     "AKIDEXAMPLE",
		SecretAccessKey: "secret-key",
	}
}

func tokenServer(t *testing.T, calls *int64, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(calls, 1)
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if got := r.PostForm.Get("grant_type"); got != "refresh_token" {
			t.Errorf("grant_type = %q", got)
		}
		if got := r.PostForm.Get("refresh_token"); got != "Atzr|refresh" {
			t.Errorf("refresh_token = %q", got)
		}
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGetValidTokenUsesCache(t *testing.T) {
	var calls int64
	srv := tokenServer(t, &calls, http.StatusOK, `{"access_token":"fresh","expires_in":3600}`)

	tc := NewTokenCache(testCreds(), srv.URL, 5*time.Second)
	tc.token = "cached"
	tc.expiresAt = time.Now().Add(5 * time.Minute)

	for i := 0; i < 2; i++ {
		tok, err := tc.GetValidToken(context.Background())
		if err != nil {
			t.Fatalf("GetValidToken: %v", err)
		}
		if tok != "cached" {
			t.Errorf("token = %q, want cached value", tok)
		}
	}
	if n := atomic.LoadInt64(&calls); n != 0 {
		t.Errorf("token endpoint called %d times for a fresh cache", n)
	}
}

func TestGetValidTokenRefreshesExpired(t *testing.T) {
	var calls int64
	srv := tokenServer(t, &calls, http.StatusOK, `{"access_token":"fresh","expires_in":3600}`)

	tc := NewTokenCache(testCreds(), srv.URL, 5*time.Second)
	tc.token = "stale"
	tc.expiresAt = time.Now().Add(-time.Minute)

	tok, err := tc.GetValidToken(context.Background())
	if err != nil {
		t.Fatalf("GetValidToken: %v", err)
	}
	if tok != "fresh" {
		t.Errorf("token = %q, want fresh", tok)
	}
	if n := atomic.LoadInt64(&calls); n != 1 {
		t.Errorf("token endpoint called %d times, want 1", n)
	}
	if remaining := time.Until(tc.expiresAt); remaining < 55*time.Minute || remaining > time.Hour {
		t.Errorf("expiry not set to ttl minus safety margin, remaining %v", remaining)
	}
}

func TestConcurrentCallersShareOneRefresh(t *testing.T) {
	var calls int64
	srv := tokenServer(t, &calls, http.StatusOK, `{"access_token":"fresh","expires_in":3600}`)

	tc := NewTokenCache(testCreds(), srv.URL, 5*time.Second)

	const callers = 8
	var wg sync.WaitGroup
	tokens := make([]string, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i], errs[i] = tc.GetValidToken(context.Background())
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if tokens[i] != "fresh" {
			t.Errorf("caller %d got %q", i, tokens[i])
		}
	}
	if n := atomic.LoadInt64(&calls); n != 1 {
		t.Errorf("token endpoint called %d times for %d concurrent callers", n, callers)
	}
}

func TestRefreshFailureLeavesCacheUntouched(t *testing.T) {
	var calls int64
	srv := tokenServer(t, &calls, http.StatusBadRequest, `{"error":"invalid_grant"}`)

	tc := NewTokenCache(testCreds(), srv.URL, 5*time.Second)

	for i := 0; i < 2; i++ {
		_, err := tc.GetValidToken(context.Background())
		if !model.IsAuth(err) {
			t.Fatalf("call %d: err = %v, want AuthError", i, err)
		}
	}
	if tc.token != "" {
		t.Errorf("failed refresh mutated cache, token = %q", tc.token)
	}
	// Every call after a failure retries unconditionally.
	if n := atomic.LoadInt64(&calls); n != 2 {
		t.Errorf("token endpoint called %d times, want 2", n)
	}
}

func TestRefreshMalformedBody(t *testing.T) {
	var calls int64
	srv := tokenServer(t, &calls, http.StatusOK, `not json`)

	tc := NewTokenCache(testCreds(), srv.URL, 5*time.Second)
	if _, err := tc.GetValidToken(context.Background()); !model.IsAuth(err) {
		t.Errorf("err = %v, want AuthError", err)
	}
}

func TestPlaceholderCredentialsFailBeforeNetwork(t *testing.T) {
	var calls int64
	srv := tokenServer(t, &calls, http.StatusOK, `{"access_token":"fresh","expires_in":3600}`)

	creds := testCreds()
	creds.RefreshToken = "dummy_refresh_token"
	tc := NewTokenCache(creds, srv.URL, 5*time.Second)

	if _, err := tc.GetValidToken(context.Background()); !model.IsAuth(err) {
		t.Errorf("err = %v, want AuthError", err)
	}
	if n := atomic.LoadInt64(&calls); n != 0 {
		t.Errorf("token endpoint called %d times for placeholder credentials", n)
	}
}
