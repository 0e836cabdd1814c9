package auth

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ingest_server/pkg/apperr"
	"ingest_server/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: logger.LevelError, Output: io.Discard})
}

func TestGetAccessTokenFlattensClaims(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"message": {
				"token_type": "Bearer",
				"access_token": "at-123",
				"refresh_token": "rt-456",
				"id_token": "idt-789",
				"scope": "Mail.Read",
				"token_source": "cache",
				"id_token_claims": {
					"oid": "user-oid",
					"tid": "tenant-tid",
					"name": "Jamie Example",
					"preferred_username": "jamie@example.com",
					"iat": 1717200000,
					"exp": 1717203600,
					"aio": "nonce-value"
				}
			}
		}`))
	}))
	defer server.Close()

	adapter := NewTokenAdapter(server.URL+"/token/", testLogger())
	creds, err := adapter.GetAccessToken(context.Background(), "refresh-abc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotPath != "/token/refresh-abc" {
		t.Errorf("expected refresh token appended to endpoint, got path %s", gotPath)
	}
	if creds.ID != "user-oid" {
		t.Errorf("expected id user-oid, got %s", creds.ID)
	}
	if creds.TenantID != "tenant-tid" {
		t.Errorf("expected tenant tenant-tid, got %s", creds.TenantID)
	}
	if creds.Email != "jamie@example.com" {
		t.Errorf("expected email jamie@example.com, got %s", creds.Email)
	}
	if creds.AccessToken != "at-123" {
		t.Errorf("expected access token at-123, got %s", creds.AccessToken)
	}
	if creds.Nonce != "nonce-value" {
		t.Errorf("expected nonce nonce-value, got %s", creds.Nonce)
	}
	wantIAT := time.Unix(1717200000, 0).UTC()
	if !creds.IssuedAt.Equal(wantIAT) {
		t.Errorf("expected issued at %s, got %s", wantIAT, creds.IssuedAt)
	}
	if !creds.ExpiresAt.After(creds.IssuedAt) {
		t.Errorf("expected expiry after issue: %s vs %s", creds.ExpiresAt, creds.IssuedAt)
	}
}

func TestGetAccessTokenMissingClaimsAreZero(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"message": {"access_token": "at-only"}}`))
	}))
	defer server.Close()

	adapter := NewTokenAdapter(server.URL+"/token/", testLogger())
	creds, err := adapter.GetAccessToken(context.Background(), "r")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if creds.AccessToken != "at-only" {
		t.Errorf("expected access token at-only, got %s", creds.AccessToken)
	}
	if creds.Email != "" || creds.TenantID != "" {
		t.Errorf("missing claims should be empty, got email=%q tenant=%q", creds.Email, creds.TenantID)
	}
	if !creds.IssuedAt.IsZero() || !creds.ExpiresAt.IsZero() {
		t.Errorf("missing epoch claims should be zero time, got %s / %s", creds.IssuedAt, creds.ExpiresAt)
	}
}

func TestGetAccessTokenNon2xxIsAuthError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error": "invalid refresh token"}`))
	}))
	defer server.Close()

	adapter := NewTokenAdapter(server.URL+"/token/", testLogger())
	creds, err := adapter.GetAccessToken(context.Background(), "bad")
	if err == nil {
		t.Fatal("expected error on 401")
	}
	if creds != nil {
		t.Error("no partial credential may be returned on failure")
	}
	if !apperr.IsKind(err, apperr.KindAuth) {
		t.Errorf("expected AUTH error, got %v", err)
	}
}
