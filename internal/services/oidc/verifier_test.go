package oidc

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

const testIssuer = "https://auth.example.com"

type testKeys struct {
	private jwk.Key
	server  *httptest.Server
	fetches atomic.Int32
}

func newTestKeys(t *testing.T) *testKeys {
	t.Helper()

	raw, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("Failed to generate key: %v", err)
	}
	private, err := jwk.FromRaw(raw)
	if err != nil {
		t.Fatalf("Failed to wrap private key: %v", err)
	}
	public, err := jwk.FromRaw(raw.Public())
	if err != nil {
		t.Fatalf("Failed to wrap public key: %v", err)
	}
	for _, k := range []jwk.Key{private, public} {
		_ = k.Set(jwk.KeyIDKey, "test-key")
		_ = k.Set(jwk.AlgorithmKey, jwa.RS256)
	}

	set := jwk.NewSet()
	if err := set.AddKey(public); err != nil {
		t.Fatalf("Failed to build key set: %v", err)
	}
	body, err := json.Marshal(set)
	if err != nil {
		t.Fatalf("Failed to marshal key set: %v", err)
	}

	k := &testKeys{private: private}
	k.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		k.fetches.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}))
	t.Cleanup(k.server.Close)
	return k
}

func (k *testKeys) sign(t *testing.T, build func(*jwt.Builder) *jwt.Builder) string {
	t.Helper()

	tok, err := build(jwt.NewBuilder()).Build()
	if err != nil {
		t.Fatalf("Failed to build token: %v", err)
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.RS256, k.private))
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}
	return string(signed)
}

func validClaims(b *jwt.Builder) *jwt.Builder {
	now := time.Now()
	return b.Issuer(testIssuer).
		Subject("user-123").
		Audience([]string{"matrix-web"}).
		IssuedAt(now).
		Expiration(now.Add(time.Hour)).
		Claim("email", "ada@example.com").
		Claim("name", "Ada")
}

func TestVerifier_Verify(t *testing.T) {
	t.Parallel()

	keys := newTestKeys(t)
	verifier := NewVerifier(NewJWKSManager(), testIssuer, keys.server.URL)

	claims, err := verifier.Verify(context.Background(), keys.sign(t, validClaims))
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if claims.Sub != "user-123" {
		t.Errorf("Expected subject user-123, got %q", claims.Sub)
	}
	if claims.Email != "ada@example.com" || claims.Name != "Ada" {
		t.Errorf("Unexpected identity claims: %+v", claims)
	}
	if len(claims.Aud) != 1 || claims.Aud[0] != "matrix-web" || claims.Iss != testIssuer {
		t.Errorf("Unexpected issuer or audience: %+v", claims)
	}
	if !claims.ExpiresAt.After(claims.IssuedAt) {
		t.Errorf("Expected exp after iat, got exp=%v iat=%v", claims.ExpiresAt, claims.IssuedAt)
	}
}

func TestVerifier_Rejects(t *testing.T) {
	t.Parallel()

	keys := newTestKeys(t)
	verifier := NewVerifier(NewJWKSManager(), testIssuer, keys.server.URL)

	tests := []struct {
		name  string
		token func(t *testing.T) string
	}{
		{
			name:  "garbage",
			token: func(*testing.T) string { return "not-a-jwt" },
		},
		{
			name: "wrong issuer",
			token: func(t *testing.T) string {
				return keys.sign(t, func(b *jwt.Builder) *jwt.Builder {
					return validClaims(b).Issuer("https://evil.example.com")
				})
			},
		},
		{
			name: "expired",
			token: func(t *testing.T) string {
				return keys.sign(t, func(b *jwt.Builder) *jwt.Builder {
					return validClaims(b).Expiration(time.Now().Add(-time.Hour))
				})
			},
		},
		{
			name: "missing subject",
			token: func(t *testing.T) string {
				return keys.sign(t, func(b *jwt.Builder) *jwt.Builder {
					return validClaims(b).Subject("")
				})
			},
		},
		{
			name: "signed by another key",
			token: func(t *testing.T) string {
				return newTestKeys(t).sign(t, validClaims)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := verifier.Verify(context.Background(), tt.token(t))
			if !errors.Is(err, ErrInvalidToken) {
				t.Errorf("Expected ErrInvalidToken, got %v", err)
			}
		})
	}
}

func TestJWKSManager_Caches(t *testing.T) {
	t.Parallel()

	keys := newTestKeys(t)
	m := NewJWKSManager()
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if _, err := m.GetJWKS(context.Background(), keys.server.URL); err != nil {
			t.Fatalf("GetJWKS() error = %v", err)
		}
	}
	if got := keys.fetches.Load(); got != 1 {
		t.Errorf("Expected one fetch while cached, got %d", got)
	}

	now = now.Add(DefaultJWKSTTL + time.Second)
	if _, err := m.GetJWKS(context.Background(), keys.server.URL); err != nil {
		t.Fatalf("GetJWKS() error = %v", err)
	}
	if got := keys.fetches.Load(); got != 2 {
		t.Errorf("Expected a refetch after expiry, got %d fetches", got)
	}
}

func TestVerifier_JWKSUnavailable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := NewVerifier(NewJWKSManager(), testIssuer, srv.URL).Verify(context.Background(), "x.y.z")
	if err == nil {
		t.Fatal("Expected error when key set cannot be fetched")
	}
	if errors.Is(err, ErrInvalidToken) {
		t.Error("Key set outage must not be reported as an invalid token")
	}
}
