package auth

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

	jose "github.com/go-jose/go-jose/v4"
	jwt "github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type oidcFixture struct {
	validator *OIDCValidator
	key       *rsa.PrivateKey
	now       time.Time
	requests  *atomic.Int32
	logs      *observer.ObservedLogs
	server    *httptest.Server
}

func newOIDCFixture(t *testing.T) *oidcFixture {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	jwk := jose.JSONWebKey{Key: &key.PublicKey, KeyID: "svc-key", Algorithm: jwt.SigningMethodRS256.Alg(), Use: "sig"}

	requests := &atomic.Int32{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "public, max-age=600")
		_ = json.NewEncoder(w).Encode(jose.JSONWebKeySet{Keys: []jose.JSONWebKey{jwk}})
	}))
	t.Cleanup(server.Close)

	now := time.Unix(1_700_000_000, 0)
	original := jwt.TimeFunc
	jwt.TimeFunc = func() time.Time { return now }
	t.Cleanup(func() { jwt.TimeFunc = original })

	core, logs := observer.New(zapcore.WarnLevel)
	validator := NewOIDCValidator(
		NewJWKSCache(server.URL, WithJWKSClock(func() time.Time { return now })),
		WithOIDCLogger(zap.New(core)),
	)
	return &oidcFixture{validator: validator, key: key, now: now, requests: requests, logs: logs, server: server}
}

func (f *oidcFixture) sign(t *testing.T, mutate func(jwt.MapClaims)) string {
	t.Helper()
	claims := jwt.MapClaims{
		"aud":   "https://checkout.internal",
		"iss":   "https://accounts.google.com",
		"sub":   "1234567890",
		"email": "scheduler@biccshop.iam.gserviceaccount.com",
		"exp":   float64(f.now.Add(time.Hour).Unix()),
		"iat":   float64(f.now.Unix()),
	}
	if mutate != nil {
		mutate(claims)
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = "svc-key"
	signed, err := token.SignedString(f.key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func (f *oidcFixture) serve(req *http.Request, audience string, next http.HandlerFunc) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	f.validator.RequireOIDC(audience, []string{"https://accounts.google.com", "https://cloud.google.com/iap"})(next).ServeHTTP(rr, req)
	return rr
}

func TestJWKSCacheReusesKeysUntilExpiry(t *testing.T) {
	f := newOIDCFixture(t)
	ctx := context.Background()

	got, err := f.validator.cache.Key(ctx, "svc-key")
	if err != nil {
		t.Fatalf("key: %v", err)
	}
	if _, ok := got.(*rsa.PublicKey); !ok {
		t.Fatalf("expected *rsa.PublicKey, got %T", got)
	}
	if _, err := f.validator.cache.Key(ctx, "svc-key"); err != nil {
		t.Fatalf("second key: %v", err)
	}
	if _, err := f.validator.cache.Key(ctx, "rotated"); !errors.Is(err, ErrJWKSKeyNotFound) {
		t.Fatalf("expected key not found inside backoff window, got %v", err)
	}
	if n := f.requests.Load(); n != 1 {
		t.Fatalf("expected a single fetch, got %d", n)
	}
}

func TestRequireOIDCAcceptsSchedulerToken(t *testing.T) {
	f := newOIDCFixture(t)
	req := httptest.NewRequest(http.MethodPost, "/internal/maintenance/checkout-sessions:purge", nil)
	req.Header.Set("Authorization", "Bearer "+f.sign(t, nil))

	rr := f.serve(req, "https://checkout.internal", func(w http.ResponseWriter, r *http.Request) {
		identity, ok := ServiceIdentityFromContext(r.Context())
		if !ok || identity.Email != "scheduler@biccshop.iam.gserviceaccount.com" || identity.Issuer != "https://accounts.google.com" {
			t.Fatalf("unexpected service identity %#v", identity)
		}
		w.WriteHeader(http.StatusNoContent)
	})
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestRequireOIDCUsesIAPHeader(t *testing.T) {
	f := newOIDCFixture(t)
	token := f.sign(t, func(c jwt.MapClaims) {
		c["aud"] = []string{"/projects/123/global/backendServices/456"}
		c["iss"] = "https://cloud.google.com/iap"
	})
	req := httptest.NewRequest(http.MethodPost, "/internal/x", nil)
	req.Header.Set("X-Goog-Iap-Jwt-Assertion", token)

	rr := f.serve(req, "/projects/123/global/backendServices/456", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})
	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rr.Code)
	}
}

func TestRequireOIDCRejections(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(jwt.MapClaims)
		audience string
		status   int
		logged   string
	}{
		{name: "audience mismatch", audience: "https://other.internal", status: http.StatusUnauthorized, logged: "oidc audience mismatch"},
		{name: "issuer mismatch", mutate: func(c jwt.MapClaims) { c["iss"] = "https://evil.example.com" }, audience: "https://checkout.internal", status: http.StatusUnauthorized, logged: "oidc issuer mismatch"},
		{name: "expired", mutate: func(c jwt.MapClaims) { c["exp"] = float64(time.Unix(1_600_000_000, 0).Unix()) }, audience: "https://checkout.internal", status: http.StatusUnauthorized, logged: "oidc token rejected"},
		{name: "no audience configured", audience: "", status: http.StatusServiceUnavailable},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newOIDCFixture(t)
			req := httptest.NewRequest(http.MethodPost, "/internal/x", nil)
			req.Header.Set("Authorization", "Bearer "+f.sign(t, tc.mutate))
			rr := f.serve(req, tc.audience, func(http.ResponseWriter, *http.Request) {
				t.Fatalf("handler should not run")
			})
			if rr.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rr.Code)
			}
			if tc.logged != "" && f.logs.FilterMessage(tc.logged).Len() != 1 {
				t.Fatalf("expected %q to be logged, got %v", tc.logged, f.logs.All())
			}
		})
	}
}

func TestRequireOIDCReportsUnavailableKeys(t *testing.T) {
	f := newOIDCFixture(t)
	token := f.sign(t, nil)
	f.server.Close()

	req := httptest.NewRequest(http.MethodPost, "/internal/x", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := f.serve(req, "https://checkout.internal", func(http.ResponseWriter, *http.Request) {
		t.Fatalf("handler should not run")
	})
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}

func TestMaxAge(t *testing.T) {
	cases := map[string]time.Duration{
		"public, max-age=600": 10 * time.Minute,
		"MAX-AGE=30":          30 * time.Second,
		"no-store":            0,
		"max-age=abc":         0,
	}
	for header, want := range cases {
		if got := maxAge(header); got != want {
			t.Fatalf("maxAge(%q) = %s, want %s", header, got, want)
		}
	}
}
