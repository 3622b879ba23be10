package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/example/discussion/internal/platform/auth"
	"github.com/example/discussion/internal/platform/config"
	"github.com/example/discussion/services/discussion/internal/service"
	"github.com/example/discussion/services/discussion/internal/store"
)

func testConfig(prefix, secret string) config.AppConfig {
	return config.AppConfig{
		ServiceName: "discussion",
		JWTSecret:   secret,
		HTTP:        config.HTTPConfig{Prefix: prefix},
	}
}

func newTestService() *service.Service {
	return service.New(store.NewInMemoryStore(), nil, zap.NewNop())
}

func TestNewRouter_PrefixAndAmbientEndpoints(t *testing.T) {
	r := newRouter(testConfig("/api", ""), newTestService(), zap.NewNop())

	for _, tc := range []struct {
		path string
		code int
	}{
		{"/api/comments", http.StatusOK},
		{"/comments", http.StatusNotFound},
		{"/healthz", http.StatusOK},
		{"/readyz", http.StatusOK},
		{"/metrics", http.StatusOK},
	} {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, tc.path, nil))
		if rr.Code != tc.code {
			t.Fatalf("%s: expected %d, got %d", tc.path, tc.code, rr.Code)
		}
	}
}

func TestNewRouter_NoPrefix(t *testing.T) {
	r := newRouter(testConfig("", ""), newTestService(), zap.NewNop())

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/comments", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestNewRouter_BearerIdentity(t *testing.T) {
	const secret = "test-secret"
	r := newRouter(testConfig("/api", secret), newTestService(), zap.NewNop())

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "sub-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/comments", bytes.NewBufferString(`{"text":"hi","author":"Ann"}`))
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		Comment struct {
			AuthorID string `json:"author_id"`
		} `json:"comment"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Comment.AuthorID != "sub-1" {
		t.Fatalf("expected author from token, got %q", resp.Comment.AuthorID)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/comments", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for a bad token, got %d", rr.Code)
	}
	var errBody struct {
		Error     string `json:"error"`
		RequestID string `json:"request_id"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&errBody); err != nil {
		t.Fatalf("decode 401 body: %v", err)
	}
	if errBody.Error == "" {
		t.Fatal("expected an error message in the 401 body")
	}
	if errBody.RequestID == "" || errBody.RequestID != rr.Header().Get("X-Request-Id") {
		t.Fatalf("expected request id %q in body, got %q", rr.Header().Get("X-Request-Id"), errBody.RequestID)
	}
}

func TestInitStore_InMemoryFallback(t *testing.T) {
	st, closeFn, err := initStore(context.Background(), config.AppConfig{}, zap.NewNop())
	if err != nil {
		t.Fatalf("initStore: %v", err)
	}
	if closeFn != nil {
		t.Fatal("in-memory store needs no close func")
	}
	if _, ok := st.(*store.InMemoryStore); !ok {
		t.Fatalf("expected in-memory store, got %T", st)
	}
}

func TestInitEvents_DisabledWithoutURL(t *testing.T) {
	pub, closeFn := initEvents(config.AppConfig{}, zap.NewNop())
	if closeFn != nil {
		t.Fatal("expected no close func")
	}
	// no-op publisher must not panic
	pub.Publish("discussion.comment.created", "comment_created", "u", nil)
}
