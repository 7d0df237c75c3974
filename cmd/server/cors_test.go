package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/blueberrycongee/recall/internal/config"
)

func okHandler(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		w.WriteHeader(http.StatusOK)
	})
}

func TestCORSMiddleware_WildcardPreflight(t *testing.T) {
	called := false
	handler := corsMiddleware(config.CORSConfig{Enabled: true, AllowOrigins: []string{"*"}}, okHandler(&called))

	req := httptest.NewRequest(http.MethodOptions, "http://localhost/api/rag/add", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusNoContent)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("allow-origin = %q, want %q", got, "*")
	}
	if got := rr.Header().Get("Access-Control-Allow-Methods"); got != corsAllowMethods {
		t.Fatalf("allow-methods = %q, want %q", got, corsAllowMethods)
	}
	if called {
		t.Fatal("expected handler not to be called for preflight")
	}
}

func TestCORSMiddleware_PreflightWithoutOrigin(t *testing.T) {
	called := false
	handler := corsMiddleware(config.CORSConfig{Enabled: true, AllowOrigins: []string{"*"}}, okHandler(&called))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodOptions, "http://localhost/api/chat", nil))

	if rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusNoContent)
	}
	if called {
		t.Fatal("expected handler not to be called for OPTIONS")
	}
}

func TestCORSMiddleware_Allowlist(t *testing.T) {
	cfg := config.CORSConfig{Enabled: true, AllowOrigins: []string{"https://app.example"}}

	called := false
	handler := corsMiddleware(cfg, okHandler(&called))
	req := httptest.NewRequest(http.MethodGet, "http://localhost/api/rag/memories", nil)
	req.Header.Set("Origin", "https://app.example")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK || !called {
		t.Fatalf("status = %d called = %v, want 200 and called", rr.Code, called)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example" {
		t.Fatalf("allow-origin = %q, want %q", got, "https://app.example")
	}
	if got := rr.Header().Get("Vary"); got != "Origin" {
		t.Fatalf("vary = %q, want Origin", got)
	}

	called = false
	req = httptest.NewRequest(http.MethodGet, "http://localhost/api/rag/memories", nil)
	req.Header.Set("Origin", "https://evil.example")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusForbidden)
	}
	if called {
		t.Fatal("expected handler not to be called for disallowed origin")
	}
}

func TestCORSMiddleware_Disabled(t *testing.T) {
	called := false
	handler := corsMiddleware(config.CORSConfig{}, okHandler(&called))

	req := httptest.NewRequest(http.MethodGet, "http://localhost/health/live", nil)
	req.Header.Set("Origin", "https://evil.example")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if !called {
		t.Fatal("expected passthrough when CORS is disabled")
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("allow-origin = %q, want empty", got)
	}
}
