package api

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/auth-platform/file-upload/internal/health"
	"github.com/auth-platform/file-upload/internal/observability"
)

func TestRouter_RoutesInitAndStatus(t *testing.T) {
	h := newTestHandlers(t)
	checker := health.NewHealthChecker("test")
	router := NewRouter(h, checker, observability.NewTracer(), nil)

	body := []byte(`{"fileName":"data.json","fileSize":25,"fileType":"application/json"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/upload/init", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("POST /api/upload/init via router = %d, want 201, body=%s", w.Code, w.Body.String())
	}
}

func TestRouter_HealthEndpoint(t *testing.T) {
	h := newTestHandlers(t)
	checker := health.NewHealthChecker("test")
	router := NewRouter(h, checker, observability.NewTracer(), nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d, want 200", w.Code)
	}
}

func TestRouter_LivenessEndpoint(t *testing.T) {
	h := newTestHandlers(t)
	checker := health.NewHealthChecker("test")
	router := NewRouter(h, checker, observability.NewTracer(), nil)

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("GET /health/live = %d, want 200", w.Code)
	}
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	h := newTestHandlers(t)
	checker := health.NewHealthChecker("test")
	router := NewRouter(h, checker, observability.NewTracer(), nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("GET /metrics = %d, want 200", w.Code)
	}
}

func TestRouter_SetsCorrelationHeaderOnEveryResponse(t *testing.T) {
	h := newTestHandlers(t)
	checker := health.NewHealthChecker("test")
	router := NewRouter(h, checker, observability.NewTracer(), nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Header().Get("X-Correlation-ID") == "" {
		t.Fatal("expected router-wired CorrelationMiddleware to set X-Correlation-ID")
	}
}
