package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCheckLiveness_AlwaysHealthy(t *testing.T) {
	h := NewHealthChecker("v1")
	resp := h.CheckLiveness()
	if resp.Status != StatusHealthy || resp.Version != "v1" {
		t.Fatalf("CheckLiveness = %+v, want healthy/v1", resp)
	}
}

func TestCheckReadiness_HealthyWhenAllCheckersPass(t *testing.T) {
	h := NewHealthChecker("v1")
	h.Register("database", DatabaseChecker(func(ctx context.Context) error { return nil }))
	h.Register("storage", StorageChecker(func(ctx context.Context) error { return nil }))

	resp := h.CheckReadiness(context.Background())
	if resp.Status != StatusHealthy {
		t.Fatalf("CheckReadiness = %+v, want healthy", resp)
	}
	if len(resp.Checks) != 2 {
		t.Fatalf("expected 2 check results, got %d", len(resp.Checks))
	}
}

func TestCheckReadiness_UnhealthyDatabasePropagates(t *testing.T) {
	h := NewHealthChecker("v1")
	h.Register("database", DatabaseChecker(func(ctx context.Context) error { return errors.New("connection refused") }))

	resp := h.CheckReadiness(context.Background())
	if resp.Status != StatusUnhealthy {
		t.Fatalf("CheckReadiness = %+v, want unhealthy", resp)
	}
}

func TestCheckReadiness_DegradedCacheDoesNotMaskHealthyOverall(t *testing.T) {
	h := NewHealthChecker("v1")
	h.Register("cache", CacheChecker(func(ctx context.Context) error { return errors.New("timeout") }))

	resp := h.CheckReadiness(context.Background())
	if resp.Status != StatusDegraded {
		t.Fatalf("CheckReadiness = %+v, want degraded", resp)
	}
}

func TestCheckReadiness_UnhealthyOutranksDegraded(t *testing.T) {
	h := NewHealthChecker("v1")
	h.Register("cache", CacheChecker(func(ctx context.Context) error { return errors.New("timeout") }))
	h.Register("database", DatabaseChecker(func(ctx context.Context) error { return errors.New("down") }))

	resp := h.CheckReadiness(context.Background())
	if resp.Status != StatusUnhealthy {
		t.Fatalf("CheckReadiness = %+v, want unhealthy to outrank degraded", resp)
	}
}

func TestReadinessHandler_ReturnsServiceUnavailableWhenUnhealthy(t *testing.T) {
	h := NewHealthChecker("v1")
	h.Register("storage", StorageChecker(func(ctx context.Context) error { return errors.New("disk full") }))

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	w := httptest.NewRecorder()
	h.ReadinessHandler()(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
}

func TestLivenessHandler_AlwaysOK(t *testing.T) {
	h := NewHealthChecker("v1")
	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	w := httptest.NewRecorder()
	h.LivenessHandler()(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}
