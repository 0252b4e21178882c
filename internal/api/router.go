package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/auth-platform/file-upload/internal/health"
	"github.com/auth-platform/file-upload/internal/observability"
)

// NewRouter wires the §6 HTTP surface plus the supplemented liveness,
// readiness, and metrics endpoints (SPEC_FULL.md §12).
func NewRouter(h *Handlers, checker *health.HealthChecker, tracer *observability.Tracer, log *observability.Logger) http.Handler {
	r := mux.NewRouter()
	r.Use(CorrelationMiddleware)
	r.Use(TracingMiddleware(tracer))
	r.Use(LoggingMiddleware(log))

	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	r.HandleFunc("/health/live", checker.LivenessHandler()).Methods(http.MethodGet)
	r.HandleFunc("/health/ready", checker.ReadinessHandler()).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api/upload").Subrouter()
	api.HandleFunc("/init", h.InitUpload).Methods(http.MethodPost)
	api.HandleFunc("/chunk", h.UploadChunk).Methods(http.MethodPost)
	api.HandleFunc("/status/{uploadId}", h.Status).Methods(http.MethodGet)
	api.HandleFunc("/complete", h.Complete).Methods(http.MethodPost)

	return r
}
