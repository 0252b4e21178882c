package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/auth-platform/file-upload/internal/observability"
)

// CorrelationMiddleware propagates X-Correlation-ID, generating one when
// the caller doesn't supply it, and echoes it back on the response. Stores
// it under observability's typed context key rather than a bare string
// key.
func CorrelationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Correlation-ID")
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set("X-Correlation-ID", id)
		ctx := observability.WithCorrelationID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// LoggingMiddleware logs method, path, status, and latency for every
// request, tagging each line with its correlation ID.
func LoggingMiddleware(log *observability.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			if log != nil {
				log.WithComponent("api").
					WithField("correlation_id", observability.GetCorrelationID(r.Context())).
					WithField("trace_id", observability.GetTraceID(r.Context())).
					WithField("status", rec.status).
					WithField("duration_ms", time.Since(start).Milliseconds()).
					Info(r.Method + " " + r.URL.Path)
			}
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// TracingMiddleware wraps every request in an OpenTelemetry span named
// after the route, tagging it with the correlation ID and setting an
// "error" attribute when the handler responds with a 5xx status.
func TracingMiddleware(tracer *observability.Tracer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := tracer.StartSpanWithAttributes(r.Context(), r.Method+" "+r.URL.Path, map[string]string{
				"correlation_id": observability.GetCorrelationID(r.Context()),
			})
			defer span.End()

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r.WithContext(ctx))

			if rec.status >= 500 {
				observability.SetAttribute(ctx, "error", "true")
			}
		})
	}
}
