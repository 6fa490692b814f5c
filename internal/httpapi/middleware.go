package httpapi

import (
	"net/http"
	"time"

	"agentflow/internal/apitypes"
	"agentflow/internal/telemetry"
	"agentflow/internal/tracing"
)

const (
	headerTraceID   = "X-Trace-Id"
	headerRequestID = "X-Request-Id"
)

// traceMiddleware honors an inbound X-Trace-Id, or mints one, and always
// mints a fresh X-Request-Id — both are attached to the request context and
// echoed on the response, per the header propagation contract.
func traceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get(headerTraceID)
		if traceID == "" {
			traceID = apitypes.NewTraceID()
		}
		requestID := apitypes.NewRequestID()

		ctx := tracing.WithTraceID(r.Context(), traceID)
		ctx = tracing.WithRequestID(ctx, requestID)

		w.Header().Set(headerTraceID, traceID)
		w.Header().Set(headerRequestID, requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// loggingMiddleware logs one line per request with its method, path,
// status, duration, and trace id.
func loggingMiddleware(logger telemetry.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)
			logger.Info(r.Context(), "http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", sw.status,
				"duration_ms", time.Since(start).Milliseconds(),
				"trace_id", tracing.TraceID(r.Context()),
			)
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
