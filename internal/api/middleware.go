package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// RequestLogger logs every request with its status, duration, and
// request id through slog, so HTTP traffic lands in the same stream as
// service logs.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		duration := time.Since(start).Milliseconds()
		attrs := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration_ms", duration,
			"request_id", middleware.GetReqID(r.Context()),
		}
		switch {
		case ww.Status() >= http.StatusInternalServerError:
			slog.Error("Request failed", attrs...)
		case ww.Status() >= http.StatusBadRequest:
			slog.Warn("Request rejected", attrs...)
		default:
			slog.Info("Request ok", attrs...)
		}
	})
}
