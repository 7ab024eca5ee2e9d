// Package middleware provides HTTP middleware for the API server.
package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/mirrorlabs/siteclone/pkg/logger"
)

// RequestLogger returns a middleware that tags the request context with its
// request ID and logs each request on completion. Event-stream responses are
// flagged since those stay open for a whole clone run rather than a normal
// request/response cycle.
func RequestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ctx := logger.WithRequestID(r.Context(), middleware.GetReqID(r.Context()))
			r = r.WithContext(ctx)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				log.WithContext(ctx).Info("request completed",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"duration", time.Since(start).String(),
					"remote_addr", r.RemoteAddr,
					"stream", strings.HasPrefix(ww.Header().Get("Content-Type"), "text/event-stream"),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
