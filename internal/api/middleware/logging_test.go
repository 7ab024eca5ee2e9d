package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mirrorlabs/siteclone/pkg/logger"
)

func newRouter(log *logger.Logger) chi.Router {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(RequestLogger(log))
	return r
}

func TestRequestLoggerTagsRequestID(t *testing.T) {
	var buf bytes.Buffer
	log := &logger.Logger{Logger: slog.New(slog.NewTextHandler(&buf, nil))}

	r := newRouter(log)

	var seenID string
	r.Get("/clones", func(w http.ResponseWriter, req *http.Request) {
		// Downstream handlers see the same ID the completion line carries.
		seenID, _ = req.Context().Value(logger.RequestIDKey).(string)
		w.WriteHeader(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/clones", nil))

	require.NotEmpty(t, seenID)
	out := buf.String()
	assert.Contains(t, out, "request_id="+seenID)
	assert.Contains(t, out, "path=/clones")
	assert.Contains(t, out, "status=200")
	assert.Contains(t, out, "stream=false")
}

func TestRequestLoggerFlagsEventStreams(t *testing.T) {
	var buf bytes.Buffer
	log := &logger.Logger{Logger: slog.New(slog.NewTextHandler(&buf, nil))}

	r := newRouter(log)
	r.Post("/clone", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/clone", nil))

	assert.Contains(t, buf.String(), "stream=true")
}
