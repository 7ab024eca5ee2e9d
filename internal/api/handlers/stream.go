package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mirrorlabs/siteclone/internal/clone"
)

// keepaliveInterval is how often an SSE comment is written to hold idle
// proxies open during long phases.
const keepaliveInterval = 15 * time.Second

// streamEvents writes a job's event stream to the response as Server-Sent
// Events until the terminal event has been delivered. If the client
// disconnects first, the stream is abandoned and the producing run keeps
// going in the background.
func streamEvents(w http.ResponseWriter, r *http.Request, stream *clone.Stream, logger *slog.Logger) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // disable nginx buffering

	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteInternalError(w, "Streaming is not supported")
		return
	}
	flusher.Flush()

	ctx := r.Context()
	keepalive := time.NewTicker(keepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("event stream closed by client")
			stream.Abandon()
			return

		case <-keepalive.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()

		case ev, open := <-stream.Events():
			if !open {
				return
			}

			data, err := json.Marshal(ev)
			if err != nil {
				logger.Error("marshaling stream event failed", "error", err)
				continue
			}

			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}
