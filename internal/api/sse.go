package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/TimurManjosov/goexperiment/internal/telemetry"
)

// handleStream handles GET /v1/datafile/stream: an init event with the
// current ETag, then one update event per datafile change.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		InternalError(w, r, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	updates, unsub := s.snapshots.Subscribe()
	defer unsub()
	telemetry.SSEClients.Inc()
	defer telemetry.SSEClients.Dec()

	snap := s.snapshots.Load()
	writeEvent(w, "init", map[string]string{"etag": snap.ETag, "revision": snap.Revision})
	flusher.Flush()

	ping := time.NewTicker(s.keepAlive)
	defer ping.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case etag, ok := <-updates:
			if !ok {
				return
			}
			writeEvent(w, "update", map[string]string{"etag": etag, "revision": s.snapshots.Load().Revision})
			flusher.Flush()
		case <-ping.C:
			_, _ = io.WriteString(w, ": ping\n\n")
			flusher.Flush()
		}
	}
}

func writeEvent(w io.Writer, event string, data any) {
	b, _ := json.Marshal(data)
	_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, b)
}
