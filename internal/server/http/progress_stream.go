package httpserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// sseMaxDuration is the maximum time an SSE stream may remain open.
const sseMaxDuration = 1 * time.Hour

// streamEvents handles GET /literature-reviews/{runID}/events (SSE). The
// stream replays the run's event history, then follows live events until
// the run reaches a terminal state.
func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request) {
	runID, err := uuid.Parse(chi.URLParam(r, "runID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid run id")
		return
	}

	history, events, cancel, ok := s.registry.Subscribe(runID)
	if !ok {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	defer cancel()

	flusher, canFlush := w.(http.Flusher)
	if !canFlush {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	for _, event := range history {
		sendSSEEvent(w, flusher, event)
	}

	deadline := time.NewTimer(sseMaxDuration)
	defer deadline.Stop()

	for {
		select {
		case <-r.Context().Done():
			return

		case <-deadline.C:
			sendSSEEvent(w, flusher, ProgressEvent{
				EventType: "timeout",
				RunID:     runID.String(),
				Message:   "stream max duration exceeded",
				Timestamp: time.Now().UTC(),
			})
			return

		case event, open := <-events:
			if !open {
				// Terminal state reached; the final event was already sent.
				return
			}
			sendSSEEvent(w, flusher, event)
		}
	}
}

// sendSSEEvent writes a single SSE event to the response writer.
func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event ProgressEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.EventType, data)
	flusher.Flush()
}
