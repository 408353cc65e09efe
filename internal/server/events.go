package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/flowpaste/flowpaste/internal/orchestrator"
)

// Event stream names.
const (
	EventChunk = "ai:chunk"
	EventError = "ai:error"
)

// ChunkPayload is the data of an ai:chunk event.
type ChunkPayload struct {
	RequestID string `json:"requestId"`
	Content   string `json:"content"`
	Done      bool   `json:"done"`
}

// ErrorPayload is the data of an ai:error event. Cancellation uses code
// CANCELLED.
type ErrorPayload struct {
	RequestID string `json:"requestId"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

// writeSSE encodes ev as one Server-Sent Events frame.
func writeSSE(w io.Writer, ev orchestrator.Event) error {
	name := EventChunk
	var payload interface{}
	switch ev.Type {
	case orchestrator.EventDelta, orchestrator.EventDone:
		payload = ChunkPayload{RequestID: ev.RequestID, Content: ev.Content, Done: ev.Done}
	default:
		name = EventError
		payload = ErrorPayload{RequestID: ev.RequestID, Code: ev.Code, Message: ev.Message}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
	return err
}

// handleEvents streams orchestrator events until the client disconnects or
// the subscriber is evicted.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "internal", "streaming unsupported")
		return
	}

	events, unsubscribe := s.hub.Subscribe()
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, ": connected\n\n")
	flusher.Flush()

	ticker := time.NewTicker(s.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := writeSSE(w, ev); err != nil {
				log.Debug().Err(err).Msg("event_stream_write_failed")
				return
			}
			flusher.Flush()
		case <-ticker.C:
			if _, err := io.WriteString(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
