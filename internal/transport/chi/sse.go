package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

// sseWriter renders pipeline events as Server-Sent Events. Each event is
// flushed immediately so tokens reach the client as they stream in.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errors.New("response writer does not support flushing")
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	return &sseWriter{w: w, flusher: flusher}, nil
}

// WriteEvent sends one event with its kind as the SSE event name and the
// payload as a JSON data line.
func (s *sseWriter) WriteEvent(ev domain.Event) error {
	payload, err := json.Marshal(eventPayload(ev))
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", ev.Kind, err)
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", ev.Kind, payload); err != nil {
		return fmt.Errorf("write %s event: %w", ev.Kind, err)
	}
	s.flusher.Flush()
	return nil
}

func eventPayload(ev domain.Event) any {
	switch ev.Kind {
	case domain.EventToken:
		return map[string]string{"text": ev.Token.Text}
	case domain.EventCitation:
		return map[string]any{
			"chunk_id":     ev.Citation.ChunkID,
			"heading_path": ev.Citation.HeadingPath,
			"url":          ev.Citation.URL,
		}
	case domain.EventDone:
		return map[string]any{
			"token_count":     ev.Done.TokenCount,
			"elapsed_ms":      ev.Done.ElapsedMillis,
			"cited_chunk_ids": ev.Done.CitedChunkIDs,
		}
	case domain.EventError:
		return map[string]string{"kind": ev.Error.Kind, "message": ev.Error.Message}
	default:
		return map[string]string{}
	}
}
