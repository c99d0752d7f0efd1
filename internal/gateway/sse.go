package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/claudebridge/claudebridge/internal/anthropicadapter/types"
)

// SSEWriter writes the Anthropic streaming wire format: every frame is
// "event: <type>" followed by "data: <json>" and a blank line, flushed
// immediately. Writes are serialized with a mutex so the keepalive ping
// goroutine can interleave with converter output safely.
type SSEWriter struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewSSEWriter prepares the response for server-sent events. It fails when the
// ResponseWriter cannot flush, since unflushed events would defeat streaming.
func NewSSEWriter(w http.ResponseWriter) (*SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support flushing")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	// Disable proxy buffering so events reach the client as they are produced
	w.Header().Set("X-Accel-Buffering", "no")

	return &SSEWriter{w: w, flusher: flusher}, nil
}

// WriteEvent serializes one stream event as a complete SSE frame. The SSE
// event name always equals the payload's "type" field.
func (s *SSEWriter) WriteEvent(event types.StreamEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event.EventType(), err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event.EventType(), data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
