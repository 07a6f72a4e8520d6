package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	models "tenderplan/internal/domain/models/outline"
)

// Writer serializes SSE frames onto one response. Event and keep-alive
// writes come from different goroutines, so every write holds mu.
type Writer struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
	nextID  int64
}

// NewWriter sets the SSE headers on w. It fails when w cannot flush.
func NewWriter(w http.ResponseWriter) (*Writer, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming unsupported")
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no") // Disable nginx buffering

	return &Writer{w: w, flusher: flusher}, nil
}

// WriteRetry tells the client how long to wait before reconnecting.
func (s *Writer) WriteRetry(d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintf(s.w, "retry: %d\n\n", d.Milliseconds()); err != nil {
		return fmt.Errorf("write retry failed: %w", err)
	}
	s.flusher.Flush()
	return nil
}

// WriteEvent writes one client event with its type as the SSE event name.
func (s *Writer) WriteEvent(evt models.ClientEvent) error {
	payload, err := json.Marshal(evt.Data)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", evt.Type, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	if _, err := fmt.Fprintf(s.w, "id: %d\nevent: %s\ndata: %s\n\n", s.nextID, evt.Type, payload); err != nil {
		return fmt.Errorf("write event failed: %w", err)
	}
	s.flusher.Flush()
	return nil
}

// WriteKeepAlive writes an SSE comment (: keepalive) and flushes
func (s *Writer) WriteKeepAlive() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Lines starting with : are comments, ignored by EventSource
	if _, err := fmt.Fprintf(s.w, ": keepalive\n\n"); err != nil {
		return fmt.Errorf("write keepalive failed: %w", err)
	}
	s.flusher.Flush()
	return nil
}
