package frontend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/estia-labs/chatbridge/bridge"
)

type (
	// sseEnvelope is the wire shape of one server-sent event's data line.
	sseEnvelope struct {
		Type     bridge.EventType `json:"type"`
		ThreadID string           `json:"thread_id"`
		Data     any              `json:"data"`
	}

	// sseSink streams bridge events to an HTTP response as server-sent
	// events. Writes are serialized; Close is idempotent.
	sseSink struct {
		mu     sync.Mutex
		w      http.ResponseWriter
		flush  http.Flusher
		closed bool
	}
)

// newSSESink prepares the response for event streaming and returns the sink.
// The response writer must support flushing.
func newSSESink(w http.ResponseWriter) (*sseSink, error) {
	flush, ok := w.(http.Flusher)
	if !ok {
		return nil, errors.New("response writer does not support streaming")
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flush.Flush()
	return &sseSink{w: w, flush: flush}, nil
}

// Send implements bridge.Sink.
func (s *sseSink) Send(_ context.Context, event bridge.Event) error {
	data, err := json.Marshal(sseEnvelope{
		Type:     event.Type(),
		ThreadID: event.ThreadID(),
		Data:     event.Payload(),
	})
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("sink is closed")
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event.Type(), data); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	s.flush.Flush()
	return nil
}

// Close implements bridge.Sink.
func (s *sseSink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
