package agentapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func sseServer(t *testing.T, frames []string, capture *runRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		if capture != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(capture))
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, frame := range frames {
			fmt.Fprintf(w, "event: values\ndata: %s\n\n", frame)
		}
	}))
}

func TestStreamSendsRunEnvelope(t *testing.T) {
	var captured runRequest
	srv := sseServer(t, nil, &captured)
	defer srv.Close()

	c, err := NewClient(ClientOptions{BaseURL: srv.URL, AssistantID: "agent"})
	require.NoError(t, err)

	s, err := c.Stream(context.Background(), "11111111-2222-3333-4444-555555555555", "hello")
	require.NoError(t, err)
	defer s.Close()

	require.Equal(t, []string{"values"}, captured.StreamMode)
	require.Equal(t, "agent", captured.AssistantID)
	require.Equal(t, "create", captured.IfNotExists)
	require.Len(t, captured.Input.Messages, 1)
	require.Equal(t, "human", captured.Input.Messages[0].Type)
	require.Equal(t, "hello", captured.Input.Messages[0].Content)
	require.NotEmpty(t, captured.Input.Messages[0].ID)
}

func TestStreamParsesFrames(t *testing.T) {
	frames := []string{
		`{"run_id":"r1","attempt":1}`,
		`{"messages":[{"type":"human","content":"hi"}],"routing_action":"search"}`,
		`{"messages":[{"type":"human","content":"hi"},{"type":"ai","content":"done"}],"routing_action":null,"query_results":[{"code":"A1"}]}`,
	}
	srv := sseServer(t, frames, nil)
	defer srv.Close()

	c, err := NewClient(ClientOptions{BaseURL: srv.URL})
	require.NoError(t, err)
	s, err := c.Stream(context.Background(), "", "hi")
	require.NoError(t, err)
	defer s.Close()

	ev, err := s.Next()
	require.NoError(t, err)
	require.NotNil(t, ev.Meta)
	require.Equal(t, "r1", ev.Meta.RunID)
	require.False(t, ev.IsTerminal())

	ev, err = s.Next()
	require.NoError(t, err)
	require.Nil(t, ev.Meta)
	require.Equal(t, "search", ev.RoutingAction)
	require.False(t, ev.IsTerminal())
	require.Nil(t, ev.LatestAssistantMessage())

	ev, err = s.Next()
	require.NoError(t, err)
	require.True(t, ev.IsTerminal())
	msg := ev.LatestAssistantMessage()
	require.NotNil(t, msg)
	require.Equal(t, "done", msg.Content)
	require.Contains(t, ev.Fields, "query_results")
	require.NotContains(t, ev.Fields, "messages")

	_, err = s.Next()
	require.ErrorIs(t, err, io.EOF)
}

func TestStreamSkipsMalformedFrames(t *testing.T) {
	frames := []string{
		`{not json`,
		`{"messages":[{"type":"ai","content":"ok"}]}`,
	}
	srv := sseServer(t, frames, nil)
	defer srv.Close()

	c, err := NewClient(ClientOptions{BaseURL: srv.URL})
	require.NoError(t, err)
	s, err := c.Stream(context.Background(), "", "hi")
	require.NoError(t, err)
	defer s.Close()

	ev, err := s.Next()
	require.NoError(t, err)
	require.Equal(t, "ok", ev.LatestAssistantMessage().Content)
}

func TestStreamErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "graph not found", http.StatusNotFound)
	}))
	defer srv.Close()

	c, err := NewClient(ClientOptions{BaseURL: srv.URL})
	require.NoError(t, err)
	_, err = c.Stream(context.Background(), "", "hi")
	require.Error(t, err)
	require.Contains(t, err.Error(), "404")
	require.Contains(t, err.Error(), "graph not found")
}

func TestStreamContextCancellation(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.(http.Flusher).Flush()
		<-release
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	c, err := NewClient(ClientOptions{BaseURL: srv.URL})
	require.NoError(t, err)
	s, err := c.Stream(ctx, "", "hi")
	require.NoError(t, err)
	defer s.Close()

	cancel()
	_, err = s.Next()
	require.Error(t, err)
}

func TestTerminalDetection(t *testing.T) {
	cases := []struct {
		name     string
		frame    string
		terminal bool
	}{
		{"no assistant message", `{"messages":[{"type":"human","content":"hi"}]}`, false},
		{"pending routing", `{"messages":[{"type":"ai","content":"x"}],"routing_action":"search"}`, false},
		{"null routing", `{"messages":[{"type":"ai","content":"x"}],"routing_action":null}`, true},
		{"absent routing", `{"messages":[{"type":"ai","content":"x"}]}`, true},
		{"handoff", `{"messages":[{"type":"ai","content":"x"}],"routing_action":"handoff"}`, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			ev, err := parseStateEvent([]byte(c.frame))
			require.NoError(t, err)
			require.Equal(t, c.terminal, ev.IsTerminal())
		})
	}
}

func TestMetadataFrameRequiresExactShape(t *testing.T) {
	// run_id plus any third field is a state frame, not metadata.
	ev, err := parseStateEvent([]byte(`{"run_id":"r1","attempt":1,"messages":[]}`))
	require.NoError(t, err)
	require.Nil(t, ev.Meta)
}
