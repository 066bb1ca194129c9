package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/estia-labs/chatbridge/agentapi"
	"github.com/estia-labs/chatbridge/components"
	identinmem "github.com/estia-labs/chatbridge/ident/inmem"
	"github.com/estia-labs/chatbridge/preferences"
	prefsinmem "github.com/estia-labs/chatbridge/preferences/inmem"
)

type fakeStream struct {
	frames  []string
	pos     int
	drained bool
	closed  bool
}

func (s *fakeStream) Next() (agentapi.StateEvent, error) {
	if s.pos >= len(s.frames) {
		s.drained = true
		return agentapi.StateEvent{}, io.EOF
	}
	frame := s.frames[s.pos]
	s.pos++
	var ev agentapi.StateEvent
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(frame), &fields); err != nil {
		return agentapi.StateEvent{}, err
	}
	if raw, ok := fields["messages"]; ok {
		if err := json.Unmarshal(raw, &ev.Messages); err != nil {
			return agentapi.StateEvent{}, err
		}
		delete(fields, "messages")
	}
	if raw, ok := fields["routing_action"]; ok {
		_ = json.Unmarshal(raw, &ev.RoutingAction)
	}
	ev.Fields = fields
	if ev.IsTerminal() {
		s.drained = s.pos == len(s.frames)
	}
	return ev, nil
}

func (s *fakeStream) Close() error {
	s.closed = true
	return nil
}

type fakeStreamer struct {
	stream *fakeStream
	err    error
	thread string
}

func (f *fakeStreamer) Stream(_ context.Context, threadID, _ string) (EventStream, error) {
	f.thread = threadID
	if f.err != nil {
		return nil, f.err
	}
	return f.stream, nil
}

type recordingSink struct {
	mu     sync.Mutex
	events []Event
	// onSend observes the stream state at emission time.
	onSend func()
}

func (s *recordingSink) Send(_ context.Context, ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.onSend != nil {
		s.onSend()
	}
	s.events = append(s.events, ev)
	return nil
}

func (s *recordingSink) Close(context.Context) error { return nil }

func newTestBridge(t *testing.T, streamer AgentStreamer) (*Bridge, preferences.Store) {
	t.Helper()
	prefs := prefsinmem.New()
	b, err := New(Options{
		Agent:       streamer,
		Mapper:      identinmem.New(),
		Preferences: prefs,
		Registry:    components.DefaultRegistry(),
	})
	require.NoError(t, err)
	return b, prefs
}

func TestHandleTurnEmitsOnlyAfterTerminalFrame(t *testing.T) {
	stream := &fakeStream{frames: []string{
		`{"messages":[{"type":"human","content":"hi"}],"routing_action":"search"}`,
		`{"messages":[{"type":"human","content":"hi"}],"routing_action":"search"}`,
		`{"messages":[{"type":"human","content":"hi"}],"routing_action":"search"}`,
		`{"messages":[{"type":"human","content":"hi"}],"routing_action":"search"}`,
		`{"messages":[{"type":"human","content":"hi"}],"routing_action":"search"}`,
		`{"messages":[{"type":"human","content":"hi"},{"type":"ai","content":"all done"}],"routing_action":null}`,
	}}
	b, _ := newTestBridge(t, &fakeStreamer{stream: stream})

	sink := &recordingSink{}
	sink.onSend = func() {
		require.True(t, stream.drained, "event emitted before the terminal frame was processed")
	}

	outcome, err := b.HandleTurn(context.Background(), Turn{ThreadID: "thr_1", UserID: "u1", Text: "hi"}, sink)
	require.NoError(t, err)
	require.Len(t, sink.events, 1)
	require.Equal(t, EventAssistantMessage, sink.events[0].Type())
	require.Equal(t, "all done", sink.events[0].(AssistantMessage).Data.Text)
	require.Equal(t, "all done", outcome.AssistantText)
	require.True(t, stream.closed)
}

func TestHandleTurnEndToEndScenario(t *testing.T) {
	// No assistant text, two results: one synthesized intro plus one
	// carousel widget with both items, none favorited or hidden.
	stream := &fakeStream{frames: []string{
		`{"messages":[{"type":"human","content":"3 bedroom house in Athens"}],
		  "query_results":[{"code":"A1","title":"House A","price":200000},
		                   {"code":"B2","title":"House B","price":250000}]}`,
	}}
	b, _ := newTestBridge(t, &fakeStreamer{stream: stream})

	sink := &recordingSink{}
	turn := Turn{ThreadID: "thr_1", UserID: "u1", Text: "3 bedroom house in Athens"}
	outcome, err := b.HandleTurn(context.Background(), turn, sink)
	require.NoError(t, err)

	require.Len(t, sink.events, 3)
	require.Equal(t, EventAssistantMessage, sink.events[0].Type())
	require.Equal(t, "Found 2 results", sink.events[0].(AssistantMessage).Data.Text)

	require.Equal(t, EventWidget, sink.events[1].Type())
	carousel := sink.events[1].(Widget)
	require.Equal(t, "results_carousel", carousel.Data.Rule)
	rendered, err := json.Marshal(carousel.Data.Widget)
	require.NoError(t, err)
	require.Contains(t, string(rendered), `"A1"`)
	require.Contains(t, string(rendered), `"B2"`)
	require.NotContains(t, string(rendered), "star-filled")

	// Save-search trails the carousel since the user query is known.
	require.Equal(t, EventWidget, sink.events[2].Type())
	require.Equal(t, "save_search_button", sink.events[2].(Widget).Data.Rule)

	require.Equal(t, "Found 2 results", outcome.AssistantText)
	require.Contains(t, outcome.Payload.Fields, "query_results")
}

func TestHandleTurnUpstreamFailure(t *testing.T) {
	b, _ := newTestBridge(t, &fakeStreamer{err: errors.New("connection refused")})

	sink := &recordingSink{}
	_, err := b.HandleTurn(context.Background(), Turn{ThreadID: "thr_1", UserID: "u1", Text: "hi"}, sink)
	require.NoError(t, err)
	require.Len(t, sink.events, 1)
	require.Equal(t, EventTurnError, sink.events[0].Type())
	require.NotEmpty(t, sink.events[0].(TurnError).Data.Text)
}

func TestHandleTurnEmptyTurnEmitsNothing(t *testing.T) {
	stream := &fakeStream{frames: []string{
		`{"messages":[{"type":"human","content":"hi"}]}`,
	}}
	b, _ := newTestBridge(t, &fakeStreamer{stream: stream})

	sink := &recordingSink{}
	outcome, err := b.HandleTurn(context.Background(), Turn{ThreadID: "thr_1", UserID: "u1", Text: "hi"}, sink)
	require.NoError(t, err)
	require.Empty(t, sink.events)
	require.Empty(t, outcome.AssistantText)
}

func TestHandleTurnAppliesPreferencesAtRenderTime(t *testing.T) {
	frames := []string{
		`{"messages":[{"type":"human","content":"q"}],
		  "query_results":[{"code":"A1","price":1},{"code":"B2","price":1}]}`,
	}
	streamer := &fakeStreamer{stream: &fakeStream{frames: frames}}
	b, prefs := newTestBridge(t, streamer)

	ctx := context.Background()
	_, err := prefs.Hide(ctx, "u1", "thr_1", "B2", json.RawMessage(`{}`))
	require.NoError(t, err)
	_, err = prefs.AddFavorite(ctx, "u1", "thr_1", "A1", json.RawMessage(`{}`))
	require.NoError(t, err)

	sink := &recordingSink{}
	_, err = b.HandleTurn(ctx, Turn{ThreadID: "thr_1", UserID: "u1", Text: "q"}, sink)
	require.NoError(t, err)

	var carousel string
	for _, ev := range sink.events {
		if w, ok := ev.(Widget); ok && w.Data.Rule == "results_carousel" {
			raw, err := json.Marshal(w.Data.Widget)
			require.NoError(t, err)
			carousel = string(raw)
		}
	}
	require.NotEmpty(t, carousel)
	require.NotContains(t, carousel, `"B2"`)
	require.Contains(t, carousel, "star-filled")
}

func TestHandleTurnResolvesStableAgentThread(t *testing.T) {
	streamer := &fakeStreamer{stream: &fakeStream{frames: []string{
		`{"messages":[{"type":"ai","content":"ok"}]}`,
	}}}
	b, _ := newTestBridge(t, streamer)

	sink := &recordingSink{}
	_, err := b.HandleTurn(context.Background(), Turn{ThreadID: "thr_1", UserID: "u1", Text: "hi"}, sink)
	require.NoError(t, err)
	first := streamer.thread
	require.NotEmpty(t, first)

	streamer.stream = &fakeStream{frames: []string{
		`{"messages":[{"type":"ai","content":"ok again"}]}`,
	}}
	_, err = b.HandleTurn(context.Background(), Turn{ThreadID: "thr_1", UserID: "u1", Text: "again"}, sink)
	require.NoError(t, err)
	require.Equal(t, first, streamer.thread)
}

type claimingHandler struct {
	claimed bool
}

func (h *claimingHandler) Handle(ctx context.Context, turn Turn, sink Sink) (bool, error) {
	h.claimed = true
	return true, sink.Send(ctx, NewAssistantMessage(turn.ThreadID, "handled locally"))
}

func TestMessageHandlerClaimsTurn(t *testing.T) {
	streamer := &fakeStreamer{err: errors.New("must not be called")}
	handler := &claimingHandler{}
	prefs := prefsinmem.New()
	b, err := New(Options{
		Agent:       streamer,
		Mapper:      identinmem.New(),
		Preferences: prefs,
		Registry:    components.DefaultRegistry(),
		Handlers:    []MessageHandler{handler},
	})
	require.NoError(t, err)

	sink := &recordingSink{}
	_, err = b.HandleTurn(context.Background(), Turn{ThreadID: "thr_1", UserID: "u1", Text: "hi"}, sink)
	require.NoError(t, err)
	require.True(t, handler.claimed)
	require.Len(t, sink.events, 1)
	require.Equal(t, "handled locally", sink.events[0].(AssistantMessage).Data.Text)
}
