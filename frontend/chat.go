package frontend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"goa.design/clue/log"

	"github.com/estia-labs/chatbridge/bridge"
	"github.com/estia-labs/chatbridge/components"
)

type (
	// chatRequest is the /chat operation envelope.
	chatRequest struct {
		Op       string         `json:"op"`
		ThreadID string         `json:"thread_id,omitempty"`
		Title    string         `json:"title,omitempty"`
		Text     string         `json:"text,omitempty"`
		Action   *actionRequest `json:"action,omitempty"`
	}

	// actionRequest is a widget action dispatched to the server.
	actionRequest struct {
		Type    string                     `json:"type"`
		Payload map[string]json.RawMessage `json:"payload"`
	}

	// renderedItem is one thread history entry as served to the UI. Widget
	// entries are rendered at read time from the stored payload, so the
	// user's current preferences apply to past turns.
	renderedItem struct {
		ID        string          `json:"id"`
		Kind      ItemKind        `json:"kind"`
		Text      string          `json:"text,omitempty"`
		Rule      string          `json:"rule,omitempty"`
		Widget    components.Node `json:"widget,omitempty"`
		CreatedAt time.Time       `json:"created_at"`
	}
)

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := s.sessionUser(w, r)

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(ctx, w, http.StatusBadRequest, "invalid request body: %s", err)
		return
	}

	switch req.Op {
	case "threads.list":
		s.listThreads(ctx, w, userID)
	case "threads.create":
		s.createThread(ctx, w, userID, req.Title)
	case "threads.items":
		s.threadItems(ctx, w, userID, req.ThreadID)
	case "threads.delete":
		s.deleteThread(ctx, w, userID, req.ThreadID)
	case "messages.create":
		s.createMessage(ctx, w, userID, req)
	case "searches.list":
		s.listSearches(ctx, w, userID)
	case "action":
		s.handleAction(ctx, w, userID, req)
	default:
		writeError(ctx, w, http.StatusBadRequest, "unknown op %q", req.Op)
	}
}

func (s *Server) listThreads(ctx context.Context, w http.ResponseWriter, userID string) {
	threads, err := s.store.ListThreads(ctx, userID)
	if err != nil {
		writeError(ctx, w, http.StatusInternalServerError, "listing threads: %s", err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, map[string]any{"threads": threads})
}

func (s *Server) createThread(ctx context.Context, w http.ResponseWriter, userID, title string) {
	t, err := s.store.CreateThread(ctx, userID, title)
	if err != nil {
		writeError(ctx, w, http.StatusInternalServerError, "creating thread: %s", err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, map[string]any{"thread": t})
}

func (s *Server) listSearches(ctx context.Context, w http.ResponseWriter, userID string) {
	searches, err := s.store.SavedSearches(ctx, userID)
	if err != nil {
		writeError(ctx, w, http.StatusInternalServerError, "listing saved searches: %s", err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, map[string]any{"saved_searches": searches})
}

// threadItems serves the thread history. Stored widget payloads are rendered
// through the registry with the user's current preference record; a fresh
// hide or favorite therefore shows up in turns rendered long ago.
func (s *Server) threadItems(ctx context.Context, w http.ResponseWriter, userID, threadID string) {
	if threadID == "" {
		writeError(ctx, w, http.StatusBadRequest, "thread_id is required")
		return
	}
	thread, err := s.store.EnsureThread(ctx, userID, threadID)
	if err != nil {
		s.writeThreadError(ctx, w, err)
		return
	}
	items, err := s.store.Items(ctx, userID, threadID)
	if err != nil {
		s.writeThreadError(ctx, w, err)
		return
	}
	prefs, err := s.prefs.Get(ctx, userID, threadID)
	if err != nil {
		log.Errorf(ctx, err, "loading preferences, rendering without them")
	}

	rendered := make([]renderedItem, 0, len(items))
	for _, item := range items {
		if item.Kind != ItemWidgets {
			rendered = append(rendered, renderedItem{
				ID:        item.ID,
				Kind:      item.Kind,
				Text:      item.Text,
				CreatedAt: item.CreatedAt,
			})
			continue
		}
		for _, wg := range s.registry.Widgets(ctx, item.Payload, prefs) {
			rendered = append(rendered, renderedItem{
				ID:        bridge.GenID("widget"),
				Kind:      ItemWidgets,
				Rule:      wg.Rule,
				Widget:    wg.Root,
				CreatedAt: item.CreatedAt,
			})
		}
	}

	writeJSON(ctx, w, http.StatusOK, map[string]any{
		"thread":   thread,
		"items":    rendered,
		"revision": s.revision(userID, threadID),
	})
}

func (s *Server) deleteThread(ctx context.Context, w http.ResponseWriter, userID, threadID string) {
	if threadID == "" {
		writeError(ctx, w, http.StatusBadRequest, "thread_id is required")
		return
	}
	if err := s.store.DeleteThread(ctx, userID, threadID); err != nil {
		s.writeThreadError(ctx, w, err)
		return
	}
	// Release the agent thread mapping so a recreated thread with the same
	// front-end ID starts a fresh upstream conversation.
	if err := s.mapper.Forget(ctx, threadID); err != nil {
		log.Errorf(ctx, err, "forgetting thread mapping")
	}
	s.dropRefreshState(userID, threadID)
	writeJSON(ctx, w, http.StatusOK, map[string]any{"deleted": threadID})
}

// createMessage runs one turn and streams its events to the response as
// server-sent events. The user message, the assistant reply and the turn
// payload are persisted so the thread can be re-rendered later.
func (s *Server) createMessage(ctx context.Context, w http.ResponseWriter, userID string, req chatRequest) {
	if req.ThreadID == "" {
		writeError(ctx, w, http.StatusBadRequest, "thread_id is required")
		return
	}
	if req.Text == "" {
		writeError(ctx, w, http.StatusBadRequest, "text is required")
		return
	}
	if _, err := s.store.EnsureThread(ctx, userID, req.ThreadID); err != nil {
		s.writeThreadError(ctx, w, err)
		return
	}
	if err := s.store.AppendItem(ctx, userID, req.ThreadID, ThreadItem{
		ID:   bridge.GenID("msg"),
		Kind: ItemUserMessage,
		Text: req.Text,
	}); err != nil {
		s.writeThreadError(ctx, w, err)
		return
	}

	sink, err := newSSESink(w)
	if err != nil {
		writeError(ctx, w, http.StatusInternalServerError, "%s", err)
		return
	}
	defer sink.Close(ctx)

	rec := &recordingSink{inner: sink}
	turn := bridge.Turn{ThreadID: req.ThreadID, UserID: userID, Text: req.Text}
	outcome, err := s.bridge.HandleTurn(ctx, turn, rec)
	if err != nil {
		// The SSE stream is already open; all we can do is log.
		log.Errorf(ctx, err, "handling turn")
		return
	}

	s.persistOutcome(ctx, userID, req.ThreadID, outcome, rec.errorText)
}

// persistOutcome appends the turn's durable items: the assistant text, the
// structured payload (stored unrendered) and any user-visible error.
func (s *Server) persistOutcome(ctx context.Context, userID, threadID string, outcome bridge.TurnOutcome, errorText string) {
	if errorText != "" {
		s.appendItem(ctx, userID, threadID, ThreadItem{
			ID:   bridge.GenID("msg"),
			Kind: ItemError,
			Text: errorText,
		})
		return
	}
	if outcome.AssistantText != "" {
		s.appendItem(ctx, userID, threadID, ThreadItem{
			ID:   bridge.GenID("msg"),
			Kind: ItemAssistantMessage,
			Text: outcome.AssistantText,
		})
	}
	if len(outcome.Payload.Fields) > 0 {
		s.appendItem(ctx, userID, threadID, ThreadItem{
			ID:      bridge.GenID("msg"),
			Kind:    ItemWidgets,
			Payload: outcome.Payload,
		})
	}
}

func (s *Server) appendItem(ctx context.Context, userID, threadID string, item ThreadItem) {
	if err := s.store.AppendItem(ctx, userID, threadID, item); err != nil {
		log.Errorf(ctx, err, "persisting thread item")
	}
}

func (s *Server) writeThreadError(ctx context.Context, w http.ResponseWriter, err error) {
	if errors.Is(err, ErrThreadNotFound) {
		writeError(ctx, w, http.StatusNotFound, "%s", err)
		return
	}
	writeError(ctx, w, http.StatusInternalServerError, "%s", err)
}

// recordingSink forwards events and remembers whether the turn ended in a
// user-visible error, so the failure can be persisted to the thread.
type recordingSink struct {
	inner     bridge.Sink
	errorText string
}

func (r *recordingSink) Send(ctx context.Context, event bridge.Event) error {
	if te, ok := event.(bridge.TurnError); ok {
		r.errorText = te.Data.Text
	}
	return r.inner.Send(ctx, event)
}

func (r *recordingSink) Close(ctx context.Context) error { return r.inner.Close(ctx) }
