package frontend

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/estia-labs/chatbridge/preferences"
)

// preferenceMutation is the body of the preference POST endpoints.
type preferenceMutation struct {
	ThreadID     string          `json:"thread_id"`
	ItemCode     string          `json:"itemCode"`
	ItemSnapshot json.RawMessage `json:"itemSnapshot"`
}

func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := s.sessionUser(w, r)
	threadID := r.URL.Query().Get("thread_id")
	if threadID == "" {
		writeError(ctx, w, http.StatusBadRequest, "thread_id is required")
		return
	}
	record, err := s.prefs.Get(ctx, userID, threadID)
	if err != nil {
		writeError(ctx, w, http.StatusInternalServerError, "loading preferences: %s", err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, record)
}

func (s *Server) handleAddFavorite(w http.ResponseWriter, r *http.Request) {
	s.mutatePreference(w, r, func(ctx context.Context, userID string, m preferenceMutation) (preferences.Record, error) {
		return s.prefs.AddFavorite(ctx, userID, m.ThreadID, m.ItemCode, m.ItemSnapshot)
	})
}

func (s *Server) handleHide(w http.ResponseWriter, r *http.Request) {
	s.mutatePreference(w, r, func(ctx context.Context, userID string, m preferenceMutation) (preferences.Record, error) {
		return s.prefs.Hide(ctx, userID, m.ThreadID, m.ItemCode, m.ItemSnapshot)
	})
}

func (s *Server) handleRemoveFavorite(w http.ResponseWriter, r *http.Request) {
	s.removePreference(w, r, s.prefs.RemoveFavorite)
}

func (s *Server) handleUnhide(w http.ResponseWriter, r *http.Request) {
	s.removePreference(w, r, s.prefs.Unhide)
}

// mutatePreference decodes the mutation body, applies it and responds with
// the updated record. The thread's refresh scheduler is signaled so rendered
// widgets converge on the new state.
func (s *Server) mutatePreference(w http.ResponseWriter, r *http.Request, apply func(context.Context, string, preferenceMutation) (preferences.Record, error)) {
	ctx := r.Context()
	userID := s.sessionUser(w, r)

	var m preferenceMutation
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		writeError(ctx, w, http.StatusBadRequest, "invalid request body: %s", err)
		return
	}
	if m.ThreadID == "" {
		writeError(ctx, w, http.StatusBadRequest, "thread_id is required")
		return
	}
	if m.ItemCode == "" {
		writeError(ctx, w, http.StatusBadRequest, "itemCode is required")
		return
	}

	record, err := apply(ctx, userID, m)
	if err != nil {
		writeError(ctx, w, http.StatusInternalServerError, "updating preferences: %s", err)
		return
	}
	s.scheduleRefresh(ctx, userID, m.ThreadID)
	writeJSON(ctx, w, http.StatusOK, record)
}

func (s *Server) removePreference(w http.ResponseWriter, r *http.Request, apply func(context.Context, string, string, string) (preferences.Record, error)) {
	ctx := r.Context()
	userID := s.sessionUser(w, r)

	threadID := r.URL.Query().Get("thread_id")
	if threadID == "" {
		writeError(ctx, w, http.StatusBadRequest, "thread_id is required")
		return
	}
	code := r.PathValue("itemCode")
	if code == "" {
		writeError(ctx, w, http.StatusBadRequest, "itemCode is required")
		return
	}

	record, err := apply(ctx, userID, threadID, code)
	if err != nil {
		writeError(ctx, w, http.StatusInternalServerError, "updating preferences: %s", err)
		return
	}
	s.scheduleRefresh(ctx, userID, threadID)
	writeJSON(ctx, w, http.StatusOK, record)
}
