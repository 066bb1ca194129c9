package frontend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"goa.design/clue/log"

	"github.com/estia-labs/chatbridge/bridge"
	"github.com/estia-labs/chatbridge/components"
	"github.com/estia-labs/chatbridge/preferences"
)

// handleAction dispatches a widget action. Preference mutations respond with
// the updated record and signal the refresh scheduler; the two are decoupled
// so a failed refresh never loses a mutation.
func (s *Server) handleAction(ctx context.Context, w http.ResponseWriter, userID string, req chatRequest) {
	if req.Action == nil {
		writeError(ctx, w, http.StatusBadRequest, "action is required")
		return
	}
	if req.ThreadID == "" {
		writeError(ctx, w, http.StatusBadRequest, "thread_id is required")
		return
	}
	if _, err := s.store.EnsureThread(ctx, userID, req.ThreadID); err != nil {
		s.writeThreadError(ctx, w, err)
		return
	}

	switch req.Action.Type {
	case components.ActionToggleFavorite:
		s.toggleFavorite(ctx, w, userID, req.ThreadID, req.Action)
	case components.ActionHideProperty:
		s.hideProperty(ctx, w, userID, req.ThreadID, req.Action)
	case components.ActionViewItemDetails:
		s.viewItemDetails(ctx, w, userID, req.ThreadID, req.Action)
	case components.ActionGenerateDescription:
		s.generateDescription(ctx, w, req.Action)
	case components.ActionSaveSearch:
		s.saveSearch(ctx, w, userID, req.Action)
	default:
		writeError(ctx, w, http.StatusBadRequest, "unknown action %q", req.Action.Type)
	}
}

func (s *Server) toggleFavorite(ctx context.Context, w http.ResponseWriter, userID, threadID string, action *actionRequest) {
	code := action.stringField("propertyCode")
	if code == "" {
		writeError(ctx, w, http.StatusBadRequest, "propertyCode is required")
		return
	}
	record, err := s.prefs.Get(ctx, userID, threadID)
	if err != nil {
		writeError(ctx, w, http.StatusInternalServerError, "loading preferences: %s", err)
		return
	}
	if record.IsFavorite(code) {
		record, err = s.prefs.RemoveFavorite(ctx, userID, threadID, code)
	} else {
		record, err = s.prefs.AddFavorite(ctx, userID, threadID, code, s.snapshotFor(ctx, userID, threadID, code, action))
	}
	if err != nil {
		writeError(ctx, w, http.StatusInternalServerError, "updating preferences: %s", err)
		return
	}
	s.scheduleRefresh(ctx, userID, threadID)
	writeJSON(ctx, w, http.StatusOK, map[string]any{"preferences": record})
}

func (s *Server) hideProperty(ctx context.Context, w http.ResponseWriter, userID, threadID string, action *actionRequest) {
	code := action.stringField("propertyCode")
	if code == "" {
		writeError(ctx, w, http.StatusBadRequest, "propertyCode is required")
		return
	}
	record, err := s.prefs.Hide(ctx, userID, threadID, code, s.snapshotFor(ctx, userID, threadID, code, action))
	if err != nil {
		writeError(ctx, w, http.StatusInternalServerError, "updating preferences: %s", err)
		return
	}
	s.scheduleRefresh(ctx, userID, threadID)
	writeJSON(ctx, w, http.StatusOK, map[string]any{"preferences": record})
}

// viewItemDetails renders the item's detail card with the user's current
// preference state and the cached description when one exists.
func (s *Server) viewItemDetails(ctx context.Context, w http.ResponseWriter, userID, threadID string, action *actionRequest) {
	item, err := action.item()
	if err != nil {
		writeError(ctx, w, http.StatusBadRequest, "invalid item_data: %s", err)
		return
	}
	prefs, err := s.prefs.Get(ctx, userID, threadID)
	if err != nil {
		log.Errorf(ctx, err, "loading preferences, rendering without them")
		prefs = preferences.NewRecord()
	}
	description, _ := s.cache.Get(item.Key())
	card := components.DetailCard(item, description, prefs)
	writeJSON(ctx, w, http.StatusOK, map[string]any{
		"widget": map[string]any{
			"id":     bridge.GenID("widget"),
			"rule":   "detail_card",
			"widget": card,
		},
	})
}

// generateDescription serves the description from the shared content cache
// when present, generating and caching it otherwise.
func (s *Server) generateDescription(ctx context.Context, w http.ResponseWriter, action *actionRequest) {
	item, err := action.item()
	if err != nil {
		writeError(ctx, w, http.StatusBadRequest, "invalid item_data: %s", err)
		return
	}
	key := item.Key()
	if description, ok := s.cache.Get(key); ok {
		writeJSON(ctx, w, http.StatusOK, map[string]any{"description": description, "cached": true})
		return
	}
	if s.descriptions == nil {
		writeError(ctx, w, http.StatusServiceUnavailable, "description generation is not configured")
		return
	}
	description, err := s.descriptions.Generate(ctx, item, action.stringField("language"))
	if err != nil {
		log.Errorf(ctx, err, "generating description")
		writeError(ctx, w, http.StatusBadGateway, "generating description: %s", err)
		return
	}
	s.cache.Put(key, description)
	writeJSON(ctx, w, http.StatusOK, map[string]any{"description": description, "cached": false})
}

func (s *Server) saveSearch(ctx context.Context, w http.ResponseWriter, userID string, action *actionRequest) {
	query := action.stringField("query")
	if query == "" {
		writeError(ctx, w, http.StatusBadRequest, "query is required")
		return
	}
	saved, err := s.store.SaveSearch(ctx, userID, action.stringField("searchId"), query)
	if err != nil {
		writeError(ctx, w, http.StatusInternalServerError, "saving search: %s", err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, map[string]any{"saved_search": saved})
}

// snapshotFor resolves the item snapshot stored with a preference mutation:
// the action's own item_data when present, else the item found in the
// thread's stored payloads, else a minimal code-only stub.
func (s *Server) snapshotFor(ctx context.Context, userID, threadID, code string, action *actionRequest) json.RawMessage {
	if raw, ok := action.Payload["item_data"]; ok && len(raw) > 0 {
		return raw
	}
	items, err := s.store.Items(ctx, userID, threadID)
	if err == nil {
		for _, stored := range items {
			if stored.Kind != ItemWidgets {
				continue
			}
			for _, it := range stored.Payload.Results() {
				if it.Key() != code {
					continue
				}
				if snapshot, err := json.Marshal(it); err == nil {
					return snapshot
				}
			}
		}
	}
	return json.RawMessage(fmt.Sprintf(`{"code":%q}`, code))
}

// stringField returns the named payload field as a string, or "".
func (a *actionRequest) stringField(name string) string {
	raw, ok := a.Payload[name]
	if !ok {
		return ""
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return ""
	}
	return v
}

// item decodes the action's item_data field.
func (a *actionRequest) item() (components.Item, error) {
	raw, ok := a.Payload["item_data"]
	if !ok {
		return components.Item{}, fmt.Errorf("item_data is required")
	}
	var it components.Item
	if err := json.Unmarshal(raw, &it); err != nil {
		return components.Item{}, err
	}
	return it, nil
}
