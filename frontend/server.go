// Package frontend serves the chat protocol consumed by the web UI: a
// single /chat operation endpoint, the preference REST surface and a health
// check. It owns the thread history store and the per-thread refresh
// schedulers; turn semantics live in the bridge package.
package frontend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"goa.design/clue/health"
	"goa.design/clue/log"

	"github.com/estia-labs/chatbridge/bridge"
	"github.com/estia-labs/chatbridge/components"
	"github.com/estia-labs/chatbridge/ident"
	"github.com/estia-labs/chatbridge/preferences"
	"github.com/estia-labs/chatbridge/refresh"
)

// sessionCookie carries the opaque per-browser user identifier.
const sessionCookie = "chatbridge_session"

type (
	// DescriptionGenerator produces an item description on demand.
	// *agentapi.DescriptionClient satisfies it.
	DescriptionGenerator interface {
		Generate(ctx context.Context, item components.Item, language string) (string, error)
	}

	// Options configures a Server.
	Options struct {
		// Bridge handles message turns. Required.
		Bridge *bridge.Bridge
		// Store holds threads and their items. Required.
		Store *MemoryStore
		// Preferences is the preference store backing actions and the REST
		// surface. Required.
		Preferences preferences.Store
		// Registry renders stored payloads on thread reads. Required.
		Registry *components.Registry
		// Mapper releases the agent thread mapping on thread deletion.
		// Required.
		Mapper ident.Mapper
		// Descriptions generates item descriptions on demand. Optional;
		// when nil the generate_description action fails gracefully.
		Descriptions DescriptionGenerator
		// Cache deduplicates generated descriptions across threads.
		// Optional; a fresh cache is used when nil.
		Cache *preferences.ContentCache
		// RefreshWindow is the per-thread refresh throttle window.
		RefreshWindow time.Duration
		// RefreshDebounce cushions the trailing refresh call.
		RefreshDebounce time.Duration
		// Pingers are aggregated by the health endpoint. Optional.
		Pingers []health.Pinger
	}

	// Server is the front-end protocol server.
	Server struct {
		bridge       *bridge.Bridge
		store        *MemoryStore
		prefs        preferences.Store
		registry     *components.Registry
		mapper       ident.Mapper
		descriptions DescriptionGenerator
		cache        *preferences.ContentCache
		window       time.Duration
		debounce     time.Duration
		checker      health.Checker

		mu         sync.Mutex
		schedulers map[string]*refresh.Scheduler
		revisions  map[string]int64
	}
)

// NewServer builds a Server.
func NewServer(opts Options) (*Server, error) {
	if opts.Bridge == nil {
		return nil, errors.New("bridge is required")
	}
	if opts.Store == nil {
		return nil, errors.New("thread store is required")
	}
	if opts.Preferences == nil {
		return nil, errors.New("preference store is required")
	}
	if opts.Registry == nil {
		return nil, errors.New("registry is required")
	}
	if opts.Mapper == nil {
		return nil, errors.New("mapper is required")
	}
	cache := opts.Cache
	if cache == nil {
		cache = preferences.NewContentCache()
	}
	window := opts.RefreshWindow
	if window <= 0 {
		window = 4 * time.Second
	}
	return &Server{
		bridge:       opts.Bridge,
		store:        opts.Store,
		prefs:        opts.Preferences,
		registry:     opts.Registry,
		mapper:       opts.Mapper,
		descriptions: opts.Descriptions,
		cache:        cache,
		window:       window,
		debounce:     opts.RefreshDebounce,
		checker:      health.NewChecker(opts.Pingers...),
		schedulers:   make(map[string]*refresh.Scheduler),
		revisions:    make(map[string]int64),
	}, nil
}

// Handler returns the HTTP handler serving the protocol.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /chat", s.handleChat)
	mux.HandleFunc("GET /preferences", s.handleGetPreferences)
	mux.HandleFunc("POST /preferences/favorites", s.handleAddFavorite)
	mux.HandleFunc("DELETE /preferences/favorites/{itemCode}", s.handleRemoveFavorite)
	mux.HandleFunc("POST /preferences/hidden", s.handleHide)
	mux.HandleFunc("DELETE /preferences/hidden/{itemCode}", s.handleUnhide)
	mux.Handle("GET /healthz", health.Handler(s.checker))
	return mux
}

// Close releases the per-thread refresh schedulers.
func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sched := range s.schedulers {
		sched.Close()
	}
	s.schedulers = make(map[string]*refresh.Scheduler)
}

// sessionUser returns the opaque user ID from the session cookie, minting
// and setting one on first contact.
func (s *Server) sessionUser(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(sessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

// refreshKey keys the per-(user, thread) scheduler and revision maps.
func refreshKey(userID, threadID string) string {
	return userID + "\x00" + threadID
}

// scheduleRefresh signals that the thread's rendered state may be stale.
// The scheduler is created lazily; its callback bumps the thread revision
// the UI polls through threads.items.
func (s *Server) scheduleRefresh(ctx context.Context, userID, threadID string) {
	key := refreshKey(userID, threadID)
	s.mu.Lock()
	sched, ok := s.schedulers[key]
	if !ok {
		var err error
		sched, err = refresh.NewScheduler(s.window, s.debounce, func(context.Context) {
			s.bumpRevision(key)
		})
		if err != nil {
			s.mu.Unlock()
			log.Errorf(ctx, err, "creating refresh scheduler")
			return
		}
		s.schedulers[key] = sched
	}
	s.mu.Unlock()
	sched.RequestRefresh()
}

func (s *Server) bumpRevision(key string) {
	s.mu.Lock()
	s.revisions[key]++
	s.mu.Unlock()
}

func (s *Server) revision(userID, threadID string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revisions[refreshKey(userID, threadID)]
}

// dropRefreshState releases the scheduler and revision of a deleted thread.
func (s *Server) dropRefreshState(userID, threadID string) {
	key := refreshKey(userID, threadID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if sched, ok := s.schedulers[key]; ok {
		sched.Close()
		delete(s.schedulers, key)
	}
	delete(s.revisions, key)
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Errorf(ctx, err, "encoding response")
	}
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, format string, args ...any) {
	writeJSON(ctx, w, status, map[string]string{"error": fmt.Sprintf(format, args...)})
}
