package frontend

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/estia-labs/chatbridge/bridge"
	"github.com/estia-labs/chatbridge/components"
)

// ItemKind classifies a thread item.
type ItemKind string

const (
	// ItemUserMessage is a message sent by the user.
	ItemUserMessage ItemKind = "user_message"
	// ItemAssistantMessage is completed assistant text.
	ItemAssistantMessage ItemKind = "assistant_message"
	// ItemWidgets is a stored turn payload rendered into widgets at read
	// time, so current preferences apply retroactively.
	ItemWidgets ItemKind = "widgets"
	// ItemError is a user-visible turn failure.
	ItemError ItemKind = "error"
)

type (
	// Thread is front-end thread metadata. IDs use the thr_ prefixed form;
	// the upstream UUID never leaks here.
	Thread struct {
		ID        string    `json:"id"`
		Title     string    `json:"title,omitempty"`
		CreatedAt time.Time `json:"created_at"`
	}

	// ThreadItem is one entry of a thread's history. Widget items persist
	// the source payload, never the rendered widgets.
	ThreadItem struct {
		ID        string
		Kind      ItemKind
		Text      string
		Payload   components.Payload
		CreatedAt time.Time
	}

	// SavedSearch is a search the user chose to keep.
	SavedSearch struct {
		ID        string    `json:"id"`
		Query     string    `json:"query"`
		CreatedAt time.Time `json:"created_at"`
	}

	// MemoryStore holds threads, items and saved searches in memory. It is
	// safe for concurrent use.
	MemoryStore struct {
		mu       sync.RWMutex
		threads  map[string]Thread
		owners   map[string]string   // thread ID -> user ID
		byUser   map[string][]string // user ID -> thread IDs, creation order
		items    map[string][]ThreadItem
		searches map[string][]SavedSearch
	}
)

// ErrThreadNotFound is returned when a thread does not exist or belongs to
// another user.
var ErrThreadNotFound = errors.New("thread not found")

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		threads:  make(map[string]Thread),
		owners:   make(map[string]string),
		byUser:   make(map[string][]string),
		items:    make(map[string][]ThreadItem),
		searches: make(map[string][]SavedSearch),
	}
}

// CreateThread creates a thread for the user and returns it.
func (s *MemoryStore) CreateThread(_ context.Context, userID, title string) (Thread, error) {
	if userID == "" {
		return Thread{}, errors.New("user id is required")
	}
	t := Thread{
		ID:        bridge.GenID("thr"),
		Title:     title,
		CreatedAt: time.Now().UTC(),
	}
	s.mu.Lock()
	s.threads[t.ID] = t
	s.owners[t.ID] = userID
	s.byUser[userID] = append(s.byUser[userID], t.ID)
	s.mu.Unlock()
	return t, nil
}

// EnsureThread returns the user's thread, creating the record when the ID is
// unknown. Auto-creation avoids a race between thread creation and the first
// action on it; availability wins over strict validation here.
func (s *MemoryStore) EnsureThread(_ context.Context, userID, threadID string) (Thread, error) {
	if userID == "" {
		return Thread{}, errors.New("user id is required")
	}
	if threadID == "" {
		return Thread{}, errors.New("thread id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.threads[threadID]; ok {
		if s.owners[threadID] != userID {
			return Thread{}, ErrThreadNotFound
		}
		return t, nil
	}
	t := Thread{ID: threadID, CreatedAt: time.Now().UTC()}
	s.threads[threadID] = t
	s.owners[threadID] = userID
	s.byUser[userID] = append(s.byUser[userID], threadID)
	return t, nil
}

// ListThreads returns the user's threads, newest first.
func (s *MemoryStore) ListThreads(_ context.Context, userID string) ([]Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byUser[userID]
	out := make([]Thread, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.threads[id])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// DeleteThread removes the user's thread and its items.
func (s *MemoryStore) DeleteThread(_ context.Context, userID, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.threads[threadID]; !ok || s.owners[threadID] != userID {
		return ErrThreadNotFound
	}
	delete(s.threads, threadID)
	delete(s.owners, threadID)
	delete(s.items, threadID)
	ids := s.byUser[userID]
	for i, id := range ids {
		if id == threadID {
			s.byUser[userID] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	return nil
}

// AppendItem appends an item to the user's thread.
func (s *MemoryStore) AppendItem(_ context.Context, userID, threadID string, item ThreadItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.threads[threadID]; !ok || s.owners[threadID] != userID {
		return ErrThreadNotFound
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	s.items[threadID] = append(s.items[threadID], item)
	return nil
}

// Items returns the thread's items in insertion order.
func (s *MemoryStore) Items(_ context.Context, userID, threadID string) ([]ThreadItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.threads[threadID]; !ok || s.owners[threadID] != userID {
		return nil, ErrThreadNotFound
	}
	return append([]ThreadItem(nil), s.items[threadID]...), nil
}

// SaveSearch records a saved search for the user.
func (s *MemoryStore) SaveSearch(_ context.Context, userID, searchID, query string) (SavedSearch, error) {
	if userID == "" {
		return SavedSearch{}, errors.New("user id is required")
	}
	if query == "" {
		return SavedSearch{}, errors.New("query is required")
	}
	if searchID == "" {
		searchID = bridge.GenID("search")
	}
	saved := SavedSearch{ID: searchID, Query: query, CreatedAt: time.Now().UTC()}
	s.mu.Lock()
	s.searches[userID] = append(s.searches[userID], saved)
	s.mu.Unlock()
	return saved, nil
}

// SavedSearches returns the user's saved searches in save order.
func (s *MemoryStore) SavedSearches(_ context.Context, userID string) ([]SavedSearch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]SavedSearch(nil), s.searches[userID]...), nil
}
