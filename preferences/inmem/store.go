// Package inmem provides an in-memory implementation of preferences.Store.
//
// It is intended for tests, local development and single-process deployments.
// Durable deployments should use a shared implementation (for example
// features/preferences/redis).
package inmem

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/estia-labs/chatbridge/preferences"
)

type (
	// Store is an in-memory implementation of preferences.Store.
	// It is safe for concurrent use.
	Store struct {
		mu      sync.RWMutex
		records map[prefKey]preferences.Record
	}

	prefKey struct {
		userID   string
		threadID string
	}
)

// New returns an empty Store.
func New() *Store {
	return &Store{records: make(map[prefKey]preferences.Record)}
}

// Get implements preferences.Store.
func (s *Store) Get(_ context.Context, userID, threadID string) (preferences.Record, error) {
	if userID == "" {
		return preferences.Record{}, errors.New("user id is required")
	}
	if threadID == "" {
		return preferences.Record{}, errors.New("thread id is required")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[prefKey{userID: userID, threadID: threadID}]
	if !ok {
		return preferences.NewRecord(), nil
	}
	return rec.Clone(), nil
}

// AddFavorite implements preferences.Store.
func (s *Store) AddFavorite(ctx context.Context, userID, threadID, code string, snapshot json.RawMessage) (preferences.Record, error) {
	return s.mutate(userID, threadID, code, func(rec *preferences.Record) {
		rec.Favorites[code] = append(json.RawMessage(nil), snapshot...)
	})
}

// RemoveFavorite implements preferences.Store.
func (s *Store) RemoveFavorite(ctx context.Context, userID, threadID, code string) (preferences.Record, error) {
	return s.mutate(userID, threadID, code, func(rec *preferences.Record) {
		delete(rec.Favorites, code)
	})
}

// Hide implements preferences.Store.
func (s *Store) Hide(ctx context.Context, userID, threadID, code string, snapshot json.RawMessage) (preferences.Record, error) {
	return s.mutate(userID, threadID, code, func(rec *preferences.Record) {
		rec.Hidden[code] = append(json.RawMessage(nil), snapshot...)
	})
}

// Unhide implements preferences.Store.
func (s *Store) Unhide(ctx context.Context, userID, threadID, code string) (preferences.Record, error) {
	return s.mutate(userID, threadID, code, func(rec *preferences.Record) {
		delete(rec.Hidden, code)
	})
}

// mutate applies fn to the record for the given key, creating the record
// lazily when missing, and returns a clone of the updated record.
func (s *Store) mutate(userID, threadID, code string, fn func(*preferences.Record)) (preferences.Record, error) {
	if userID == "" {
		return preferences.Record{}, errors.New("user id is required")
	}
	if threadID == "" {
		return preferences.Record{}, errors.New("thread id is required")
	}
	if code == "" {
		return preferences.Record{}, errors.New("item code is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := prefKey{userID: userID, threadID: threadID}
	rec, ok := s.records[key]
	if !ok {
		rec = preferences.NewRecord()
	}
	fn(&rec)
	s.records[key] = rec
	return rec.Clone(), nil
}
