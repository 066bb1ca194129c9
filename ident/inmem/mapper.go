// Package inmem provides an in-memory implementation of ident.Mapper.
package inmem

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// Mapper is an in-memory ident.Mapper. Reads take the shared lock; the
// write path re-checks under the exclusive lock so racing resolutions of
// the same frontID agree on one UUID.
type Mapper struct {
	mu  sync.RWMutex
	ids map[string]string
}

// New returns an empty Mapper.
func New() *Mapper {
	return &Mapper{ids: make(map[string]string)}
}

// Resolve implements ident.Mapper.
func (m *Mapper) Resolve(_ context.Context, frontID string) (string, error) {
	if frontID == "" {
		return "", errors.New("front-end thread id is required")
	}

	m.mu.RLock()
	id, ok := m.ids[frontID]
	m.mu.RUnlock()
	if ok {
		return id, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.ids[frontID]; ok {
		return id, nil
	}
	id = uuid.NewString()
	m.ids[frontID] = id
	return id, nil
}

// Forget implements ident.Mapper.
func (m *Mapper) Forget(_ context.Context, frontID string) error {
	if frontID == "" {
		return errors.New("front-end thread id is required")
	}
	m.mu.Lock()
	delete(m.ids, frontID)
	m.mu.Unlock()
	return nil
}
