// Package preferences defines the per-user, per-thread preference model used
// to filter and decorate rendered widgets.
//
// A preference record tracks which item codes a user has favorited or hidden
// within a thread, together with a full snapshot of each item so preference
// UIs can render without re-fetching the source data. Records are created
// lazily on first read or write and live only as long as the backing store.
//
// Favorites and hidden sets are disjoint by convention but not enforced: an
// item may appear in both, and renderers must decide precedence per
// component. Preferences are applied at render time, never at payload
// storage time, so mutations affect previously rendered payloads
// retroactively on the next render.
package preferences

import (
	"context"
	"encoding/json"
)

// SchemaVersion identifies the record shape carried on every Record. There is
// a single stable schema: favorites and hidden are code-keyed snapshot maps.
const SchemaVersion = 2

type (
	// Record is the preference state for one (user, thread) pair. Maps are
	// keyed by item code and hold the full item snapshot provided at mutation
	// time; a newer snapshot for the same code overwrites the old one.
	Record struct {
		// Favorites holds the snapshots of favorited items.
		Favorites map[string]json.RawMessage `json:"favorites"`
		// Hidden holds the snapshots of hidden items.
		Hidden map[string]json.RawMessage `json:"hidden"`
		// Version is the record schema version (SchemaVersion).
		Version int `json:"version"`
	}

	// Store persists preference records keyed by (userID, threadID).
	//
	// Contract:
	// - Get never fails for a missing record: it returns an empty Record.
	// - All four mutations are idempotent. Removing or unhiding an absent
	//   code is a success no-op.
	// - Every mutation returns the updated record.
	// - Implementations must be safe for concurrent use; operations on
	//   distinct (userID, threadID) keys must not contend beyond constant
	//   bookkeeping.
	Store interface {
		// Get returns the record for the given user and thread, or an empty
		// record when none exists.
		Get(ctx context.Context, userID, threadID string) (Record, error)
		// AddFavorite records an item as favorited, storing its snapshot.
		AddFavorite(ctx context.Context, userID, threadID, code string, snapshot json.RawMessage) (Record, error)
		// RemoveFavorite removes an item from the favorites set.
		RemoveFavorite(ctx context.Context, userID, threadID, code string) (Record, error)
		// Hide records an item as hidden, storing its snapshot.
		Hide(ctx context.Context, userID, threadID, code string, snapshot json.RawMessage) (Record, error)
		// Unhide removes an item from the hidden set.
		Unhide(ctx context.Context, userID, threadID, code string) (Record, error)
	}
)

// NewRecord returns an empty record at the current schema version.
func NewRecord() Record {
	return Record{
		Favorites: make(map[string]json.RawMessage),
		Hidden:    make(map[string]json.RawMessage),
		Version:   SchemaVersion,
	}
}

// IsFavorite reports whether the given item code is favorited.
func (r Record) IsFavorite(code string) bool {
	_, ok := r.Favorites[code]
	return ok
}

// IsHidden reports whether the given item code is hidden.
func (r Record) IsHidden(code string) bool {
	_, ok := r.Hidden[code]
	return ok
}

// Clone returns a deep copy of the record. Stores return clones so callers
// can never mutate stored state through a returned record.
func (r Record) Clone() Record {
	out := Record{
		Favorites: make(map[string]json.RawMessage, len(r.Favorites)),
		Hidden:    make(map[string]json.RawMessage, len(r.Hidden)),
		Version:   r.Version,
	}
	for k, v := range r.Favorites {
		out.Favorites[k] = append(json.RawMessage(nil), v...)
	}
	for k, v := range r.Hidden {
		out.Hidden[k] = append(json.RawMessage(nil), v...)
	}
	return out
}
