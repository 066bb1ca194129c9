// Package ident maps front-end thread identifiers to the UUIDs the agent
// API expects. The mapping is get-or-create: the first resolution of a
// front-end ID mints a UUID, every later resolution returns the same one,
// so conversation continuity survives reconnects and concurrent requests.
package ident

import "context"

// Mapper resolves front-end thread IDs to agent-API thread UUIDs.
//
// Resolve is idempotent: concurrent calls with the same frontID all observe
// the same UUID, and exactly one UUID is ever minted per frontID.
// Implementations must be safe for concurrent use and must not serialize
// resolutions of distinct frontIDs beyond constant bookkeeping.
type Mapper interface {
	// Resolve returns the agent thread UUID for the given front-end thread
	// ID, creating the mapping when missing.
	Resolve(ctx context.Context, frontID string) (string, error)
	// Forget removes the mapping for the given front-end thread ID, if any.
	// Used when a thread is deleted so a recreated thread starts fresh.
	Forget(ctx context.Context, frontID string) error
}
