package session

import (
	"context"
	"errors"
)

// ErrBadDocument reports a stored state blob that no longer parses. The
// engine treats this as fatal for the stored copy only: it starts the
// identity over with a fresh default state.
var ErrBadDocument = errors.New("session: stored state document is invalid")

// Store defines the get/set contract the engine depends on. Both calls
// refresh the backend's sliding TTL.
//
// This allows us to swap between Redis, PostgreSQL, in-memory, etc.
type Store interface {
	// Get loads the state for a scope key. found is false when no state
	// exists yet; the engine creates the default in that case.
	Get(ctx context.Context, scopeKey string) (state *State, found bool, err error)

	// Set overwrites the full state document for a scope key.
	Set(ctx context.Context, scopeKey string, state *State) error
}
