// Package state persists per-conversation dialog state: the route that should
// receive the next free-text message, and short-lived context values (the
// "active chat" selection and similar) that handlers stash between taps so
// every button does not have to carry every id.
package state

import (
	"context"
	"strconv"

	"groupbot/core/dialog/route"
)

// Key addresses one conversation. State is never visible across keys.
type Key struct {
	ChatID int64
	UserID int64
}

// String renders the key for cache keys and logs.
func (k Key) String() string {
	return strconv.FormatInt(k.ChatID, 10) + ":" + strconv.FormatInt(k.UserID, 10)
}

// Record is one conversation's stored state.
type Record struct {
	// InputRoute, when set, is the handler the next text message routes to.
	InputRoute *route.Route
	// Context maps short-lived field names to ids.
	Context map[string]int64
}

// Store is the keyed conversation-state store. Implementations must be safe
// for concurrent use across keys and last-writer-wins within a key; writes
// must be idempotent so redelivered events do not corrupt state.
type Store interface {
	// AwaitedInput returns the route awaiting the next text message, if any.
	AwaitedInput(ctx context.Context, key Key) (route.Route, bool, error)
	// SetAwaitedInput overwrites the awaited route. No history is kept.
	SetAwaitedInput(ctx context.Context, key Key, r route.Route) error
	// ClearAwaitedInput removes the awaited route. Clearing an absent route
	// is a no-op.
	ClearAwaitedInput(ctx context.Context, key Key) error
	// ContextValue reads one context field.
	ContextValue(ctx context.Context, key Key, field string) (int64, bool, error)
	// SetContextValue writes one context field, superseding a previous value.
	SetContextValue(ctx context.Context, key Key, field string, value int64) error
}
