package dispatch

import (
	"context"

	"groupbot/core/dialog/route"
	"groupbot/core/dialog/state"
)

// Directive is a state mutation a handler requests. Directives are applied
// durably before the response is handed to the transport, and applying the
// same directive twice is harmless, which keeps redelivered events safe.
type Directive interface {
	apply(ctx context.Context, store state.Store, key state.Key) error
	// keepsAwaitedInput reports whether the directive sets the awaited
	// route; when no directive does, the dispatcher clears it by default.
	keepsAwaitedInput() bool
}

type setAwaitedInput struct {
	route route.Route
}

func (d setAwaitedInput) apply(ctx context.Context, store state.Store, key state.Key) error {
	return store.SetAwaitedInput(ctx, key, d.route)
}

func (d setAwaitedInput) keepsAwaitedInput() bool { return true }

// SetAwaitedInput routes the conversation's next text message to r.
func SetAwaitedInput(r route.Route) Directive {
	return setAwaitedInput{route: r}
}

type clearAwaitedInput struct{}

func (clearAwaitedInput) apply(ctx context.Context, store state.Store, key state.Key) error {
	return store.ClearAwaitedInput(ctx, key)
}

func (clearAwaitedInput) keepsAwaitedInput() bool { return false }

// ClearAwaitedInput explicitly stops expecting text. Handlers rarely need it
// since not setting an awaited route clears it anyway.
func ClearAwaitedInput() Directive {
	return clearAwaitedInput{}
}

type setContext struct {
	field string
	value int64
}

func (d setContext) apply(ctx context.Context, store state.Store, key state.Key) error {
	return store.SetContextValue(ctx, key, d.field, d.value)
}

func (setContext) keepsAwaitedInput() bool { return false }

// SetContext stashes a short-lived id for downstream handlers.
func SetContext(field string, value int64) Directive {
	return setContext{field: field, value: value}
}
