// Package access evaluates ordered capability gates before a handler runs.
// Filters are read-only predicates; a denial is a normal outcome the
// dispatcher turns into a silent acknowledgement, never an error message,
// so outsiders cannot probe which actions exist.
package access

import (
	"context"

	"groupbot/core/dialog/route"
	"groupbot/core/dialog/state"
)

// Reason classifies why a filter denied access.
type Reason string

const (
	ReasonNone         Reason = ""
	ReasonNotAdmin     Reason = "not_admin"
	ReasonNotCreator   Reason = "not_creator"
	ReasonNoActiveChat Reason = "no_active_chat"
)

// Decision is the outcome of a single filter or a whole chain.
type Decision struct {
	Allowed bool
	Reason  Reason
}

// Allow is the positive decision.
func Allow() Decision {
	return Decision{Allowed: true}
}

// Deny builds a negative decision with a reason for logs.
func Deny(reason Reason) Decision {
	return Decision{Reason: reason}
}

// Subject describes who is acting on what.
type Subject struct {
	Key   state.Key
	Route route.Route
	// ChatID is the resolved target chat: the group a private-chat settings
	// panel is editing, or the group itself for in-group commands.
	ChatID int64
}

// Filter is a single side-effect-free capability check. Filters may be
// re-evaluated on redelivery and must not mutate anything.
type Filter func(ctx context.Context, subject Subject) Decision

// Chain is an ordered list of filters.
type Chain []Filter

// Check evaluates filters in order and returns the first denial, or an allow
// when every filter passes. An empty chain allows.
func (c Chain) Check(ctx context.Context, subject Subject) Decision {
	for _, f := range c {
		if f == nil {
			continue
		}
		if d := f(ctx, subject); !d.Allowed {
			return d
		}
	}
	return Allow()
}
