// Package dispatch routes normalized inbound events to registered handlers,
// runs access filter chains, and applies the conversation-state directives
// handlers return. It is the single entry point of the dialog layer; feature
// packages only register handlers and never see the transport.
package dispatch

import (
	"context"

	"groupbot/core/dialog/reply"
	"groupbot/core/dialog/route"
	"groupbot/core/dialog/state"
)

// Kind classifies a normalized event.
type Kind int

const (
	// KindUnroutable carries neither a callback token nor text.
	KindUnroutable Kind = iota
	// KindRoute carries an encoded route token from a tapped button.
	KindRoute
	// KindText carries a typed message.
	KindText
)

// ReplyRef points at the message an event replies to.
type ReplyRef struct {
	MessageID int
	UserID    int64
}

// Event is the transport-agnostic union of inbound updates. The transport
// adapter fills exactly one of Callback or Text; the dialog layer never sees
// wire formats.
type Event struct {
	ChatID   int64
	UserID   int64
	Callback string
	Text     string
	ReplyTo  *ReplyRef
}

// Kind derives the event class. A callback token wins over text.
func (e Event) Kind() Kind {
	switch {
	case e.Callback != "":
		return KindRoute
	case e.Text != "":
		return KindText
	default:
		return KindUnroutable
	}
}

// Key returns the conversation the event belongs to.
func (e Event) Key() state.Key {
	return state.Key{ChatID: e.ChatID, UserID: e.UserID}
}

// Request is what a handler receives: the resolved route plus, for awaited
// free-text input, the raw text payload (never part of the token itself).
type Request struct {
	Key   state.Key
	Route route.Route
	Text  string
	Event Event
}

// Result is what a handler returns. A nil Response means silent ack.
type Result struct {
	Response   *reply.Response
	Directives []Directive
}

// Handler processes one resolved event.
type Handler func(ctx context.Context, req *Request) (*Result, error)
