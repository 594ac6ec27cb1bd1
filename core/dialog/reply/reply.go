// Package reply defines the outbound response descriptor handlers return.
// The descriptor is transport-agnostic; the delivery layer decides how to
// edit-or-send and how to acknowledge the originating event.
package reply

import "groupbot/core/dialog/route"

// Button is one tappable cell of an inline keyboard.
type Button struct {
	Token   string
	Label   string
	Visible bool
}

// NewButton encodes the target route into a button. Encoding failures are
// programmer errors (oversized or invalid params) and are surfaced so tests
// catch them before they ship.
func NewButton(r route.Route, label string) (Button, error) {
	token, err := r.Encode()
	if err != nil {
		return Button{}, err
	}
	return Button{Token: token, Label: label, Visible: true}, nil
}

// Response describes what should reach the user.
// A nil Response or SilentAck means: acknowledge the event, change nothing.
type Response struct {
	Text         string
	Keyboard     [][]Button
	EditExisting bool
	SilentAck    bool
	// ForceReply asks the client to reply to this message. Set on prompts
	// that await free-text input.
	ForceReply bool
}

// Silent builds a no-op acknowledgement.
func Silent() *Response {
	return &Response{SilentAck: true}
}

// Edit builds a response that replaces the message the tapped button lives on.
func Edit(text string, keyboard [][]Button) *Response {
	return &Response{Text: text, Keyboard: keyboard, EditExisting: true}
}

// Send builds a response delivered as a fresh message.
func Send(text string, keyboard [][]Button) *Response {
	return &Response{Text: text, Keyboard: keyboard}
}

// Prompt builds a fresh message that awaits the user's next text reply.
func Prompt(text string) *Response {
	return &Response{Text: text, ForceReply: true}
}
