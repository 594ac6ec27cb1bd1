// Package keyboard renders dialog button grids as Telegram inline keyboards.
package keyboard

import (
	tele "gopkg.in/telebot.v4"

	"groupbot/core/dialog/reply"
)

// Markup converts a dialog keyboard into telebot inline markup. Button tokens
// travel verbatim as callback data. Hidden buttons and empty rows are
// dropped; a keyboard with no visible buttons yields nil so the message is
// sent without markup.
func Markup(rows [][]reply.Button) *tele.ReplyMarkup {
	if len(rows) == 0 {
		return nil
	}
	inline := make([][]tele.InlineButton, 0, len(rows))
	for _, row := range rows {
		r := make([]tele.InlineButton, 0, len(row))
		for _, b := range row {
			if !b.Visible {
				continue
			}
			r = append(r, tele.InlineButton{Text: b.Label, Data: b.Token})
		}
		if len(r) > 0 {
			inline = append(inline, r)
		}
	}
	if len(inline) == 0 {
		return nil
	}
	return &tele.ReplyMarkup{InlineKeyboard: inline}
}

// ForceReply returns a markup that asks the client to reply to the message,
// used when a handler awaits free-text input.
func ForceReply() *tele.ReplyMarkup {
	return &tele.ReplyMarkup{ForceReply: true}
}
