package telegram

import (
	"context"
	"log/slog"
	"strings"

	tele "gopkg.in/telebot.v4"

	"groupbot/core/dialog/dispatch"
	"groupbot/core/dialog/reply"
	"groupbot/core/dialog/route"
	"groupbot/core/logger"
	tghelpers "groupbot/core/telegram/helpers"
	"groupbot/core/telegram/keyboard"
	"groupbot/core/telegram/sender"
)

// Adapter normalizes telebot updates into dialog events and delivers the
// responses back over the bot API. Slash commands are translated to route
// tokens before dispatch so feature handlers never see raw command text.
type Adapter struct {
	dialog   *dispatch.Dispatcher
	out      *sender.Sender
	commands map[string]string
}

// NewAdapter wires the dialog dispatcher to the outbound sender.
func NewAdapter(dialog *dispatch.Dispatcher, out *sender.Sender) *Adapter {
	return &Adapter{
		dialog:   dialog,
		out:      out,
		commands: make(map[string]string),
	}
}

// Bind maps a slash command like "/menu" to a dialog route. Binding fails
// only when the route itself does not encode, which is a programmer error.
func (a *Adapter) Bind(command string, r route.Route) error {
	token, err := r.Encode()
	if err != nil {
		return err
	}
	a.commands[strings.ToLower(command)] = token
	return nil
}

// OnCallback handles inline button taps.
func (a *Adapter) OnCallback(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	cb := c.Callback()
	if cb == nil {
		return nil
	}

	ev := dispatch.Event{
		ChatID:   chatIDOf(c),
		UserID:   senderIDOf(c),
		Callback: strings.TrimPrefix(cb.Data, "\f"),
	}
	res := a.dialog.Dispatch(ctx, ev)
	return a.deliver(ctx, c, res)
}

// OnText handles typed messages: bound commands become route events,
// everything else is offered to the dialog layer as free text.
func (a *Adapter) OnText(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	text := c.Text()

	ev := dispatch.Event{
		ChatID: chatIDOf(c),
		UserID: senderIDOf(c),
	}
	if token, ok := a.commandToken(text); ok {
		ev.Callback = token
	} else {
		ev.Text = text
		if msg := c.Message(); msg != nil && msg.ReplyTo != nil {
			ref := &dispatch.ReplyRef{MessageID: msg.ReplyTo.ID}
			if msg.ReplyTo.Sender != nil {
				ref.UserID = msg.ReplyTo.Sender.ID
			}
			ev.ReplyTo = ref
		}
	}

	res := a.dialog.Dispatch(ctx, ev)
	return a.deliver(ctx, c, res)
}

// commandToken resolves the leading word of a message against bound
// commands, tolerating the @botname suffix used in group chats.
func (a *Adapter) commandToken(text string) (string, bool) {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "/") {
		return "", false
	}
	word := trimmed
	if i := strings.IndexAny(word, " \t\n"); i >= 0 {
		word = word[:i]
	}
	if i := strings.Index(word, "@"); i >= 0 {
		word = word[:i]
	}
	token, ok := a.commands[strings.ToLower(word)]
	return token, ok
}

// deliver acknowledges the update and, for non-silent responses, enqueues
// the outbound edit or send.
func (a *Adapter) deliver(ctx context.Context, c tele.Context, res *reply.Response) error {
	if c.Callback() != nil {
		if err := c.Respond(&tele.CallbackResponse{}); err != nil {
			logger.Warn(ctx, "tg", "callback.ack_failed",
				slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			)
		}
	}
	if res == nil || res.SilentAck {
		return nil
	}

	var opts []interface{}
	if markup := keyboard.Markup(res.Keyboard); markup != nil {
		opts = append(opts, markup)
	} else if res.ForceReply {
		opts = append(opts, keyboard.ForceReply())
	}

	bot := c.Bot()
	if res.EditExisting && c.Callback() != nil && c.Message() != nil {
		msg := c.Message()
		text := res.Text
		return a.push(ctx, "edit", func() error {
			_, err := bot.Edit(msg, text, opts...)
			return err
		})
	}

	chat := c.Chat()
	if chat == nil {
		return nil
	}
	text := res.Text
	return a.push(ctx, "send", func() error {
		_, err := bot.Send(chat, text, opts...)
		return err
	})
}

// push hands the call to the async sender, falling back to a synchronous
// call when the queue is unavailable so responses are never dropped.
func (a *Adapter) push(ctx context.Context, action string, run func() error) error {
	if a.out == nil {
		return run()
	}
	if err := a.out.Push(ctx, action, run); err != nil {
		logger.Warn(ctx, "tg", "sender.enqueue_failed",
			slog.String("action", action),
			slog.String("err", err.Error()),
		)
		return run()
	}
	return nil
}

func chatIDOf(c tele.Context) int64 {
	if chat := c.Chat(); chat != nil {
		return chat.ID
	}
	return 0
}

func senderIDOf(c tele.Context) int64 {
	if user := c.Sender(); user != nil {
		return user.ID
	}
	return 0
}
