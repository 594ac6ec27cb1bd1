package dispatch

import (
	"context"
	"log/slog"
	"time"

	"groupbot/core/dialog/access"
	"groupbot/core/dialog/reply"
	"groupbot/core/dialog/route"
	"groupbot/core/dialog/state"
	"groupbot/core/logger"
)

// ContextFieldChat is the conversation-context field holding the chat a
// private settings panel currently operates on.
const ContextFieldChat = "chat"

// Options configure a Dispatcher.
type Options struct {
	Store    state.Store
	Registry *Registry
	// RootHandler is the handler id the reserved "/" token resolves to.
	RootHandler string
}

// Dispatcher is the top-level entry point of the dialog layer. It is safe
// for concurrent use; events for different conversations share nothing but
// the store, which serializes per key.
type Dispatcher struct {
	store       state.Store
	registry    *Registry
	rootHandler string
}

// NewDispatcher builds a dispatcher. Store and Registry are required.
func NewDispatcher(opts Options) *Dispatcher {
	return &Dispatcher{
		store:       opts.Store,
		registry:    opts.Registry,
		rootHandler: opts.RootHandler,
	}
}

// Dispatch resolves the event to a handler, runs its access chain, invokes
// it, and durably applies returned state directives before handing back the
// response. Anything unroutable or disallowed yields a silent ack with state
// untouched; Dispatch never returns an error to the transport.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) *reply.Response {
	start := time.Now()
	key := ev.Key()

	target, text, ok := d.resolve(ctx, ev, key)
	if !ok {
		d.logSummary(ctx, "unroutable", start, "skip", nil)
		return reply.Silent()
	}

	handlerID := target.Handler
	if target.IsRoot() {
		handlerID = d.rootHandler
	}
	ctx = logger.WithHandler(ctx, handlerID)
	h, found := d.registry.Handler(handlerID)
	if !found {
		// Stale button referencing a removed feature: same treatment
		// as a malformed token.
		logger.Debug(ctx, "dialog", "dispatch.handler.missing",
			slog.String("handler", handlerID),
		)
		d.logSummary(ctx, handlerID, start, "skip", nil)
		return reply.Silent()
	}

	req := &Request{Key: key, Route: target, Text: text, Event: ev}
	subject := access.Subject{
		Key:    key,
		Route:  target,
		ChatID: ChatFor(ctx, d.store, req),
	}
	if decision := d.registry.ChainFor(handlerID).Check(ctx, subject); !decision.Allowed {
		logger.Debug(ctx, "dialog", "dispatch.access.denied",
			slog.String("handler", handlerID),
			slog.String("reason", string(decision.Reason)),
		)
		d.logSummary(ctx, handlerID, start, "denied", nil)
		return reply.Silent()
	}

	res, err := h(ctx, req)
	if err != nil {
		// Handler failures are absorbed: no error string may leak into
		// the chat, and state stays as it was so a redelivery retries
		// from the same point.
		logger.Error(ctx, "dialog", "dispatch.handler.failed",
			slog.String("handler", handlerID),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
		d.logSummary(ctx, handlerID, start, "fail", err)
		return reply.Silent()
	}
	if res == nil {
		res = &Result{}
	}

	if err := d.applyDirectives(ctx, key, res.Directives); err != nil {
		logger.Error(ctx, "dialog", "dispatch.state.write_failed",
			slog.String("handler", handlerID),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
		d.logSummary(ctx, handlerID, start, "fail", err)
		return reply.Silent()
	}

	d.logSummary(ctx, handlerID, start, "ok", nil)
	if res.Response == nil {
		return reply.Silent()
	}
	return res.Response
}

// resolve determines the target route and text payload for the event.
func (d *Dispatcher) resolve(ctx context.Context, ev Event, key state.Key) (route.Route, string, bool) {
	switch ev.Kind() {
	case KindRoute:
		r, err := route.Decode(ev.Callback)
		if err != nil {
			logger.Debug(ctx, "dialog", "dispatch.token.malformed",
				slog.String("token", logger.SanitizeLimit(ev.Callback, route.MaxTokenLen)),
			)
			return route.Route{}, "", false
		}
		return r, "", true
	case KindText:
		r, ok, err := d.store.AwaitedInput(ctx, key)
		if err != nil {
			logger.Error(ctx, "dialog", "dispatch.state.read_failed",
				slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			)
			return route.Route{}, "", false
		}
		if !ok {
			return route.Route{}, "", false
		}
		return r, ev.Text, true
	default:
		return route.Route{}, "", false
	}
}

// ChatFor picks the chat a request acts on: the route's explicit id param,
// else the conversation's active-chat selection, else the chat the event
// arrived in. The dispatcher uses the same precedence for the access subject,
// so handlers and guards always agree on which chat is being acted on.
func ChatFor(ctx context.Context, store state.Store, req *Request) int64 {
	if id, ok := req.Route.Int("id"); ok {
		return id
	}
	if id, ok, err := store.ContextValue(ctx, req.Key, ContextFieldChat); err == nil && ok {
		return id
	}
	return req.Event.ChatID
}

// applyDirectives persists handler state directives. When no directive sets
// an awaited route the previous one is cleared, so navigating away from a
// prompt never leaves a stale "expecting text" state behind.
func (d *Dispatcher) applyDirectives(ctx context.Context, key state.Key, directives []Directive) error {
	keepsAwaited := false
	for _, directive := range directives {
		if directive == nil {
			continue
		}
		if err := directive.apply(ctx, d.store, key); err != nil {
			return err
		}
		if directive.keepsAwaitedInput() {
			keepsAwaited = true
		}
	}
	if !keepsAwaited {
		return d.store.ClearAwaitedInput(ctx, key)
	}
	return nil
}

func (d *Dispatcher) logSummary(ctx context.Context, handlerID string, start time.Time, outcome string, err error) {
	attrs := []slog.Attr{
		slog.String("handler", handlerID),
		slog.String("outcome", outcome),
		slog.Int64("duration_ms", logger.RoundMS(time.Since(start)).Milliseconds()),
	}
	if err != nil {
		attrs = append(attrs, slog.String("err", logger.SanitizeLimit(err.Error(), 256)))
	}
	logger.LogEvent(ctx, logger.Dialog, slog.LevelInfo, "dispatch.handled", attrs...)
}
