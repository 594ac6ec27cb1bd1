package dispatch

import (
	"context"
	"errors"
	"testing"

	"groupbot/core/dialog/access"
	"groupbot/core/dialog/reply"
	"groupbot/core/dialog/route"
	"groupbot/core/dialog/state"
)

type captured struct {
	id   string
	reqs []*Request
}

func (c *captured) handler(result *Result, err error) Handler {
	return func(_ context.Context, req *Request) (*Result, error) {
		c.reqs = append(c.reqs, req)
		return result, err
	}
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *Registry, state.Store) {
	t.Helper()
	store := state.NewMemoryStore(0)
	reg := NewRegistry()
	d := NewDispatcher(Options{Store: store, Registry: reg, RootHandler: "menu/index"})
	return d, reg, store
}

func mustToken(t *testing.T, r route.Route) string {
	t.Helper()
	token, err := r.Encode()
	if err != nil {
		t.Fatalf("encode %v: %v", r, err)
	}
	return token
}

func TestDispatchRouteEvent(t *testing.T) {
	d, reg, _ := newTestDispatcher(t)
	cap := &captured{}
	if err := reg.Register("group-membership/index", cap.handler(&Result{
		Response: reply.Send("settings", nil),
	}, nil)); err != nil {
		t.Fatal(err)
	}

	r := route.New("group-membership/index", route.Int("id", 7))
	res := d.Dispatch(context.Background(), Event{ChatID: 1, UserID: 2, Callback: mustToken(t, r)})

	if res.SilentAck {
		t.Fatal("expected handler response, got silent ack")
	}
	if res.Text != "settings" {
		t.Fatalf("text = %q", res.Text)
	}
	if len(cap.reqs) != 1 {
		t.Fatalf("handler invocations = %d", len(cap.reqs))
	}
	req := cap.reqs[0]
	if id, _ := req.Route.Int("id"); id != 7 {
		t.Fatalf("id param = %d", id)
	}
	if req.Text != "" {
		t.Fatalf("unexpected text payload %q", req.Text)
	}
}

func TestDispatchMalformedTokenIsSilent(t *testing.T) {
	d, reg, store := newTestDispatcher(t)
	cap := &captured{}
	_ = reg.Register("group-membership/index", cap.handler(nil, nil))

	res := d.Dispatch(context.Background(), Event{ChatID: 1, UserID: 2, Callback: "Group//???bad"})
	if !res.SilentAck {
		t.Fatal("expected silent ack")
	}
	if len(cap.reqs) != 0 {
		t.Fatal("handler must not run on malformed token")
	}
	if _, ok, _ := store.AwaitedInput(context.Background(), state.Key{ChatID: 1, UserID: 2}); ok {
		t.Fatal("state mutated by unroutable event")
	}
}

func TestDispatchUnknownHandlerIsSilent(t *testing.T) {
	d, _, store := newTestDispatcher(t)
	key := state.Key{ChatID: 1, UserID: 2}
	_ = store.SetContextValue(context.Background(), key, "chat", 5)

	token := mustToken(t, route.New("removed-feature/index", route.Int("id", 3)))
	res := d.Dispatch(context.Background(), Event{ChatID: 1, UserID: 2, Callback: token})
	if !res.SilentAck {
		t.Fatal("expected silent ack for unregistered handler")
	}
	// state untouched
	if v, ok, _ := store.ContextValue(context.Background(), key, "chat"); !ok || v != 5 {
		t.Fatalf("context changed: v=%d ok=%v", v, ok)
	}
}

func TestDispatchTextWithoutAwaitedInput(t *testing.T) {
	d, reg, _ := newTestDispatcher(t)
	cap := &captured{}
	_ = reg.Register("group-membership/input-tag", cap.handler(nil, nil))

	res := d.Dispatch(context.Background(), Event{ChatID: 1, UserID: 2, Text: "hello"})
	if !res.SilentAck {
		t.Fatal("expected silent ack")
	}
	if len(cap.reqs) != 0 {
		t.Fatal("no handler should run without an awaited route")
	}
}

func TestDispatchAwaitedInputRoutesText(t *testing.T) {
	d, reg, store := newTestDispatcher(t)
	ctx := context.Background()
	key := state.Key{ChatID: 1, UserID: 2}

	cap := &captured{}
	_ = reg.Register("group-membership/set-note", cap.handler(&Result{
		Response: reply.Edit("saved", nil),
	}, nil))
	awaited := route.New("group-membership/set-note", route.Int("id", 7), route.Int("member", 42))
	if err := store.SetAwaitedInput(ctx, key, awaited); err != nil {
		t.Fatal(err)
	}

	res := d.Dispatch(ctx, Event{ChatID: 1, UserID: 2, Text: "late payer"})
	if res.SilentAck {
		t.Fatal("expected handler response")
	}
	if len(cap.reqs) != 1 {
		t.Fatalf("handler invocations = %d", len(cap.reqs))
	}
	req := cap.reqs[0]
	if !req.Route.Equal(awaited) {
		t.Fatalf("route = %v, want %v", req.Route, awaited)
	}
	if req.Text != "late payer" {
		t.Fatalf("payload = %q", req.Text)
	}

	// the handler issued no directives, so the awaited input is consumed
	if _, ok, _ := store.AwaitedInput(ctx, key); ok {
		t.Fatal("awaited input not cleared after handling")
	}
	follow := d.Dispatch(ctx, Event{ChatID: 1, UserID: 2, Text: "again"})
	if !follow.SilentAck {
		t.Fatal("second text must be unroutable after clear")
	}
}

func TestDispatchSetAwaitedInputDirective(t *testing.T) {
	d, reg, store := newTestDispatcher(t)
	ctx := context.Background()
	key := state.Key{ChatID: 3, UserID: 4}

	next := route.New("group-membership/input-tag", route.Int("id", 9))
	prompt := &captured{}
	_ = reg.Register("group-membership/set-tag", prompt.handler(&Result{
		Response:   reply.Edit("send me the tag", nil),
		Directives: []Directive{SetAwaitedInput(next)},
	}, nil))
	input := &captured{}
	_ = reg.Register("group-membership/input-tag", input.handler(&Result{
		Response: reply.Edit("tag saved", nil),
	}, nil))

	token := mustToken(t, route.New("group-membership/set-tag", route.Int("id", 9)))
	d.Dispatch(ctx, Event{ChatID: 3, UserID: 4, Callback: token})

	if got, ok, _ := store.AwaitedInput(ctx, key); !ok || !got.Equal(next) {
		t.Fatalf("awaited = %v ok=%v", got, ok)
	}

	res := d.Dispatch(ctx, Event{ChatID: 3, UserID: 4, Text: "premium"})
	if res.SilentAck {
		t.Fatal("expected input handler response")
	}
	if len(input.reqs) != 1 || input.reqs[0].Text != "premium" {
		t.Fatalf("input handler reqs = %+v", input.reqs)
	}
}

func TestDispatchSetContextDirective(t *testing.T) {
	d, reg, store := newTestDispatcher(t)
	ctx := context.Background()
	key := state.Key{ChatID: 5, UserID: 6}

	cap := &captured{}
	_ = reg.Register("group/view", cap.handler(&Result{
		Response:   reply.Edit("group", nil),
		Directives: []Directive{SetContext(ContextFieldChat, 77)},
	}, nil))

	d.Dispatch(ctx, Event{ChatID: 5, UserID: 6, Callback: mustToken(t, route.New("group/view", route.Int("id", 77)))})

	if v, ok, _ := store.ContextValue(ctx, key, ContextFieldChat); !ok || v != 77 {
		t.Fatalf("context chat = %d ok=%v", v, ok)
	}
}

func TestDispatchAccessDenied(t *testing.T) {
	d, reg, store := newTestDispatcher(t)
	ctx := context.Background()

	cap := &captured{}
	_ = reg.Register("group-membership/index", cap.handler(&Result{
		Response:   reply.Edit("settings", nil),
		Directives: []Directive{SetContext(ContextFieldChat, 1)},
	}, nil))
	var laterRan bool
	reg.Guard("group-membership",
		func(context.Context, access.Subject) access.Decision { return access.Deny(access.ReasonNotAdmin) },
		func(context.Context, access.Subject) access.Decision {
			laterRan = true
			return access.Allow()
		},
	)

	token := mustToken(t, route.New("group-membership/index", route.Int("id", 7)))
	res := d.Dispatch(ctx, Event{ChatID: 1, UserID: 2, Callback: token})
	if !res.SilentAck {
		t.Fatal("denied access must produce a silent ack")
	}
	if len(cap.reqs) != 0 {
		t.Fatal("handler must not run when denied")
	}
	if laterRan {
		t.Fatal("chain must short-circuit on first denial")
	}
	if _, ok, _ := store.ContextValue(ctx, state.Key{ChatID: 1, UserID: 2}, ContextFieldChat); ok {
		t.Fatal("no state mutation on denial")
	}
}

func TestDispatchGuardSubjectChatResolution(t *testing.T) {
	d, reg, _ := newTestDispatcher(t)
	var seen access.Subject
	_ = reg.Register("group-membership/index", func(context.Context, *Request) (*Result, error) {
		return nil, nil
	})
	reg.Guard("group-membership", func(_ context.Context, s access.Subject) access.Decision {
		seen = s
		return access.Allow()
	})

	token := mustToken(t, route.New("group-membership/index", route.Int("id", 31)))
	d.Dispatch(context.Background(), Event{ChatID: 1, UserID: 2, Callback: token})
	if seen.ChatID != 31 {
		t.Fatalf("subject chat = %d, want route id param", seen.ChatID)
	}
}

func TestDispatchRootToken(t *testing.T) {
	d, reg, _ := newTestDispatcher(t)
	cap := &captured{}
	_ = reg.Register("menu/index", cap.handler(&Result{Response: reply.Edit("menu", nil)}, nil))

	res := d.Dispatch(context.Background(), Event{ChatID: 1, UserID: 2, Callback: route.RootToken})
	if res.SilentAck || res.Text != "menu" {
		t.Fatalf("root dispatch: %+v", res)
	}
}

func TestDispatchHandlerErrorIsAbsorbed(t *testing.T) {
	d, reg, store := newTestDispatcher(t)
	ctx := context.Background()
	key := state.Key{ChatID: 1, UserID: 2}

	awaited := route.New("group-membership/set-note", route.Int("id", 7))
	_ = store.SetAwaitedInput(ctx, key, awaited)
	cap := &captured{}
	_ = reg.Register("group-membership/set-note", cap.handler(nil, errors.New("boom")))

	res := d.Dispatch(ctx, Event{ChatID: 1, UserID: 2, Text: "note"})
	if !res.SilentAck {
		t.Fatal("handler error must yield silent ack")
	}
	// state untouched so a redelivery can retry
	if got, ok, _ := store.AwaitedInput(ctx, key); !ok || !got.Equal(awaited) {
		t.Fatalf("awaited input lost on handler error: %v ok=%v", got, ok)
	}
}

func TestDispatchRedeliveredEventIsIdempotent(t *testing.T) {
	d, reg, store := newTestDispatcher(t)
	ctx := context.Background()
	key := state.Key{ChatID: 8, UserID: 9}

	next := route.New("group-publisher/add", route.Int("id", 5))
	_ = reg.Register("group-publisher/posts", func(context.Context, *Request) (*Result, error) {
		return &Result{
			Response:   reply.Edit("posts", nil),
			Directives: []Directive{SetContext(ContextFieldChat, 5), SetAwaitedInput(next)},
		}, nil
	})

	ev := Event{ChatID: 8, UserID: 9, Callback: mustToken(t, route.New("group-publisher/posts", route.Int("id", 5)))}
	d.Dispatch(ctx, ev)
	d.Dispatch(ctx, ev) // redelivery

	if got, ok, _ := store.AwaitedInput(ctx, key); !ok || !got.Equal(next) {
		t.Fatalf("awaited after redelivery: %v ok=%v", got, ok)
	}
	if v, ok, _ := store.ContextValue(ctx, key, ContextFieldChat); !ok || v != 5 {
		t.Fatalf("context after redelivery: %d ok=%v", v, ok)
	}
}

func TestRegistryGuardPrefixMatching(t *testing.T) {
	reg := NewRegistry()
	deny := func(context.Context, access.Subject) access.Decision { return access.Deny(access.ReasonNotAdmin) }
	reg.Guard("group-membership", deny)

	if len(reg.ChainFor("group-membership/index")) != 1 {
		t.Fatal("prefix must match its actions")
	}
	if len(reg.ChainFor("group-membership")) != 1 {
		t.Fatal("prefix must match itself")
	}
	if len(reg.ChainFor("group-membership-extra/index")) != 0 {
		t.Fatal("prefix must not match unrelated controllers")
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	reg := NewRegistry()
	h := func(context.Context, *Request) (*Result, error) { return nil, nil }
	if err := reg.Register("menu/index", h); err != nil {
		t.Fatal(err)
	}
	if err := reg.Register("menu/index", h); err == nil {
		t.Fatal("duplicate registration must fail")
	}
	if err := reg.Register("", h); err == nil {
		t.Fatal("empty id must fail")
	}
	if err := reg.Register("menu/other", nil); err == nil {
		t.Fatal("nil handler must fail")
	}
}
