// Package publisher implements the scheduled-post settings panel: the
// paginated posts list, adding a post via awaited input, and setting a
// post's publish time.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"groupbot/bot/directory"
	"groupbot/core/dialog/dispatch"
	"groupbot/core/dialog/pagination"
	"groupbot/core/dialog/reply"
	"groupbot/core/dialog/route"
	"groupbot/core/dialog/state"
)

// Prefix guards every handler in this package.
const Prefix = "group-publisher"

const (
	HandlerIndex     = Prefix + "/index"
	HandlerView      = Prefix + "/view"
	HandlerAdd       = Prefix + "/add"
	HandlerInputPost = Prefix + "/input-post"
	HandlerSetTime   = Prefix + "/set-time"
	HandlerInputTime = Prefix + "/input-time"
)

const labelLen = 24

var errNoActiveChat = errors.New("publisher: no active chat")

// Deps are the collaborators the publisher panel needs.
type Deps struct {
	Posts    directory.PostDirectory
	Store    state.Store
	PageSize int
}

// Register wires the publisher handlers into the registry.
func Register(reg *dispatch.Registry, deps Deps) error {
	if deps.PageSize < 1 {
		deps.PageSize = 9
	}
	h := &handlers{deps: deps}
	for id, fn := range map[string]dispatch.Handler{
		HandlerIndex:     h.index,
		HandlerView:      h.view,
		HandlerAdd:       h.add,
		HandlerInputPost: h.inputPost,
		HandlerSetTime:   h.setTime,
		HandlerInputTime: h.inputTime,
	} {
		if err := reg.Register(id, fn); err != nil {
			return err
		}
	}
	return nil
}

type handlers struct {
	deps Deps
}

func (h *handlers) chatFor(ctx context.Context, req *dispatch.Request) (int64, error) {
	id := dispatch.ChatFor(ctx, h.deps.Store, req)
	if id == 0 {
		return 0, errNoActiveChat
	}
	return id, nil
}

func (h *handlers) index(ctx context.Context, req *dispatch.Request) (*dispatch.Result, error) {
	chatID, err := h.chatFor(ctx, req)
	if err != nil {
		return nil, err
	}

	requested := 1
	if page, ok := req.Route.Int("page"); ok {
		requested = int(page)
	}
	_, total, err := h.deps.Posts.Posts(ctx, chatID, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("publisher: count posts: %w", err)
	}
	page := pagination.Paginate(total, h.deps.PageSize, requested)
	window, _, err := h.deps.Posts.Posts(ctx, chatID, page.Offset, page.Limit)
	if err != nil {
		return nil, fmt.Errorf("publisher: list posts: %w", err)
	}

	grid := reply.NewGrid()
	for _, post := range window {
		grid.Add(route.New(HandlerView, route.Int("p", post.ID)), postLabel(post)).EndRow()
	}
	nav, err := pagination.NavButtons(page, func(p int) route.Route {
		r, _ := route.NewBuilder(HandlerIndex).
			Optional(route.Int("page", int64(p))).
			Build()
		return r
	})
	if err != nil {
		return nil, fmt.Errorf("publisher: nav buttons: %w", err)
	}
	grid.AddRow(nav)
	grid.Add(route.New(HandlerAdd), "➕ Add post").EndRow()
	grid.Add(route.Root, "⬅️ Back").EndRow()
	rows, err := grid.Rows()
	if err != nil {
		return nil, fmt.Errorf("publisher: build keyboard: %w", err)
	}

	text := fmt.Sprintf("Scheduled posts (page %d of %d)", page.Current, page.Total)
	return &dispatch.Result{Response: reply.Edit(text, rows)}, nil
}

func postLabel(post directory.Post) string {
	label := post.Text
	if r := []rune(label); len(r) > labelLen {
		label = string(r[:labelLen]) + "…"
	}
	if post.At != "" {
		label = post.At + " " + label
	}
	return label
}

func (h *handlers) view(ctx context.Context, req *dispatch.Request) (*dispatch.Result, error) {
	chatID, err := h.chatFor(ctx, req)
	if err != nil {
		return nil, err
	}
	postID, ok := req.Route.Int("p")
	if !ok {
		return nil, fmt.Errorf("publisher: view without post id")
	}
	post, found, err := h.deps.Posts.Post(ctx, chatID, postID)
	if err != nil {
		return nil, fmt.Errorf("publisher: load post: %w", err)
	}
	if !found {
		return h.index(ctx, req)
	}

	at := post.At
	if at == "" {
		at = "not scheduled"
	}
	rows, err := reply.NewGrid().
		Add(route.New(HandlerSetTime, route.Int("p", postID)), "🕒 Set time").EndRow().
		Add(route.New(HandlerIndex), "⬅️ Back").EndRow().
		Rows()
	if err != nil {
		return nil, fmt.Errorf("publisher: build keyboard: %w", err)
	}

	text := fmt.Sprintf("Post #%d\nTime: %s\n\n%s", post.ID, at, post.Text)
	return &dispatch.Result{Response: reply.Edit(text, rows)}, nil
}

func (h *handlers) add(ctx context.Context, req *dispatch.Request) (*dispatch.Result, error) {
	if _, err := h.chatFor(ctx, req); err != nil {
		return nil, err
	}
	return &dispatch.Result{
		Response: reply.Prompt("Send the text of the new post."),
		Directives: []dispatch.Directive{
			dispatch.SetAwaitedInput(route.New(HandlerInputPost)),
		},
	}, nil
}

func (h *handlers) inputPost(ctx context.Context, req *dispatch.Request) (*dispatch.Result, error) {
	chatID, err := h.chatFor(ctx, req)
	if err != nil {
		return nil, err
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return &dispatch.Result{
			Response: reply.Prompt("Post text cannot be empty, try again."),
			Directives: []dispatch.Directive{
				dispatch.SetAwaitedInput(route.New(HandlerInputPost)),
			},
		}, nil
	}
	post, err := h.deps.Posts.AddPost(ctx, chatID, text)
	if err != nil {
		return nil, fmt.Errorf("publisher: add post: %w", err)
	}

	rows, err := reply.NewGrid().
		Add(route.New(HandlerSetTime, route.Int("p", post.ID)), "🕒 Set time").EndRow().
		Add(route.New(HandlerIndex), "📋 All posts").EndRow().
		Rows()
	if err != nil {
		return nil, fmt.Errorf("publisher: build keyboard: %w", err)
	}
	return &dispatch.Result{
		Response: reply.Send(fmt.Sprintf("Post #%d saved.", post.ID), rows),
	}, nil
}

func (h *handlers) setTime(ctx context.Context, req *dispatch.Request) (*dispatch.Result, error) {
	if _, err := h.chatFor(ctx, req); err != nil {
		return nil, err
	}
	postID, ok := req.Route.Int("p")
	if !ok {
		return nil, fmt.Errorf("publisher: set-time without post id")
	}
	return &dispatch.Result{
		Response: reply.Prompt("Send the publish time as HH:MM."),
		Directives: []dispatch.Directive{
			dispatch.SetAwaitedInput(route.New(HandlerInputTime, route.Int("p", postID))),
		},
	}, nil
}

func (h *handlers) inputTime(ctx context.Context, req *dispatch.Request) (*dispatch.Result, error) {
	chatID, err := h.chatFor(ctx, req)
	if err != nil {
		return nil, err
	}
	postID, ok := req.Route.Int("p")
	if !ok {
		return nil, fmt.Errorf("publisher: input-time without post id")
	}
	at := strings.TrimSpace(req.Text)
	if _, parseErr := time.Parse("15:04", at); parseErr != nil {
		return &dispatch.Result{
			Response: reply.Prompt("That is not a valid HH:MM time, try again."),
			Directives: []dispatch.Directive{
				dispatch.SetAwaitedInput(route.New(HandlerInputTime, route.Int("p", postID))),
			},
		}, nil
	}
	if err := h.deps.Posts.SetPostTime(ctx, chatID, postID, at); err != nil {
		return nil, fmt.Errorf("publisher: set time: %w", err)
	}
	return &dispatch.Result{
		Response: reply.Send(fmt.Sprintf("Post #%d scheduled at %s.", postID, at), nil),
	}, nil
}
