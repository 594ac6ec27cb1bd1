// Package administrators implements the creator-only administrators panel:
// the paginated list of the chat's administrators and the per-row toggle
// that activates or deactivates an administrator for the bot.
package administrators

import (
	"context"
	"errors"
	"fmt"

	"groupbot/bot/directory"
	"groupbot/core/dialog/dispatch"
	"groupbot/core/dialog/pagination"
	"groupbot/core/dialog/reply"
	"groupbot/core/dialog/route"
	"groupbot/core/dialog/state"
)

// Prefix guards every handler in this package.
const Prefix = "group-administrators"

const (
	HandlerIndex = Prefix + "/index"
	HandlerSet   = Prefix + "/set"
)

var errNoActiveChat = errors.New("administrators: no active chat")

// Deps are the collaborators the administrators panel needs.
type Deps struct {
	Members  directory.MemberDirectory
	Store    state.Store
	PageSize int
}

// Register wires the administrators handlers into the registry.
func Register(reg *dispatch.Registry, deps Deps) error {
	if deps.PageSize < 1 {
		deps.PageSize = 9
	}
	h := &handlers{deps: deps}
	if err := reg.Register(HandlerIndex, h.index); err != nil {
		return err
	}
	return reg.Register(HandlerSet, h.set)
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
	_, total, err := h.deps.Members.Administrators(ctx, chatID, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("administrators: count: %w", err)
	}
	page := pagination.Paginate(total, h.deps.PageSize, requested)
	window, _, err := h.deps.Members.Administrators(ctx, chatID, page.Offset, page.Limit)
	if err != nil {
		return nil, fmt.Errorf("administrators: list: %w", err)
	}

	grid := reply.NewGrid()
	for _, admin := range window {
		grid.Add(route.New(HandlerSet, route.Int("u", admin.UserID)), adminLabel(admin)).EndRow()
	}
	nav, err := pagination.NavButtons(page, func(p int) route.Route {
		r, _ := route.NewBuilder(HandlerIndex).
			Optional(route.Int("page", int64(p))).
			Build()
		return r
	})
	if err != nil {
		return nil, fmt.Errorf("administrators: nav buttons: %w", err)
	}
	grid.AddRow(nav)
	grid.Add(route.Root, "⬅️ Back").EndRow()
	rows, err := grid.Rows()
	if err != nil {
		return nil, fmt.Errorf("administrators: build keyboard: %w", err)
	}

	text := fmt.Sprintf("Administrators (page %d of %d)", page.Current, page.Total)
	return &dispatch.Result{Response: reply.Edit(text, rows)}, nil
}

func adminLabel(admin directory.Member) string {
	switch {
	case admin.Role == directory.RoleCreator:
		return "👑 " + admin.Name
	case admin.Active:
		return "✅ " + admin.Name
	default:
		return "☑️ " + admin.Name
	}
}

func (h *handlers) set(ctx context.Context, req *dispatch.Request) (*dispatch.Result, error) {
	chatID, err := h.chatFor(ctx, req)
	if err != nil {
		return nil, err
	}
	userID, ok := req.Route.Int("u")
	if !ok {
		return nil, fmt.Errorf("administrators: set without user id")
	}
	// The creator cannot deactivate themselves.
	if userID == req.Key.UserID {
		return &dispatch.Result{Response: reply.Silent()}, nil
	}
	admin, found, err := h.deps.Members.Member(ctx, chatID, userID)
	if err != nil {
		return nil, fmt.Errorf("administrators: load member: %w", err)
	}
	if !found || admin.Role == directory.RoleCreator {
		return &dispatch.Result{Response: reply.Silent()}, nil
	}
	if err := h.deps.Members.SetActive(ctx, chatID, userID, !admin.Active); err != nil {
		return nil, fmt.Errorf("administrators: set active: %w", err)
	}
	return h.index(ctx, req)
}
