// Package membership implements the group membership settings panel: the
// on/off toggle, the member tag prompt, the paginated member list, and
// per-member notes.
package membership

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"groupbot/bot/directory"
	"groupbot/core/dialog/dispatch"
	"groupbot/core/dialog/pagination"
	"groupbot/core/dialog/reply"
	"groupbot/core/dialog/route"
	"groupbot/core/dialog/state"
)

// Prefix guards every handler in this package.
const Prefix = "group-membership"

const (
	HandlerIndex     = Prefix + "/index"
	HandlerSetStatus = Prefix + "/set-status"
	HandlerSetTag    = Prefix + "/set-tag"
	HandlerInputTag  = Prefix + "/input-tag"
	HandlerMembers   = Prefix + "/members"
	HandlerMember    = Prefix + "/member"
	HandlerSetNote   = Prefix + "/set-note"
	HandlerInputNote = Prefix + "/input-note"
)

const maxTagLen = 32

var errNoActiveChat = errors.New("membership: no active chat")

// Deps are the collaborators the membership panel needs.
type Deps struct {
	Chats    directory.ChatDirectory
	Members  directory.MemberDirectory
	Store    state.Store
	PageSize int
}

// Register wires the membership handlers into the registry.
func Register(reg *dispatch.Registry, deps Deps) error {
	if deps.PageSize < 1 {
		deps.PageSize = 9
	}
	h := &handlers{deps: deps}
	for id, fn := range map[string]dispatch.Handler{
		HandlerIndex:     h.index,
		HandlerSetStatus: h.setStatus,
		HandlerSetTag:    h.setTag,
		HandlerInputTag:  h.inputTag,
		HandlerMembers:   h.members,
		HandlerMember:    h.member,
		HandlerSetNote:   h.setNote,
		HandlerInputNote: h.inputNote,
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
	return h.renderIndex(ctx, chatID)
}

func (h *handlers) renderIndex(ctx context.Context, chatID int64) (*dispatch.Result, error) {
	settings, err := h.deps.Chats.Settings(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("membership: load settings: %w", err)
	}

	toggleLabel, toggleValue := "▶️ Enable", "on"
	status := "off"
	if settings.Enabled {
		toggleLabel, toggleValue = "⏸ Disable", "off"
		status = "on"
	}
	tag := settings.MemberTag
	if tag == "" {
		tag = "not set"
	}

	rows, err := reply.NewGrid().
		Add(route.New(HandlerSetStatus, route.String("v", toggleValue)), toggleLabel).EndRow().
		Add(route.New(HandlerSetTag), "🏷 Member tag").EndRow().
		Add(route.New(HandlerMembers), "👥 Members").EndRow().
		Add(route.Root, "⬅️ Back").EndRow().
		Rows()
	if err != nil {
		return nil, fmt.Errorf("membership: build keyboard: %w", err)
	}

	text := fmt.Sprintf("Membership settings\nStatus: %s\nMember tag: %s", status, tag)
	return &dispatch.Result{Response: reply.Edit(text, rows)}, nil
}

func (h *handlers) setStatus(ctx context.Context, req *dispatch.Request) (*dispatch.Result, error) {
	chatID, err := h.chatFor(ctx, req)
	if err != nil {
		return nil, err
	}
	v, _ := req.Route.Param("v")
	if v != "on" && v != "off" {
		return nil, fmt.Errorf("membership: bad status value %q", v)
	}
	if err := h.deps.Chats.SetEnabled(ctx, chatID, v == "on"); err != nil {
		return nil, fmt.Errorf("membership: set status: %w", err)
	}
	return h.renderIndex(ctx, chatID)
}

func (h *handlers) setTag(ctx context.Context, req *dispatch.Request) (*dispatch.Result, error) {
	if _, err := h.chatFor(ctx, req); err != nil {
		return nil, err
	}
	return &dispatch.Result{
		Response: reply.Prompt("Send the new member tag."),
		Directives: []dispatch.Directive{
			dispatch.SetAwaitedInput(route.New(HandlerInputTag)),
		},
	}, nil
}

func (h *handlers) inputTag(ctx context.Context, req *dispatch.Request) (*dispatch.Result, error) {
	chatID, err := h.chatFor(ctx, req)
	if err != nil {
		return nil, err
	}
	tag := strings.TrimSpace(req.Text)
	if tag == "" || len(tag) > maxTagLen {
		return &dispatch.Result{
			Response: reply.Prompt(fmt.Sprintf("Tag must be 1-%d characters, try again.", maxTagLen)),
			Directives: []dispatch.Directive{
				dispatch.SetAwaitedInput(route.New(HandlerInputTag)),
			},
		}, nil
	}
	if err := h.deps.Chats.SetMemberTag(ctx, chatID, tag); err != nil {
		return nil, fmt.Errorf("membership: set tag: %w", err)
	}

	res, err := h.renderIndex(ctx, chatID)
	if err != nil {
		return nil, err
	}
	// The prompt was a fresh message; answer with a fresh panel.
	res.Response.EditExisting = false
	return res, nil
}

func (h *handlers) members(ctx context.Context, req *dispatch.Request) (*dispatch.Result, error) {
	chatID, err := h.chatFor(ctx, req)
	if err != nil {
		return nil, err
	}

	requested := 1
	if page, ok := req.Route.Int("page"); ok {
		requested = int(page)
	}
	_, total, err := h.deps.Members.Members(ctx, chatID, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("membership: count members: %w", err)
	}
	page := pagination.Paginate(total, h.deps.PageSize, requested)
	window, _, err := h.deps.Members.Members(ctx, chatID, page.Offset, page.Limit)
	if err != nil {
		return nil, fmt.Errorf("membership: list members: %w", err)
	}

	grid := reply.NewGrid()
	for _, member := range window {
		grid.Add(route.New(HandlerMember, route.Int("u", member.UserID)), member.Name).EndRow()
	}
	nav, err := pagination.NavButtons(page, func(p int) route.Route {
		r, _ := route.NewBuilder(HandlerMembers).
			Optional(route.Int("page", int64(p))).
			Build()
		return r
	})
	if err != nil {
		return nil, fmt.Errorf("membership: nav buttons: %w", err)
	}
	grid.AddRow(nav)
	grid.Add(route.New(HandlerIndex), "⬅️ Back").EndRow()
	rows, err := grid.Rows()
	if err != nil {
		return nil, fmt.Errorf("membership: build keyboard: %w", err)
	}

	text := fmt.Sprintf("Members (page %d of %d)", page.Current, page.Total)
	return &dispatch.Result{Response: reply.Edit(text, rows)}, nil
}

func (h *handlers) member(ctx context.Context, req *dispatch.Request) (*dispatch.Result, error) {
	chatID, err := h.chatFor(ctx, req)
	if err != nil {
		return nil, err
	}
	userID, ok := req.Route.Int("u")
	if !ok {
		return nil, fmt.Errorf("membership: member view without user id")
	}
	member, found, err := h.deps.Members.Member(ctx, chatID, userID)
	if err != nil {
		return nil, fmt.Errorf("membership: load member: %w", err)
	}
	if !found {
		return h.members(ctx, req)
	}

	note := member.Note
	if note == "" {
		note = "none"
	}
	rows, err := reply.NewGrid().
		Add(route.New(HandlerSetNote, route.Int("u", userID)), "📝 Set note").EndRow().
		Add(route.New(HandlerMembers), "⬅️ Back").EndRow().
		Rows()
	if err != nil {
		return nil, fmt.Errorf("membership: build keyboard: %w", err)
	}

	text := fmt.Sprintf("%s\nRole: %s\nNote: %s", member.Name, member.Role, note)
	return &dispatch.Result{Response: reply.Edit(text, rows)}, nil
}

func (h *handlers) setNote(ctx context.Context, req *dispatch.Request) (*dispatch.Result, error) {
	if _, err := h.chatFor(ctx, req); err != nil {
		return nil, err
	}
	userID, ok := req.Route.Int("u")
	if !ok {
		return nil, fmt.Errorf("membership: set-note without user id")
	}
	return &dispatch.Result{
		Response: reply.Prompt("Send the note for this member."),
		Directives: []dispatch.Directive{
			dispatch.SetAwaitedInput(route.New(HandlerInputNote, route.Int("u", userID))),
		},
	}, nil
}

func (h *handlers) inputNote(ctx context.Context, req *dispatch.Request) (*dispatch.Result, error) {
	chatID, err := h.chatFor(ctx, req)
	if err != nil {
		return nil, err
	}
	userID, ok := req.Route.Int("u")
	if !ok {
		return nil, fmt.Errorf("membership: input-note without user id")
	}
	note := strings.TrimSpace(req.Text)
	if err := h.deps.Members.SetNote(ctx, chatID, userID, note); err != nil {
		return nil, fmt.Errorf("membership: set note: %w", err)
	}
	return &dispatch.Result{Response: reply.Send("Note saved.", nil)}, nil
}
