// Package menu implements the root menu: the list of chats the user manages
// and the per-chat section panel. Selecting a chat stores it as the
// conversation's active chat so the settings panels know what they edit.
package menu

import (
	"context"
	"fmt"

	"groupbot/bot/directory"
	"groupbot/bot/handlers/administrators"
	"groupbot/bot/handlers/membership"
	"groupbot/bot/handlers/publisher"
	"groupbot/core/dialog/dispatch"
	"groupbot/core/dialog/reply"
	"groupbot/core/dialog/route"
)

const (
	HandlerIndex  = "menu"
	HandlerSelect = "menu/select"
)

// Deps are the collaborators the menu needs.
type Deps struct {
	Chats directory.ChatDirectory
}

// Register wires the menu handlers into the registry. HandlerIndex doubles
// as the root handler the "/" token resolves to.
func Register(reg *dispatch.Registry, deps Deps) error {
	h := &handlers{deps: deps}
	if err := reg.Register(HandlerIndex, h.index); err != nil {
		return err
	}
	return reg.Register(HandlerSelect, h.selectChat)
}

type handlers struct {
	deps Deps
}

func (h *handlers) index(ctx context.Context, req *dispatch.Request) (*dispatch.Result, error) {
	chats, err := h.deps.Chats.ChatsManagedBy(ctx, req.Key.UserID)
	if err != nil {
		return nil, fmt.Errorf("menu: list chats: %w", err)
	}
	if len(chats) == 0 {
		return &dispatch.Result{
			Response: reply.Send("You do not manage any chats yet.", nil),
		}, nil
	}

	grid := reply.NewGrid()
	for _, chat := range chats {
		grid.Add(route.New(HandlerSelect, route.Int("id", chat.ID)), chat.Title).EndRow()
	}
	rows, err := grid.Rows()
	if err != nil {
		return nil, fmt.Errorf("menu: build keyboard: %w", err)
	}
	return &dispatch.Result{
		Response: reply.Edit("Select a chat to manage:", rows),
	}, nil
}

func (h *handlers) selectChat(ctx context.Context, req *dispatch.Request) (*dispatch.Result, error) {
	id, ok := req.Route.Int("id")
	if !ok {
		return nil, fmt.Errorf("menu: select without chat id")
	}
	chat, found, err := h.deps.Chats.Chat(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("menu: load chat %d: %w", id, err)
	}
	if !found {
		// Stale button for a chat the bot no longer manages.
		return h.index(ctx, req)
	}

	rows, err := reply.NewGrid().
		Add(route.New(membership.HandlerIndex), "👥 Membership").EndRow().
		Add(route.New(publisher.HandlerIndex), "📬 Publisher").EndRow().
		Add(route.New(administrators.HandlerIndex), "🔑 Administrators").EndRow().
		Add(route.Root, "⬅️ Back").EndRow().
		Rows()
	if err != nil {
		return nil, fmt.Errorf("menu: build keyboard: %w", err)
	}
	return &dispatch.Result{
		Response: reply.Edit(fmt.Sprintf("Managing %s", chat.Title), rows),
		Directives: []dispatch.Directive{
			dispatch.SetContext(dispatch.ContextFieldChat, chat.ID),
		},
	}, nil
}
