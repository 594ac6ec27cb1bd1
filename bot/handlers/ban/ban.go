// Package ban implements the in-group /ban command: replying to a message
// with /ban removes its author. The registry guard restricts it to active
// administrators; everyone else gets a silent acknowledgement.
package ban

import (
	"context"
	"fmt"

	"groupbot/bot/directory"
	"groupbot/core/dialog/dispatch"
	"groupbot/core/dialog/reply"
)

// Handler is the handler id the /ban command binds to.
const Handler = "ban"

// Deps are the collaborators the ban command needs.
type Deps struct {
	Members   directory.MemberDirectory
	Moderator directory.Moderator
}

// Register wires the ban handler into the registry.
func Register(reg *dispatch.Registry, deps Deps) error {
	h := &handlers{deps: deps}
	return reg.Register(Handler, h.ban)
}

type handlers struct {
	deps Deps
}

func (h *handlers) ban(ctx context.Context, req *dispatch.Request) (*dispatch.Result, error) {
	target := req.Event.ReplyTo
	if target == nil || target.UserID == 0 {
		return &dispatch.Result{
			Response: reply.Send("Reply to a message with /ban to remove its author.", nil),
		}, nil
	}
	if target.UserID == req.Key.UserID {
		return &dispatch.Result{Response: reply.Silent()}, nil
	}

	chatID := req.Event.ChatID
	member, found, err := h.deps.Members.Member(ctx, chatID, target.UserID)
	if err != nil {
		return nil, fmt.Errorf("ban: load member: %w", err)
	}
	// Administrators cannot ban each other.
	if found && (member.Role == directory.RoleAdministrator || member.Role == directory.RoleCreator) {
		return &dispatch.Result{Response: reply.Silent()}, nil
	}

	if err := h.deps.Moderator.Ban(ctx, chatID, target.UserID); err != nil {
		return nil, fmt.Errorf("ban: ban user %d: %w", target.UserID, err)
	}
	return &dispatch.Result{
		Response: reply.Send("User removed from the chat.", nil),
	}, nil
}
