// Package bot wires the dialog layer to the transport and collaborators:
// configuration, state backend selection, handler registration, and guards.
package bot

import (
	"context"

	"groupbot/bot/directory"
	"groupbot/core/dialog/access"
)

// ActiveAdministrator allows only users who are active administrators (or
// the creator) of the resolved target chat.
func ActiveAdministrator(members directory.MemberDirectory) access.Filter {
	return func(ctx context.Context, subject access.Subject) access.Decision {
		if subject.ChatID == 0 {
			return access.Deny(access.ReasonNoActiveChat)
		}
		member, ok, err := members.Member(ctx, subject.ChatID, subject.Key.UserID)
		if err != nil || !ok || !member.Active {
			return access.Deny(access.ReasonNotAdmin)
		}
		if member.Role != directory.RoleAdministrator && member.Role != directory.RoleCreator {
			return access.Deny(access.ReasonNotAdmin)
		}
		return access.Allow()
	}
}

// ChatCreator allows only the creator of the resolved target chat.
func ChatCreator(members directory.MemberDirectory) access.Filter {
	return func(ctx context.Context, subject access.Subject) access.Decision {
		if subject.ChatID == 0 {
			return access.Deny(access.ReasonNoActiveChat)
		}
		member, ok, err := members.Member(ctx, subject.ChatID, subject.Key.UserID)
		if err != nil || !ok || !member.Active {
			return access.Deny(access.ReasonNotCreator)
		}
		if member.Role != directory.RoleCreator {
			return access.Deny(access.ReasonNotCreator)
		}
		return access.Allow()
	}
}
