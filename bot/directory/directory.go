// Package directory defines the read-mostly collaborator ports the dialog
// handlers act through: managed chats and their settings, group membership,
// scheduled posts, and moderation. Implementations live outside the dialog
// layer; tests use the in-memory one.
package directory

import "context"

// Chat is a group the bot manages.
type Chat struct {
	ID    int64
	Title string
}

// Settings are the per-chat membership settings the panel edits.
type Settings struct {
	Enabled   bool
	MemberTag string
}

// Role is the standing of a user inside a chat.
type Role string

const (
	RoleMember        Role = "member"
	RoleAdministrator Role = "administrator"
	RoleCreator       Role = "creator"
)

// Member is one user's membership record in a chat.
type Member struct {
	UserID int64
	Name   string
	Role   Role
	Active bool
	Note   string
}

// Post is a scheduled publication in a chat.
type Post struct {
	ID   int64
	Text string
	// At is the publish time in HH:MM, empty until set.
	At string
}

// ChatDirectory exposes managed chats and their settings.
type ChatDirectory interface {
	ChatsManagedBy(ctx context.Context, userID int64) ([]Chat, error)
	Chat(ctx context.Context, chatID int64) (Chat, bool, error)
	Settings(ctx context.Context, chatID int64) (Settings, error)
	SetEnabled(ctx context.Context, chatID int64, enabled bool) error
	SetMemberTag(ctx context.Context, chatID int64, tag string) error
}

// MemberDirectory exposes membership records. Members and Administrators
// return one window of the list plus the total count for pagination.
type MemberDirectory interface {
	Member(ctx context.Context, chatID, userID int64) (Member, bool, error)
	Members(ctx context.Context, chatID int64, offset, limit int) ([]Member, int, error)
	Administrators(ctx context.Context, chatID int64, offset, limit int) ([]Member, int, error)
	SetNote(ctx context.Context, chatID, userID int64, note string) error
	SetActive(ctx context.Context, chatID, userID int64, active bool) error
}

// PostDirectory exposes scheduled posts per chat.
type PostDirectory interface {
	Posts(ctx context.Context, chatID int64, offset, limit int) ([]Post, int, error)
	Post(ctx context.Context, chatID, postID int64) (Post, bool, error)
	AddPost(ctx context.Context, chatID int64, text string) (Post, error)
	SetPostTime(ctx context.Context, chatID, postID int64, at string) error
}

// Moderator performs moderation effects against the platform.
type Moderator interface {
	Ban(ctx context.Context, chatID, userID int64) error
}
