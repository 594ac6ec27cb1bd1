package bot

import (
	"context"
	"strings"
	"testing"

	"groupbot/bot/directory"
	coreconfig "groupbot/core/config"
	"groupbot/core/dialog/dispatch"
	"groupbot/core/dialog/reply"
)

const (
	chatID     = int64(10)
	creatorID  = int64(5)
	adminID    = int64(7)
	memberID   = int64(8)
	outsiderID = int64(99)
)

func newTestApp(t *testing.T) (*App, *directory.Memory) {
	t.Helper()

	dir := directory.NewMemory()
	dir.AddChat(directory.Chat{ID: chatID, Title: "Go Devs"}, adminID)
	dir.AddMember(chatID, directory.Member{
		UserID: creatorID, Name: "Olga", Role: directory.RoleCreator, Active: true,
	})
	dir.AddMember(chatID, directory.Member{
		UserID: adminID, Name: "Ann", Role: directory.RoleAdministrator, Active: true,
	})
	dir.AddMember(chatID, directory.Member{
		UserID: memberID, Name: "Bob", Role: directory.RoleMember, Active: true,
	})

	cfg := &Config{}
	cfg.Telegram.Token = "42:test"
	cfg.Dialog.PageSize = 9
	cfg.Dialog.StateTTLHours = 1
	cfg.Dialog.StateBackend = coreconfig.StateBackendMemory

	app, err := New(cfg, Collaborators{Chats: dir, Members: dir, Posts: dir, Moderator: dir})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	return app, dir
}

func callback(userID int64, token string) dispatch.Event {
	// Private conversations have chat id equal to the user id.
	return dispatch.Event{ChatID: userID, UserID: userID, Callback: token}
}

func text(userID int64, payload string) dispatch.Event {
	return dispatch.Event{ChatID: userID, UserID: userID, Text: payload}
}

func visible(res *reply.Response, t *testing.T) *reply.Response {
	t.Helper()
	if res == nil || res.SilentAck {
		t.Fatalf("expected a visible response, got %+v", res)
	}
	return res
}

func TestRootMenuListsManagedChats(t *testing.T) {
	app, _ := newTestApp(t)

	res := visible(app.Dispatcher().Dispatch(context.Background(), callback(adminID, "/")), t)
	if !strings.Contains(res.Text, "Select a chat") {
		t.Fatalf("text = %q", res.Text)
	}
	if len(res.Keyboard) != 1 || res.Keyboard[0][0].Label != "Go Devs" {
		t.Fatalf("keyboard = %+v", res.Keyboard)
	}
	if res.Keyboard[0][0].Token != "menu/select?id=10" {
		t.Fatalf("token = %q", res.Keyboard[0][0].Token)
	}
}

func TestRootMenuWithoutChats(t *testing.T) {
	app, _ := newTestApp(t)

	res := visible(app.Dispatcher().Dispatch(context.Background(), callback(outsiderID, "/")), t)
	if len(res.Keyboard) != 0 {
		t.Fatalf("expected empty keyboard, got %+v", res.Keyboard)
	}
}

func TestSelectChatStoresActiveChat(t *testing.T) {
	app, _ := newTestApp(t)
	ctx := context.Background()

	res := visible(app.Dispatcher().Dispatch(ctx, callback(adminID, "menu/select?id=10")), t)
	if !strings.Contains(res.Text, "Go Devs") {
		t.Fatalf("text = %q", res.Text)
	}

	// The settings panel finds the chat through conversation context.
	res = visible(app.Dispatcher().Dispatch(ctx, callback(adminID, "group-membership/index")), t)
	if !strings.Contains(res.Text, "Membership settings") {
		t.Fatalf("text = %q", res.Text)
	}
}

func TestMembershipPanelDeniedForNonAdmin(t *testing.T) {
	app, _ := newTestApp(t)

	res := app.Dispatcher().Dispatch(context.Background(), callback(memberID, "group-membership/index"))
	if !res.SilentAck {
		t.Fatalf("expected silent ack, got %+v", res)
	}
}

func TestToggleMembershipStatus(t *testing.T) {
	app, dir := newTestApp(t)
	ctx := context.Background()

	visible(app.Dispatcher().Dispatch(ctx, callback(adminID, "menu/select?id=10")), t)
	res := visible(app.Dispatcher().Dispatch(ctx, callback(adminID, "group-membership/set-status?v=on")), t)
	if !strings.Contains(res.Text, "Status: on") {
		t.Fatalf("text = %q", res.Text)
	}
	settings, _ := dir.Settings(ctx, chatID)
	if !settings.Enabled {
		t.Fatal("settings not enabled")
	}
}

func TestSetTagFlow(t *testing.T) {
	app, dir := newTestApp(t)
	ctx := context.Background()

	visible(app.Dispatcher().Dispatch(ctx, callback(adminID, "menu/select?id=10")), t)
	res := visible(app.Dispatcher().Dispatch(ctx, callback(adminID, "group-membership/set-tag")), t)
	if !strings.Contains(res.Text, "member tag") {
		t.Fatalf("prompt = %q", res.Text)
	}
	if !res.ForceReply {
		t.Fatal("prompt must ask for a reply")
	}

	res = visible(app.Dispatcher().Dispatch(ctx, text(adminID, "VIP crew")), t)
	if !strings.Contains(res.Text, "VIP crew") {
		t.Fatalf("text = %q", res.Text)
	}
	settings, _ := dir.Settings(ctx, chatID)
	if settings.MemberTag != "VIP crew" {
		t.Fatalf("tag = %q", settings.MemberTag)
	}

	// Input consumed: the next text no longer routes anywhere.
	res = app.Dispatcher().Dispatch(ctx, text(adminID, "again"))
	if !res.SilentAck {
		t.Fatalf("expected silent ack, got %+v", res)
	}
}

func TestSetTagRejectsEmptyAndKeepsAwaiting(t *testing.T) {
	app, dir := newTestApp(t)
	ctx := context.Background()

	visible(app.Dispatcher().Dispatch(ctx, callback(adminID, "menu/select?id=10")), t)
	visible(app.Dispatcher().Dispatch(ctx, callback(adminID, "group-membership/set-tag")), t)

	res := visible(app.Dispatcher().Dispatch(ctx, text(adminID, "   ")), t)
	if !strings.Contains(res.Text, "try again") {
		t.Fatalf("text = %q", res.Text)
	}

	visible(app.Dispatcher().Dispatch(ctx, text(adminID, "Regulars")), t)
	settings, _ := dir.Settings(ctx, chatID)
	if settings.MemberTag != "Regulars" {
		t.Fatalf("tag = %q", settings.MemberTag)
	}
}

func TestSetMemberNoteFlow(t *testing.T) {
	app, dir := newTestApp(t)
	ctx := context.Background()

	visible(app.Dispatcher().Dispatch(ctx, callback(adminID, "menu/select?id=10")), t)
	res := visible(app.Dispatcher().Dispatch(ctx, callback(adminID, "group-membership/set-note?u=8")), t)
	if !strings.Contains(res.Text, "note") {
		t.Fatalf("prompt = %q", res.Text)
	}

	visible(app.Dispatcher().Dispatch(ctx, text(adminID, "late payer")), t)
	member, _, _ := dir.Member(ctx, chatID, memberID)
	if member.Note != "late payer" {
		t.Fatalf("note = %q", member.Note)
	}
}

func TestMembersListPagination(t *testing.T) {
	app, dir := newTestApp(t)
	ctx := context.Background()
	for i := int64(100); i < 110; i++ {
		dir.AddMember(chatID, directory.Member{UserID: i, Name: "m", Role: directory.RoleMember, Active: true})
	}

	visible(app.Dispatcher().Dispatch(ctx, callback(adminID, "menu/select?id=10")), t)
	res := visible(app.Dispatcher().Dispatch(ctx, callback(adminID, "group-membership/members")), t)
	if !strings.Contains(res.Text, "page 1 of 2") {
		t.Fatalf("text = %q", res.Text)
	}
	if got := countButtons(res); got != 9+1+1 { // members + next + back
		t.Fatalf("buttons = %d", got)
	}

	res = visible(app.Dispatcher().Dispatch(ctx, callback(adminID, "group-membership/members?page=2")), t)
	if !strings.Contains(res.Text, "page 2 of 2") {
		t.Fatalf("text = %q", res.Text)
	}

	// Page far out of range clamps to the last page.
	res = visible(app.Dispatcher().Dispatch(ctx, callback(adminID, "group-membership/members?page=50")), t)
	if !strings.Contains(res.Text, "page 2 of 2") {
		t.Fatalf("text = %q", res.Text)
	}
}

func countButtons(res *reply.Response) int {
	n := 0
	for _, row := range res.Keyboard {
		n += len(row)
	}
	return n
}

func TestPublisherAddAndScheduleFlow(t *testing.T) {
	app, dir := newTestApp(t)
	ctx := context.Background()

	visible(app.Dispatcher().Dispatch(ctx, callback(adminID, "menu/select?id=10")), t)
	visible(app.Dispatcher().Dispatch(ctx, callback(adminID, "group-publisher/add")), t)
	res := visible(app.Dispatcher().Dispatch(ctx, text(adminID, "Weekly digest")), t)
	if !strings.Contains(res.Text, "Post #1 saved") {
		t.Fatalf("text = %q", res.Text)
	}

	visible(app.Dispatcher().Dispatch(ctx, callback(adminID, "group-publisher/set-time?p=1")), t)
	res = visible(app.Dispatcher().Dispatch(ctx, text(adminID, "not a time")), t)
	if !strings.Contains(res.Text, "try again") {
		t.Fatalf("text = %q", res.Text)
	}

	// Still awaiting: a valid time now lands.
	visible(app.Dispatcher().Dispatch(ctx, text(adminID, "09:30")), t)
	post, _, _ := dir.Post(ctx, chatID, 1)
	if post.At != "09:30" {
		t.Fatalf("at = %q", post.At)
	}
}

func TestBanViaReply(t *testing.T) {
	app, dir := newTestApp(t)
	ctx := context.Background()

	ev := dispatch.Event{
		ChatID:   chatID,
		UserID:   adminID,
		Callback: "ban",
		ReplyTo:  &dispatch.ReplyRef{MessageID: 5, UserID: memberID},
	}
	res := visible(app.Dispatcher().Dispatch(ctx, ev), t)
	if !strings.Contains(res.Text, "removed") {
		t.Fatalf("text = %q", res.Text)
	}
	banned := dir.Banned(chatID)
	if len(banned) != 1 || banned[0] != memberID {
		t.Fatalf("banned = %v", banned)
	}
}

func TestBanDeniedForNonAdmin(t *testing.T) {
	app, dir := newTestApp(t)

	ev := dispatch.Event{
		ChatID:   chatID,
		UserID:   memberID,
		Callback: "ban",
		ReplyTo:  &dispatch.ReplyRef{MessageID: 5, UserID: adminID},
	}
	res := app.Dispatcher().Dispatch(context.Background(), ev)
	if !res.SilentAck {
		t.Fatalf("expected silent ack, got %+v", res)
	}
	if len(dir.Banned(chatID)) != 0 {
		t.Fatal("ban must not happen")
	}
}

func TestBanWithoutReplyExplains(t *testing.T) {
	app, _ := newTestApp(t)

	ev := dispatch.Event{ChatID: chatID, UserID: adminID, Callback: "ban"}
	res := visible(app.Dispatcher().Dispatch(context.Background(), ev), t)
	if !strings.Contains(res.Text, "Reply to a message") {
		t.Fatalf("text = %q", res.Text)
	}
}

func buttonLabels(res *reply.Response) []string {
	var labels []string
	for _, row := range res.Keyboard {
		for _, b := range row {
			labels = append(labels, b.Label)
		}
	}
	return labels
}

func TestAdministratorsPanelCreatorOnly(t *testing.T) {
	app, _ := newTestApp(t)
	ctx := context.Background()

	visible(app.Dispatcher().Dispatch(ctx, callback(adminID, "menu/select?id=10")), t)
	res := app.Dispatcher().Dispatch(ctx, callback(adminID, "group-administrators/index"))
	if !res.SilentAck {
		t.Fatalf("expected silent ack for non-creator, got %+v", res)
	}

	visible(app.Dispatcher().Dispatch(ctx, callback(creatorID, "menu/select?id=10")), t)
	res = visible(app.Dispatcher().Dispatch(ctx, callback(creatorID, "group-administrators/index")), t)
	if !strings.Contains(res.Text, "Administrators") {
		t.Fatalf("text = %q", res.Text)
	}
	labels := buttonLabels(res)
	if len(labels) != 3 || labels[0] != "👑 Olga" || labels[1] != "✅ Ann" {
		t.Fatalf("labels = %v", labels)
	}
	if res.Keyboard[1][0].Token != "group-administrators/set?u=7" {
		t.Fatalf("token = %q", res.Keyboard[1][0].Token)
	}
}

func TestToggleAdministratorActive(t *testing.T) {
	app, dir := newTestApp(t)
	ctx := context.Background()

	visible(app.Dispatcher().Dispatch(ctx, callback(creatorID, "menu/select?id=10")), t)
	res := visible(app.Dispatcher().Dispatch(ctx, callback(creatorID, "group-administrators/set?u=7")), t)
	if labels := buttonLabels(res); labels[1] != "☑️ Ann" {
		t.Fatalf("labels = %v", labels)
	}
	member, _, _ := dir.Member(ctx, chatID, adminID)
	if member.Active {
		t.Fatal("administrator still active after toggle")
	}

	// A deactivated administrator loses the guarded panels.
	denied := app.Dispatcher().Dispatch(ctx, callback(adminID, "group-membership/index?id=10"))
	if !denied.SilentAck {
		t.Fatalf("expected silent ack, got %+v", denied)
	}

	res = visible(app.Dispatcher().Dispatch(ctx, callback(creatorID, "group-administrators/set?u=7")), t)
	if labels := buttonLabels(res); labels[1] != "✅ Ann" {
		t.Fatalf("labels = %v", labels)
	}
	member, _, _ = dir.Member(ctx, chatID, adminID)
	if !member.Active {
		t.Fatal("administrator not reactivated")
	}
}

func TestCreatorRowCannotBeToggled(t *testing.T) {
	app, dir := newTestApp(t)
	ctx := context.Background()

	visible(app.Dispatcher().Dispatch(ctx, callback(creatorID, "menu/select?id=10")), t)
	res := app.Dispatcher().Dispatch(ctx, callback(creatorID, "group-administrators/set?u=5"))
	if !res.SilentAck {
		t.Fatalf("expected silent ack, got %+v", res)
	}
	member, _, _ := dir.Member(ctx, chatID, creatorID)
	if !member.Active {
		t.Fatal("creator must stay active")
	}
}

func TestBanSparesAdministrators(t *testing.T) {
	app, dir := newTestApp(t)
	dir.AddMember(chatID, directory.Member{
		UserID: 44, Name: "Cid", Role: directory.RoleCreator, Active: true,
	})

	ev := dispatch.Event{
		ChatID:   chatID,
		UserID:   adminID,
		Callback: "ban",
		ReplyTo:  &dispatch.ReplyRef{MessageID: 5, UserID: 44},
	}
	res := app.Dispatcher().Dispatch(context.Background(), ev)
	if !res.SilentAck {
		t.Fatalf("expected silent ack, got %+v", res)
	}
	if len(dir.Banned(chatID)) != 0 {
		t.Fatal("creator must not be banned")
	}
}
