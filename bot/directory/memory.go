package directory

import (
	"context"
	"sort"
	"sync"
)

// Memory is an in-memory implementation of all directory ports. It backs
// tests and serves as the default wiring until a real backend is attached.
type Memory struct {
	mu       sync.RWMutex
	chats    map[int64]Chat
	settings map[int64]Settings
	members  map[int64]map[int64]Member
	posts    map[int64][]Post
	managers map[int64][]int64
	banned   map[int64][]int64
	nextPost int64
}

// NewMemory creates an empty in-memory directory.
func NewMemory() *Memory {
	return &Memory{
		chats:    make(map[int64]Chat),
		settings: make(map[int64]Settings),
		members:  make(map[int64]map[int64]Member),
		posts:    make(map[int64][]Post),
		managers: make(map[int64][]int64),
		banned:   make(map[int64][]int64),
		nextPost: 1,
	}
}

// AddChat registers a chat and the user who manages it.
func (m *Memory) AddChat(chat Chat, managerID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chats[chat.ID] = chat
	m.managers[managerID] = append(m.managers[managerID], chat.ID)
}

// AddMember stores a membership record.
func (m *Memory) AddMember(chatID int64, member Member) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.members[chatID] == nil {
		m.members[chatID] = make(map[int64]Member)
	}
	m.members[chatID][member.UserID] = member
}

func (m *Memory) ChatsManagedBy(_ context.Context, userID int64) ([]Chat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := m.managers[userID]
	chats := make([]Chat, 0, len(ids))
	for _, id := range ids {
		if chat, ok := m.chats[id]; ok {
			chats = append(chats, chat)
		}
	}
	sort.Slice(chats, func(i, j int) bool { return chats[i].ID < chats[j].ID })
	return chats, nil
}

func (m *Memory) Chat(_ context.Context, chatID int64) (Chat, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	chat, ok := m.chats[chatID]
	return chat, ok, nil
}

func (m *Memory) Settings(_ context.Context, chatID int64) (Settings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings[chatID], nil
}

func (m *Memory) SetEnabled(_ context.Context, chatID int64, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.settings[chatID]
	s.Enabled = enabled
	m.settings[chatID] = s
	return nil
}

func (m *Memory) SetMemberTag(_ context.Context, chatID int64, tag string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.settings[chatID]
	s.MemberTag = tag
	m.settings[chatID] = s
	return nil
}

func (m *Memory) Member(_ context.Context, chatID, userID int64) (Member, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	member, ok := m.members[chatID][userID]
	return member, ok, nil
}

func (m *Memory) Members(_ context.Context, chatID int64, offset, limit int) ([]Member, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	all := make([]Member, 0, len(m.members[chatID]))
	for _, member := range m.members[chatID] {
		all = append(all, member)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].UserID < all[j].UserID })

	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (m *Memory) Administrators(_ context.Context, chatID int64, offset, limit int) ([]Member, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	all := make([]Member, 0, len(m.members[chatID]))
	for _, member := range m.members[chatID] {
		if member.Role == RoleAdministrator || member.Role == RoleCreator {
			all = append(all, member)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].UserID < all[j].UserID })

	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (m *Memory) SetNote(_ context.Context, chatID, userID int64, note string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	member, ok := m.members[chatID][userID]
	if !ok {
		member = Member{UserID: userID}
	}
	member.Note = note
	if m.members[chatID] == nil {
		m.members[chatID] = make(map[int64]Member)
	}
	m.members[chatID][userID] = member
	return nil
}

func (m *Memory) SetActive(_ context.Context, chatID, userID int64, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	member, ok := m.members[chatID][userID]
	if !ok {
		return nil
	}
	member.Active = active
	m.members[chatID][userID] = member
	return nil
}

func (m *Memory) Posts(_ context.Context, chatID int64, offset, limit int) ([]Post, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	all := m.posts[chatID]
	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	window := make([]Post, end-offset)
	copy(window, all[offset:end])
	return window, total, nil
}

func (m *Memory) Post(_ context.Context, chatID, postID int64) (Post, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.posts[chatID] {
		if p.ID == postID {
			return p, true, nil
		}
	}
	return Post{}, false, nil
}

func (m *Memory) AddPost(_ context.Context, chatID int64, text string) (Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := Post{ID: m.nextPost, Text: text}
	m.nextPost++
	m.posts[chatID] = append(m.posts[chatID], p)
	return p, nil
}

func (m *Memory) SetPostTime(_ context.Context, chatID, postID int64, at string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, p := range m.posts[chatID] {
		if p.ID == postID {
			m.posts[chatID][i].At = at
			return nil
		}
	}
	return nil
}

func (m *Memory) Ban(_ context.Context, chatID, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.banned[chatID] = append(m.banned[chatID], userID)
	delete(m.members[chatID], userID)
	return nil
}

// Banned lists the users banned from a chat, oldest first.
func (m *Memory) Banned(chatID int64) []int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]int64, len(m.banned[chatID]))
	copy(out, m.banned[chatID])
	return out
}
