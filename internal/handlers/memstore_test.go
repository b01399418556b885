package handlers

import (
	"context"
	"sort"
	"sync"
	"time"

	"englishmastery/internal/models"
	"englishmastery/internal/repository"
)

// In-memory stores backing the services in handler tests.

type memUsers struct {
	mu    sync.Mutex
	users map[string]models.UserWithProfile
}

func newMemUsers() *memUsers {
	return &memUsers{users: map[string]models.UserWithProfile{}}
}

func (m *memUsers) EnsureFromIdentity(_ context.Context, id, email string, role models.UserRole) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		return u.User, nil
	}
	u := models.UserWithProfile{User: models.User{ID: id, Email: email, Role: role, Status: models.UserStatusApproved, IsActive: true, Level: 1}}
	u.Profile.UserID = id
	m.users[id] = u
	return u.User, nil
}

func (m *memUsers) GetByID(ctx context.Context, id string) (models.User, error) {
	u, err := m.GetWithProfile(ctx, id)
	return u.User, err
}

func (m *memUsers) GetWithProfile(_ context.Context, id string) (models.UserWithProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return models.UserWithProfile{}, repository.ErrUserNotFound
	}
	return u, nil
}

func (m *memUsers) CountExisting(_ context.Context, ids []string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, id := range ids {
		if u, ok := m.users[id]; ok && u.User.IsActive {
			n++
		}
	}
	return n, nil
}

func (m *memUsers) TouchActivity(context.Context, string, time.Time) error { return nil }

func (m *memUsers) update(id string, fn func(*models.UserWithProfile)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	fn(&u)
	m.users[id] = u
	return nil
}

func (m *memUsers) UpdateStatus(_ context.Context, id string, status models.UserStatus) error {
	return m.update(id, func(u *models.UserWithProfile) { u.User.Status = status })
}

func (m *memUsers) UpdateRole(_ context.Context, id string, role models.UserRole) error {
	return m.update(id, func(u *models.UserWithProfile) { u.User.Role = role })
}

func (m *memUsers) SetActive(_ context.Context, id string, active bool) error {
	return m.update(id, func(u *models.UserWithProfile) { u.User.IsActive = active })
}

func (m *memUsers) List(context.Context, repository.UserFilter) ([]models.UserWithProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.UserWithProfile, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].User.ID < out[j].User.ID })
	return out, nil
}

func (m *memUsers) Upsert(_ context.Context, p models.Profile) error {
	return m.update(p.UserID, func(u *models.UserWithProfile) {
		if p.FullName != nil {
			u.Profile.FullName = p.FullName
		}
		if p.Username != nil {
			u.Profile.Username = p.Username
		}
		if p.AvatarURL != nil {
			u.Profile.AvatarURL = p.AvatarURL
		}
		if p.Bio != nil {
			u.Profile.Bio = p.Bio
		}
	})
}

type memMessages struct {
	mu   sync.Mutex
	msgs []models.Message
	// afterList runs after every ListByConversation, outside the lock.
	afterList func()
}

func (m *memMessages) Create(_ context.Context, msg models.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgs = append(m.msgs, msg)
	return nil
}

func (m *memMessages) ListByConversation(ctx context.Context, conversationID string, limit, offset int) ([]models.Message, error) {
	out, err := m.list(conversationID, limit, offset)
	m.mu.Lock()
	hook := m.afterList
	m.mu.Unlock()
	if hook != nil {
		hook()
	}
	return out, err
}

func (m *memMessages) list(conversationID string, limit, offset int) ([]models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Message
	for i := len(m.msgs) - 1; i >= 0; i-- {
		if m.msgs[i].ConversationID == conversationID {
			out = append(out, m.msgs[i])
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memMessages) UnreadCount(_ context.Context, conversationID, viewerID string, lastReadAt *time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, msg := range m.msgs {
		if msg.ConversationID != conversationID || msg.SenderID == viewerID {
			continue
		}
		if lastReadAt == nil || msg.CreatedAt.After(*lastReadAt) {
			n++
		}
	}
	return n, nil
}

type memConversations struct {
	mu       sync.Mutex
	convs    map[string]models.Conversation
	parts    map[string][]models.ConversationParticipant
	users    *memUsers
	messages *memMessages
}

func newMemConversations(users *memUsers, messages *memMessages) *memConversations {
	return &memConversations{
		convs:    map[string]models.Conversation{},
		parts:    map[string][]models.ConversationParticipant{},
		users:    users,
		messages: messages,
	}
}

func (m *memConversations) CreateWithParticipants(_ context.Context, conv models.Conversation, participants []models.ConversationParticipant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.convs[conv.ID] = conv
	m.parts[conv.ID] = append([]models.ConversationParticipant(nil), participants...)
	return nil
}

func (m *memConversations) GetByID(_ context.Context, id string) (models.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.convs[id]
	if !ok {
		return models.Conversation{}, repository.ErrConversationNotFound
	}
	return c, nil
}

func (m *memConversations) FindDirect(context.Context, string, string) (models.Conversation, error) {
	return models.Conversation{}, repository.ErrConversationNotFound
}

func (m *memConversations) ListMemberships(_ context.Context, userID string) ([]repository.Membership, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []repository.Membership
	for id, parts := range m.parts {
		for _, p := range parts {
			if p.UserID == userID {
				out = append(out, repository.Membership{Conversation: m.convs[id], Self: p})
			}
		}
	}
	return out, nil
}

func (m *memConversations) ListCoParticipants(ctx context.Context, conversationIDs []string, exclude string) ([]repository.ParticipantIdentity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []repository.ParticipantIdentity
	for _, id := range conversationIDs {
		for _, p := range m.parts[id] {
			if p.UserID == exclude {
				continue
			}
			u, _ := m.users.GetWithProfile(ctx, p.UserID)
			out = append(out, repository.ParticipantIdentity{Participant: p, User: u})
		}
	}
	return out, nil
}

func (m *memConversations) GetParticipant(_ context.Context, conversationID, userID string) (models.ConversationParticipant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.parts[conversationID] {
		if p.UserID == userID {
			return p, nil
		}
	}
	return models.ConversationParticipant{}, repository.ErrParticipantNotFound
}

func (m *memConversations) MarkRead(_ context.Context, conversationID, userID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, p := range m.parts[conversationID] {
		if p.UserID == userID {
			t := at
			m.parts[conversationID][i].LastReadAt = &t
			return nil
		}
	}
	return repository.ErrParticipantNotFound
}

func (m *memConversations) UpdateStatus(_ context.Context, id string, status models.ConversationStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.convs[id]
	if !ok {
		return repository.ErrConversationNotFound
	}
	c.Status = status
	m.convs[id] = c
	return nil
}

func (m *memConversations) TouchLastMessage(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.convs[id]
	t := at
	c.LastMessageAt = &t
	m.convs[id] = c
	return nil
}

func (m *memConversations) UnreadCounts(ctx context.Context, userID string, conversationIDs []string) (map[string]int, error) {
	out := map[string]int{}
	for _, id := range conversationIDs {
		p, err := m.GetParticipant(ctx, id, userID)
		if err != nil {
			continue
		}
		n, _ := m.messages.UnreadCount(ctx, id, userID, p.LastReadAt)
		out[id] = n
	}
	return out, nil
}
