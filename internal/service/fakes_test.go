package service

import (
	"bytes"
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"englishmastery/internal/models"
	"englishmastery/internal/realtime"
	"englishmastery/internal/repository"
	"englishmastery/internal/storage"
)

type fakeUsers struct {
	mu      sync.Mutex
	users   map[string]models.UserWithProfile
	touched map[string]time.Time
	err     error
}

func newFakeUsers(users ...models.UserWithProfile) *fakeUsers {
	f := &fakeUsers{users: map[string]models.UserWithProfile{}, touched: map[string]time.Time{}}
	for _, u := range users {
		u.Profile.UserID = u.User.ID
		f.users[u.User.ID] = u
	}
	return f
}

func member(id, email string) models.UserWithProfile {
	return models.UserWithProfile{User: models.User{ID: id, Email: email, Role: models.UserRoleMember, Status: models.UserStatusApproved, IsActive: true}}
}

func strPtr(s string) *string { return &s }

func (f *fakeUsers) EnsureFromIdentity(_ context.Context, id, email string, role models.UserRole) (models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return models.User{}, f.err
	}
	if u, ok := f.users[id]; ok {
		return u.User, nil
	}
	u := models.UserWithProfile{User: models.User{ID: id, Email: email, Role: role, Status: models.UserStatusPending, IsActive: true, Level: 1}}
	u.Profile.UserID = id
	f.users[id] = u
	return u.User, nil
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return models.User{}, f.err
	}
	u, ok := f.users[id]
	if !ok {
		return models.User{}, repository.ErrUserNotFound
	}
	return u.User, nil
}

func (f *fakeUsers) GetWithProfile(_ context.Context, id string) (models.UserWithProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return models.UserWithProfile{}, repository.ErrUserNotFound
	}
	return u, nil
}

func (f *fakeUsers) CountExisting(_ context.Context, ids []string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, id := range ids {
		if u, ok := f.users[id]; ok && u.User.IsActive {
			n++
		}
	}
	return n, nil
}

func (f *fakeUsers) TouchActivity(_ context.Context, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touched[id] = at
	return nil
}

func (f *fakeUsers) update(id string, fn func(*models.UserWithProfile)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	fn(&u)
	f.users[id] = u
	return nil
}

func (f *fakeUsers) UpdateStatus(_ context.Context, id string, status models.UserStatus) error {
	return f.update(id, func(u *models.UserWithProfile) { u.User.Status = status })
}

func (f *fakeUsers) UpdateRole(_ context.Context, id string, role models.UserRole) error {
	return f.update(id, func(u *models.UserWithProfile) { u.User.Role = role })
}

func (f *fakeUsers) SetActive(_ context.Context, id string, active bool) error {
	return f.update(id, func(u *models.UserWithProfile) { u.User.IsActive = active })
}

func (f *fakeUsers) List(_ context.Context, filter repository.UserFilter) ([]models.UserWithProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.UserWithProfile
	for _, u := range f.users {
		if filter.Role != "" && u.User.Role != filter.Role {
			continue
		}
		if filter.Status != "" && u.User.Status != filter.Status {
			continue
		}
		if filter.IsActive != nil && u.User.IsActive != *filter.IsActive {
			continue
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].User.ID < out[j].User.ID })
	return out, nil
}

// Upsert makes fakeUsers a ProfileStore as well.
func (f *fakeUsers) Upsert(_ context.Context, p models.Profile) error {
	f.mu.Lock()
	if p.Username != nil {
		for id, other := range f.users {
			if id != p.UserID && other.Profile.Username != nil && *other.Profile.Username == *p.Username {
				f.mu.Unlock()
				return repository.ErrUsernameTaken
			}
		}
	}
	f.mu.Unlock()

	return f.update(p.UserID, func(u *models.UserWithProfile) {
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

// fakeMessages keeps messages in insertion order.
type fakeMessages struct {
	mu   sync.Mutex
	msgs []models.Message
}

func (f *fakeMessages) Create(_ context.Context, msg models.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msg)
	return nil
}

func (f *fakeMessages) ListByConversation(_ context.Context, conversationID string, limit, offset int) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Message
	for _, m := range f.msgs {
		if m.ConversationID == conversationID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeMessages) UnreadCount(_ context.Context, conversationID, viewerID string, lastReadAt *time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	since := time.Unix(0, 0).UTC()
	if lastReadAt != nil {
		since = *lastReadAt
	}
	n := 0
	for _, m := range f.msgs {
		if m.ConversationID == conversationID && m.SenderID != viewerID && m.CreatedAt.After(since) {
			n++
		}
	}
	return n, nil
}

type fakeConversations struct {
	mu       sync.Mutex
	convs    map[string]models.Conversation
	parts    map[string][]models.ConversationParticipant
	users    *fakeUsers
	messages *fakeMessages

	// duplicateRows mimics a join that returns the same row more than once.
	duplicateRows bool
	coErr         error
}

func newFakeConversations(users *fakeUsers, messages *fakeMessages) *fakeConversations {
	return &fakeConversations{
		convs:    map[string]models.Conversation{},
		parts:    map[string][]models.ConversationParticipant{},
		users:    users,
		messages: messages,
	}
}

func (f *fakeConversations) add(conv models.Conversation, owner string, members ...string) {
	_ = f.CreateWithParticipants(context.Background(), conv, participantsFor(conv.ID, owner, members...))
}

func participantsFor(convID, owner string, members ...string) []models.ConversationParticipant {
	out := []models.ConversationParticipant{{ConversationID: convID, UserID: owner, Role: models.ParticipantRoleOwner}}
	for _, m := range members {
		out = append(out, models.ConversationParticipant{ConversationID: convID, UserID: m, Role: models.ParticipantRoleMember})
	}
	return out
}

func (f *fakeConversations) CreateWithParticipants(_ context.Context, conv models.Conversation, participants []models.ConversationParticipant) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if conv.Status == "" {
		conv.Status = models.ConversationStatusActive
	}
	f.convs[conv.ID] = conv
	for _, p := range participants {
		dup := false
		for _, existing := range f.parts[conv.ID] {
			if existing.UserID == p.UserID {
				dup = true
			}
		}
		if !dup {
			f.parts[conv.ID] = append(f.parts[conv.ID], p)
		}
	}
	return nil
}

func (f *fakeConversations) GetByID(_ context.Context, id string) (models.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.convs[id]
	if !ok {
		return models.Conversation{}, repository.ErrConversationNotFound
	}
	return c, nil
}

func (f *fakeConversations) FindDirect(_ context.Context, a, b string) (models.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, parts := range f.parts {
		if len(parts) != 2 || f.convs[id].Status != models.ConversationStatusActive {
			continue
		}
		has := map[string]bool{parts[0].UserID: true, parts[1].UserID: true}
		if has[a] && has[b] {
			return f.convs[id], nil
		}
	}
	return models.Conversation{}, repository.ErrConversationNotFound
}

func (f *fakeConversations) ListMemberships(_ context.Context, userID string) ([]repository.Membership, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []repository.Membership
	for id, parts := range f.parts {
		for _, p := range parts {
			if p.UserID != userID {
				continue
			}
			m := repository.Membership{Conversation: f.convs[id], Self: p}
			out = append(out, m)
			if f.duplicateRows {
				out = append(out, m)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Conversation.ID < out[j].Conversation.ID })
	return out, nil
}

func (f *fakeConversations) ListCoParticipants(_ context.Context, conversationIDs []string, exclude string) ([]repository.ParticipantIdentity, error) {
	if f.coErr != nil {
		return nil, f.coErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []repository.ParticipantIdentity
	for _, id := range conversationIDs {
		for _, p := range f.parts[id] {
			if p.UserID == exclude {
				continue
			}
			u, _ := f.users.GetWithProfile(context.Background(), p.UserID)
			row := repository.ParticipantIdentity{Participant: p, User: u}
			out = append(out, row)
			if f.duplicateRows {
				out = append(out, row)
			}
		}
	}
	return out, nil
}

func (f *fakeConversations) GetParticipant(_ context.Context, conversationID, userID string) (models.ConversationParticipant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.parts[conversationID] {
		if p.UserID == userID {
			return p, nil
		}
	}
	return models.ConversationParticipant{}, repository.ErrParticipantNotFound
}

func (f *fakeConversations) MarkRead(_ context.Context, conversationID, userID string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, p := range f.parts[conversationID] {
		if p.UserID == userID {
			t := at
			f.parts[conversationID][i].LastReadAt = &t
			return nil
		}
	}
	return repository.ErrParticipantNotFound
}

func (f *fakeConversations) UpdateStatus(_ context.Context, id string, status models.ConversationStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.convs[id]
	if !ok {
		return repository.ErrConversationNotFound
	}
	c.Status = status
	f.convs[id] = c
	return nil
}

func (f *fakeConversations) TouchLastMessage(_ context.Context, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.convs[id]
	if c.LastMessageAt == nil || at.After(*c.LastMessageAt) {
		t := at
		c.LastMessageAt = &t
	}
	f.convs[id] = c
	return nil
}

func (f *fakeConversations) UnreadCounts(ctx context.Context, userID string, conversationIDs []string) (map[string]int, error) {
	out := map[string]int{}
	for _, id := range conversationIDs {
		p, err := f.GetParticipant(ctx, id, userID)
		if err != nil {
			continue
		}
		n, _ := f.messages.UnreadCount(ctx, id, userID, p.LastReadAt)
		out[id] = n
	}
	return out, nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []realtime.Event
	err    error
}

func (p *fakePublisher) Publish(_ context.Context, ev realtime.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, ev)
	return nil
}

type queuedTask struct {
	Type   string
	Fields map[string]any
}

type fakeQueue struct {
	mu    sync.Mutex
	tasks []queuedTask
	err   error
}

func (q *fakeQueue) Enqueue(_ context.Context, taskType string, fields map[string]any) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.tasks = append(q.tasks, queuedTask{Type: taskType, Fields: fields})
	return nil
}

type fakeChallenges struct {
	mu         sync.Mutex
	challenges map[string]models.Challenge
	listCalls  int
}

func newFakeChallenges(cs ...models.Challenge) *fakeChallenges {
	f := &fakeChallenges{challenges: map[string]models.Challenge{}}
	for _, c := range cs {
		f.challenges[c.ID] = c
	}
	return f
}

func (f *fakeChallenges) Create(_ context.Context, c models.Challenge) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.challenges[c.ID] = c
	return nil
}

func (f *fakeChallenges) GetByID(_ context.Context, id string) (models.Challenge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.challenges[id]
	if !ok {
		return models.Challenge{}, repository.ErrChallengeNotFound
	}
	return c, nil
}

func (f *fakeChallenges) List(_ context.Context, filter repository.ChallengeFilter) ([]models.Challenge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	var out []models.Challenge
	for _, c := range f.challenges {
		if filter.Type != "" && c.Type != filter.Type {
			continue
		}
		if filter.Difficulty != "" && c.Difficulty != filter.Difficulty {
			continue
		}
		if filter.ActiveOnly && !c.IsActive {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeChallenges) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.challenges[id]; !ok {
		return repository.ErrChallengeNotFound
	}
	delete(f.challenges, id)
	return nil
}

func (f *fakeChallenges) SetActive(_ context.Context, id string, active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.challenges[id]
	if !ok {
		return repository.ErrChallengeNotFound
	}
	c.IsActive = active
	f.challenges[id] = c
	return nil
}

func (f *fakeChallenges) UsedSourceRefs(_ context.Context, refs []string) (map[string]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	used := map[string]bool{}
	for _, c := range f.challenges {
		if c.Type == models.ChallengeTypeDaily && c.SourceRef != nil {
			for _, r := range refs {
				if r == *c.SourceRef {
					used[r] = true
				}
			}
		}
	}
	return used, nil
}

func (f *fakeChallenges) ReplaceDaily(_ context.Context, fresh []models.Challenge) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for id, c := range f.challenges {
		if c.Type == models.ChallengeTypeDaily && c.IsActive {
			c.IsActive = false
			f.challenges[id] = c
			n++
		}
	}
	for _, c := range fresh {
		f.challenges[c.ID] = c
	}
	return n, nil
}

type fakePosts struct {
	mu       sync.Mutex
	posts    map[string]models.Post
	likes    map[[2]string]bool
	comments []models.PostComment
	users    *fakeUsers
}

func newFakePosts(users *fakeUsers) *fakePosts {
	return &fakePosts{posts: map[string]models.Post{}, likes: map[[2]string]bool{}, users: users}
}

func (f *fakePosts) Create(_ context.Context, p models.Post) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posts[p.ID] = p
	return nil
}

func (f *fakePosts) GetByID(_ context.Context, id string) (models.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.posts[id]
	if !ok {
		return models.Post{}, repository.ErrPostNotFound
	}
	return p, nil
}

func (f *fakePosts) List(ctx context.Context, filter repository.PostFilter) ([]repository.PostWithAuthor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []repository.PostWithAuthor
	for _, p := range f.posts {
		if p.IsHidden && !filter.IncludeHidden {
			continue
		}
		author, _ := f.users.GetWithProfile(ctx, p.UserID)
		out = append(out, repository.PostWithAuthor{Post: p, Author: author})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Post.CreatedAt.After(out[j].Post.CreatedAt) })
	return out, nil
}

func (f *fakePosts) SetHidden(_ context.Context, id string, hidden bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.posts[id]
	if !ok {
		return repository.ErrPostNotFound
	}
	p.IsHidden = hidden
	f.posts[id] = p
	return nil
}

func (f *fakePosts) Like(_ context.Context, postID, userID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := [2]string{postID, userID}
	if f.likes[key] {
		return false, nil
	}
	f.likes[key] = true
	p := f.posts[postID]
	p.LikesCount++
	f.posts[postID] = p
	return true, nil
}

func (f *fakePosts) Unlike(_ context.Context, postID, userID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := [2]string{postID, userID}
	if !f.likes[key] {
		return false, nil
	}
	delete(f.likes, key)
	p := f.posts[postID]
	p.LikesCount--
	f.posts[postID] = p
	return true, nil
}

func (f *fakePosts) AddComment(_ context.Context, c models.PostComment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.comments = append(f.comments, c)
	p := f.posts[c.PostID]
	p.CommentsCount++
	f.posts[c.PostID] = p
	return nil
}

func (f *fakePosts) ListComments(ctx context.Context, postID string, limit, offset int) ([]repository.CommentWithAuthor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []repository.CommentWithAuthor
	for _, c := range f.comments {
		if c.PostID != postID {
			continue
		}
		author, _ := f.users.GetWithProfile(ctx, c.UserID)
		out = append(out, repository.CommentWithAuthor{Comment: c, Author: author})
	}
	return out, nil
}

// stepClock returns a controllable time source.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stepClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	putErr  error
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{objects: map[string][]byte{}, types: map[string]string{}}
}

func (o *fakeObjects) Put(_ context.Context, key string, r io.Reader, _ int64, contentType string) (int64, error) {
	if o.putErr != nil {
		return 0, o.putErr
	}
	var buf bytes.Buffer
	n, err := io.Copy(&buf, r)
	if err != nil {
		return 0, err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.objects[key] = buf.Bytes()
	o.types[key] = contentType
	return n, nil
}

func (o *fakeObjects) Stat(_ context.Context, key string) (int64, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	data, ok := o.objects[key]
	if !ok {
		return 0, storage.ErrObjectNotFound
	}
	return int64(len(data)), nil
}

func (o *fakeObjects) PublicURL(key string) string {
	return "https://cdn.example.com/media/" + key
}
