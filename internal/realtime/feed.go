package realtime

import (
	"sort"
	"sync"
	"time"

	"englishmastery/internal/models"
)

// Feed is the in-memory message list of one conversation, oldest first.
// Messages are unique by id.
type Feed struct {
	mu             sync.Mutex
	conversationID string
	messages       []models.Message
	seen           map[string]struct{}
	lastMessageAt  *time.Time
	status         models.ConversationStatus
}

func NewFeed(conversationID string, seed []models.Message) *Feed {
	f := &Feed{
		conversationID: conversationID,
		seen:           make(map[string]struct{}, len(seed)),
	}
	for _, m := range seed {
		f.insert(m)
	}
	return f
}

func messageBefore(a, b models.Message) bool {
	if a.CreatedAt.Equal(b.CreatedAt) {
		return a.ID < b.ID
	}
	return a.CreatedAt.Before(b.CreatedAt)
}

func (f *Feed) insert(m models.Message) bool {
	if m.ConversationID != f.conversationID {
		return false
	}
	if _, ok := f.seen[m.ID]; ok {
		return false
	}
	f.seen[m.ID] = struct{}{}

	i := sort.Search(len(f.messages), func(i int) bool {
		return messageBefore(m, f.messages[i])
	})
	f.messages = append(f.messages, models.Message{})
	copy(f.messages[i+1:], f.messages[i:])
	f.messages[i] = m

	f.advance(m.CreatedAt)
	return true
}

func (f *Feed) advance(at time.Time) bool {
	if f.lastMessageAt != nil && !at.After(*f.lastMessageAt) {
		return false
	}
	t := at
	f.lastMessageAt = &t
	return true
}

// Apply merges ev and reports whether the feed changed.
func (f *Feed) Apply(ev Event) bool {
	if ev.ConversationID != f.conversationID {
		return false
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	switch ev.Table {
	case TableMessages:
		if ev.Type != EventInsert || ev.Message == nil {
			return false
		}
		return f.insert(*ev.Message)
	case TableConversations:
		changed := false
		if ev.LastMessageAt != nil {
			changed = f.advance(*ev.LastMessageAt)
		}
		if ev.Status != "" && ev.Status != f.status {
			f.status = ev.Status
			changed = true
		}
		return changed
	}
	return false
}

// Merge inserts msgs and returns how many were new to the feed.
func (f *Feed) Merge(msgs []models.Message) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, m := range msgs {
		if f.insert(m) {
			n++
		}
	}
	return n
}

func (f *Feed) Messages() []models.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Message, len(f.messages))
	copy(out, f.messages)
	return out
}

func (f *Feed) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages)
}

func (f *Feed) LastMessageAt() *time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lastMessageAt == nil {
		return nil
	}
	t := *f.lastMessageAt
	return &t
}

func (f *Feed) Status() models.ConversationStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}
