package realtime

import (
	"testing"
	"time"

	"englishmastery/internal/models"
)

var base = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func msgAt(id string, offset time.Duration) models.Message {
	return models.Message{
		ID:             id,
		ConversationID: "c1",
		SenderID:       "u1",
		Content:        id,
		Type:           models.MessageTypeText,
		CreatedAt:      base.Add(offset),
	}
}

func ids(msgs []models.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.ID)
	}
	return out
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestFeedSeedIsSortedOldestFirst(t *testing.T) {
	// pages arrive newest first
	f := NewFeed("c1", []models.Message{msgAt("m3", 3*time.Second), msgAt("m2", 2*time.Second), msgAt("m1", time.Second)})

	if got := ids(f.Messages()); !equalIDs(got, []string{"m1", "m2", "m3"}) {
		t.Fatalf("order: got %v", got)
	}
	if last := f.LastMessageAt(); last == nil || !last.Equal(base.Add(3*time.Second)) {
		t.Fatalf("last message at: got %v", last)
	}
}

func TestFeedApplyDeduplicatesByID(t *testing.T) {
	f := NewFeed("c1", nil)
	ev := MessageInserted(msgAt("m1", time.Second))

	if !f.Apply(ev) {
		t.Fatalf("first delivery should change the feed")
	}
	if f.Apply(ev) {
		t.Fatalf("second delivery should be ignored")
	}
	if f.Len() != 1 {
		t.Fatalf("len: want=1 got=%d", f.Len())
	}
}

func TestFeedApplyKeepsOrdering(t *testing.T) {
	f := NewFeed("c1", []models.Message{msgAt("m1", time.Second), msgAt("m3", 3*time.Second)})

	f.Apply(MessageInserted(msgAt("m2", 2*time.Second)))
	f.Apply(MessageInserted(msgAt("m0", 0)))

	if got := ids(f.Messages()); !equalIDs(got, []string{"m0", "m1", "m2", "m3"}) {
		t.Fatalf("order: got %v", got)
	}
	if last := f.LastMessageAt(); !last.Equal(base.Add(3 * time.Second)) {
		t.Fatalf("late arrival moved last message at to %v", last)
	}
}

func TestFeedEqualTimestampsBreakTieByID(t *testing.T) {
	f := NewFeed("c1", nil)
	f.Apply(MessageInserted(msgAt("b", time.Second)))
	f.Apply(MessageInserted(msgAt("a", time.Second)))

	if got := ids(f.Messages()); !equalIDs(got, []string{"a", "b"}) {
		t.Fatalf("order: got %v", got)
	}
}

func TestFeedIgnoresOtherConversations(t *testing.T) {
	f := NewFeed("c1", nil)
	m := msgAt("m1", time.Second)
	m.ConversationID = "c2"

	if f.Apply(MessageInserted(m)) {
		t.Fatalf("event for another conversation should be ignored")
	}
	if f.Len() != 0 {
		t.Fatalf("len: want=0 got=%d", f.Len())
	}
}

func TestFeedConversationUpdate(t *testing.T) {
	f := NewFeed("c1", []models.Message{msgAt("m1", time.Second)})

	later := base.Add(time.Minute)
	conv := models.Conversation{ID: "c1", Status: models.ConversationStatusActive, LastMessageAt: &later}
	if !f.Apply(ConversationUpdated(conv, later)) {
		t.Fatalf("newer last message should change the feed")
	}
	if f.Apply(ConversationUpdated(conv, later)) {
		t.Fatalf("repeated update should not change the feed")
	}

	conv.Status = models.ConversationStatusClosed
	if !f.Apply(ConversationUpdated(conv, later)) {
		t.Fatalf("status change should change the feed")
	}
	if f.Status() != models.ConversationStatusClosed {
		t.Fatalf("status: got %s", f.Status())
	}
}

func TestFeedIgnoresNonInsertMessageEvents(t *testing.T) {
	f := NewFeed("c1", nil)
	ev := MessageInserted(msgAt("m1", time.Second))
	ev.Type = EventDelete

	if f.Apply(ev) {
		t.Fatalf("delete events are not merged")
	}
}

func TestFeedMergeSkipsKnownMessages(t *testing.T) {
	f := NewFeed("c1", []models.Message{msgAt("m1", time.Second)})
	if !f.Apply(MessageInserted(msgAt("m3", 3*time.Second))) {
		t.Fatalf("live message should apply")
	}

	other := msgAt("x1", 2*time.Second)
	other.ConversationID = "c2"
	added := f.Merge([]models.Message{msgAt("m3", 3*time.Second), msgAt("m2", 2*time.Second), msgAt("m1", time.Second), other})
	if added != 1 {
		t.Fatalf("want 1 new message, got %d", added)
	}
	if got := ids(f.Messages()); !equalIDs(got, []string{"m1", "m2", "m3"}) {
		t.Fatalf("order: got %v", got)
	}
	if f.Apply(MessageInserted(msgAt("m2", 2*time.Second))) {
		t.Fatalf("merged message should not apply twice")
	}
}
