package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"englishmastery/internal/models"
)

func newTestBus(t *testing.T) *Bus {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewBus(rdb, "test:", zerolog.Nop())
}

func recvEvent(t *testing.T, ch <-chan Event, timeout time.Duration) Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		if !ok {
			t.Fatalf("event channel closed")
		}
		return ev
	case <-time.After(timeout):
		t.Fatalf("timed out waiting for event")
	}
	return Event{}
}

func TestBusPublishSubscribe(t *testing.T) {
	bus := newTestBus(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sub, err := bus.Subscribe(ctx, "c1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Close()

	msg := models.Message{
		ID:             "m1",
		ConversationID: "c1",
		SenderID:       "u1",
		Content:        "hello",
		Type:           models.MessageTypeText,
		CreatedAt:      time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}
	if err := bus.Publish(ctx, MessageInserted(msg)); err != nil {
		t.Fatalf("publish: %v", err)
	}

	ev := recvEvent(t, sub.Events(), 2*time.Second)
	if ev.Type != EventInsert || ev.Table != TableMessages {
		t.Fatalf("unexpected event kind: %s/%s", ev.Type, ev.Table)
	}
	if ev.Message == nil || ev.Message.ID != "m1" || ev.Message.Content != "hello" {
		t.Fatalf("unexpected message: %+v", ev.Message)
	}
	if !ev.Message.CreatedAt.Equal(msg.CreatedAt) {
		t.Fatalf("created_at: want=%s got=%s", msg.CreatedAt, ev.Message.CreatedAt)
	}
}

func TestBusChannelsAreScopedPerConversation(t *testing.T) {
	bus := newTestBus(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sub, err := bus.Subscribe(ctx, "c1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Close()

	other := models.Conversation{ID: "c2", Status: models.ConversationStatusClosed}
	if err := bus.Publish(ctx, ConversationUpdated(other, time.Now())); err != nil {
		t.Fatalf("publish other: %v", err)
	}
	mine := models.Conversation{ID: "c1", Status: models.ConversationStatusClosed}
	if err := bus.Publish(ctx, ConversationUpdated(mine, time.Now())); err != nil {
		t.Fatalf("publish mine: %v", err)
	}

	ev := recvEvent(t, sub.Events(), 2*time.Second)
	if ev.ConversationID != "c1" {
		t.Fatalf("received event for %s", ev.ConversationID)
	}
}

func TestSubscriptionCloseEndsEvents(t *testing.T) {
	bus := newTestBus(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sub, err := bus.Subscribe(ctx, "c1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := sub.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	select {
	case _, ok := <-sub.Events():
		if ok {
			t.Fatalf("events should be closed")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for events to close")
	}
}

func TestSubscribeRequiresConversation(t *testing.T) {
	bus := newTestBus(t)
	if _, err := bus.Subscribe(context.Background()); err == nil {
		t.Fatalf("expected error without conversation ids")
	}
}
