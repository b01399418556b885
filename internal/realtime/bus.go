package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Bus fans conversation events out over Redis pub/sub, one channel per conversation.
type Bus struct {
	rdb    *redis.Client
	prefix string
	log    zerolog.Logger
}

func NewBus(rdb *redis.Client, prefix string, log zerolog.Logger) *Bus {
	return &Bus{
		rdb:    rdb,
		prefix: prefix,
		log:    log.With().Str("component", "realtime_bus").Logger(),
	}
}

func (b *Bus) Channel(conversationID string) string {
	return b.prefix + "conversation:" + conversationID
}

func (b *Bus) Publish(ctx context.Context, ev Event) error {
	if b == nil || b.rdb == nil {
		return errors.New("realtime bus not initialized")
	}
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.Channel(ev.ConversationID), raw).Err()
}

// Stream is a live event source. Events is closed when the underlying
// subscription ends.
type Stream interface {
	Events() <-chan Event
	Close() error
}

type Subscription struct {
	ps     *redis.PubSub
	events chan Event
	done   chan struct{}
	once   sync.Once
}

// Subscribe returns once Redis has confirmed the subscription.
func (b *Bus) Subscribe(ctx context.Context, conversationIDs ...string) (*Subscription, error) {
	if b == nil || b.rdb == nil {
		return nil, errors.New("realtime bus not initialized")
	}
	if len(conversationIDs) == 0 {
		return nil, errors.New("no conversations to subscribe")
	}

	channels := make([]string, 0, len(conversationIDs))
	for _, id := range conversationIDs {
		channels = append(channels, b.Channel(id))
	}

	ps := b.rdb.Subscribe(ctx, channels...)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("redis subscribe: %w", err)
	}

	sub := &Subscription{
		ps:     ps,
		events: make(chan Event, 64),
		done:   make(chan struct{}),
	}
	go sub.forward(b.log)
	return sub, nil
}

func (s *Subscription) forward(log zerolog.Logger) {
	defer close(s.events)
	for m := range s.ps.Channel() {
		var ev Event
		if err := json.Unmarshal([]byte(m.Payload), &ev); err != nil {
			log.Warn().Err(err).Str("channel", m.Channel).Msg("bad realtime payload")
			continue
		}
		select {
		case s.events <- ev:
		case <-s.done:
			return
		}
	}
}

func (s *Subscription) Events() <-chan Event {
	return s.events
}

func (s *Subscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.ps.Close()
	})
	return err
}
