package realtime

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"

	"englishmastery/internal/config"
)

type subscribeFunc func(ctx context.Context, conversationIDs ...string) (Stream, error)

// Listener keeps a subscription alive for a set of conversations and hands
// every event to handler. A lost subscription is re-established with
// exponential backoff until ctx ends.
type Listener struct {
	subscribe       subscribeFunc
	conversationIDs []string
	handler         func(Event)
	resync          func(ctx context.Context) error
	initial         time.Duration
	max             time.Duration
	log             zerolog.Logger
}

func NewListener(bus *Bus, cfg config.RealtimeConfig, log zerolog.Logger, handler func(Event), conversationIDs ...string) *Listener {
	return &Listener{
		subscribe: func(ctx context.Context, ids ...string) (Stream, error) {
			sub, err := bus.Subscribe(ctx, ids...)
			if err != nil {
				return nil, err
			}
			return sub, nil
		},
		conversationIDs: conversationIDs,
		handler:         handler,
		initial:         cfg.ReconnectInitial,
		max:             cfg.ReconnectMax,
		log:             log.With().Str("component", "realtime_listener").Logger(),
	}
}

// OnSubscribe registers fn to run after every confirmed subscription and
// before its events are delivered. Events published while the listener was
// not subscribed are lost, so fn is where callers reload state. An error
// drops the subscription and retries with backoff.
func (l *Listener) OnSubscribe(fn func(ctx context.Context) error) {
	l.resync = fn
}

func (l *Listener) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	if l.initial > 0 {
		b.InitialInterval = l.initial
	}
	if l.max > 0 {
		b.MaxInterval = l.max
	}
	b.Reset()
	return b
}

// Run blocks until ctx is done and returns ctx.Err().
func (l *Listener) Run(ctx context.Context) error {
	b := l.newBackOff()

	for {
		stream, err := l.subscribe(ctx, l.conversationIDs...)
		if err == nil && l.resync != nil {
			if err = l.resync(ctx); err != nil {
				_ = stream.Close()
				err = fmt.Errorf("resync: %w", err)
			}
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			l.log.Warn().Err(err).Strs("conversation_ids", l.conversationIDs).Msg("realtime subscribe failed")
		} else {
			b.Reset()
			l.forward(ctx, stream)
			_ = stream.Close()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			l.log.Warn().Strs("conversation_ids", l.conversationIDs).Msg("realtime subscription lost")
		}

		wait := b.NextBackOff()
		if wait == backoff.Stop {
			wait = b.MaxInterval
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (l *Listener) forward(ctx context.Context, stream Stream) {
	events := stream.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			l.handler(ev)
		}
	}
}
