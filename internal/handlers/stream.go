package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"englishmastery/internal/models"
	"englishmastery/internal/realtime"
	"englishmastery/internal/service"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = (streamPongWait * 9) / 10
	streamReadLimit  = 4 << 10
	streamBuffer     = 64
)

const (
	frameSnapshot = "snapshot"
	frameEvent    = "event"
	frameRead     = "read"
)

type streamFrame struct {
	Kind       string           `json:"kind"`
	Messages   []models.Message `json:"messages,omitempty"`
	Unread     *int             `json:"unread,omitempty"`
	Event      *realtime.Event  `json:"event,omitempty"`
	LastReadAt *time.Time       `json:"lastReadAt,omitempty"`
}

// clientFrame is what the browser may send; only "read" is understood.
type clientFrame struct {
	Kind string `json:"kind"`
}

func (h HandlerSet) upgrader() *websocket.Upgrader {
	allowed := make(map[string]struct{}, len(h.cfg.AllowCORSOrigins))
	for _, o := range h.cfg.AllowCORSOrigins {
		allowed[o] = struct{}{}
	}
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || len(allowed) == 0 {
				return true
			}
			_, ok := allowed[origin]
			return ok
		},
	}
}

// unreadCounter tracks the viewer's unread count between snapshots.
type unreadCounter struct {
	mu         sync.Mutex
	viewerID   string
	count      int
	lastReadAt *time.Time
}

func (u *unreadCounter) reset(page service.FeedPage) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.count = page.Unread
	u.lastReadAt = page.LastReadAt
	return u.count
}

func (u *unreadCounter) add(m models.Message) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.count += service.CountUnread([]models.Message{m}, u.viewerID, u.lastReadAt)
	return u.count
}

func (u *unreadCounter) markRead(at time.Time, loaded []models.Message) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	t := at
	u.lastReadAt = &t
	u.count = service.CountUnread(loaded, u.viewerID, u.lastReadAt)
	return u.count
}

func (u *unreadCounter) current() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.count
}

// StreamConversation sends the current message list, then every change of
// the conversation as it is published on the realtime bus. A snapshot is
// sent after each (re)subscription; events already in it are dropped.
func (h HandlerSet) StreamConversation(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	conversationID := c.Param("id")

	// Membership check before upgrading.
	if _, err := h.messages.Feed(c.Request.Context(), conversationID, user.ID, 1, 0); err != nil {
		h.writeError(c, err)
		return
	}

	conn, err := h.upgrader().Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Debug().Err(err).Str("conversation_id", conversationID).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	log := h.log.With().
		Str("conversation_id", conversationID).
		Str("user_id", user.ID).
		Str("client_id", uuid.NewString()).
		Logger()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	feed := realtime.NewFeed(conversationID, nil)
	unread := &unreadCounter{viewerID: user.ID}
	out := make(chan streamFrame, streamBuffer)

	push := func(f streamFrame) {
		select {
		case out <- f:
		default:
			log.Warn().Msg("stream client too slow, disconnecting")
			cancel()
		}
	}

	listener := realtime.NewListener(h.bus, h.cfg.Realtime, log, func(ev realtime.Event) {
		if !feed.Apply(ev) {
			return
		}
		var n int
		if ev.Message != nil {
			n = unread.add(*ev.Message)
		} else {
			n = unread.current()
		}
		push(streamFrame{Kind: frameEvent, Event: &ev, Unread: &n})
	}, conversationID)
	listener.OnSubscribe(func(ctx context.Context) error {
		page, err := h.messages.Feed(ctx, conversationID, user.ID, h.cfg.Messaging.MaxPageSize, 0)
		if err != nil {
			if errors.Is(err, service.ErrNotParticipant) || errors.Is(err, service.ErrNotFound) {
				cancel()
			}
			return err
		}
		feed.Merge(page.Messages)
		n := unread.reset(page)
		push(streamFrame{Kind: frameSnapshot, Messages: feed.Messages(), Unread: &n})
		return nil
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return listener.Run(gctx) })
	g.Go(func() error { return writePump(gctx, conn, out) })

	go func() {
		defer cancel()
		h.readPump(ctx, conn, log, func() {
			at, err := h.conversations.MarkRead(ctx, conversationID, user.ID)
			if err != nil {
				log.Warn().Err(err).Msg("mark read from stream failed")
				return
			}
			n := unread.markRead(at, feed.Messages())
			push(streamFrame{Kind: frameRead, LastReadAt: &at, Unread: &n})
		})
	}()

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Debug().Err(err).Msg("stream closed")
	}
}

func (h HandlerSet) readPump(ctx context.Context, conn *websocket.Conn, log zerolog.Logger, markRead func()) {
	conn.SetReadLimit(streamReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})

	for ctx.Err() == nil {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn().Err(err).Msg("unexpected websocket close")
			}
			return
		}

		var frame clientFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			log.Debug().Err(err).Msg("ignoring malformed client frame")
			continue
		}
		if frame.Kind == frameRead {
			markRead()
		}
	}
}

func writePump(ctx context.Context, conn *websocket.Conn, out <-chan streamFrame) error {
	ticker := time.NewTicker(streamPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(streamWriteWait))
			// Unblocks the read pump.
			_ = conn.Close()
			return ctx.Err()
		case frame := <-out:
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteJSON(frame); err != nil {
				return err
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return err
			}
		}
	}
}
