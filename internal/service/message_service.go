package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"englishmastery/internal/config"
	"englishmastery/internal/ids"
	"englishmastery/internal/models"
	"englishmastery/internal/realtime"
)

type SendMessageInput struct {
	ConversationID string             `validate:"required"`
	SenderID       string             `validate:"required"`
	Content        string             `json:"content"`
	Type           models.MessageType `json:"type"`
	MediaURL       *string            `json:"mediaUrl" validate:"omitempty,url"`
}

// FeedPage is one page of history, newest first, plus the viewer's unread count
// for the whole conversation.
type FeedPage struct {
	Messages   []models.Message `json:"messages"`
	Unread     int              `json:"unread"`
	LastReadAt *time.Time       `json:"lastReadAt,omitempty"`
	Limit      int              `json:"limit"`
	Offset     int              `json:"offset"`
}

type MessageService struct {
	conversations ConversationStore
	messages      MessageStore
	publisher     Publisher
	cfg           config.MessagingConfig
	log           zerolog.Logger
	now           func() time.Time
}

func NewMessageService(conversations ConversationStore, messages MessageStore, publisher Publisher, cfg config.MessagingConfig, log zerolog.Logger) *MessageService {
	return &MessageService{
		conversations: conversations,
		messages:      messages,
		publisher:     publisher,
		cfg:           cfg,
		log:           log,
		now:           time.Now,
	}
}

// CountUnread applies the unread rule to an in-memory message list: messages
// from anyone but viewerID created strictly after lastReadAt. A nil lastReadAt
// means the viewer never read the conversation.
func CountUnread(messages []models.Message, viewerID string, lastReadAt *time.Time) int {
	n := 0
	for _, m := range messages {
		if m.SenderID == viewerID {
			continue
		}
		if lastReadAt == nil || m.CreatedAt.After(*lastReadAt) {
			n++
		}
	}
	return n
}

func (s *MessageService) pageSize(limit int) int {
	if limit <= 0 {
		return s.cfg.DefaultPageSize
	}
	if limit > s.cfg.MaxPageSize {
		return s.cfg.MaxPageSize
	}
	return limit
}

func (s *MessageService) Feed(ctx context.Context, conversationID, viewerID string, limit, offset int) (FeedPage, error) {
	if offset < 0 {
		return FeedPage{}, invalid("offset must not be negative")
	}
	limit = s.pageSize(limit)

	_, self, err := loadMembership(ctx, s.conversations, conversationID, viewerID)
	if err != nil {
		return FeedPage{}, err
	}

	msgs, err := s.messages.ListByConversation(ctx, conversationID, limit, offset)
	if err != nil {
		return FeedPage{}, fmt.Errorf("list messages: %w", err)
	}
	if msgs == nil {
		msgs = []models.Message{}
	}

	unread, err := s.messages.UnreadCount(ctx, conversationID, viewerID, self.LastReadAt)
	if err != nil {
		return FeedPage{}, fmt.Errorf("unread count: %w", err)
	}

	return FeedPage{
		Messages:   msgs,
		Unread:     unread,
		LastReadAt: self.LastReadAt,
		Limit:      limit,
		Offset:     offset,
	}, nil
}

func (s *MessageService) Send(ctx context.Context, input SendMessageInput) (models.Message, error) {
	if input.Type == "" {
		input.Type = models.MessageTypeText
	}
	if err := validateInput(input); err != nil {
		return models.Message{}, err
	}
	if !input.Type.Valid() {
		return models.Message{}, invalid("unsupported message type %q", input.Type)
	}

	input.Content = strings.TrimSpace(input.Content)
	if input.Type == models.MessageTypeText && input.Content == "" {
		return models.Message{}, invalid("content is required")
	}
	if input.Type.IsMedia() && (input.MediaURL == nil || strings.TrimSpace(*input.MediaURL) == "") {
		return models.Message{}, invalid("mediaUrl is required for %s messages", input.Type)
	}
	if maxLen := s.cfg.MaxMessageLength; maxLen > 0 && utf8.RuneCountInString(input.Content) > maxLen {
		return models.Message{}, invalid("content must be at most %d characters", maxLen)
	}

	conv, _, err := loadMembership(ctx, s.conversations, input.ConversationID, input.SenderID)
	if err != nil {
		return models.Message{}, err
	}
	if conv.Status != models.ConversationStatusActive {
		return models.Message{}, ErrConversationClosed
	}

	msg := models.Message{
		ID:             ids.New(),
		ConversationID: conv.ID,
		SenderID:       input.SenderID,
		Content:        input.Content,
		Type:           input.Type,
		MediaURL:       input.MediaURL,
		CreatedAt:      s.now().UTC(),
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return models.Message{}, fmt.Errorf("save message: %w", err)
	}

	if err := s.conversations.TouchLastMessage(ctx, conv.ID, msg.CreatedAt); err != nil {
		s.log.Warn().Err(err).Str("conversation_id", conv.ID).Msg("update last message time failed")
	}

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, realtime.MessageInserted(msg)); err != nil {
			s.log.Warn().Err(err).
				Str("conversation_id", conv.ID).
				Str("message_id", msg.ID).
				Msg("publish message failed")
		}
	}

	return msg, nil
}
