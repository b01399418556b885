package realtime

import (
	"time"

	"englishmastery/internal/models"
)

type EventType string

const (
	EventInsert EventType = "insert"
	EventUpdate EventType = "update"
	EventDelete EventType = "delete"
)

type Table string

const (
	TableMessages      Table = "messages"
	TableConversations Table = "conversations"
)

// Event is a row change notification scoped to one conversation.
type Event struct {
	Type           EventType                 `json:"type"`
	Table          Table                     `json:"table"`
	ConversationID string                    `json:"conversationId"`
	Message        *models.Message           `json:"message,omitempty"`
	Status         models.ConversationStatus `json:"status,omitempty"`
	LastMessageAt  *time.Time                `json:"lastMessageAt,omitempty"`
	At             time.Time                 `json:"at"`
}

func MessageInserted(msg models.Message) Event {
	at := msg.CreatedAt
	return Event{
		Type:           EventInsert,
		Table:          TableMessages,
		ConversationID: msg.ConversationID,
		Message:        &msg,
		LastMessageAt:  &at,
		At:             at,
	}
}

func ConversationUpdated(conv models.Conversation, at time.Time) Event {
	return Event{
		Type:           EventUpdate,
		Table:          TableConversations,
		ConversationID: conv.ID,
		Status:         conv.Status,
		LastMessageAt:  conv.LastMessageAt,
		At:             at,
	}
}
