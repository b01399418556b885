package models

import "time"

type ConversationStatus string

const (
	ConversationStatusActive ConversationStatus = "active"
	ConversationStatusClosed ConversationStatus = "closed"
)

type Conversation struct {
	ID            string             `json:"id"`
	Title         *string            `json:"title,omitempty"`
	Status        ConversationStatus `json:"status"`
	CreatedBy     string             `json:"createdBy"`
	LastMessageAt *time.Time         `json:"lastMessageAt,omitempty"`
	CreatedAt     time.Time          `json:"createdAt"`
	UpdatedAt     time.Time          `json:"updatedAt"`
}

type ParticipantRole string

const (
	ParticipantRoleOwner  ParticipantRole = "owner"
	ParticipantRoleMember ParticipantRole = "member"
)

// ConversationParticipant is unique per (ConversationID, UserID). LastReadAt is
// the only read-state marker; nil means the user never opened the conversation.
type ConversationParticipant struct {
	ConversationID string          `json:"conversationId"`
	UserID         string          `json:"userId"`
	Role           ParticipantRole `json:"role"`
	JoinedAt       time.Time       `json:"joinedAt"`
	LastReadAt     *time.Time      `json:"lastReadAt,omitempty"`
}

type MessageType string

const (
	MessageTypeText  MessageType = "text"
	MessageTypeImage MessageType = "image"
	MessageTypeVideo MessageType = "video"
	MessageTypeAudio MessageType = "audio"
)

func (t MessageType) Valid() bool {
	switch t {
	case MessageTypeText, MessageTypeImage, MessageTypeVideo, MessageTypeAudio:
		return true
	}
	return false
}

func (t MessageType) IsMedia() bool {
	return t.Valid() && t != MessageTypeText
}

// Message is immutable once stored.
type Message struct {
	ID             string      `json:"id"`
	ConversationID string      `json:"conversationId"`
	SenderID       string      `json:"senderId"`
	Content        string      `json:"content"`
	Type           MessageType `json:"type"`
	MediaURL       *string     `json:"mediaUrl,omitempty"`
	CreatedAt      time.Time   `json:"createdAt"`
}
