package service

import (
	"context"
	"time"

	"englishmastery/internal/models"
	"englishmastery/internal/realtime"
	"englishmastery/internal/repository"
)

type UserStore interface {
	EnsureFromIdentity(ctx context.Context, id, email string, role models.UserRole) (models.User, error)
	GetByID(ctx context.Context, id string) (models.User, error)
	GetWithProfile(ctx context.Context, id string) (models.UserWithProfile, error)
	CountExisting(ctx context.Context, ids []string) (int, error)
	TouchActivity(ctx context.Context, id string, at time.Time) error
	UpdateStatus(ctx context.Context, id string, status models.UserStatus) error
	UpdateRole(ctx context.Context, id string, role models.UserRole) error
	SetActive(ctx context.Context, id string, active bool) error
	List(ctx context.Context, filter repository.UserFilter) ([]models.UserWithProfile, error)
}

type ProfileStore interface {
	Upsert(ctx context.Context, profile models.Profile) error
}

type ConversationStore interface {
	CreateWithParticipants(ctx context.Context, conversation models.Conversation, participants []models.ConversationParticipant) error
	GetByID(ctx context.Context, id string) (models.Conversation, error)
	FindDirect(ctx context.Context, a, b string) (models.Conversation, error)
	ListMemberships(ctx context.Context, userID string) ([]repository.Membership, error)
	ListCoParticipants(ctx context.Context, conversationIDs []string, excludeUserID string) ([]repository.ParticipantIdentity, error)
	GetParticipant(ctx context.Context, conversationID, userID string) (models.ConversationParticipant, error)
	MarkRead(ctx context.Context, conversationID, userID string, at time.Time) error
	UpdateStatus(ctx context.Context, id string, status models.ConversationStatus) error
	TouchLastMessage(ctx context.Context, id string, at time.Time) error
	UnreadCounts(ctx context.Context, userID string, conversationIDs []string) (map[string]int, error)
}

type MessageStore interface {
	Create(ctx context.Context, msg models.Message) error
	ListByConversation(ctx context.Context, conversationID string, limit, offset int) ([]models.Message, error)
	UnreadCount(ctx context.Context, conversationID, viewerID string, lastReadAt *time.Time) (int, error)
}

type ChallengeStore interface {
	Create(ctx context.Context, c models.Challenge) error
	GetByID(ctx context.Context, id string) (models.Challenge, error)
	List(ctx context.Context, filter repository.ChallengeFilter) ([]models.Challenge, error)
	Delete(ctx context.Context, id string) error
	SetActive(ctx context.Context, id string, active bool) error
	UsedSourceRefs(ctx context.Context, refs []string) (map[string]bool, error)
	ReplaceDaily(ctx context.Context, fresh []models.Challenge) (int, error)
}

type PostStore interface {
	Create(ctx context.Context, p models.Post) error
	GetByID(ctx context.Context, id string) (models.Post, error)
	List(ctx context.Context, filter repository.PostFilter) ([]repository.PostWithAuthor, error)
	SetHidden(ctx context.Context, id string, hidden bool) error
	Like(ctx context.Context, postID, userID string) (bool, error)
	Unlike(ctx context.Context, postID, userID string) (bool, error)
	AddComment(ctx context.Context, comment models.PostComment) error
	ListComments(ctx context.Context, postID string, limit, offset int) ([]repository.CommentWithAuthor, error)
}

// Publisher delivers realtime events; *realtime.Bus satisfies it.
type Publisher interface {
	Publish(ctx context.Context, ev realtime.Event) error
}

// TaskQueue appends background tasks to the worker stream.
type TaskQueue interface {
	Enqueue(ctx context.Context, taskType string, fields map[string]any) error
}

const (
	TaskDailyRefresh = "daily_refresh"
	TaskMediaIngest  = "media_ingest"
)
