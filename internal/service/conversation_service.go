package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"englishmastery/internal/ids"
	"englishmastery/internal/models"
	"englishmastery/internal/realtime"
	"englishmastery/internal/repository"
)

type ParticipantSummary struct {
	UserID      string                 `json:"userId"`
	DisplayName string                 `json:"displayName"`
	AvatarURL   *string                `json:"avatarUrl,omitempty"`
	Role        models.ParticipantRole `json:"role"`
}

// ConversationSummary is one conversation as seen by a viewer.
type ConversationSummary struct {
	ID            string                    `json:"id"`
	Title         *string                   `json:"title,omitempty"`
	Status        models.ConversationStatus `json:"status"`
	LastMessageAt *time.Time                `json:"lastMessageAt,omitempty"`
	CreatedAt     time.Time                 `json:"createdAt"`
	Participants  []ParticipantSummary      `json:"participants"`
	Unread        int                       `json:"unread"`
	LastReadAt    *time.Time                `json:"lastReadAt,omitempty"`
}

type StartConversationInput struct {
	ParticipantIDs []string `json:"participantIds" validate:"required,min=1,dive,required"`
	Title          *string  `json:"title" validate:"omitempty,max=120"`
}

type ConversationService struct {
	conversations ConversationStore
	users         UserStore
	publisher     Publisher
	log           zerolog.Logger
	now           func() time.Time
}

func NewConversationService(conversations ConversationStore, users UserStore, publisher Publisher, log zerolog.Logger) *ConversationService {
	return &ConversationService{
		conversations: conversations,
		users:         users,
		publisher:     publisher,
		log:           log,
		now:           time.Now,
	}
}

// ListForUser returns every conversation userID belongs to, each exactly once,
// annotated with the other participants and the viewer's unread count.
// Any failed lookup fails the whole call.
func (s *ConversationService) ListForUser(ctx context.Context, userID string) ([]ConversationSummary, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, invalid("user id is required")
	}

	memberships, err := s.conversations.ListMemberships(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	if len(memberships) == 0 {
		return []ConversationSummary{}, nil
	}

	seen := make(map[string]struct{}, len(memberships))
	ordered := make([]repository.Membership, 0, len(memberships))
	convIDs := make([]string, 0, len(memberships))
	for _, m := range memberships {
		if _, ok := seen[m.Conversation.ID]; ok {
			continue
		}
		seen[m.Conversation.ID] = struct{}{}
		ordered = append(ordered, m)
		convIDs = append(convIDs, m.Conversation.ID)
	}

	var (
		others []repository.ParticipantIdentity
		unread map[string]int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		others, err = s.conversations.ListCoParticipants(gctx, convIDs, userID)
		if err != nil {
			return fmt.Errorf("list participants: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		unread, err = s.conversations.UnreadCounts(gctx, userID, convIDs)
		if err != nil {
			return fmt.Errorf("unread counts: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		s.log.Error().Err(err).Str("user_id", userID).Msg("resolve conversations failed")
		return nil, err
	}

	byConversation := groupParticipants(others)

	out := make([]ConversationSummary, 0, len(ordered))
	for _, m := range ordered {
		out = append(out, buildSummary(m.Conversation, m.Self, byConversation[m.Conversation.ID], unread[m.Conversation.ID]))
	}
	return out, nil
}

func groupParticipants(rows []repository.ParticipantIdentity) map[string][]ParticipantSummary {
	out := make(map[string][]ParticipantSummary)
	seen := make(map[[2]string]struct{}, len(rows))
	for _, row := range rows {
		key := [2]string{row.Participant.ConversationID, row.User.User.ID}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out[row.Participant.ConversationID] = append(out[row.Participant.ConversationID], ParticipantSummary{
			UserID:      row.User.User.ID,
			DisplayName: displayNameOf(row.User),
			AvatarURL:   row.User.Profile.AvatarURL,
			Role:        row.Participant.Role,
		})
	}
	return out
}

func buildSummary(conv models.Conversation, self models.ConversationParticipant, participants []ParticipantSummary, unread int) ConversationSummary {
	if participants == nil {
		participants = []ParticipantSummary{}
	}
	return ConversationSummary{
		ID:            conv.ID,
		Title:         conv.Title,
		Status:        conv.Status,
		LastMessageAt: conv.LastMessageAt,
		CreatedAt:     conv.CreatedAt,
		Participants:  participants,
		Unread:        unread,
		LastReadAt:    self.LastReadAt,
	}
}

// Start opens a conversation between creatorID and the given participants.
// A direct conversation with a single other user is reused while active.
func (s *ConversationService) Start(ctx context.Context, creatorID string, input StartConversationInput) (ConversationSummary, error) {
	if err := validateInput(input); err != nil {
		return ConversationSummary{}, err
	}
	if input.Title != nil {
		t := strings.TrimSpace(*input.Title)
		if t == "" {
			input.Title = nil
		} else {
			input.Title = &t
		}
	}

	others := make([]string, 0, len(input.ParticipantIDs))
	seen := map[string]struct{}{creatorID: {}}
	for _, id := range input.ParticipantIDs {
		id = strings.TrimSpace(id)
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		others = append(others, id)
	}
	if len(others) == 0 {
		return ConversationSummary{}, invalid("at least one other participant is required")
	}

	n, err := s.users.CountExisting(ctx, others)
	if err != nil {
		return ConversationSummary{}, fmt.Errorf("check participants: %w", err)
	}
	if n != len(others) {
		return ConversationSummary{}, invalid("unknown or inactive participant")
	}

	if len(others) == 1 && input.Title == nil {
		existing, err := s.conversations.FindDirect(ctx, creatorID, others[0])
		switch {
		case err == nil:
			return s.Get(ctx, existing.ID, creatorID)
		case !errors.Is(err, repository.ErrConversationNotFound):
			return ConversationSummary{}, fmt.Errorf("find direct conversation: %w", err)
		}
	}

	now := s.now().UTC()
	conv := models.Conversation{
		ID:        ids.New(),
		Title:     input.Title,
		Status:    models.ConversationStatusActive,
		CreatedBy: creatorID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	participants := make([]models.ConversationParticipant, 0, len(others)+1)
	participants = append(participants, models.ConversationParticipant{
		ConversationID: conv.ID,
		UserID:         creatorID,
		Role:           models.ParticipantRoleOwner,
		JoinedAt:       now,
	})
	for _, id := range others {
		participants = append(participants, models.ConversationParticipant{
			ConversationID: conv.ID,
			UserID:         id,
			Role:           models.ParticipantRoleMember,
			JoinedAt:       now,
		})
	}

	if err := s.conversations.CreateWithParticipants(ctx, conv, participants); err != nil {
		return ConversationSummary{}, fmt.Errorf("create conversation: %w", err)
	}

	s.log.Info().
		Str("conversation_id", conv.ID).
		Str("user_id", creatorID).
		Int("participants", len(participants)).
		Msg("conversation started")

	return s.Get(ctx, conv.ID, creatorID)
}

func (s *ConversationService) Get(ctx context.Context, conversationID, viewerID string) (ConversationSummary, error) {
	conv, self, err := loadMembership(ctx, s.conversations, conversationID, viewerID)
	if err != nil {
		return ConversationSummary{}, err
	}

	others, err := s.conversations.ListCoParticipants(ctx, []string{conv.ID}, viewerID)
	if err != nil {
		return ConversationSummary{}, fmt.Errorf("list participants: %w", err)
	}
	unread, err := s.conversations.UnreadCounts(ctx, viewerID, []string{conv.ID})
	if err != nil {
		return ConversationSummary{}, fmt.Errorf("unread counts: %w", err)
	}

	return buildSummary(conv, self, groupParticipants(others)[conv.ID], unread[conv.ID]), nil
}

// MarkRead moves the viewer's read marker to now and returns it.
func (s *ConversationService) MarkRead(ctx context.Context, conversationID, viewerID string) (time.Time, error) {
	if _, _, err := loadMembership(ctx, s.conversations, conversationID, viewerID); err != nil {
		return time.Time{}, err
	}

	at := s.now().UTC()
	if err := s.conversations.MarkRead(ctx, conversationID, viewerID, at); err != nil {
		if errors.Is(err, repository.ErrParticipantNotFound) {
			return time.Time{}, ErrNotParticipant
		}
		return time.Time{}, fmt.Errorf("mark read: %w", err)
	}
	return at, nil
}

// Close is a soft status change reserved for the conversation owner.
func (s *ConversationService) Close(ctx context.Context, conversationID, viewerID string) (ConversationSummary, error) {
	conv, self, err := loadMembership(ctx, s.conversations, conversationID, viewerID)
	if err != nil {
		return ConversationSummary{}, err
	}
	if self.Role != models.ParticipantRoleOwner {
		return ConversationSummary{}, ErrPermissionDenied
	}

	if conv.Status != models.ConversationStatusClosed {
		if err := s.conversations.UpdateStatus(ctx, conv.ID, models.ConversationStatusClosed); err != nil {
			return ConversationSummary{}, fmt.Errorf("close conversation: %w", err)
		}
		conv.Status = models.ConversationStatusClosed
		s.publish(ctx, realtime.ConversationUpdated(conv, s.now().UTC()))
	}

	return s.Get(ctx, conv.ID, viewerID)
}

func (s *ConversationService) publish(ctx context.Context, ev realtime.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.log.Warn().Err(err).Str("conversation_id", ev.ConversationID).Msg("publish realtime event failed")
	}
}

// loadMembership returns the conversation and the viewer's participant row.
func loadMembership(ctx context.Context, store ConversationStore, conversationID, viewerID string) (models.Conversation, models.ConversationParticipant, error) {
	if strings.TrimSpace(conversationID) == "" || strings.TrimSpace(viewerID) == "" {
		return models.Conversation{}, models.ConversationParticipant{}, invalid("conversation id and user id are required")
	}

	conv, err := store.GetByID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, repository.ErrConversationNotFound) {
			return models.Conversation{}, models.ConversationParticipant{}, ErrNotFound
		}
		return models.Conversation{}, models.ConversationParticipant{}, fmt.Errorf("get conversation: %w", err)
	}

	self, err := store.GetParticipant(ctx, conversationID, viewerID)
	if err != nil {
		if errors.Is(err, repository.ErrParticipantNotFound) {
			return models.Conversation{}, models.ConversationParticipant{}, ErrNotParticipant
		}
		return models.Conversation{}, models.ConversationParticipant{}, fmt.Errorf("get participant: %w", err)
	}
	return conv, self, nil
}
