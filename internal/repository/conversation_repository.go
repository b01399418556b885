package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"englishmastery/internal/models"
)

type ConversationRepository struct {
	pool *pgxpool.Pool
}

func NewConversationRepository(pool *pgxpool.Pool) *ConversationRepository {
	return &ConversationRepository{pool: pool}
}

// Membership is one conversation the user belongs to together with the user's
// own participant row.
type Membership struct {
	Conversation models.Conversation
	Self         models.ConversationParticipant
}

// ParticipantIdentity is a participant row joined to the user and, when present,
// the profile.
type ParticipantIdentity struct {
	Participant models.ConversationParticipant
	User        models.UserWithProfile
}

const conversationColumns = `c.id, c.title, c.status, c.created_by, c.last_message_at, c.created_at, c.updated_at`

func scanConversation(row rowScanner, c *models.Conversation, extra ...any) error {
	dest := []any{
		&c.ID,
		&c.Title,
		&c.Status,
		&c.CreatedBy,
		&c.LastMessageAt,
		&c.CreatedAt,
		&c.UpdatedAt,
	}
	return row.Scan(append(dest, extra...)...)
}

// CreateWithParticipants inserts the conversation and all participant rows in
// one transaction. Duplicate (conversation, user) pairs are ignored.
func (r *ConversationRepository) CreateWithParticipants(ctx context.Context, conversation models.Conversation, participants []models.ConversationParticipant) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO conversations (id, title, status, created_by, last_message_at, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $6)
		`,
			conversation.ID,
			conversation.Title,
			conversation.Status,
			conversation.CreatedBy,
			conversation.LastMessageAt,
			conversation.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert conversation: %w", err)
		}

		batch := &pgx.Batch{}
		for _, p := range participants {
			batch.Queue(`
				INSERT INTO conversation_participants (conversation_id, user_id, role, joined_at, last_read_at)
				VALUES ($1, $2, $3, $4, $5)
				ON CONFLICT (conversation_id, user_id) DO NOTHING
			`, p.ConversationID, p.UserID, p.Role, p.JoinedAt, p.LastReadAt)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert participants: %w", err)
		}
		return nil
	})
}

func (r *ConversationRepository) GetByID(ctx context.Context, id string) (models.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations c WHERE c.id = $1`

	var c models.Conversation
	if err := scanConversation(r.pool.QueryRow(ctx, query, id), &c); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Conversation{}, ErrConversationNotFound
		}
		return models.Conversation{}, err
	}
	return c, nil
}

// FindDirect returns the oldest active conversation whose only participants are a and b.
func (r *ConversationRepository) FindDirect(ctx context.Context, a, b string) (models.Conversation, error) {
	query := `
		SELECT ` + conversationColumns + `
		FROM conversations c
		JOIN conversation_participants pa ON pa.conversation_id = c.id AND pa.user_id = $1
		JOIN conversation_participants pb ON pb.conversation_id = c.id AND pb.user_id = $2
		WHERE c.status = 'active'
		  AND (SELECT COUNT(*) FROM conversation_participants x WHERE x.conversation_id = c.id) = 2
		ORDER BY c.created_at ASC
		LIMIT 1
	`

	var c models.Conversation
	if err := scanConversation(r.pool.QueryRow(ctx, query, a, b), &c); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Conversation{}, ErrConversationNotFound
		}
		return models.Conversation{}, err
	}
	return c, nil
}

func (r *ConversationRepository) ListMemberships(ctx context.Context, userID string) ([]Membership, error) {
	query := `
		SELECT ` + conversationColumns + `, p.user_id, p.role, p.joined_at, p.last_read_at
		FROM conversation_participants p
		JOIN conversations c ON c.id = p.conversation_id
		WHERE p.user_id = $1
		ORDER BY c.last_message_at DESC NULLS LAST, c.created_at DESC
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Membership
	for rows.Next() {
		var m Membership
		if err := scanConversation(rows, &m.Conversation,
			&m.Self.UserID,
			&m.Self.Role,
			&m.Self.JoinedAt,
			&m.Self.LastReadAt,
		); err != nil {
			return nil, err
		}
		m.Self.ConversationID = m.Conversation.ID
		out = append(out, m)
	}
	return out, rows.Err()
}

// ListCoParticipants returns every participant of the given conversations except excludeUserID.
func (r *ConversationRepository) ListCoParticipants(ctx context.Context, conversationIDs []string, excludeUserID string) ([]ParticipantIdentity, error) {
	if len(conversationIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT ` + userColumns + `, ` + profileColumns + `,
		       p.conversation_id, p.role, p.joined_at, p.last_read_at
		FROM conversation_participants p
		JOIN users u ON u.id = p.user_id
		LEFT JOIN profiles pr ON pr.user_id = p.user_id
		WHERE p.conversation_id = ANY($1) AND p.user_id <> $2
		ORDER BY p.conversation_id, p.joined_at, p.user_id
	`

	rows, err := r.pool.Query(ctx, query, conversationIDs, excludeUserID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ParticipantIdentity
	for rows.Next() {
		var pi ParticipantIdentity
		err := scanUser(rows, &pi.User.User,
			&pi.User.Profile.FullName,
			&pi.User.Profile.Username,
			&pi.User.Profile.AvatarURL,
			&pi.User.Profile.Bio,
			&pi.User.Profile.UpdatedAt,
			&pi.Participant.ConversationID,
			&pi.Participant.Role,
			&pi.Participant.JoinedAt,
			&pi.Participant.LastReadAt,
		)
		if err != nil {
			return nil, err
		}
		pi.User.Profile.UserID = pi.User.User.ID
		pi.Participant.UserID = pi.User.User.ID
		out = append(out, pi)
	}
	return out, rows.Err()
}

func (r *ConversationRepository) GetParticipant(ctx context.Context, conversationID, userID string) (models.ConversationParticipant, error) {
	const query = `
		SELECT conversation_id, user_id, role, joined_at, last_read_at
		FROM conversation_participants
		WHERE conversation_id = $1 AND user_id = $2
	`

	var p models.ConversationParticipant
	if err := r.pool.QueryRow(ctx, query, conversationID, userID).Scan(
		&p.ConversationID,
		&p.UserID,
		&p.Role,
		&p.JoinedAt,
		&p.LastReadAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ConversationParticipant{}, ErrParticipantNotFound
		}
		return models.ConversationParticipant{}, err
	}
	return p, nil
}

func (r *ConversationRepository) MarkRead(ctx context.Context, conversationID, userID string, at time.Time) error {
	cmd, err := r.pool.Exec(ctx, `
		UPDATE conversation_participants SET last_read_at = $3
		WHERE conversation_id = $1 AND user_id = $2
	`, conversationID, userID, at)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrParticipantNotFound
	}
	return nil
}

func (r *ConversationRepository) UpdateStatus(ctx context.Context, id string, status models.ConversationStatus) error {
	cmd, err := r.pool.Exec(ctx, `UPDATE conversations SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrConversationNotFound
	}
	return nil
}

// TouchLastMessage only moves last_message_at forward.
func (r *ConversationRepository) TouchLastMessage(ctx context.Context, id string, at time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE conversations
		SET last_message_at = GREATEST(COALESCE(last_message_at, $2), $2), updated_at = NOW()
		WHERE id = $1
	`, id, at)
	return err
}

// UnreadCounts applies the unread rule for userID across conversationIDs.
func (r *ConversationRepository) UnreadCounts(ctx context.Context, userID string, conversationIDs []string) (map[string]int, error) {
	out := make(map[string]int, len(conversationIDs))
	if len(conversationIDs) == 0 {
		return out, nil
	}

	const query = `
		SELECT p.conversation_id, COUNT(m.id)
		FROM conversation_participants p
		LEFT JOIN messages m
		       ON m.conversation_id = p.conversation_id
		      AND m.sender_id <> p.user_id
		      AND m.created_at > COALESCE(p.last_read_at, 'epoch'::timestamptz)
		WHERE p.user_id = $1 AND p.conversation_id = ANY($2)
		GROUP BY p.conversation_id
	`

	rows, err := r.pool.Query(ctx, query, userID, conversationIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		out[id] = n
	}
	return out, rows.Err()
}
