package repository

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"

	"englishmastery/internal/models"
)

type MessageRepository struct {
	pool *pgxpool.Pool
}

func NewMessageRepository(pool *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{pool: pool}
}

func (r *MessageRepository) Create(ctx context.Context, msg models.Message) error {
	const query = `
		INSERT INTO messages (id, conversation_id, sender_id, content, type, media_url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.pool.Exec(ctx, query,
		msg.ID,
		msg.ConversationID,
		msg.SenderID,
		msg.Content,
		msg.Type,
		msg.MediaURL,
		msg.CreatedAt,
	)
	return err
}

// ListByConversation returns one page of messages, newest first.
func (r *MessageRepository) ListByConversation(ctx context.Context, conversationID string, limit, offset int) ([]models.Message, error) {
	builder := psql.Select("id", "conversation_id", "sender_id", "content", "type", "media_url", "created_at").
		From("messages").
		Where(sq.Eq{"conversation_id": conversationID}).
		OrderBy("created_at DESC", "id DESC")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	if offset > 0 {
		builder = builder.Offset(uint64(offset))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build message list: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(
			&m.ID,
			&m.ConversationID,
			&m.SenderID,
			&m.Content,
			&m.Type,
			&m.MediaURL,
			&m.CreatedAt,
		); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// UnreadCount counts messages from other senders strictly after lastReadAt.
// A nil lastReadAt counts from the epoch.
func (r *MessageRepository) UnreadCount(ctx context.Context, conversationID, viewerID string, lastReadAt *time.Time) (int, error) {
	const query = `
		SELECT COUNT(*) FROM messages
		WHERE conversation_id = $1
		  AND sender_id <> $2
		  AND created_at > COALESCE($3::timestamptz, 'epoch'::timestamptz)
	`
	var n int
	err := r.pool.QueryRow(ctx, query, conversationID, viewerID, lastReadAt).Scan(&n)
	return n, err
}
