package repository

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"englishmastery/internal/models"
)

type PostRepository struct {
	pool *pgxpool.Pool
}

func NewPostRepository(pool *pgxpool.Pool) *PostRepository {
	return &PostRepository{pool: pool}
}

// PostWithAuthor carries the author row so callers can resolve a display name.
type PostWithAuthor struct {
	Post   models.Post
	Author models.UserWithProfile
}

type CommentWithAuthor struct {
	Comment models.PostComment
	Author  models.UserWithProfile
}

const postColumns = `p.id, p.user_id, p.type, p.content, p.media_url, p.challenge_id,
	p.likes_count, p.comments_count, p.is_hidden, p.created_at, p.updated_at`

func scanPost(row rowScanner, p *models.Post, extra ...any) error {
	dest := []any{
		&p.ID,
		&p.UserID,
		&p.Type,
		&p.Content,
		&p.MediaURL,
		&p.ChallengeID,
		&p.LikesCount,
		&p.CommentsCount,
		&p.IsHidden,
		&p.CreatedAt,
		&p.UpdatedAt,
	}
	return row.Scan(append(dest, extra...)...)
}

func (r *PostRepository) Create(ctx context.Context, p models.Post) error {
	const query = `
		INSERT INTO posts (id, user_id, type, content, media_url, challenge_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
	`
	_, err := r.pool.Exec(ctx, query, p.ID, p.UserID, p.Type, p.Content, p.MediaURL, p.ChallengeID, p.CreatedAt)
	return err
}

func (r *PostRepository) GetByID(ctx context.Context, id string) (models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts p WHERE p.id = $1`

	var p models.Post
	if err := scanPost(r.pool.QueryRow(ctx, query, id), &p); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Post{}, ErrPostNotFound
		}
		return models.Post{}, err
	}
	return p, nil
}

type PostFilter struct {
	UserID        string
	ChallengeID   string
	IncludeHidden bool
	Limit         int
	Offset        int
}

func (r *PostRepository) List(ctx context.Context, filter PostFilter) ([]PostWithAuthor, error) {
	builder := psql.Select(postColumns, userColumns, profileColumns).
		From("posts p").
		Join("users u ON u.id = p.user_id").
		LeftJoin("profiles pr ON pr.user_id = p.user_id").
		OrderBy("p.created_at DESC", "p.id DESC")

	if !filter.IncludeHidden {
		builder = builder.Where(sq.Eq{"p.is_hidden": false})
	}
	if filter.UserID != "" {
		builder = builder.Where(sq.Eq{"p.user_id": filter.UserID})
	}
	if filter.ChallengeID != "" {
		builder = builder.Where(sq.Eq{"p.challenge_id": filter.ChallengeID})
	}
	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit)).Offset(uint64(filter.Offset))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build post list: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PostWithAuthor
	for rows.Next() {
		var pa PostWithAuthor
		a := &pa.Author
		if err := scanPost(rows, &pa.Post,
			&a.User.ID, &a.User.Email, &a.User.Role, &a.User.Status, &a.User.IsActive,
			&a.User.Points, &a.User.Level, &a.User.LastActiveAt, &a.User.CreatedAt, &a.User.UpdatedAt,
			&a.Profile.FullName, &a.Profile.Username, &a.Profile.AvatarURL, &a.Profile.Bio, &a.Profile.UpdatedAt,
		); err != nil {
			return nil, err
		}
		a.Profile.UserID = a.User.ID
		out = append(out, pa)
	}
	return out, rows.Err()
}

func (r *PostRepository) SetHidden(ctx context.Context, id string, hidden bool) error {
	cmd, err := r.pool.Exec(ctx, `UPDATE posts SET is_hidden = $2, updated_at = NOW() WHERE id = $1`, id, hidden)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrPostNotFound
	}
	return nil
}

// Like records the like and bumps the counter only when the row is new.
func (r *PostRepository) Like(ctx context.Context, postID, userID string) (bool, error) {
	var inserted bool
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		cmd, err := tx.Exec(ctx, `
			INSERT INTO post_likes (post_id, user_id, created_at) VALUES ($1, $2, NOW())
			ON CONFLICT (post_id, user_id) DO NOTHING
		`, postID, userID)
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return nil
		}
		inserted = true
		_, err = tx.Exec(ctx, `UPDATE posts SET likes_count = likes_count + 1 WHERE id = $1`, postID)
		return err
	})
	return inserted, err
}

// Unlike removes the like and decrements the counter only when a row was removed.
func (r *PostRepository) Unlike(ctx context.Context, postID, userID string) (bool, error) {
	var removed bool
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		cmd, err := tx.Exec(ctx, `DELETE FROM post_likes WHERE post_id = $1 AND user_id = $2`, postID, userID)
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return nil
		}
		removed = true
		_, err = tx.Exec(ctx, `UPDATE posts SET likes_count = GREATEST(likes_count - 1, 0) WHERE id = $1`, postID)
		return err
	})
	return removed, err
}

func (r *PostRepository) AddComment(ctx context.Context, comment models.PostComment) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO post_comments (id, post_id, user_id, content, created_at)
			VALUES ($1, $2, $3, $4, $5)
		`, comment.ID, comment.PostID, comment.UserID, comment.Content, comment.CreatedAt); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `UPDATE posts SET comments_count = comments_count + 1 WHERE id = $1`, comment.PostID)
		return err
	})
}

func (r *PostRepository) ListComments(ctx context.Context, postID string, limit, offset int) ([]CommentWithAuthor, error) {
	builder := psql.Select("c.id", "c.post_id", "c.user_id", "c.content", "c.created_at", userColumns, profileColumns).
		From("post_comments c").
		Join("users u ON u.id = c.user_id").
		LeftJoin("profiles pr ON pr.user_id = c.user_id").
		Where(sq.Eq{"c.post_id": postID}).
		OrderBy("c.created_at ASC", "c.id ASC")
	if limit > 0 {
		builder = builder.Limit(uint64(limit)).Offset(uint64(offset))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build comment list: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CommentWithAuthor
	for rows.Next() {
		var ca CommentWithAuthor
		a := &ca.Author
		if err := rows.Scan(
			&ca.Comment.ID, &ca.Comment.PostID, &ca.Comment.UserID, &ca.Comment.Content, &ca.Comment.CreatedAt,
			&a.User.ID, &a.User.Email, &a.User.Role, &a.User.Status, &a.User.IsActive,
			&a.User.Points, &a.User.Level, &a.User.LastActiveAt, &a.User.CreatedAt, &a.User.UpdatedAt,
			&a.Profile.FullName, &a.Profile.Username, &a.Profile.AvatarURL, &a.Profile.Bio, &a.Profile.UpdatedAt,
		); err != nil {
			return nil, err
		}
		a.Profile.UserID = a.User.ID
		out = append(out, ca)
	}
	return out, rows.Err()
}
