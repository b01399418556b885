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

type ChallengeRepository struct {
	pool *pgxpool.Pool
}

func NewChallengeRepository(pool *pgxpool.Pool) *ChallengeRepository {
	return &ChallengeRepository{pool: pool}
}

var challengeColumns = []string{
	"id", "title", "description", "video_url", "thumbnail_url", "difficulty",
	"duration_seconds", "type", "is_active", "created_by", "source_ref",
	"created_at", "updated_at",
}

func scanChallenge(row rowScanner) (models.Challenge, error) {
	var c models.Challenge
	err := row.Scan(
		&c.ID,
		&c.Title,
		&c.Description,
		&c.VideoURL,
		&c.ThumbnailURL,
		&c.Difficulty,
		&c.DurationSeconds,
		&c.Type,
		&c.IsActive,
		&c.CreatedBy,
		&c.SourceRef,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	return c, err
}

const insertChallenge = `
	INSERT INTO challenges (id, title, description, video_url, thumbnail_url, difficulty,
		duration_seconds, type, is_active, created_by, source_ref, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)
`

func challengeArgs(c models.Challenge) []any {
	return []any{
		c.ID,
		c.Title,
		c.Description,
		c.VideoURL,
		c.ThumbnailURL,
		c.Difficulty,
		c.DurationSeconds,
		c.Type,
		c.IsActive,
		c.CreatedBy,
		c.SourceRef,
		c.CreatedAt,
	}
}

func (r *ChallengeRepository) Create(ctx context.Context, c models.Challenge) error {
	_, err := r.pool.Exec(ctx, insertChallenge, challengeArgs(c)...)
	return err
}

func (r *ChallengeRepository) GetByID(ctx context.Context, id string) (models.Challenge, error) {
	query, args, err := psql.Select(challengeColumns...).
		From("challenges").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return models.Challenge{}, fmt.Errorf("build challenge get: %w", err)
	}

	c, err := scanChallenge(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Challenge{}, ErrChallengeNotFound
		}
		return models.Challenge{}, err
	}
	return c, nil
}

type ChallengeFilter struct {
	Type       models.ChallengeType
	Difficulty models.Difficulty
	// ActiveOnly hides deactivated challenges; admin listings leave it false.
	ActiveOnly bool
	Limit      int
	Offset     int
}

func (r *ChallengeRepository) List(ctx context.Context, filter ChallengeFilter) ([]models.Challenge, error) {
	builder := psql.Select(challengeColumns...).
		From("challenges").
		OrderBy("created_at DESC", "id DESC")

	if filter.Type != "" {
		builder = builder.Where(sq.Eq{"type": filter.Type})
	}
	if filter.Difficulty != "" {
		builder = builder.Where(sq.Eq{"difficulty": filter.Difficulty})
	}
	if filter.ActiveOnly {
		builder = builder.Where(sq.Eq{"is_active": true})
	}
	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit)).Offset(uint64(filter.Offset))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build challenge list: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Challenge
	for rows.Next() {
		c, err := scanChallenge(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *ChallengeRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM challenges WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrChallengeNotFound
	}
	return nil
}

func (r *ChallengeRepository) SetActive(ctx context.Context, id string, active bool) error {
	cmd, err := r.pool.Exec(ctx, `UPDATE challenges SET is_active = $2, updated_at = NOW() WHERE id = $1`, id, active)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrChallengeNotFound
	}
	return nil
}

// UsedSourceRefs returns which of refs already back a daily challenge.
func (r *ChallengeRepository) UsedSourceRefs(ctx context.Context, refs []string) (map[string]bool, error) {
	used := make(map[string]bool)
	if len(refs) == 0 {
		return used, nil
	}

	rows, err := r.pool.Query(ctx,
		`SELECT source_ref FROM challenges WHERE type = 'daily' AND source_ref = ANY($1)`, refs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var ref string
		if err := rows.Scan(&ref); err != nil {
			return nil, err
		}
		used[ref] = true
	}
	return used, rows.Err()
}

// ReplaceDaily deactivates every active daily challenge and inserts fresh ones
// in one transaction. It returns how many were deactivated.
func (r *ChallengeRepository) ReplaceDaily(ctx context.Context, fresh []models.Challenge) (int, error) {
	var deactivated int
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		cmd, err := tx.Exec(ctx, `
			UPDATE challenges SET is_active = FALSE, updated_at = NOW()
			WHERE type = 'daily' AND is_active
		`)
		if err != nil {
			return fmt.Errorf("deactivate daily: %w", err)
		}
		deactivated = int(cmd.RowsAffected())

		for _, c := range fresh {
			if _, err := tx.Exec(ctx, insertChallenge, challengeArgs(c)...); err != nil {
				return fmt.Errorf("insert daily %s: %w", c.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deactivated, nil
}
