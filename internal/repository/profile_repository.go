package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"englishmastery/internal/models"
)

type ProfileRepository struct {
	pool *pgxpool.Pool
}

func NewProfileRepository(pool *pgxpool.Pool) *ProfileRepository {
	return &ProfileRepository{pool: pool}
}

// Upsert writes the editable profile fields; nil fields keep their stored value.
func (r *ProfileRepository) Upsert(ctx context.Context, profile models.Profile) error {
	const query = `
		INSERT INTO profiles (user_id, full_name, username, avatar_url, bio, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			full_name  = COALESCE(EXCLUDED.full_name, profiles.full_name),
			username   = COALESCE(EXCLUDED.username, profiles.username),
			avatar_url = COALESCE(EXCLUDED.avatar_url, profiles.avatar_url),
			bio        = COALESCE(EXCLUDED.bio, profiles.bio),
			updated_at = NOW()
	`
	_, err := r.pool.Exec(ctx, query,
		profile.UserID,
		profile.FullName,
		profile.Username,
		profile.AvatarURL,
		profile.Bio,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrUsernameTaken
	}
	return err
}
