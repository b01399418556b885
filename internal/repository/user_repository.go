package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"englishmastery/internal/models"
)

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

const userColumns = `u.id, u.email, u.role, u.status, u.is_active, u.points, u.level, u.last_active_at, u.created_at, u.updated_at`

const profileColumns = `pr.full_name, pr.username, pr.avatar_url, pr.bio, COALESCE(pr.updated_at, u.updated_at)`

func scanUser(row rowScanner, user *models.User, extra ...any) error {
	dest := []any{
		&user.ID,
		&user.Email,
		&user.Role,
		&user.Status,
		&user.IsActive,
		&user.Points,
		&user.Level,
		&user.LastActiveAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	}
	return row.Scan(append(dest, extra...)...)
}

func scanUserWithProfile(row rowScanner) (models.UserWithProfile, error) {
	var out models.UserWithProfile
	err := scanUser(row, &out.User,
		&out.Profile.FullName,
		&out.Profile.Username,
		&out.Profile.AvatarURL,
		&out.Profile.Bio,
		&out.Profile.UpdatedAt,
	)
	out.Profile.UserID = out.User.ID
	return out, err
}

// EnsureFromIdentity provisions the user and an empty profile the first time an
// externally authenticated identity shows up, then returns the stored user.
func (r *UserRepository) EnsureFromIdentity(ctx context.Context, id, email string, role models.UserRole) (models.User, error) {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO users (id, email, role, status, is_active, created_at, updated_at)
			VALUES ($1, $2, $3, 'pending', TRUE, NOW(), NOW())
			ON CONFLICT (id) DO NOTHING
		`, id, email, role); err != nil {
			return fmt.Errorf("insert user: %w", err)
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO profiles (user_id, updated_at) VALUES ($1, NOW())
			ON CONFLICT (user_id) DO NOTHING
		`, id); err != nil {
			return fmt.Errorf("insert profile: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.User{}, err
	}
	return r.GetByID(ctx, id)
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users u WHERE u.id = $1`

	var user models.User
	if err := scanUser(r.pool.QueryRow(ctx, query, id), &user); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, err
	}
	return user, nil
}

func (r *UserRepository) GetWithProfile(ctx context.Context, id string) (models.UserWithProfile, error) {
	query := `SELECT ` + userColumns + `, ` + profileColumns + `
		FROM users u LEFT JOIN profiles pr ON pr.user_id = u.id
		WHERE u.id = $1`

	out, err := scanUserWithProfile(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.UserWithProfile{}, ErrUserNotFound
		}
		return models.UserWithProfile{}, err
	}
	return out, nil
}

// CountExisting returns how many of ids exist as active users.
func (r *UserRepository) CountExisting(ctx context.Context, ids []string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM users WHERE id = ANY($1) AND is_active`, ids,
	).Scan(&n)
	return n, err
}

func (r *UserRepository) TouchActivity(ctx context.Context, id string, at time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET last_active_at = $2 WHERE id = $1`, id, at)
	return err
}

func (r *UserRepository) UpdateStatus(ctx context.Context, id string, status models.UserStatus) error {
	return r.updateOne(ctx, `UPDATE users SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
}

func (r *UserRepository) UpdateRole(ctx context.Context, id string, role models.UserRole) error {
	return r.updateOne(ctx, `UPDATE users SET role = $2, updated_at = NOW() WHERE id = $1`, id, role)
}

func (r *UserRepository) SetActive(ctx context.Context, id string, active bool) error {
	return r.updateOne(ctx, `UPDATE users SET is_active = $2, updated_at = NOW() WHERE id = $1`, id, active)
}

func (r *UserRepository) updateOne(ctx context.Context, query string, args ...any) error {
	cmd, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

type UserFilter struct {
	Role     models.UserRole
	Status   models.UserStatus
	IsActive *bool
	Limit    int
	Offset   int
}

func (r *UserRepository) List(ctx context.Context, filter UserFilter) ([]models.UserWithProfile, error) {
	builder := psql.Select(userColumns, profileColumns).
		From("users u").
		LeftJoin("profiles pr ON pr.user_id = u.id").
		OrderBy("u.created_at DESC", "u.id DESC")

	if filter.Role != "" {
		builder = builder.Where(sq.Eq{"u.role": filter.Role})
	}
	if filter.Status != "" {
		builder = builder.Where(sq.Eq{"u.status": filter.Status})
	}
	if filter.IsActive != nil {
		builder = builder.Where(sq.Eq{"u.is_active": *filter.IsActive})
	}
	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit)).Offset(uint64(filter.Offset))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build user list: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.UserWithProfile
	for rows.Next() {
		u, err := scanUserWithProfile(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
