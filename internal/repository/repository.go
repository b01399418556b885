package repository

import (
	"errors"

	sq "github.com/Masterminds/squirrel"
)

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrParticipantNotFound  = errors.New("participant not found")
	ErrChallengeNotFound    = errors.New("challenge not found")
	ErrPostNotFound         = errors.New("post not found")
	ErrUsernameTaken        = errors.New("username already taken")
)

const uniqueViolation = "23505"

// psql builds Postgres statements with $n placeholders.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// rowScanner is satisfied by both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}
