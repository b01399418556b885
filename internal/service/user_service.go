package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"englishmastery/internal/models"
	"englishmastery/internal/repository"
)

// Identity is what the external auth provider vouches for.
type Identity struct {
	UserID string
	Email  string
	Role   models.UserRole
}

type UserView struct {
	models.User
	DisplayName string         `json:"displayName"`
	Profile     models.Profile `json:"profile"`
}

func newUserView(u models.UserWithProfile) UserView {
	return UserView{
		User:        u.User,
		DisplayName: displayNameOf(u),
		Profile:     u.Profile,
	}
}

type ProfileInput struct {
	FullName *string `json:"fullName" validate:"omitempty,max=120"`
	Username *string `json:"username" validate:"omitempty,min=3,max=32,alphanum"`
	Bio      *string `json:"bio" validate:"omitempty,max=500"`
}

type UserService struct {
	users    UserStore
	profiles ProfileStore
	log      zerolog.Logger
	now      func() time.Time
}

func NewUserService(users UserStore, profiles ProfileStore, log zerolog.Logger) *UserService {
	return &UserService{
		users:    users,
		profiles: profiles,
		log:      log,
		now:      time.Now,
	}
}

// EnsureIdentity returns the stored user for id, provisioning it on first sight.
func (s *UserService) EnsureIdentity(ctx context.Context, id Identity) (models.User, error) {
	if strings.TrimSpace(id.UserID) == "" {
		return models.User{}, invalid("identity has no subject")
	}

	user, err := s.users.GetByID(ctx, id.UserID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		return models.User{}, fmt.Errorf("load user: %w", err)
	}

	email := strings.ToLower(strings.TrimSpace(id.Email))
	if email == "" {
		return models.User{}, invalid("identity has no email")
	}
	role := id.Role
	if !role.Valid() {
		role = models.UserRoleMember
	}

	user, err = s.users.EnsureFromIdentity(ctx, id.UserID, email, role)
	if err != nil {
		return models.User{}, fmt.Errorf("provision user: %w", err)
	}
	s.log.Info().Str("user_id", user.ID).Msg("user provisioned from identity")
	return user, nil
}

// Touch records activity; failures are only logged.
func (s *UserService) Touch(ctx context.Context, userID string) {
	if err := s.users.TouchActivity(ctx, userID, s.now().UTC()); err != nil {
		s.log.Debug().Err(err).Str("user_id", userID).Msg("touch activity failed")
	}
}

func (s *UserService) Get(ctx context.Context, userID string) (UserView, error) {
	u, err := s.users.GetWithProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return UserView{}, ErrNotFound
		}
		return UserView{}, fmt.Errorf("load profile: %w", err)
	}
	return newUserView(u), nil
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	return &t
}

// UpdateProfile writes the provided fields; omitted fields keep their value.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, input ProfileInput) (UserView, error) {
	input.FullName = trimmedOrNil(input.FullName)
	input.Username = trimmedOrNil(input.Username)
	input.Bio = trimmedOrNil(input.Bio)
	if err := validateInput(input); err != nil {
		return UserView{}, err
	}
	if input.Username != nil {
		lower := strings.ToLower(*input.Username)
		input.Username = &lower
	}

	err := s.profiles.Upsert(ctx, models.Profile{
		UserID:   userID,
		FullName: input.FullName,
		Username: input.Username,
		Bio:      input.Bio,
	})
	if err != nil {
		if errors.Is(err, repository.ErrUsernameTaken) {
			return UserView{}, invalid("username already taken")
		}
		return UserView{}, fmt.Errorf("update profile: %w", err)
	}
	return s.Get(ctx, userID)
}

func (s *UserService) SetAvatar(ctx context.Context, userID, url string) (UserView, error) {
	if err := s.profiles.Upsert(ctx, models.Profile{UserID: userID, AvatarURL: &url}); err != nil {
		return UserView{}, fmt.Errorf("update avatar: %w", err)
	}
	return s.Get(ctx, userID)
}
