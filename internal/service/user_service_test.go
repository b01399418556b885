package service

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"englishmastery/internal/models"
)

func TestEnsureIdentityProvisionsOnce(t *testing.T) {
	users := newFakeUsers()
	svc := NewUserService(users, users, zerolog.Nop())
	ctx := context.Background()

	u, err := svc.EnsureIdentity(ctx, Identity{UserID: "u1", Email: " New@Example.com ", Role: "superuser"})
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if u.Email != "new@example.com" {
		t.Fatalf("email should be normalised, got %q", u.Email)
	}
	if u.Role != models.UserRoleMember {
		t.Fatalf("unknown role should fall back to member, got %s", u.Role)
	}
	if u.Status != models.UserStatusPending {
		t.Fatalf("new users start pending, got %s", u.Status)
	}

	if err := users.UpdateRole(ctx, "u1", models.UserRoleTeacher); err != nil {
		t.Fatalf("update role: %v", err)
	}

	again, err := svc.EnsureIdentity(ctx, Identity{UserID: "u1", Email: "new@example.com", Role: models.UserRoleAdmin})
	if err != nil {
		t.Fatalf("ensure again: %v", err)
	}
	if again.Role != models.UserRoleTeacher {
		t.Fatalf("stored role must win over token claims, got %s", again.Role)
	}
}

func TestEnsureIdentityRejectsIncompleteClaims(t *testing.T) {
	svc := NewUserService(newFakeUsers(), nil, zerolog.Nop())

	if _, err := svc.EnsureIdentity(context.Background(), Identity{Email: "a@example.com"}); !errors.Is(err, ErrValidation) {
		t.Fatalf("missing subject: want ErrValidation, got %v", err)
	}
	if _, err := svc.EnsureIdentity(context.Background(), Identity{UserID: "u1"}); !errors.Is(err, ErrValidation) {
		t.Fatalf("missing email: want ErrValidation, got %v", err)
	}
}

func TestUpdateProfile(t *testing.T) {
	taken := member("bob", "bob@example.com")
	taken.Profile.Username = strPtr("bobby")
	users := newFakeUsers(member("alice", "alice@example.com"), taken)
	svc := NewUserService(users, users, zerolog.Nop())
	ctx := context.Background()

	view, err := svc.UpdateProfile(ctx, "alice", ProfileInput{FullName: strPtr("  Alice Doe "), Username: strPtr("Alice01")})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if view.DisplayName != "Alice Doe" {
		t.Fatalf("display name: got %q", view.DisplayName)
	}
	if view.Profile.Username == nil || *view.Profile.Username != "alice01" {
		t.Fatalf("username should be lower-cased, got %v", view.Profile.Username)
	}

	if _, err := svc.UpdateProfile(ctx, "alice", ProfileInput{Username: strPtr("bobby")}); !errors.Is(err, ErrValidation) {
		t.Fatalf("taken username: want ErrValidation, got %v", err)
	}
	if _, err := svc.UpdateProfile(ctx, "alice", ProfileInput{Username: strPtr("no spaces")}); !errors.Is(err, ErrValidation) {
		t.Fatalf("invalid username: want ErrValidation, got %v", err)
	}

	view, err = svc.SetAvatar(ctx, "alice", "https://cdn.example.com/a.png")
	if err != nil {
		t.Fatalf("avatar: %v", err)
	}
	if view.Profile.AvatarURL == nil || view.Profile.FullName == nil {
		t.Fatalf("avatar update should keep other fields: %+v", view.Profile)
	}
}
