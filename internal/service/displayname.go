package service

import (
	"strings"

	"englishmastery/internal/models"
)

// ResolveDisplayName returns the first non-blank of full name, username and email.
func ResolveDisplayName(fullName, username, email string) string {
	for _, candidate := range []string{fullName, username, email} {
		if s := strings.TrimSpace(candidate); s != "" {
			return s
		}
	}
	return ""
}

func displayNameOf(u models.UserWithProfile) string {
	return ResolveDisplayName(deref(u.Profile.FullName), deref(u.Profile.Username), u.User.Email)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
