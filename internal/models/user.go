package models

import "time"

type UserRole string

const (
	UserRoleMember  UserRole = "member"
	UserRoleTeacher UserRole = "teacher"
	UserRoleAdmin   UserRole = "admin"
)

func (r UserRole) Valid() bool {
	switch r {
	case UserRoleMember, UserRoleTeacher, UserRoleAdmin:
		return true
	}
	return false
}

type UserStatus string

const (
	UserStatusPending  UserStatus = "pending"
	UserStatusApproved UserStatus = "approved"
	UserStatusRejected UserStatus = "rejected"
)

// User rows are never deleted; IsActive is the soft switch.
type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	Role         UserRole   `json:"role"`
	Status       UserStatus `json:"status"`
	IsActive     bool       `json:"isActive"`
	Points       int        `json:"points"`
	Level        int        `json:"level"`
	LastActiveAt *time.Time `json:"lastActiveAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

type Profile struct {
	UserID    string    `json:"userId"`
	FullName  *string   `json:"fullName,omitempty"`
	Username  *string   `json:"username,omitempty"`
	AvatarURL *string   `json:"avatarUrl,omitempty"`
	Bio       *string   `json:"bio,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// UserWithProfile is the joined row used wherever a display identity is needed.
// Profile fields stay nil when the profile row is missing.
type UserWithProfile struct {
	User    User    `json:"user"`
	Profile Profile `json:"profile"`
}
