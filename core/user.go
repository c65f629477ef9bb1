package core

import (
	"context"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleOwner     Role = "owner"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleModerator, RoleOwner:
		return true
	}
	return false
}

// CanModerate reports whether the role may use the owner panel.
func (r Role) CanModerate() bool {
	return r == RoleOwner || r == RoleModerator
}

type (
	User struct {
		ID           string    `json:"id"`
		Username     string    `json:"username"`
		Email        string    `json:"email,omitempty"`
		PasswordHash string    `json:"-"`
		Subject      string    `json:"-"` // External login subject, e.g. "github:42".
		Role         Role      `json:"role"`
		Approved     bool      `json:"is_approved"`
		CreatedAt    time.Time `json:"created_at"`
		UpdatedAt    time.Time `json:"updated_at"`
	}

	UserFilter struct {
		PendingOnly bool
	}

	UserStore interface {
		// CreateUser assigns the ID. Duplicate usernames, emails or subjects
		// yield ErrConflict.
		CreateUser(ctx context.Context, user *User) error
		GetUser(ctx context.Context, id string) (*User, error)
		GetUserByUsername(ctx context.Context, username string) (*User, error)
		GetUserBySubject(ctx context.Context, subject string) (*User, error)
		ListUsers(ctx context.Context, filter UserFilter) ([]*User, error)
		// UpdateUser stores email, password hash, role and approval.
		UpdateUser(ctx context.Context, user *User) error
		DeleteUser(ctx context.Context, id string) error
	}
)
