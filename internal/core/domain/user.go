package domain

import (
	"time"

	"github.com/google/uuid"
)

// UserRole controls access to operator endpoints.
type UserRole string

const (
	UserRoleUser  UserRole = "user"
	UserRoleAdmin UserRole = "admin"
)

// UserStatus represents the state of a login identity.
type UserStatus string

const (
	UserStatusActive    UserStatus = "ACTIVE"
	UserStatusSuspended UserStatus = "SUSPENDED"
)

// User is a registered login identity. A user owns one personal account
// and any number of business accounts.
type User struct {
	ID           uuid.UUID  `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"` // Never expose
	FullName     string     `json:"full_name"`
	Role         UserRole   `json:"role"`
	Status       UserStatus `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// IsActive returns true if the user may log in.
func (u *User) IsActive() bool {
	return u.Status == UserStatusActive
}

// IsAdmin returns true for operators.
func (u *User) IsAdmin() bool {
	return u.Role == UserRoleAdmin
}
