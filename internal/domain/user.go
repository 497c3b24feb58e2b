package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is an authenticated identity
type User struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	Username     string    `json:"username" db:"username"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Role         string    `json:"role" db:"role"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// IsPrivileged reports whether the user may see moderated content
func (u *User) IsPrivileged() bool {
	return u.Role == RoleAdmin
}

// UserProfile holds a user's declared category interests
type UserProfile struct {
	UserID      uuid.UUID   `json:"user_id" db:"user_id"`
	InterestIDs []uuid.UUID `json:"interest_ids"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"`
}

// Identity is the caller of an operation as seen by the services
type Identity struct {
	ID         uuid.UUID
	Username   string
	Privileged bool
}

// Anonymous reports whether the identity carries no user
func (i Identity) Anonymous() bool {
	return i.ID == uuid.Nil
}
