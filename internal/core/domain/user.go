package domain

import "time"

// User mirrors the persisted representation in the users table.
// IsActive is owned exclusively by the registration and password reset
// flows; nothing else mutates account state.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	IsActive     bool
	AvatarURL    *string
	RegisteredAt time.Time
	UpdatedAt    time.Time
}
