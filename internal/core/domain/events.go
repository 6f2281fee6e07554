package domain

import "time"

// UserRegisteredEvent is published after a pending account is created.
type UserRegisteredEvent struct {
	EventID      string
	UserID       string
	Email        string
	RegisteredAt time.Time
}

// UserVerifiedEvent is published when an account transitions to active.
type UserVerifiedEvent struct {
	EventID    string
	UserID     string
	VerifiedAt time.Time
}

// PasswordChangedEvent is published after a credential replacement.
type PasswordChangedEvent struct {
	EventID   string
	UserID    string
	ChangedAt time.Time
	Source    string
}
