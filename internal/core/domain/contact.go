package domain

import "time"

// Contact is an address-book entry owned by a single user.
type Contact struct {
	ID          string
	OwnerID     string
	FirstName   string
	LastName    string
	Email       string
	PhoneNumber string
	Birthday    *time.Time
	ExtraInfo   *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ContactUpdate carries a partial update; nil fields are left untouched.
type ContactUpdate struct {
	FirstName   *string
	LastName    *string
	Email       *string
	PhoneNumber *string
	Birthday    *time.Time
	ExtraInfo   *string
}
