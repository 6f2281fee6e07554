package usecase

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrDuplicateIdentity indicates the username or email is already taken.
	ErrDuplicateIdentity = errors.New("identity already registered")
	// ErrUnauthorized indicates the supplied credentials are wrong. The same
	// error covers unknown identities so callers cannot probe for accounts.
	ErrUnauthorized = errors.New("invalid credentials")
	// ErrInvalidToken indicates a token failed validation for any reason.
	ErrInvalidToken = errors.New("invalid or expired token")
	// ErrDuplicateContact indicates the owner already has a contact with
	// that email address.
	ErrDuplicateContact = errors.New("contact already exists")
	// ErrNotFound indicates the requested resource does not exist for the caller.
	ErrNotFound = errors.New("not found")
	// ErrUploadRejected indicates the uploaded file was refused.
	ErrUploadRejected = errors.New("upload rejected")
	// ErrStorageUnavailable indicates the object storage backend failed.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrWeakPassword indicates the password failed the strength policy.
	ErrWeakPassword = errors.New("password does not meet policy")
)

// RateLimitExceededError indicates too many attempts inside the sliding
// window. RetryAfter tells the caller when the oldest attempt leaves it.
type RateLimitExceededError struct {
	RetryAfter time.Duration
}

func (e *RateLimitExceededError) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry after %s", e.RetryAfter)
}
