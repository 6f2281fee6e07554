package port

import (
	"context"
	"time"

	"github.com/avelychko/contacthub/internal/core/domain"
)

// UserRepository exposes persistence behavior for users. Missing rows are
// reported as repository.ErrNotFound, never as nil results.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	Activate(ctx context.Context, id string) error
	UpdatePassword(ctx context.Context, id string, passwordHash string, changedAt time.Time) error
	UpdateAvatar(ctx context.Context, id string, avatarURL string) error
}
