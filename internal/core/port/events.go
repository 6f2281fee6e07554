package port

import (
	"context"

	"github.com/avelychko/contacthub/internal/core/domain"
)

// EventPublisher emits account lifecycle events for downstream consumers.
type EventPublisher interface {
	PublishUserRegistered(ctx context.Context, event domain.UserRegisteredEvent) error
	PublishUserVerified(ctx context.Context, event domain.UserVerifiedEvent) error
	PublishPasswordChanged(ctx context.Context, event domain.PasswordChangedEvent) error
}
