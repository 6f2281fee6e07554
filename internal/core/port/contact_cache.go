package port

import (
	"context"

	"github.com/avelychko/contacthub/internal/core/domain"
)

// ContactCache is a best-effort read cache in front of the contact
// repository. A miss and a backend failure look the same to callers.
type ContactCache interface {
	Get(ctx context.Context, contactID string) (*domain.Contact, bool)
	Set(ctx context.Context, contact domain.Contact)
	Invalidate(ctx context.Context, contactID string)
}
