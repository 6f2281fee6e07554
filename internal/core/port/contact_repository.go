package port

import (
	"context"
	"time"

	"github.com/avelychko/contacthub/internal/core/domain"
)

// ContactRepository persists address-book entries. Every operation is
// scoped to the owning user; a contact belonging to someone else behaves
// exactly like a missing one.
type ContactRepository interface {
	Create(ctx context.Context, contact domain.Contact) error
	GetByID(ctx context.Context, ownerID, id string) (*domain.Contact, error)
	Update(ctx context.Context, ownerID, id string, update domain.ContactUpdate) (*domain.Contact, error)
	Delete(ctx context.Context, ownerID, id string) error
	Search(ctx context.Context, ownerID, query string) ([]domain.Contact, error)
	UpcomingBirthdays(ctx context.Context, ownerID string, from time.Time, days int) ([]domain.Contact, error)
}
