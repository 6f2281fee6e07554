package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	uuid "github.com/google/uuid"

	"github.com/avelychko/contacthub/internal/core/domain"
	"github.com/avelychko/contacthub/internal/core/port"
	"github.com/avelychko/contacthub/internal/repository"
)

// ContactService implements the address-book operations. Single-contact
// reads go through a short-lived cache; every mutation invalidates it.
type ContactService struct {
	contacts port.ContactRepository
	cache    port.ContactCache
	now      func() time.Time
}

// NewContactService constructs a ContactService instance.
func NewContactService(contacts port.ContactRepository, cache port.ContactCache) *ContactService {
	return &ContactService{
		contacts: contacts,
		cache:    cache,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// ContactInput carries the fields required to create a contact.
type ContactInput struct {
	FirstName   string
	LastName    string
	Email       string
	PhoneNumber string
	Birthday    *time.Time
	ExtraInfo   *string
}

func (in ContactInput) validate() error {
	if strings.TrimSpace(in.FirstName) == "" {
		return fmt.Errorf("first name is required")
	}
	if strings.TrimSpace(in.LastName) == "" {
		return fmt.Errorf("last name is required")
	}
	if strings.TrimSpace(in.Email) == "" {
		return fmt.Errorf("email is required")
	}
	if strings.TrimSpace(in.PhoneNumber) == "" {
		return fmt.Errorf("phone number is required")
	}
	return nil
}

// Create stores a new contact for the owner and returns it.
func (s *ContactService) Create(ctx context.Context, ownerID string, input ContactInput) (domain.Contact, error) {
	if err := input.validate(); err != nil {
		return domain.Contact{}, err
	}

	now := s.now()
	contact := domain.Contact{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		FirstName:   strings.TrimSpace(input.FirstName),
		LastName:    strings.TrimSpace(input.LastName),
		Email:       strings.ToLower(strings.TrimSpace(input.Email)),
		PhoneNumber: strings.TrimSpace(input.PhoneNumber),
		Birthday:    input.Birthday,
		ExtraInfo:   input.ExtraInfo,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.contacts.Create(ctx, contact); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return domain.Contact{}, ErrDuplicateContact
		}
		return domain.Contact{}, fmt.Errorf("create contact: %w", err)
	}

	return contact, nil
}

// Get returns a single contact, serving repeat reads from the cache. A
// cached contact belonging to another owner is treated as missing.
func (s *ContactService) Get(ctx context.Context, ownerID, contactID string) (domain.Contact, error) {
	if cached, ok := s.cache.Get(ctx, contactID); ok {
		if cached.OwnerID != ownerID {
			return domain.Contact{}, ErrNotFound
		}
		return *cached, nil
	}

	contact, err := s.contacts.GetByID(ctx, ownerID, contactID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Contact{}, ErrNotFound
		}
		return domain.Contact{}, fmt.Errorf("get contact: %w", err)
	}

	s.cache.Set(ctx, *contact)
	return *contact, nil
}

// Update applies a partial update and returns the fresh contact.
func (s *ContactService) Update(ctx context.Context, ownerID, contactID string, update domain.ContactUpdate) (domain.Contact, error) {
	contact, err := s.contacts.Update(ctx, ownerID, contactID, update)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Contact{}, ErrNotFound
		}
		if errors.Is(err, repository.ErrDuplicate) {
			return domain.Contact{}, ErrDuplicateContact
		}
		return domain.Contact{}, fmt.Errorf("update contact: %w", err)
	}

	s.cache.Invalidate(ctx, contactID)
	return *contact, nil
}

// Delete removes the contact and drops it from the cache.
func (s *ContactService) Delete(ctx context.Context, ownerID, contactID string) error {
	if err := s.contacts.Delete(ctx, ownerID, contactID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete contact: %w", err)
	}

	s.cache.Invalidate(ctx, contactID)
	return nil
}

// Search lists the owner's contacts matching the query. An empty query
// returns everything.
func (s *ContactService) Search(ctx context.Context, ownerID, query string) ([]domain.Contact, error) {
	contacts, err := s.contacts.Search(ctx, ownerID, strings.TrimSpace(query))
	if err != nil {
		return nil, fmt.Errorf("search contacts: %w", err)
	}
	return contacts, nil
}

// UpcomingBirthdays lists contacts with a birthday in the next days days.
func (s *ContactService) UpcomingBirthdays(ctx context.Context, ownerID string, days int) ([]domain.Contact, error) {
	if days <= 0 {
		days = 7
	}

	contacts, err := s.contacts.UpcomingBirthdays(ctx, ownerID, s.now(), days)
	if err != nil {
		return nil, fmt.Errorf("upcoming birthdays: %w", err)
	}
	return contacts, nil
}
