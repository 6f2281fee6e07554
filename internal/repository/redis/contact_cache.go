package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/avelychko/contacthub/internal/core/domain"
	"github.com/avelychko/contacthub/internal/core/port"
	"github.com/avelychko/contacthub/internal/infra/logger"
)

// ContactCache keeps JSON-serialized contacts in Redis for a short TTL.
// Cache failures are logged and swallowed; the repository remains the
// source of truth.
type ContactCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewContactCache constructs a Redis-backed contact cache.
func NewContactCache(client *redis.Client, ttl time.Duration) *ContactCache {
	return &ContactCache{client: client, ttl: ttl}
}

type cachedContact struct {
	ID          string     `json:"id"`
	OwnerID     string     `json:"owner_id"`
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	Email       string     `json:"email"`
	PhoneNumber string     `json:"phone_number"`
	Birthday    *time.Time `json:"birthday,omitempty"`
	ExtraInfo   *string    `json:"extra_info,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Get returns the cached contact, if present and decodable.
func (c *ContactCache) Get(ctx context.Context, contactID string) (*domain.Contact, bool) {
	raw, err := c.client.Get(ctx, contactKey(contactID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.WithContext(ctx).Warn("contact cache read failed",
				zap.String("contact_id", contactID),
				zap.Error(err),
			)
		}
		return nil, false
	}

	var cached cachedContact
	if err := json.Unmarshal(raw, &cached); err != nil {
		logger.WithContext(ctx).Warn("contact cache entry corrupt",
			zap.String("contact_id", contactID),
			zap.Error(err),
		)
		return nil, false
	}

	return &domain.Contact{
		ID:          cached.ID,
		OwnerID:     cached.OwnerID,
		FirstName:   cached.FirstName,
		LastName:    cached.LastName,
		Email:       cached.Email,
		PhoneNumber: cached.PhoneNumber,
		Birthday:    cached.Birthday,
		ExtraInfo:   cached.ExtraInfo,
		CreatedAt:   cached.CreatedAt,
		UpdatedAt:   cached.UpdatedAt,
	}, true
}

// Set stores the contact under its ID for the configured TTL.
func (c *ContactCache) Set(ctx context.Context, contact domain.Contact) {
	raw, err := json.Marshal(cachedContact(contact))
	if err != nil {
		logger.WithContext(ctx).Warn("contact cache encode failed",
			zap.String("contact_id", contact.ID),
			zap.Error(err),
		)
		return
	}

	if err := c.client.Set(ctx, contactKey(contact.ID), raw, c.ttl).Err(); err != nil {
		logger.WithContext(ctx).Warn("contact cache write failed",
			zap.String("contact_id", contact.ID),
			zap.Error(err),
		)
	}
}

// Invalidate drops the cached entry after a mutation.
func (c *ContactCache) Invalidate(ctx context.Context, contactID string) {
	if err := c.client.Del(ctx, contactKey(contactID)).Err(); err != nil {
		logger.WithContext(ctx).Warn("contact cache invalidate failed",
			zap.String("contact_id", contactID),
			zap.Error(err),
		)
	}
}

func contactKey(contactID string) string {
	return fmt.Sprintf("contacts:%s", contactID)
}

var _ port.ContactCache = (*ContactCache)(nil)
