package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"

	uuid "github.com/google/uuid"

	"github.com/avelychko/contacthub/internal/core/port"
	"github.com/avelychko/contacthub/internal/infra/config"
	"github.com/avelychko/contacthub/internal/repository"
)

// Content types accepted for avatar uploads.
var avatarContentTypes = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
}

// AvatarService uploads user avatars to object storage and records the
// resulting URL on the profile.
type AvatarService struct {
	users   port.UserRepository
	storage port.AvatarStorage
	maxSize int64
}

// NewAvatarService constructs an AvatarService instance.
func NewAvatarService(users port.UserRepository, storage port.AvatarStorage, cfg config.AvatarSettings) *AvatarService {
	return &AvatarService{
		users:   users,
		storage: storage,
		maxSize: cfg.MaxSizeBytes,
	}
}

// Upload validates the file, stores it under a fresh key, and updates the
// user's avatar URL. Unsupported types and oversized files are rejected
// before anything touches storage.
func (s *AvatarService) Upload(ctx context.Context, userID, contentType string, body io.Reader, size int64) (string, error) {
	ext, ok := avatarContentTypes[contentType]
	if !ok {
		return "", fmt.Errorf("%w: unsupported content type %q", ErrUploadRejected, contentType)
	}

	if size <= 0 {
		return "", fmt.Errorf("%w: empty file", ErrUploadRejected)
	}
	if s.maxSize > 0 && size > s.maxSize {
		return "", fmt.Errorf("%w: file exceeds %d bytes", ErrUploadRejected, s.maxSize)
	}

	// Deployments without an object-storage bucket run with no backend.
	if s.storage == nil {
		return "", fmt.Errorf("%w: no storage backend configured", ErrStorageUnavailable)
	}

	key := fmt.Sprintf("users/avatars/%s.%s", uuid.NewString(), ext)
	url, err := s.storage.Put(ctx, key, contentType, body, size)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	if err := s.users.UpdateAvatar(ctx, userID, url); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("update avatar: %w", err)
	}

	return url, nil
}
