package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/avelychko/contacthub/internal/core/domain"
	"github.com/avelychko/contacthub/internal/core/port"
	"github.com/avelychko/contacthub/internal/infra/config"
	"github.com/avelychko/contacthub/internal/infra/logger"
	"github.com/avelychko/contacthub/internal/infra/security"
	"github.com/avelychko/contacthub/internal/repository"
)

// PasswordResetService handles the forgot-password flow. Reset links carry
// verification-kind tokens, the same family used for email confirmation,
// since both prove control of the mailbox.
type PasswordResetService struct {
	cfg        *config.AppConfig
	users      port.UserRepository
	hasher     *security.PasswordHasher
	validator  *security.PasswordValidator
	tokens     *security.TokenService
	notifier   port.NotificationSender
	events     port.EventPublisher
	rateLimits port.RateLimitStore
	now        func() time.Time
}

// NewPasswordResetService constructs a PasswordResetService instance.
func NewPasswordResetService(
	cfg *config.AppConfig,
	users port.UserRepository,
	hasher *security.PasswordHasher,
	validator *security.PasswordValidator,
	tokens *security.TokenService,
	notifier port.NotificationSender,
	events port.EventPublisher,
	rateLimits port.RateLimitStore,
) *PasswordResetService {
	return &PasswordResetService{
		cfg:        cfg,
		users:      users,
		hasher:     hasher,
		validator:  validator,
		tokens:     tokens,
		notifier:   notifier,
		events:     events,
		rateLimits: rateLimits,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// RequestReset emails a reset link to the account behind the address.
// Unknown addresses come back as ErrNotFound; the HTTP layer hides the
// difference from clients.
func (s *PasswordResetService) RequestReset(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return ErrNotFound
	}

	if err := enforceRateLimit(ctx, s.rateLimits, "pwreset:"+email,
		s.cfg.RateLimit.PasswordResetMaxAttempts, s.cfg.RateLimit.WindowDuration, s.now()); err != nil {
		return err
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("lookup user: %w", err)
	}

	token, err := s.tokens.Issue(security.TokenKindVerification, user.ID)
	if err != nil {
		return fmt.Errorf("issue reset token: %w", err)
	}

	link := fmt.Sprintf("%s/api/auth/reset_password/%s", strings.TrimRight(s.cfg.App.PublicURL, "/"), token)
	if err := s.notifier.SendPasswordReset(ctx, user.Email, link); err != nil {
		logger.WithContext(ctx).Warn("reset mail not delivered",
			zap.String("email", logger.MaskEmail(user.Email)),
			zap.Error(err),
		)
	}

	return nil
}

// ConfirmReset validates the reset token and replaces the credential. The
// flow proves mailbox control, so an unverified account is activated too.
func (s *PasswordResetService) ConfirmReset(ctx context.Context, rawToken, newPassword string) error {
	claims, err := s.tokens.Validate(rawToken, security.TokenKindVerification)
	if err != nil {
		return ErrInvalidToken
	}

	if err := s.validator.Validate(newPassword); err != nil {
		var violation *security.PasswordValidationError
		if errors.As(err, &violation) {
			return fmt.Errorf("%w: %s", ErrWeakPassword, violation.Message)
		}
		return fmt.Errorf("validate password: %w", err)
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	changedAt := s.now()
	if err := s.users.UpdatePassword(ctx, claims.Subject, hash, changedAt); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("update password: %w", err)
	}

	if err := s.users.Activate(ctx, claims.Subject); err != nil && !errors.Is(err, repository.ErrNotFound) {
		logger.WithContext(ctx).Warn("activate user after reset failed",
			zap.String("user_id", claims.Subject),
			zap.Error(err),
		)
	}

	if err := s.events.PublishPasswordChanged(ctx, domain.PasswordChangedEvent{
		EventID:   uuid.NewString(),
		UserID:    claims.Subject,
		ChangedAt: changedAt,
		Source:    "reset",
	}); err != nil {
		logger.WithContext(ctx).Warn("publish password changed event failed",
			zap.String("user_id", claims.Subject),
			zap.Error(err),
		)
	}

	return nil
}
