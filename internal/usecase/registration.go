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

// RegistrationService handles account creation and email verification.
type RegistrationService struct {
	cfg       *config.AppConfig
	users     port.UserRepository
	hasher    *security.PasswordHasher
	validator *security.PasswordValidator
	tokens    *security.TokenService
	notifier  port.NotificationSender
	events    port.EventPublisher
	now       func() time.Time
}

// NewRegistrationService constructs a RegistrationService instance.
func NewRegistrationService(
	cfg *config.AppConfig,
	users port.UserRepository,
	hasher *security.PasswordHasher,
	validator *security.PasswordValidator,
	tokens *security.TokenService,
	notifier port.NotificationSender,
	events port.EventPublisher,
) *RegistrationService {
	return &RegistrationService{
		cfg:       cfg,
		users:     users,
		hasher:    hasher,
		validator: validator,
		tokens:    tokens,
		notifier:  notifier,
		events:    events,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Register creates an unverified account, emails the activation link, and
// returns the stored user without the credential hash.
func (s *RegistrationService) Register(ctx context.Context, username, email, password string) (domain.User, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))

	if username == "" {
		return domain.User{}, fmt.Errorf("username is required")
	}
	if email == "" || !strings.Contains(email, "@") {
		return domain.User{}, fmt.Errorf("a valid email is required")
	}

	if err := s.validator.Validate(password); err != nil {
		var violation *security.PasswordValidationError
		if errors.As(err, &violation) {
			return domain.User{}, fmt.Errorf("%w: %s", ErrWeakPassword, violation.Message)
		}
		return domain.User{}, fmt.Errorf("validate password: %w", err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	user := domain.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		IsActive:     false,
		RegisteredAt: now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return domain.User{}, ErrDuplicateIdentity
		}
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}

	s.sendVerificationMail(ctx, user)

	if err := s.events.PublishUserRegistered(ctx, domain.UserRegisteredEvent{
		EventID:      uuid.NewString(),
		UserID:       user.ID,
		Email:        user.Email,
		RegisteredAt: now,
	}); err != nil {
		logger.WithContext(ctx).Warn("publish user registered event failed",
			zap.String("user_id", user.ID),
			zap.Error(err),
		)
	}

	user.PasswordHash = ""
	return user, nil
}

// ResendVerification issues a fresh verification link for an unverified
// account. Active accounts get nothing, but the caller cannot tell.
func (s *RegistrationService) ResendVerification(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("lookup user: %w", err)
	}

	if user.IsActive {
		return nil
	}

	s.sendVerificationMail(ctx, *user)
	return nil
}

// VerifyEmail validates the verification token and activates the account.
// Verifying an already active account succeeds without side effects.
func (s *RegistrationService) VerifyEmail(ctx context.Context, rawToken string) error {
	claims, err := s.tokens.Validate(rawToken, security.TokenKindVerification)
	if err != nil {
		return ErrInvalidToken
	}

	if err := s.users.Activate(ctx, claims.Subject); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("activate user: %w", err)
	}

	if err := s.events.PublishUserVerified(ctx, domain.UserVerifiedEvent{
		EventID:    uuid.NewString(),
		UserID:     claims.Subject,
		VerifiedAt: s.now(),
	}); err != nil {
		logger.WithContext(ctx).Warn("publish user verified event failed",
			zap.String("user_id", claims.Subject),
			zap.Error(err),
		)
	}

	return nil
}

func (s *RegistrationService) sendVerificationMail(ctx context.Context, user domain.User) {
	token, err := s.tokens.Issue(security.TokenKindVerification, user.ID)
	if err != nil {
		logger.WithContext(ctx).Error("issue verification token failed",
			zap.String("user_id", user.ID),
			zap.Error(err),
		)
		return
	}

	link := fmt.Sprintf("%s/api/auth/confirm_email/%s", strings.TrimRight(s.cfg.App.PublicURL, "/"), token)
	if err := s.notifier.SendVerification(ctx, user.Email, link); err != nil {
		logger.WithContext(ctx).Warn("verification mail not delivered",
			zap.String("email", logger.MaskEmail(user.Email)),
			zap.Error(err),
		)
	}
}
