package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/avelychko/contacthub/internal/core/domain"
	"github.com/avelychko/contacthub/internal/core/port"
	"github.com/avelychko/contacthub/internal/infra/config"
	"github.com/avelychko/contacthub/internal/infra/logger"
	"github.com/avelychko/contacthub/internal/infra/security"
	"github.com/avelychko/contacthub/internal/repository"
)

// TokenPair is the result of a successful authentication or refresh.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// AuthService coordinates login and token refresh flows.
type AuthService struct {
	cfg        *config.AppConfig
	users      port.UserRepository
	hasher     *security.PasswordHasher
	tokens     *security.TokenService
	rateLimits port.RateLimitStore
	now        func() time.Time
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(
	cfg *config.AppConfig,
	users port.UserRepository,
	hasher *security.PasswordHasher,
	tokens *security.TokenService,
	rateLimits port.RateLimitStore,
) *AuthService {
	return &AuthService{
		cfg:        cfg,
		users:      users,
		hasher:     hasher,
		tokens:     tokens,
		rateLimits: rateLimits,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Authenticate validates credentials and issues an access and refresh token
// pair. The identifier is a username, or an email when it contains "@". An
// unknown account and a wrong password produce the same error, and only
// failed attempts count toward the login rate limit. Unverified accounts may
// log in; only email-gated features stay closed.
func (s *AuthService) Authenticate(ctx context.Context, identifier, password string) (TokenPair, domain.User, error) {
	identifier = strings.TrimSpace(identifier)
	if strings.ContainsRune(identifier, '@') {
		identifier = strings.ToLower(identifier)
	}
	if identifier == "" || password == "" {
		return TokenPair{}, domain.User{}, ErrUnauthorized
	}

	if err := s.checkLoginLimit(ctx, identifier); err != nil {
		return TokenPair{}, domain.User{}, err
	}

	user, err := s.lookupAccount(ctx, identifier)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.recordLoginFailure(ctx, identifier)
			return TokenPair{}, domain.User{}, ErrUnauthorized
		}
		return TokenPair{}, domain.User{}, fmt.Errorf("lookup user: %w", err)
	}

	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		return TokenPair{}, domain.User{}, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		s.recordLoginFailure(ctx, identifier)
		return TokenPair{}, domain.User{}, ErrUnauthorized
	}

	pair, err := s.issuePair(user.ID)
	if err != nil {
		return TokenPair{}, domain.User{}, err
	}

	sanitized := *user
	sanitized.PasswordHash = ""
	return pair, sanitized, nil
}

// Refresh exchanges a valid refresh token for a new token pair. Tokens are
// stateless, so the old pair keeps working until it expires. The subject
// must still resolve to an account; a deleted user cannot mint tokens.
func (s *AuthService) Refresh(ctx context.Context, rawToken string) (TokenPair, error) {
	claims, err := s.tokens.Validate(rawToken, security.TokenKindRefresh)
	if err != nil {
		return TokenPair{}, ErrInvalidToken
	}

	user, err := s.users.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return TokenPair{}, ErrInvalidToken
		}
		return TokenPair{}, fmt.Errorf("lookup user: %w", err)
	}

	return s.issuePair(user.ID)
}

// CurrentUser resolves the profile behind a validated access token subject.
func (s *AuthService) CurrentUser(ctx context.Context, userID string) (domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.User{}, ErrNotFound
		}
		return domain.User{}, fmt.Errorf("lookup user: %w", err)
	}

	sanitized := *user
	sanitized.PasswordHash = ""
	return sanitized, nil
}

// ValidateAccessToken checks an access token and returns the subject user ID.
func (s *AuthService) ValidateAccessToken(rawToken string) (string, error) {
	claims, err := s.tokens.Validate(rawToken, security.TokenKindAccess)
	if err != nil {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

func (s *AuthService) issuePair(userID string) (TokenPair, error) {
	access, err := s.tokens.Issue(security.TokenKindAccess, userID)
	if err != nil {
		return TokenPair{}, fmt.Errorf("issue access token: %w", err)
	}

	refresh, err := s.tokens.Issue(security.TokenKindRefresh, userID)
	if err != nil {
		return TokenPair{}, fmt.Errorf("issue refresh token: %w", err)
	}

	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// lookupAccount resolves the login identifier to a user, by email when it
// looks like an address and by username otherwise.
func (s *AuthService) lookupAccount(ctx context.Context, identifier string) (*domain.User, error) {
	if strings.ContainsRune(identifier, '@') {
		return s.users.GetByEmail(ctx, identifier)
	}
	return s.users.GetByUsername(ctx, identifier)
}

func (s *AuthService) checkLoginLimit(ctx context.Context, identifier string) error {
	return checkRateLimit(ctx, s.rateLimits, "login:"+identifier,
		s.cfg.RateLimit.LoginMaxAttempts, s.cfg.RateLimit.WindowDuration, s.now())
}

// recordLoginFailure counts a rejected credential toward the sliding window.
// Successful logins are never recorded, so legitimate activity inside the
// window cannot trip the limit.
func (s *AuthService) recordLoginFailure(ctx context.Context, identifier string) {
	if s.cfg.RateLimit.LoginMaxAttempts <= 0 || s.cfg.RateLimit.WindowDuration <= 0 {
		return
	}
	recordRateLimitAttempt(ctx, s.rateLimits, "login:"+identifier, s.now())
}

// checkRateLimit rejects the attempt once the window holds the maximum,
// without recording anything. Storage failures let the attempt through so an
// unavailable Redis never locks everyone out.
func checkRateLimit(ctx context.Context, store port.RateLimitStore, key string, max int, window time.Duration, now time.Time) error {
	if store == nil || max <= 0 || window <= 0 {
		return nil
	}

	if err := store.TrimWindow(ctx, key, window, now); err != nil {
		logger.WithContext(ctx).Warn("rate limit trim failed", zap.Error(err))
		return nil
	}

	count, err := store.CountAttempts(ctx, key, window, now)
	if err != nil {
		logger.WithContext(ctx).Warn("rate limit count failed", zap.Error(err))
		return nil
	}

	if count >= max {
		retryAfter := window
		if oldest, ok, err := store.OldestAttempt(ctx, key, window, now); err == nil && ok {
			retryAfter = oldest.Add(window).Sub(now)
			if retryAfter < 0 {
				retryAfter = 0
			}
		}
		return &RateLimitExceededError{RetryAfter: retryAfter}
	}

	return nil
}

func recordRateLimitAttempt(ctx context.Context, store port.RateLimitStore, key string, now time.Time) {
	if store == nil {
		return
	}
	if err := store.RecordAttempt(ctx, key, now); err != nil {
		logger.WithContext(ctx).Warn("rate limit record failed", zap.Error(err))
	}
}

// enforceRateLimit checks the window and, when the attempt is allowed,
// records it. Used where every request is an attempt, such as reset mails.
func enforceRateLimit(ctx context.Context, store port.RateLimitStore, key string, max int, window time.Duration, now time.Time) error {
	if err := checkRateLimit(ctx, store, key, max, window, now); err != nil {
		return err
	}
	if max > 0 && window > 0 {
		recordRateLimitAttempt(ctx, store, key, now)
	}
	return nil
}
