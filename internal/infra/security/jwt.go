package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	uuid "github.com/google/uuid"
)

// ErrInvalidToken covers every way a token can fail validation: bad
// signature, expired, malformed, or carrying the wrong kind. Callers get one
// sentinel so the failure reason never leaks to a client.
var ErrInvalidToken = errors.New("jwt: invalid token")

// TokenKind distinguishes the three token families the service issues.
// The kind travels inside the signed payload, so a token minted for one
// purpose can never pass validation for another.
type TokenKind string

const (
	TokenKindAccess       TokenKind = "access"
	TokenKindRefresh      TokenKind = "refresh"
	TokenKindVerification TokenKind = "verification"
)

func (k TokenKind) valid() bool {
	switch k {
	case TokenKindAccess, TokenKindRefresh, TokenKindVerification:
		return true
	}
	return false
}

// Claims is the signed payload of every token the service produces.
type Claims struct {
	Kind TokenKind `json:"knd"`
	jwt.RegisteredClaims
}

// TokenServiceConfig configures a TokenService.
type TokenServiceConfig struct {
	Secret          string
	Issuer          string
	AccessTTL       time.Duration
	RefreshTTL      time.Duration
	VerificationTTL time.Duration
}

// TokenService mints and validates HMAC-SHA-256 signed tokens. All state is
// fixed at construction; the service is safe for concurrent use.
type TokenService struct {
	secret []byte
	issuer string
	ttls   map[TokenKind]time.Duration
	now    func() time.Time
}

// TokenServiceOption customizes TokenService construction.
type TokenServiceOption func(*TokenService)

// WithClock overrides the time source, used by tests to pin expiry.
func WithClock(now func() time.Time) TokenServiceOption {
	return func(s *TokenService) {
		s.now = now
	}
}

// NewTokenService validates the configuration and returns a TokenService.
func NewTokenService(cfg TokenServiceConfig, opts ...TokenServiceOption) (*TokenService, error) {
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, fmt.Errorf("jwt: signing secret is required")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 || cfg.VerificationTTL <= 0 {
		return nil, fmt.Errorf("jwt: all token lifetimes must be positive")
	}

	s := &TokenService{
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
		ttls: map[TokenKind]time.Duration{
			TokenKindAccess:       cfg.AccessTTL,
			TokenKindRefresh:      cfg.RefreshTTL,
			TokenKindVerification: cfg.VerificationTTL,
		},
		now: func() time.Time { return time.Now().UTC() },
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Issue mints a token of the given kind for the subject. The lifetime is the
// configured TTL for that kind, measured from the service clock.
func (s *TokenService) Issue(kind TokenKind, subject string) (string, error) {
	if !kind.valid() {
		return "", fmt.Errorf("jwt: unknown token kind %q", kind)
	}
	if strings.TrimSpace(subject) == "" {
		return "", fmt.Errorf("jwt: subject is required")
	}

	now := s.now().UTC()
	claims := Claims{
		Kind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttls[kind])),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("jwt: sign token: %w", err)
	}

	return signed, nil
}

// Validate parses the raw token, checks the signature and expiry, and
// requires the embedded kind to match expectedKind. Any failure, including a
// kind mismatch, comes back as ErrInvalidToken.
func (s *TokenService) Validate(raw string, expectedKind TokenKind) (*Claims, error) {
	if !expectedKind.valid() {
		return nil, fmt.Errorf("jwt: unknown token kind %q", expectedKind)
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims,
		func(t *jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	if claims.Kind != expectedKind {
		return nil, fmt.Errorf("%w: kind mismatch", ErrInvalidToken)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	return claims, nil
}
