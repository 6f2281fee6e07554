package usecase

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/avelychko/contacthub/internal/core/domain"
	"github.com/avelychko/contacthub/internal/infra/config"
	"github.com/avelychko/contacthub/internal/infra/security"
	"github.com/avelychko/contacthub/internal/repository"
)

const strongTestPassword = "Sup3r!SecurePass#7890"

// mockUserRepository is an in-memory user store keyed by ID.
type mockUserRepository struct {
	mu    sync.Mutex
	users map[string]domain.User

	createErr error
	getErr    error
}

func newMockUserRepository() *mockUserRepository {
	return &mockUserRepository{users: make(map[string]domain.User)}
}

func (m *mockUserRepository) Create(_ context.Context, user domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	for _, existing := range m.users {
		if existing.Email == user.Email || existing.Username == user.Username {
			return repository.ErrDuplicate
		}
	}
	m.users[user.ID] = user
	return nil
}

func (m *mockUserRepository) GetByID(_ context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	user, ok := m.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := user
	return &copy, nil
}

func (m *mockUserRepository) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	for _, user := range m.users {
		if user.Email == email {
			copy := user
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *mockUserRepository) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.Username == username {
			copy := user
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *mockUserRepository) Activate(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	user.IsActive = true
	m.users[id] = user
	return nil
}

func (m *mockUserRepository) UpdatePassword(_ context.Context, id, passwordHash string, changedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	user.PasswordHash = passwordHash
	user.UpdatedAt = changedAt
	m.users[id] = user
	return nil
}

func (m *mockUserRepository) UpdateAvatar(_ context.Context, id, avatarURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	user.AvatarURL = &avatarURL
	m.users[id] = user
	return nil
}

// mockContactRepository records calls and serves canned results.
type mockContactRepository struct {
	createErr     error
	created       []domain.Contact
	getResult     *domain.Contact
	getErr        error
	getCalls      int
	updateResult  *domain.Contact
	updateErr     error
	deleteErr     error
	searchResult  []domain.Contact
	searchErr     error
	searchQuery   string
	birthdays     []domain.Contact
	birthdaysErr  error
	birthdaysDays int
}

func (m *mockContactRepository) Create(_ context.Context, contact domain.Contact) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.created = append(m.created, contact)
	return nil
}

func (m *mockContactRepository) GetByID(_ context.Context, _, _ string) (*domain.Contact, error) {
	m.getCalls++
	if m.getErr != nil {
		return nil, m.getErr
	}
	if m.getResult == nil {
		return nil, repository.ErrNotFound
	}
	copy := *m.getResult
	return &copy, nil
}

func (m *mockContactRepository) Update(_ context.Context, _, _ string, _ domain.ContactUpdate) (*domain.Contact, error) {
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	copy := *m.updateResult
	return &copy, nil
}

func (m *mockContactRepository) Delete(_ context.Context, _, _ string) error {
	return m.deleteErr
}

func (m *mockContactRepository) Search(_ context.Context, _, query string) ([]domain.Contact, error) {
	m.searchQuery = query
	return m.searchResult, m.searchErr
}

func (m *mockContactRepository) UpcomingBirthdays(_ context.Context, _ string, _ time.Time, days int) ([]domain.Contact, error) {
	m.birthdaysDays = days
	return m.birthdays, m.birthdaysErr
}

// mockContactCache is a map-backed cache that counts operations.
type mockContactCache struct {
	entries     map[string]domain.Contact
	sets        int
	invalidated []string
}

func newMockContactCache() *mockContactCache {
	return &mockContactCache{entries: make(map[string]domain.Contact)}
}

func (m *mockContactCache) Get(_ context.Context, contactID string) (*domain.Contact, bool) {
	contact, ok := m.entries[contactID]
	if !ok {
		return nil, false
	}
	copy := contact
	return &copy, true
}

func (m *mockContactCache) Set(_ context.Context, contact domain.Contact) {
	m.sets++
	m.entries[contact.ID] = contact
}

func (m *mockContactCache) Invalidate(_ context.Context, contactID string) {
	m.invalidated = append(m.invalidated, contactID)
	delete(m.entries, contactID)
}

// mockNotifier captures outgoing mail.
type mockNotifier struct {
	verificationLinks   []string
	resetLinks          []string
	lastRecipient       string
	sendVerificationErr error
	sendResetErr        error
}

func (m *mockNotifier) SendVerification(_ context.Context, email, link string) error {
	m.lastRecipient = email
	m.verificationLinks = append(m.verificationLinks, link)
	return m.sendVerificationErr
}

func (m *mockNotifier) SendPasswordReset(_ context.Context, email, link string) error {
	m.lastRecipient = email
	m.resetLinks = append(m.resetLinks, link)
	return m.sendResetErr
}

// mockEventPublisher records published events.
type mockEventPublisher struct {
	registered []domain.UserRegisteredEvent
	verified   []domain.UserVerifiedEvent
	changed    []domain.PasswordChangedEvent
	publishErr error
}

func (m *mockEventPublisher) PublishUserRegistered(_ context.Context, event domain.UserRegisteredEvent) error {
	m.registered = append(m.registered, event)
	return m.publishErr
}

func (m *mockEventPublisher) PublishUserVerified(_ context.Context, event domain.UserVerifiedEvent) error {
	m.verified = append(m.verified, event)
	return m.publishErr
}

func (m *mockEventPublisher) PublishPasswordChanged(_ context.Context, event domain.PasswordChangedEvent) error {
	m.changed = append(m.changed, event)
	return m.publishErr
}

// mockRateLimitStore is an in-memory sliding window store.
type mockRateLimitStore struct {
	attempts map[string][]time.Time
	failWith error
}

func newMockRateLimitStore() *mockRateLimitStore {
	return &mockRateLimitStore{attempts: make(map[string][]time.Time)}
}

func (m *mockRateLimitStore) RecordAttempt(_ context.Context, identifier string, at time.Time) error {
	if m.failWith != nil {
		return m.failWith
	}
	m.attempts[identifier] = append(m.attempts[identifier], at)
	return nil
}

func (m *mockRateLimitStore) CountAttempts(_ context.Context, identifier string, window time.Duration, reference time.Time) (int, error) {
	if m.failWith != nil {
		return 0, m.failWith
	}
	count := 0
	for _, at := range m.attempts[identifier] {
		if !at.Before(reference.Add(-window)) && !at.After(reference) {
			count++
		}
	}
	return count, nil
}

func (m *mockRateLimitStore) TrimWindow(_ context.Context, identifier string, window time.Duration, reference time.Time) error {
	if m.failWith != nil {
		return m.failWith
	}
	kept := m.attempts[identifier][:0]
	for _, at := range m.attempts[identifier] {
		if !at.Before(reference.Add(-window)) {
			kept = append(kept, at)
		}
	}
	m.attempts[identifier] = kept
	return nil
}

func (m *mockRateLimitStore) OldestAttempt(_ context.Context, identifier string, window time.Duration, reference time.Time) (time.Time, bool, error) {
	if m.failWith != nil {
		return time.Time{}, false, m.failWith
	}
	var oldest time.Time
	found := false
	for _, at := range m.attempts[identifier] {
		if at.Before(reference.Add(-window)) || at.After(reference) {
			continue
		}
		if !found || at.Before(oldest) {
			oldest = at
			found = true
		}
	}
	return oldest, found, nil
}

// mockAvatarStorage records uploads.
type mockAvatarStorage struct {
	putErr   error
	putCalls int
	lastKey  string
	lastType string
}

func (m *mockAvatarStorage) Put(_ context.Context, key, contentType string, _ io.Reader, _ int64) (string, error) {
	m.putCalls++
	m.lastKey = key
	m.lastType = contentType
	if m.putErr != nil {
		return "", m.putErr
	}
	return "https://cdn.example.com/" + key, nil
}

var errBackend = errors.New("backend failure")

func newTestConfig() *config.AppConfig {
	return &config.AppConfig{
		App: config.AppSettings{
			Name:      "contacthub",
			Env:       "test",
			PublicURL: "http://localhost:8080",
		},
		JWT: config.JWTSettings{
			Secret:          "unit-test-secret",
			AccessTokenTTL:  30 * time.Minute,
			RefreshTokenTTL: 168 * time.Hour,
			VerificationTTL: 24 * time.Hour,
		},
		RateLimit: config.RateLimitSettings{
			WindowDuration:           time.Minute,
			LoginMaxAttempts:         5,
			PasswordResetMaxAttempts: 3,
		},
		Avatar: config.AvatarSettings{
			MaxSizeBytes: 1024,
		},
	}
}

func newTestTokens(t *testing.T, now func() time.Time) *security.TokenService {
	t.Helper()

	svc, err := security.NewTokenService(security.TokenServiceConfig{
		Secret:          "unit-test-secret",
		Issuer:          "contacthub",
		AccessTTL:       30 * time.Minute,
		RefreshTTL:      168 * time.Hour,
		VerificationTTL: 24 * time.Hour,
	}, security.WithClock(now))
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return svc
}

func newTestHasher(t *testing.T) *security.PasswordHasher {
	t.Helper()

	hasher, err := security.NewPasswordHasher(security.Argon2Config{
		Memory:      8 * 1024,
		Iterations:  1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	if err != nil {
		t.Fatalf("NewPasswordHasher: %v", err)
	}
	return hasher
}

func newTestValidator() *security.PasswordValidator {
	return security.NewPasswordValidator(
		security.MinLengthRule(8),
		security.RequirePasswordStrengthRule(2),
	)
}
