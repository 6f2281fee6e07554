package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/avelychko/contacthub/internal/core/domain"
	"github.com/avelychko/contacthub/internal/infra/config"
	"github.com/avelychko/contacthub/internal/infra/security"
	"github.com/avelychko/contacthub/internal/repository"
	"github.com/avelychko/contacthub/internal/transport/http/middleware"
	"github.com/avelychko/contacthub/internal/transport/http/routes"
	"github.com/avelychko/contacthub/internal/usecase"
)

const testPassword = "Tr0ub4dor&3-xkcd!"

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]domain.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]domain.User)}
}

func (r *fakeUserRepo) Create(_ context.Context, user domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Email == user.Email || existing.Username == user.Username {
			return repository.ErrDuplicate
		}
	}
	r.users[user.ID] = user
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &user, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Email == email {
			u := user
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeUserRepo) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Username == username {
			u := user
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeUserRepo) Activate(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	user.IsActive = true
	r.users[id] = user
	return nil
}

func (r *fakeUserRepo) UpdatePassword(_ context.Context, id, passwordHash string, changedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	user.PasswordHash = passwordHash
	user.UpdatedAt = changedAt
	r.users[id] = user
	return nil
}

func (r *fakeUserRepo) UpdateAvatar(_ context.Context, id, avatarURL string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	user.AvatarURL = &avatarURL
	r.users[id] = user
	return nil
}

type fakeContactRepo struct {
	mu       sync.Mutex
	contacts map[string]domain.Contact
}

func newFakeContactRepo() *fakeContactRepo {
	return &fakeContactRepo{contacts: make(map[string]domain.Contact)}
}

func (r *fakeContactRepo) Create(_ context.Context, contact domain.Contact) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.contacts {
		if existing.OwnerID == contact.OwnerID && existing.Email == contact.Email {
			return repository.ErrDuplicate
		}
	}
	r.contacts[contact.ID] = contact
	return nil
}

func (r *fakeContactRepo) GetByID(_ context.Context, ownerID, id string) (*domain.Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	contact, ok := r.contacts[id]
	if !ok || contact.OwnerID != ownerID {
		return nil, repository.ErrNotFound
	}
	return &contact, nil
}

func (r *fakeContactRepo) Update(_ context.Context, ownerID, id string, update domain.ContactUpdate) (*domain.Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	contact, ok := r.contacts[id]
	if !ok || contact.OwnerID != ownerID {
		return nil, repository.ErrNotFound
	}
	if update.FirstName != nil {
		contact.FirstName = *update.FirstName
	}
	if update.LastName != nil {
		contact.LastName = *update.LastName
	}
	if update.Email != nil {
		contact.Email = *update.Email
	}
	if update.PhoneNumber != nil {
		contact.PhoneNumber = *update.PhoneNumber
	}
	if update.Birthday != nil {
		contact.Birthday = update.Birthday
	}
	if update.ExtraInfo != nil {
		contact.ExtraInfo = update.ExtraInfo
	}
	r.contacts[id] = contact
	return &contact, nil
}

func (r *fakeContactRepo) Delete(_ context.Context, ownerID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	contact, ok := r.contacts[id]
	if !ok || contact.OwnerID != ownerID {
		return repository.ErrNotFound
	}
	delete(r.contacts, id)
	return nil
}

func (r *fakeContactRepo) Search(_ context.Context, ownerID, query string) ([]domain.Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	query = strings.ToLower(query)
	var out []domain.Contact
	for _, contact := range r.contacts {
		if contact.OwnerID != ownerID {
			continue
		}
		if query == "" ||
			strings.Contains(strings.ToLower(contact.FirstName), query) ||
			strings.Contains(strings.ToLower(contact.LastName), query) ||
			strings.Contains(strings.ToLower(contact.Email), query) {
			out = append(out, contact)
		}
	}
	return out, nil
}

func (r *fakeContactRepo) UpcomingBirthdays(_ context.Context, ownerID string, from time.Time, days int) ([]domain.Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	until := from.AddDate(0, 0, days)
	var out []domain.Contact
	for _, contact := range r.contacts {
		if contact.OwnerID != ownerID || contact.Birthday == nil {
			continue
		}
		next := time.Date(from.Year(), contact.Birthday.Month(), contact.Birthday.Day(), 0, 0, 0, 0, time.UTC)
		if next.Before(from) {
			next = next.AddDate(1, 0, 0)
		}
		if !next.After(until) {
			out = append(out, contact)
		}
	}
	return out, nil
}

type fakeContactCache struct {
	mu      sync.Mutex
	entries map[string]domain.Contact
}

func newFakeContactCache() *fakeContactCache {
	return &fakeContactCache{entries: make(map[string]domain.Contact)}
}

func (c *fakeContactCache) Get(_ context.Context, contactID string) (*domain.Contact, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	contact, ok := c.entries[contactID]
	if !ok {
		return nil, false
	}
	return &contact, true
}

func (c *fakeContactCache) Set(_ context.Context, contact domain.Contact) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[contact.ID] = contact
}

func (c *fakeContactCache) Invalidate(_ context.Context, contactID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, contactID)
}

type fakeNotifier struct {
	mu                sync.Mutex
	verificationLinks []string
	resetLinks        []string
}

func (n *fakeNotifier) SendVerification(_ context.Context, _, link string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.verificationLinks = append(n.verificationLinks, link)
	return nil
}

func (n *fakeNotifier) SendPasswordReset(_ context.Context, _, link string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.resetLinks = append(n.resetLinks, link)
	return nil
}

type fakeEvents struct{}

func (fakeEvents) PublishUserRegistered(context.Context, domain.UserRegisteredEvent) error { return nil }
func (fakeEvents) PublishUserVerified(context.Context, domain.UserVerifiedEvent) error     { return nil }
func (fakeEvents) PublishPasswordChanged(context.Context, domain.PasswordChangedEvent) error {
	return nil
}

type fakeRateLimitStore struct {
	mu       sync.Mutex
	attempts map[string][]time.Time
}

func newFakeRateLimitStore() *fakeRateLimitStore {
	return &fakeRateLimitStore{attempts: make(map[string][]time.Time)}
}

func (s *fakeRateLimitStore) RecordAttempt(_ context.Context, identifier string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts[identifier] = append(s.attempts[identifier], at)
	return nil
}

func (s *fakeRateLimitStore) CountAttempts(_ context.Context, identifier string, window time.Duration, reference time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, at := range s.attempts[identifier] {
		if !at.Before(reference.Add(-window)) {
			count++
		}
	}
	return count, nil
}

func (s *fakeRateLimitStore) TrimWindow(_ context.Context, identifier string, window time.Duration, reference time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.attempts[identifier][:0]
	for _, at := range s.attempts[identifier] {
		if !at.Before(reference.Add(-window)) {
			kept = append(kept, at)
		}
	}
	s.attempts[identifier] = kept
	return nil
}

func (s *fakeRateLimitStore) OldestAttempt(_ context.Context, identifier string, window time.Duration, reference time.Time) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var oldest time.Time
	found := false
	for _, at := range s.attempts[identifier] {
		if at.Before(reference.Add(-window)) {
			continue
		}
		if !found || at.Before(oldest) {
			oldest = at
			found = true
		}
	}
	return oldest, found, nil
}

type fakeAvatarStorage struct {
	mu      sync.Mutex
	lastKey string
	objects int
}

func (s *fakeAvatarStorage) Put(_ context.Context, key, _ string, _ io.Reader, _ int64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastKey = key
	s.objects++
	return "https://cdn.example.com/" + key, nil
}

type apiFixture struct {
	engine   *gin.Engine
	notifier *fakeNotifier
	storage  *fakeAvatarStorage
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.AppConfig{
		App: config.AppSettings{
			Name:      "contacthub",
			Env:       "test",
			PublicURL: "http://localhost:8080",
		},
		JWT: config.JWTSettings{
			Secret:          "handler-test-secret",
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
			MaxSizeBytes: 1 << 20,
		},
		CORS: config.CORSSettings{
			AllowedOrigins: []string{"*"},
		},
	}

	hasher, err := security.NewPasswordHasher(security.Argon2Config{
		Memory:      8 * 1024,
		Iterations:  1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	if err != nil {
		t.Fatalf("init hasher: %v", err)
	}

	tokens, err := security.NewTokenService(security.TokenServiceConfig{
		Secret:          cfg.JWT.Secret,
		Issuer:          cfg.App.Name,
		AccessTTL:       cfg.JWT.AccessTokenTTL,
		RefreshTTL:      cfg.JWT.RefreshTokenTTL,
		VerificationTTL: cfg.JWT.VerificationTTL,
	})
	if err != nil {
		t.Fatalf("init tokens: %v", err)
	}

	validator := security.NewPasswordValidator(
		security.MinLengthRule(8),
		security.RequirePasswordStrengthRule(2),
	)

	users := newFakeUserRepo()
	contacts := newFakeContactRepo()
	notifier := &fakeNotifier{}
	avatarStorage := &fakeAvatarStorage{}
	limits := newFakeRateLimitStore()

	metrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{
		Registerer: prometheus.NewRegistry(),
	})
	if err != nil {
		t.Fatalf("init metrics: %v", err)
	}

	engine := routes.Register(routes.Dependencies{
		Config:  cfg,
		Logger:  zap.NewNop(),
		Metrics: metrics,
		Services: routes.ServiceSet{
			Auth:          usecase.NewAuthService(cfg, users, hasher, tokens, limits),
			Registration:  usecase.NewRegistrationService(cfg, users, hasher, validator, tokens, notifier, fakeEvents{}),
			PasswordReset: usecase.NewPasswordResetService(cfg, users, hasher, validator, tokens, notifier, fakeEvents{}, newFakeRateLimitStore()),
			Contacts:      usecase.NewContactService(contacts, newFakeContactCache()),
			Avatars:       usecase.NewAvatarService(users, avatarStorage, cfg.Avatar),
		},
	})

	return &apiFixture{engine: engine, notifier: notifier, storage: avatarStorage}
}

func (f *apiFixture) do(t *testing.T, method, path, token string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rr := httptest.NewRecorder()
	f.engine.ServeHTTP(rr, req)
	return rr
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), out); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
}

func tokenFromLink(t *testing.T, link string) string {
	t.Helper()
	idx := strings.LastIndex(link, "/")
	if idx < 0 || idx == len(link)-1 {
		t.Fatalf("malformed link: %q", link)
	}
	return link[idx+1:]
}

// registerAndLogin walks the signup flow and returns an access token.
func (f *apiFixture) registerAndLogin(t *testing.T, username, email string) string {
	t.Helper()

	rr := f.do(t, http.MethodPost, "/api/auth/register", "", gin.H{
		"username": username,
		"email":    email,
		"password": testPassword,
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d: %s", rr.Code, rr.Body.String())
	}

	verification := tokenFromLink(t, f.notifier.verificationLinks[len(f.notifier.verificationLinks)-1])
	rr = f.do(t, http.MethodGet, "/api/auth/confirm_email/"+verification, "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("confirm: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = f.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"identifier": email, "password": testPassword})
	if rr.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp struct {
		AccessToken string `json:"access_token"`
	}
	decodeJSON(t, rr, &resp)
	if resp.AccessToken == "" {
		t.Fatal("login response missing access token")
	}
	return resp.AccessToken
}

func TestSignupLoginAndProfile(t *testing.T) {
	f := newAPIFixture(t)

	rr := f.do(t, http.MethodPost, "/api/auth/register", "", gin.H{
		"username": "jdoe",
		"email":    "JDoe@Example.com",
		"password": testPassword,
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}

	var created struct {
		User struct {
			Email      string `json:"email"`
			IsVerified bool   `json:"is_verified"`
		} `json:"user"`
	}
	decodeJSON(t, rr, &created)
	if created.User.Email != "jdoe@example.com" {
		t.Fatalf("email must be normalized, got %q", created.User.Email)
	}
	if created.User.IsVerified {
		t.Fatal("fresh accounts must start unverified")
	}

	token := tokenFromLink(t, f.notifier.verificationLinks[0])
	if rr = f.do(t, http.MethodGet, "/api/auth/confirm_email/"+token, "", nil); rr.Code != http.StatusOK {
		t.Fatalf("confirm: expected 200, got %d", rr.Code)
	}

	rr = f.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"identifier": "jdoe@example.com", "password": testPassword})
	if rr.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var login struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		TokenType    string `json:"token_type"`
		User         struct {
			IsVerified bool `json:"is_verified"`
		} `json:"user"`
	}
	decodeJSON(t, rr, &login)
	if login.TokenType != "Bearer" {
		t.Fatalf("unexpected token type %q", login.TokenType)
	}
	if !login.User.IsVerified {
		t.Fatal("confirmed account must report verified")
	}

	rr = f.do(t, http.MethodGet, "/api/users/me", login.AccessToken, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("me: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var profile struct {
		Username string `json:"username"`
	}
	decodeJSON(t, rr, &profile)
	if profile.Username != "jdoe" {
		t.Fatalf("unexpected profile: %s", rr.Body.String())
	}
}

func TestRegisterDuplicateReturnsConflict(t *testing.T) {
	f := newAPIFixture(t)
	f.registerAndLogin(t, "jdoe", "jdoe@example.com")

	rr := f.do(t, http.MethodPost, "/api/auth/register", "", gin.H{
		"username": "other",
		"email":    "jdoe@example.com",
		"password": testPassword,
	})
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestLoginWrongPassword(t *testing.T) {
	f := newAPIFixture(t)
	f.registerAndLogin(t, "jdoe", "jdoe@example.com")

	rr := f.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"identifier": "jdoe@example.com", "password": "Wrong!Password#123"})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestLoginByUsername(t *testing.T) {
	f := newAPIFixture(t)
	f.registerAndLogin(t, "alice", "alice@example.com")

	rr := f.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"identifier": "alice", "password": testPassword})
	if rr.Code != http.StatusOK {
		t.Fatalf("username login: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var login struct {
		AccessToken string `json:"access_token"`
		User        struct {
			Username string `json:"username"`
		} `json:"user"`
	}
	decodeJSON(t, rr, &login)
	if login.AccessToken == "" {
		t.Fatal("username login must issue tokens")
	}
	if login.User.Username != "alice" {
		t.Fatalf("unexpected user in login response: %s", rr.Body.String())
	}
}

func TestLoginRateLimited(t *testing.T) {
	f := newAPIFixture(t)

	for i := 0; i < 5; i++ {
		rr := f.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"identifier": "ghost@example.com", "password": "whatever1"})
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d: expected 401, got %d", i, rr.Code)
		}
	}

	rr := f.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"identifier": "ghost@example.com", "password": "whatever1"})
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d: %s", rr.Code, rr.Body.String())
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Fatal("throttled responses must carry Retry-After")
	}
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	f := newAPIFixture(t)
	access := f.registerAndLogin(t, "jdoe", "jdoe@example.com")

	rr := f.do(t, http.MethodPost, "/api/auth/refresh_token", "", gin.H{"refresh_token": access})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestPasswordResetFlow(t *testing.T) {
	f := newAPIFixture(t)
	f.registerAndLogin(t, "jdoe", "jdoe@example.com")

	// Unknown addresses get the same 202 as known ones.
	rr := f.do(t, http.MethodPost, "/api/auth/reset_password", "", gin.H{"email": "ghost@example.com"})
	if rr.Code != http.StatusAccepted {
		t.Fatalf("unknown email: expected 202, got %d", rr.Code)
	}
	if len(f.notifier.resetLinks) != 0 {
		t.Fatal("no mail may be sent for unknown addresses")
	}

	rr = f.do(t, http.MethodPost, "/api/auth/reset_password", "", gin.H{"email": "jdoe@example.com"})
	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rr.Code)
	}

	token := tokenFromLink(t, f.notifier.resetLinks[0])
	newPassword := "N3w!Str0ng#Secret42"
	rr = f.do(t, http.MethodPost, "/api/auth/reset_password/"+token, "", gin.H{"password": newPassword})
	if rr.Code != http.StatusOK {
		t.Fatalf("confirm reset: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = f.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"identifier": "jdoe@example.com", "password": testPassword})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("old password must stop working, got %d", rr.Code)
	}
	rr = f.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"identifier": "jdoe@example.com", "password": newPassword})
	if rr.Code != http.StatusOK {
		t.Fatalf("new password must work, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestConfirmResetRejectsGarbageToken(t *testing.T) {
	f := newAPIFixture(t)

	rr := f.do(t, http.MethodPost, "/api/auth/reset_password/not-a-token", "", gin.H{"password": "N3w!Str0ng#Secret42"})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestContactsCRUD(t *testing.T) {
	f := newAPIFixture(t)
	access := f.registerAndLogin(t, "jdoe", "jdoe@example.com")

	rr := f.do(t, http.MethodPost, "/api/contacts", access, gin.H{
		"first_name":   "Jane",
		"last_name":    "Doe",
		"email":        "jane@example.com",
		"phone_number": "+380501234567",
		"birthday":     "1990-06-15",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", rr.Code, rr.Body.String())
	}

	var created struct {
		ID       string  `json:"id"`
		Birthday *string `json:"birthday"`
	}
	decodeJSON(t, rr, &created)
	if created.ID == "" {
		t.Fatal("created contact has no id")
	}
	if created.Birthday == nil || *created.Birthday != "1990-06-15" {
		t.Fatalf("birthday not round-tripped: %v", created.Birthday)
	}

	rr = f.do(t, http.MethodGet, "/api/contacts/"+created.ID, access, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", rr.Code)
	}

	rr = f.do(t, http.MethodGet, "/api/contacts?q=jane", access, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", rr.Code)
	}
	var list []json.RawMessage
	decodeJSON(t, rr, &list)
	if len(list) != 1 {
		t.Fatalf("expected one contact, got %d", len(list))
	}

	rr = f.do(t, http.MethodPut, "/api/contacts/"+created.ID, access, gin.H{"first_name": "Janet"})
	if rr.Code != http.StatusOK {
		t.Fatalf("update: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var updated struct {
		FirstName string `json:"first_name"`
	}
	decodeJSON(t, rr, &updated)
	if updated.FirstName != "Janet" {
		t.Fatalf("expected updated name, got %q", updated.FirstName)
	}

	rr = f.do(t, http.MethodDelete, "/api/contacts/"+created.ID, access, nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", rr.Code)
	}

	rr = f.do(t, http.MethodGet, "/api/contacts/"+created.ID, access, nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("get after delete: expected 404, got %d", rr.Code)
	}
}

func TestContactDuplicateEmailConflict(t *testing.T) {
	f := newAPIFixture(t)
	access := f.registerAndLogin(t, "jdoe", "jdoe@example.com")

	payload := gin.H{
		"first_name":   "Jane",
		"last_name":    "Doe",
		"email":        "jane@example.com",
		"phone_number": "+380501234567",
	}
	if rr := f.do(t, http.MethodPost, "/api/contacts", access, payload); rr.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d", rr.Code)
	}

	rr := f.do(t, http.MethodPost, "/api/contacts", access, payload)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestContactsIsolatedPerOwner(t *testing.T) {
	f := newAPIFixture(t)
	first := f.registerAndLogin(t, "jdoe", "jdoe@example.com")
	second := f.registerAndLogin(t, "asmith", "asmith@example.com")

	rr := f.do(t, http.MethodPost, "/api/contacts", first, gin.H{
		"first_name":   "Jane",
		"last_name":    "Doe",
		"email":        "jane@example.com",
		"phone_number": "+380501234567",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d", rr.Code)
	}
	var created struct {
		ID string `json:"id"`
	}
	decodeJSON(t, rr, &created)

	rr = f.do(t, http.MethodGet, "/api/contacts/"+created.ID, second, nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("foreign contact must look missing, got %d", rr.Code)
	}
}

func TestContactsRequireAuth(t *testing.T) {
	f := newAPIFixture(t)

	rr := f.do(t, http.MethodGet, "/api/contacts", "", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}

	rr = f.do(t, http.MethodGet, "/api/contacts", "garbage-token", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", rr.Code)
	}
}

func TestContactRejectsMalformedBirthday(t *testing.T) {
	f := newAPIFixture(t)
	access := f.registerAndLogin(t, "jdoe", "jdoe@example.com")

	rr := f.do(t, http.MethodPost, "/api/contacts", access, gin.H{
		"first_name":   "Jane",
		"last_name":    "Doe",
		"email":        "jane@example.com",
		"phone_number": "+380501234567",
		"birthday":     "15.06.1990",
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestUpcomingBirthdays(t *testing.T) {
	f := newAPIFixture(t)
	access := f.registerAndLogin(t, "jdoe", "jdoe@example.com")

	soon := time.Now().UTC().AddDate(0, 0, 3)
	rr := f.do(t, http.MethodPost, "/api/contacts", access, gin.H{
		"first_name":   "Jane",
		"last_name":    "Doe",
		"email":        "jane@example.com",
		"phone_number": "+380501234567",
		"birthday":     fmt.Sprintf("1990-%02d-%02d", soon.Month(), soon.Day()),
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d", rr.Code)
	}

	rr = f.do(t, http.MethodGet, "/api/contacts/birthdays", access, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("birthdays: expected 200, got %d", rr.Code)
	}
	var list []json.RawMessage
	decodeJSON(t, rr, &list)
	if len(list) != 1 {
		t.Fatalf("expected one upcoming birthday, got %d", len(list))
	}
}

func uploadAvatar(t *testing.T, f *apiFixture, token, contentType string, payload []byte) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="avatar"`)
	header.Set("Content-Type", contentType)
	part, err := w.CreatePart(header)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write(payload); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPatch, "/api/users/avatar", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	rr := httptest.NewRecorder()
	f.engine.ServeHTTP(rr, req)
	return rr
}

func TestAvatarUpload(t *testing.T) {
	f := newAPIFixture(t)
	access := f.registerAndLogin(t, "jdoe", "jdoe@example.com")

	rr := uploadAvatar(t, f, access, "image/png", []byte("fake-png-bytes"))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp struct {
		AvatarURL string `json:"avatar_url"`
	}
	decodeJSON(t, rr, &resp)
	if !strings.HasPrefix(resp.AvatarURL, "https://cdn.example.com/users/avatars/") {
		t.Fatalf("unexpected avatar url: %s", resp.AvatarURL)
	}

	rr = f.do(t, http.MethodGet, "/api/users/me", access, nil)
	var profile struct {
		AvatarURL *string `json:"avatar_url"`
	}
	decodeJSON(t, rr, &profile)
	if profile.AvatarURL == nil || *profile.AvatarURL != resp.AvatarURL {
		t.Fatalf("profile must carry the avatar url, got %v", profile.AvatarURL)
	}
}

func TestAvatarUploadRejectsUnsupportedType(t *testing.T) {
	f := newAPIFixture(t)
	access := f.registerAndLogin(t, "jdoe", "jdoe@example.com")

	rr := uploadAvatar(t, f, access, "application/pdf", []byte("%PDF-1.4"))
	if rr.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected 415, got %d: %s", rr.Code, rr.Body.String())
	}
	if f.storage.objects != 0 {
		t.Fatal("rejected uploads must never reach storage")
	}
}

func TestHealthEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	rr := f.do(t, http.MethodGet, "/healthz", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	var resp struct {
		Status string `json:"status"`
	}
	decodeJSON(t, rr, &resp)
	if resp.Status != "ok" {
		t.Fatalf("unexpected health status %q", resp.Status)
	}
}
