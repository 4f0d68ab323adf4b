package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dpereira/auth-service/internal/apperror"
	"github.com/dpereira/auth-service/internal/auth"
	"github.com/dpereira/auth-service/internal/model"
	"github.com/dpereira/auth-service/internal/repository"
)

// fakeUserRepo is an in-memory repository.UserRepository.
type fakeUserRepo struct {
	mu     sync.Mutex
	nextID int
	users  map[string]*model.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*model.User)}
}

func (f *fakeUserRepo) Create(_ context.Context, user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == user.Email {
			return apperror.Conflict("User already exists")
		}
	}
	f.nextID++
	user.ID = fmt.Sprintf("user-%d", f.nextID)
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	clone := *user
	f.users[user.ID] = &clone
	return nil
}

func (f *fakeUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	clone := *u
	return &clone, nil
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			clone := *u
			return &clone, nil
		}
	}
	return nil, apperror.NotFound("user", email)
}

func (f *fakeUserRepo) GetByGoogleID(_ context.Context, googleID string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if googleID == "" {
		return nil, apperror.NotFound("user", googleID)
	}
	for _, u := range f.users {
		if u.GoogleID == googleID {
			clone := *u
			return &clone, nil
		}
	}
	return nil, apperror.NotFound("user", googleID)
}

func (f *fakeUserRepo) List(_ context.Context, _ repository.ListOptions) ([]model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.User, 0, len(f.users))
	for _, u := range f.users {
		out = append(out, *u)
	}
	return out, nil
}

func (f *fakeUserRepo) UpdateProfile(_ context.Context, id, name, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return apperror.NotFound("user", id)
	}
	u.Name = name
	u.Email = email
	u.UpdatedAt = time.Now()
	return nil
}

func (f *fakeUserRepo) UpdatePassword(_ context.Context, id, passwordHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return apperror.NotFound("user", id)
	}
	u.PasswordHash = passwordHash
	u.UpdatedAt = time.Now()
	return nil
}

func (f *fakeUserRepo) LinkGoogleID(_ context.Context, id, googleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return apperror.NotFound("user", id)
	}
	u.GoogleID = googleID
	u.UpdatedAt = time.Now()
	return nil
}

func (f *fakeUserRepo) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[id]; !ok {
		return apperror.NotFound("user", id)
	}
	delete(f.users, id)
	return nil
}

// fakeRefreshRepo is an in-memory repository.RefreshTokenRepository.
type fakeRefreshRepo struct {
	mu     sync.Mutex
	nextID int
	byTok  map[string]*model.RefreshToken
}

func newFakeRefreshRepo() *fakeRefreshRepo {
	return &fakeRefreshRepo{byTok: make(map[string]*model.RefreshToken)}
}

func (f *fakeRefreshRepo) Replace(_ context.Context, userID, token string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for t, rt := range f.byTok {
		if rt.UserID == userID {
			delete(f.byTok, t)
		}
	}
	f.nextID++
	now := time.Now()
	f.byTok[token] = &model.RefreshToken{
		ID:        fmt.Sprintf("rt-%d", f.nextID),
		UserID:    userID,
		Token:     token,
		ExpiresAt: expiresAt,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return nil
}

func (f *fakeRefreshRepo) GetByToken(_ context.Context, token string) (*model.RefreshToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rt, ok := f.byTok[token]
	if !ok {
		return nil, nil
	}
	clone := *rt
	return &clone, nil
}

func (f *fakeRefreshRepo) DeleteByToken(_ context.Context, token string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byTok[token]; !ok {
		return false, nil
	}
	delete(f.byTok, token)
	return true, nil
}

func (f *fakeRefreshRepo) DeleteByUserID(_ context.Context, userID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	any := false
	for t, rt := range f.byTok {
		if rt.UserID == userID {
			delete(f.byTok, t)
			any = true
		}
	}
	return any, nil
}

// count reports how many tokens a user currently holds.
func (f *fakeRefreshRepo) count(userID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, rt := range f.byTok {
		if rt.UserID == userID {
			n++
		}
	}
	return n
}

// expire backdates a stored token so it reads as expired.
func (f *fakeRefreshRepo) expire(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rt, ok := f.byTok[token]; ok {
		rt.ExpiresAt = time.Now().Add(-time.Minute)
	}
}

// fakeMailer records the last password-reset mail it was asked to send.
type fakeMailer struct {
	mu       sync.Mutex
	lastTo   string
	lastLink string
	err      error
}

func (f *fakeMailer) SendPasswordReset(_ context.Context, to, link string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.lastTo = to
	f.lastLink = link
	return nil
}

func listAll() repository.ListOptions {
	return repository.ListOptions{Limit: 100}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testEnv bundles the fully wired service stack on in-memory fakes.
type testEnv struct {
	users   *fakeUserRepo
	refresh *fakeRefreshRepo
	mailer  *fakeMailer
	tokens  *auth.TokenService
	auth    *AuthService
	rts     *RefreshTokenService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	tokens, err := auth.NewTokenService("test-secret-at-least-16-chars!!", time.Hour, time.Hour)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}

	users := newFakeUserRepo()
	refresh := newFakeRefreshRepo()
	mailer := &fakeMailer{}
	logger := testLogger()

	rts := NewRefreshTokenService(refresh, 30*24*time.Hour, logger)
	authSvc := NewAuthService(users, tokens, auth.NewPasswordServiceForTest(4), rts, mailer, "http://client.test", logger)

	return &testEnv{
		users:   users,
		refresh: refresh,
		mailer:  mailer,
		tokens:  tokens,
		auth:    authSvc,
		rts:     rts,
	}
}
