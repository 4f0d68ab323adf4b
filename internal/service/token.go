// Package service holds the business logic between the HTTP handlers and
// the repositories. Handlers never touch storage; repositories never see
// HTTP.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dpereira/auth-service/internal/repository"
)

// RefreshTokenService owns the stored, long-lived half of a session.
//
// Refresh tokens are opaque v4 UUIDs, persisted with their owning user and
// expiry. There is no in-memory cache: every verification hits storage, so
// issued tokens survive a process restart and revocation is immediate.
type RefreshTokenService struct {
	repo   repository.RefreshTokenRepository
	ttl    time.Duration
	logger *slog.Logger
}

// NewRefreshTokenService creates a RefreshTokenService. ttl is how long an
// issued token lives (the 30-day session horizon).
func NewRefreshTokenService(repo repository.RefreshTokenRepository, ttl time.Duration, logger *slog.Logger) *RefreshTokenService {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &RefreshTokenService{repo: repo, ttl: ttl, logger: logger}
}

// Issue mints a fresh refresh token for the user and persists it,
// atomically deleting any previous tokens the user held. Single active
// token per user: issuing is also rotation, and rotation is also
// revocation of the old token.
//
// Two concurrent Issue calls for one user are last-writer-wins; the losing
// caller's token fails verification on first use and the client re-logs-in.
func (s *RefreshTokenService) Issue(ctx context.Context, userID string) (string, error) {
	token := uuid.NewString()
	expiresAt := time.Now().Add(s.ttl)

	if err := s.repo.Replace(ctx, userID, token, expiresAt); err != nil {
		return "", fmt.Errorf("service/token: issuing refresh token for user %s: %w", userID, err)
	}

	return token, nil
}

// VerifyRefreshToken resolves a refresh token to its owning user id.
// Returns ("", nil) when the token is unknown or expired — expected
// outcomes, not errors. Expired rows are deleted on sight (lazy cleanup),
// and verifying the same expired token twice is a harmless no-op the
// second time.
//
// The method name satisfies auth.RefreshVerifier so the session guard can
// take this service directly.
func (s *RefreshTokenService) VerifyRefreshToken(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", nil
	}

	stored, err := s.repo.GetByToken(ctx, token)
	if err != nil {
		return "", fmt.Errorf("service/token: looking up refresh token: %w", err)
	}
	if stored == nil {
		return "", nil
	}

	if stored.Expired(time.Now()) {
		if _, err := s.repo.DeleteByToken(ctx, token); err != nil {
			// Cleanup failure doesn't change the verdict; the token is
			// still expired. Log and move on.
			s.logger.Warn("failed to delete expired refresh token",
				slog.String("userID", stored.UserID),
				slog.String("error", err.Error()),
			)
		}
		return "", nil
	}

	return stored.UserID, nil
}

// Revoke deletes one refresh token. The bool reports whether it existed;
// revoking an already-gone token is not an error.
func (s *RefreshTokenService) Revoke(ctx context.Context, token string) (bool, error) {
	deleted, err := s.repo.DeleteByToken(ctx, token)
	if err != nil {
		return false, fmt.Errorf("service/token: revoking refresh token: %w", err)
	}
	return deleted, nil
}

// RevokeAllForUser deletes every refresh token the user holds. Used on
// password reset and account deletion.
func (s *RefreshTokenService) RevokeAllForUser(ctx context.Context, userID string) (bool, error) {
	deleted, err := s.repo.DeleteByUserID(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("service/token: revoking tokens for user %s: %w", userID, err)
	}
	return deleted, nil
}
