package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dpereira/auth-service/internal/apperror"
	"github.com/dpereira/auth-service/internal/auth"
	"github.com/dpereira/auth-service/internal/mail"
	"github.com/dpereira/auth-service/internal/model"
	"github.com/dpereira/auth-service/internal/repository"
)

// Session is the uniform success result of every session-establishing
// operation: register, login, refresh, and Google sign-in all end here.
// The handler sets the refresh token as an HTTP-only cookie and returns
// the access token in the body.
type Session struct {
	User         *model.User
	AccessToken  string
	RefreshToken string
}

// AuthService orchestrates session establishment against the credential
// store and the token services. Expected business failures (duplicate
// email, bad credentials, dead refresh token) come back as apperrors;
// anything else is an infrastructure error for the handler to log and mask.
type AuthService struct {
	users         repository.UserRepository
	tokens        *auth.TokenService
	passwords     *auth.PasswordService
	refreshTokens *RefreshTokenService
	mailer        mail.Mailer
	clientURL     string
	logger        *slog.Logger
}

// NewAuthService creates an AuthService with all dependencies injected.
func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	refreshTokens *RefreshTokenService,
	mailer mail.Mailer,
	clientURL string,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:         users,
		tokens:        tokens,
		passwords:     passwords,
		refreshTokens: refreshTokens,
		mailer:        mailer,
		clientURL:     clientURL,
		logger:        logger,
	}
}

// Register creates a password account and opens a session for it.
// Fails with a conflict if the email already has an account.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (*Session, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" {
		return nil, apperror.ValidationFailed("name", "name is required")
	}
	if email == "" {
		return nil, apperror.ValidationFailed("email", "email is required")
	}
	if password == "" {
		return nil, apperror.ValidationFailed("password", "password is required")
	}

	// Check-then-insert has a narrow race; the UNIQUE constraint on email
	// is the real enforcement and also maps to the same conflict error.
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, apperror.Conflict("User already exists")
	} else if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("service/auth: checking existing email: %w", err)
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("service/auth: hashing password: %w", err)
	}

	user := &model.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, apperror.Conflict("User already exists")
		}
		return nil, fmt.Errorf("service/auth: creating user: %w", err)
	}

	s.logger.Info("user registered",
		slog.String("userID", user.ID),
		slog.String("email", user.Email),
	)

	return s.IssueSession(ctx, user)
}

// Login authenticates an email/password pair and opens a session.
//
// The error message for a wrong email and a wrong password is identical on
// purpose. The one distinguished case is a Google-only account: telling
// the user to sign in with Google leaks nothing they don't already know.
func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthorized("Invalid credentials")
		}
		return nil, fmt.Errorf("service/auth: looking up user by email: %w", err)
	}

	if !user.HasPassword() {
		if user.IsGoogleLinked() {
			return nil, apperror.Unauthorized("This account uses Google authentication. Please sign in with Google.")
		}
		// No password and no external identity should be unreachable, but
		// a bad row must fail login, not crash it.
		return nil, apperror.Unauthorized("Invalid credentials")
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		return nil, apperror.Unauthorized("Invalid credentials")
	}

	s.logger.Info("user logged in", slog.String("userID", user.ID))

	return s.IssueSession(ctx, user)
}

// RefreshSession exchanges a live refresh token for a brand-new
// access+refresh pair. Rotation happens inside Issue: persisting the new
// refresh token deletes the old one.
func (s *AuthService) RefreshSession(ctx context.Context, refreshToken string) (*Session, error) {
	if refreshToken == "" {
		return nil, apperror.Unauthorized("Refresh token is required")
	}

	userID, err := s.refreshTokens.VerifyRefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, fmt.Errorf("service/auth: verifying refresh token: %w", err)
	}
	if userID == "" {
		return nil, apperror.Unauthorized("Invalid or expired refresh token")
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthorized("User not found")
		}
		return nil, fmt.Errorf("service/auth: fetching user %s: %w", userID, err)
	}

	return s.IssueSession(ctx, user)
}

// Logout revokes the refresh token, best-effort. It never fails: logging
// out with a garbage, expired, or already-revoked token is a success — the
// caller's goal (no live session) is met either way.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) {
	if refreshToken == "" {
		return
	}

	revoked, err := s.refreshTokens.Revoke(ctx, refreshToken)
	if err != nil {
		s.logger.Warn("logout: revoking refresh token failed", slog.String("error", err.Error()))
		return
	}
	if revoked {
		s.logger.Info("user logged out")
	}
}

// ForgotPassword mints a purpose-scoped reset token and mails the user a
// reset link. The token is the only credential in the link; it expires on
// the reset-token TTL.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return apperror.NotFound("user", email)
		}
		return fmt.Errorf("service/auth: looking up user for recovery: %w", err)
	}

	token, err := s.tokens.GenerateReset(user.ID)
	if err != nil {
		return fmt.Errorf("service/auth: generating reset token: %w", err)
	}

	link := s.clientURL + "/reset-password?token=" + token
	if err := s.mailer.SendPasswordReset(ctx, user.Email, link); err != nil {
		return fmt.Errorf("service/auth: sending recovery mail: %w", err)
	}

	s.logger.Info("password recovery mail sent", slog.String("userID", user.ID))
	return nil
}

// ResetPassword verifies a reset token, replaces the password hash, and
// revokes every refresh token the user holds — a password reset must end
// all existing sessions.
func (s *AuthService) ResetPassword(ctx context.Context, token, password string) error {
	if password == "" {
		return apperror.ValidationFailed("password", "password is required")
	}

	userID, err := s.tokens.ValidateReset(token)
	if err != nil {
		return apperror.Unauthorized("Invalid or expired token")
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return fmt.Errorf("service/auth: hashing new password: %w", err)
	}

	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return apperror.NotFound("user", userID)
		}
		return fmt.Errorf("service/auth: updating password: %w", err)
	}

	if _, err := s.refreshTokens.RevokeAllForUser(ctx, userID); err != nil {
		// The password did change; a lingering refresh token is a
		// security problem worth surfacing, not swallowing.
		return fmt.Errorf("service/auth: revoking sessions after reset: %w", err)
	}

	s.logger.Info("password reset completed", slog.String("userID", userID))
	return nil
}

// IssueSession is the single token-issuance path: one access token, one
// rotated refresh token. Every entry point (register, login, refresh,
// Google) converges here so the pair is always issued the same way.
func (s *AuthService) IssueSession(ctx context.Context, user *model.User) (*Session, error) {
	accessToken, err := s.tokens.GenerateAccess(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating access token for user %s: %w", user.ID, err)
	}

	refreshToken, err := s.refreshTokens.Issue(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: issuing refresh token for user %s: %w", user.ID, err)
	}

	return &Session{
		User:         user,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

// GetUserByID returns the user for a validated token subject. Used by the
// verify-token handler after the guard has resolved the id.
func (s *AuthService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, apperror.NotFound("user", id)
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching user %s: %w", id, err)
	}
	return user, nil
}
