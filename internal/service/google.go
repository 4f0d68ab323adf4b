package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dpereira/auth-service/internal/apperror"
	"github.com/dpereira/auth-service/internal/auth"
	"github.com/dpereira/auth-service/internal/model"
	"github.com/dpereira/auth-service/internal/repository"
)

// GoogleExchanger is the slice of the OAuth provider this service needs.
// auth.GoogleProvider implements it; tests substitute a fake.
type GoogleExchanger interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*auth.GoogleProfile, error)
}

// GoogleAuthService resolves a verified Google identity to a local user
// and hands off to the shared token-issuance path. It never mints tokens
// itself.
//
// Two entry protocols converge on the same resolution: the server-side
// authorization-code exchange, and direct profile submission from clients
// that ran the on-device Google SDK flow.
type GoogleAuthService struct {
	provider GoogleExchanger
	users    repository.UserRepository
	sessions *AuthService
	logger   *slog.Logger
}

// NewGoogleAuthService creates a GoogleAuthService.
func NewGoogleAuthService(
	provider GoogleExchanger,
	users repository.UserRepository,
	sessions *AuthService,
	logger *slog.Logger,
) *GoogleAuthService {
	return &GoogleAuthService{
		provider: provider,
		users:    users,
		sessions: sessions,
		logger:   logger,
	}
}

// AuthURL returns the provider authorization URL for the given CSRF state.
func (s *GoogleAuthService) AuthURL(state string) string {
	return s.provider.AuthURL(state)
}

// AuthenticateCode completes the authorization-code flow: exchange the
// code, resolve the identity, open a session.
func (s *GoogleAuthService) AuthenticateCode(ctx context.Context, code string) (*Session, error) {
	profile, err := s.provider.Exchange(ctx, code)
	if err != nil {
		s.logger.Error("google auth: code exchange failed", slog.String("error", err.Error()))
		return nil, apperror.External("Google authentication failed")
	}

	return s.authenticateProfile(ctx, profile.Sub, profile.Email, profile.Name)
}

// AuthenticateProfile handles direct profile submission (on-device SDK
// flow). The client already holds the profile fields; the server only
// resolves and issues. An incomplete profile is the caller's bad input,
// not a provider failure.
func (s *GoogleAuthService) AuthenticateProfile(ctx context.Context, googleID, email, name string) (*Session, error) {
	if googleID == "" {
		return nil, apperror.ValidationFailed("googleId", "googleId is required")
	}
	if email == "" {
		return nil, apperror.ValidationFailed("email", "email is required")
	}
	return s.authenticateProfile(ctx, googleID, email, name)
}

func (s *GoogleAuthService) authenticateProfile(ctx context.Context, googleID, email, name string) (*Session, error) {
	// No email means no merge key and no account recovery path. Reached
	// with an empty email only from the code-exchange flow, where the
	// profile came from the provider.
	if email == "" {
		return nil, apperror.External("Google profile does not contain an email")
	}

	user, err := s.findOrCreateUser(ctx, googleID, email, name)
	if err != nil {
		return nil, err
	}

	return s.sessions.IssueSession(ctx, user)
}

// findOrCreateUser resolves a Google identity to a local account:
//
//  1. By google id — the identity was seen before; the link is immutable.
//  2. By email — an existing password account with the same email gets the
//     google id linked in place (merge-by-email, trusting the provider's
//     email claim).
//  3. Otherwise a new password-less account is created.
//
// Called twice with the same google id it returns the same account; no
// step partially creates an identity.
func (s *GoogleAuthService) findOrCreateUser(ctx context.Context, googleID, email, name string) (*model.User, error) {
	user, err := s.users.GetByGoogleID(ctx, googleID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("service/google: looking up user by google id: %w", err)
	}

	user, err = s.users.GetByEmail(ctx, email)
	if err == nil {
		if err := s.users.LinkGoogleID(ctx, user.ID, googleID); err != nil {
			return nil, fmt.Errorf("service/google: linking google id to user %s: %w", user.ID, err)
		}
		user.GoogleID = googleID
		s.logger.Info("google identity linked to existing account",
			slog.String("userID", user.ID),
		)
		return user, nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("service/google: looking up user by email: %w", err)
	}

	if name == "" {
		// Google may omit the display name; fall back to the mailbox name.
		name = strings.SplitN(email, "@", 2)[0]
	}

	user = &model.User{
		Name:     name,
		Email:    email,
		GoogleID: googleID,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("service/google: creating user for google identity: %w", err)
	}

	s.logger.Info("new account created from google identity",
		slog.String("userID", user.ID),
	)
	return user, nil
}
