package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dpereira/auth-service/internal/apperror"
	"github.com/dpereira/auth-service/internal/model"
	"github.com/dpereira/auth-service/internal/repository"
)

// UserService provides user account management outside the login flows.
// Mutations are narrow commands — there is deliberately no "patch with
// arbitrary fields" operation, so the password hash and google id can only
// change through their dedicated flows.
type UserService struct {
	users         repository.UserRepository
	refreshTokens *RefreshTokenService
	logger        *slog.Logger
}

// NewUserService creates a UserService.
func NewUserService(users repository.UserRepository, refreshTokens *RefreshTokenService, logger *slog.Logger) *UserService {
	return &UserService{
		users:         users,
		refreshTokens: refreshTokens,
		logger:        logger,
	}
}

// List returns a page of users.
func (s *UserService) List(ctx context.Context, opts repository.ListOptions) ([]model.User, error) {
	users, err := s.users.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("service/user: listing users: %w", err)
	}
	return users, nil
}

// GetByID returns one user.
func (s *UserService) GetByID(ctx context.Context, id string) (*model.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/user: fetching user %s: %w", id, err)
	}
	return user, nil
}

// UpdateProfile changes the user's display name and email. Only the owner
// may call it (enforced at the handler with the authenticated id).
func (s *UserService) UpdateProfile(ctx context.Context, id, name, email string) (*model.User, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" {
		return nil, apperror.ValidationFailed("name", "name is required")
	}
	if email == "" {
		return nil, apperror.ValidationFailed("email", "email is required")
	}

	if err := s.users.UpdateProfile(ctx, id, name, email); err != nil {
		return nil, fmt.Errorf("service/user: updating profile for %s: %w", id, err)
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/user: reloading user %s: %w", id, err)
	}
	return user, nil
}

// Delete removes the account and revokes its refresh tokens. The storage
// foreign key cascades too; the explicit revoke keeps the behavior
// independent of which store backs the repository.
func (s *UserService) Delete(ctx context.Context, id string) error {
	if _, err := s.refreshTokens.RevokeAllForUser(ctx, id); err != nil {
		return fmt.Errorf("service/user: revoking tokens for %s: %w", id, err)
	}

	if err := s.users.Delete(ctx, id); err != nil {
		return fmt.Errorf("service/user: deleting user %s: %w", id, err)
	}

	s.logger.Info("user deleted", slog.String("userID", id))
	return nil
}
