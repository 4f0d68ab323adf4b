// Package repository declares the storage interfaces the service layer
// depends on. The sqlite subpackage provides the production implementation;
// tests use in-memory fakes.
package repository

import (
	"context"
	"time"

	"github.com/dpereira/auth-service/internal/model"
)

// ListOptions controls pagination for listing queries.
type ListOptions struct {
	Limit  int
	Offset int
}

// UserRepository persists user identity records.
//
// Lookups return apperror.ErrNotFound (wrapped) when no row matches.
// Mutations are narrow, single-purpose commands rather than a generic
// partial update, so security-sensitive fields (password hash, google id)
// can only change through their dedicated path.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByGoogleID(ctx context.Context, googleID string) (*model.User, error)
	List(ctx context.Context, opts ListOptions) ([]model.User, error)

	// UpdateProfile changes display name and email only.
	UpdateProfile(ctx context.Context, id, name, email string) error
	// UpdatePassword replaces the stored password hash.
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	// LinkGoogleID sets the google id on an existing account (merge-by-email).
	LinkGoogleID(ctx context.Context, id, googleID string) error

	// Delete removes the user. Refresh tokens cascade at the storage level.
	Delete(ctx context.Context, id string) error
}

// RefreshTokenRepository persists issued refresh tokens.
//
// Replace is the rotation primitive: it deletes every token owned by the
// user and inserts the new one in a single transaction, enforcing the
// single-active-token-per-user invariant. Two concurrent Replace calls for
// the same user are last-writer-wins — the loser's token is simply gone on
// its next use, which forces a fresh login. That trade-off is accepted.
type RefreshTokenRepository interface {
	Replace(ctx context.Context, userID, token string, expiresAt time.Time) error
	GetByToken(ctx context.Context, token string) (*model.RefreshToken, error)
	DeleteByToken(ctx context.Context, token string) (bool, error)
	DeleteByUserID(ctx context.Context, userID string) (bool, error)
}
