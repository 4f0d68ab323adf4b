package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/dpereira/auth-service/internal/model"
	"github.com/dpereira/auth-service/internal/repository"
)

// compile-time check that *DB implements repository.RefreshTokenRepository
var _ repository.RefreshTokenRepository = (*DB)(nil)

// Replace deletes every refresh token owned by userID and inserts the new
// one, in a single transaction. This is the rotation primitive: after it
// commits, the new token is the user's only live token.
//
// Concurrent calls for the same user serialize at the database (SQLite
// allows one writer at a time); the later commit wins and the earlier
// caller's token is already gone when it's next presented. Accepted
// trade-off — the losing device falls back to a fresh login.
func (db *DB) Replace(ctx context.Context, userID, token string, expiresAt time.Time) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning token replace: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM refresh_tokens WHERE user_id = ?`, userID,
	); err != nil {
		return fmt.Errorf("sqlite: deleting previous tokens for user %s: %w", userID, err)
	}

	now := time.Now()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO refresh_tokens (id, user_id, token, expires_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		xid.New().String(), userID, token, expiresAt, now, now,
	); err != nil {
		return fmt.Errorf("sqlite: inserting refresh token for user %s: %w", userID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing token replace: %w", err)
	}
	return nil
}

// GetByToken looks a refresh token up by its opaque value.
// Returns (nil, nil) when the token is unknown — for verification, an
// unknown token is a normal outcome, not an error.
func (db *DB) GetByToken(ctx context.Context, token string) (*model.RefreshToken, error) {
	var t model.RefreshToken
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, user_id, token, expires_at, created_at, updated_at
		 FROM refresh_tokens WHERE token = ?`,
		token,
	).Scan(&t.ID, &t.UserID, &t.Token, &t.ExpiresAt, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("sqlite: getting refresh token: %w", err)
	}
	return &t, nil
}

// DeleteByToken removes one token. The bool reports whether a row existed,
// so revocation can stay idempotent at the service layer.
func (db *DB) DeleteByToken(ctx context.Context, token string) (bool, error) {
	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM refresh_tokens WHERE token = ?`, token,
	)
	if err != nil {
		return false, fmt.Errorf("sqlite: deleting refresh token: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: rows affected: %w", err)
	}
	return n > 0, nil
}

// DeleteByUserID removes every token owned by the user (revoke-all, used on
// password reset and account deletion).
func (db *DB) DeleteByUserID(ctx context.Context, userID string) (bool, error) {
	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM refresh_tokens WHERE user_id = ?`, userID,
	)
	if err != nil {
		return false, fmt.Errorf("sqlite: deleting tokens for user %s: %w", userID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: rows affected: %w", err)
	}
	return n > 0, nil
}
