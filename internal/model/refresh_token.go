package model

import "time"

// RefreshToken is a long-lived, server-side credential that can be exchanged
// for a new access token. The Token value is opaque (a v4 UUID — 122 bits of
// randomness); everything the server knows about it lives in this row.
//
// Policy: at most one live refresh token per user. Issuing a new one deletes
// all previous tokens for that user in the same transaction, so rotation
// implicitly revokes the old token.
type RefreshToken struct {
	ID        string    `json:"id"        db:"id"`
	UserID    string    `json:"userId"    db:"user_id"` // owning user; deleting the user cascades
	Token     string    `json:"-"         db:"token"`   // unique opaque value, never logged
	ExpiresAt time.Time `json:"expiresAt" db:"expires_at"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// Expired reports whether the token's expiry is in the past at the given time.
func (t *RefreshToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
