// Package model defines the data structures used throughout the application.
package model

import "time"

// User represents a registered user account.
//
// An account can be created two ways: email/password registration, or a
// Google sign-in. The invariant is that every user has a password hash OR
// a Google ID (or both, once a password account links a Google identity).
// PasswordHash is empty for Google-only accounts — password login against
// such an account must fail cleanly.
//
// Email is the merge key across providers: a Google sign-in whose email
// matches an existing password account links onto that account instead of
// creating a duplicate.
type User struct {
	ID           string    `json:"id"        db:"id"`
	Name         string    `json:"name"      db:"name"`
	Email        string    `json:"email"     db:"email"`         // unique
	PasswordHash string    `json:"-"         db:"password_hash"` // bcrypt; empty for Google-only accounts
	GoogleID     string    `json:"-"         db:"google_id"`     // Google subject claim; empty if never linked
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" db:"updated_at"`
}

// HasPassword reports whether the account can log in with a password.
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

// IsGoogleLinked reports whether a Google identity is linked to this account.
func (u *User) IsGoogleLinked() bool {
	return u.GoogleID != ""
}
