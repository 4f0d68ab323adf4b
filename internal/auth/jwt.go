// Package auth provides the token, password, and external-identity
// primitives the service layer composes into login flows.
//
// Two kinds of credential live here:
//
//   - Access tokens: short-lived HS256 JWTs. Stateless — verification is
//     signature + expiry + issuer, no storage involved.
//   - Password-reset tokens: JWTs with a purpose claim, so a reset token
//     can never be replayed as an access token (or vice versa).
//
// Refresh tokens are deliberately NOT minted here: they are opaque stored
// values owned by the service layer and the refresh-token repository.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/xid"
)

const issuer = "auth-service"

// purposeReset marks tokens minted for the password-reset flow.
const purposeReset = "password-reset"

// TokenService signs and verifies JWTs with a server-held HMAC secret.
type TokenService struct {
	secret    []byte
	accessTTL time.Duration
	resetTTL  time.Duration
}

// NewTokenService creates a TokenService. The secret should be at least
// 32 bytes of randomness in production; anything under 16 is rejected.
func NewTokenService(secret string, accessTTL, resetTTL time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	if accessTTL <= 0 {
		accessTTL = time.Hour
	}
	if resetTTL <= 0 {
		resetTTL = time.Hour
	}
	return &TokenService{
		secret:    []byte(secret),
		accessTTL: accessTTL,
		resetTTL:  resetTTL,
	}, nil
}

// claims is the JWT payload. Subject carries the internal user ID; Purpose
// distinguishes access tokens (empty) from reset tokens.
type claims struct {
	Purpose string `json:"purpose,omitempty"`
	jwt.RegisteredClaims
}

// GenerateAccess mints a signed access token for the user.
func (s *TokenService) GenerateAccess(userID string) (string, error) {
	return s.generate(userID, "", s.accessTTL)
}

// GenerateAccessWithTTL mints an access token with a custom lifetime.
// Used by tests to produce already-expired tokens.
func (s *TokenService) GenerateAccessWithTTL(userID string, ttl time.Duration) (string, error) {
	return s.generate(userID, "", ttl)
}

// GenerateReset mints a purpose-scoped token for the password-reset flow.
func (s *TokenService) GenerateReset(userID string) (string, error) {
	return s.generate(userID, purposeReset, s.resetTTL)
}

func (s *TokenService) generate(userID, purpose string, ttl time.Duration) (string, error) {
	now := time.Now()
	c := claims{
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			// iat/exp have second precision; the jti keeps two tokens
			// minted within the same second distinct.
			ID:        xid.New().String(),
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// ValidateAccess verifies an access token and returns the user ID it
// encodes. Rejects reset tokens. All failures come back as errors for the
// caller to branch on — nothing here panics on malformed input.
func (s *TokenService) ValidateAccess(tokenStr string) (string, error) {
	c, err := s.parse(tokenStr)
	if err != nil {
		return "", err
	}
	if c.Purpose != "" {
		return "", fmt.Errorf("auth: token is not an access token")
	}
	return c.Subject, nil
}

// ValidateReset verifies a password-reset token and returns the user ID.
// Rejects access tokens, so a leaked bearer token cannot reset a password.
func (s *TokenService) ValidateReset(tokenStr string) (string, error) {
	c, err := s.parse(tokenStr)
	if err != nil {
		return "", err
	}
	if c.Purpose != purposeReset {
		return "", fmt.Errorf("auth: token is not a password-reset token")
	}
	return c.Subject, nil
}

// parse verifies signature, expiry, issuer and algorithm. The valid-methods
// pin closes the "alg: none" confusion attack.
func (s *TokenService) parse(tokenStr string) (*claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("auth: token expired")
		}
		return nil, fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("auth: invalid token claims")
	}
	if c.Subject == "" {
		return nil, fmt.Errorf("auth: token has no subject")
	}
	return c, nil
}
