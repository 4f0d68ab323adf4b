package auth

import (
	"strings"
	"testing"
	"time"
)

// newTestTokenService creates a TokenService with a fixed secret so tests
// are deterministic.
func newTestTokenService(t *testing.T) *TokenService {
	t.Helper()
	ts, err := NewTokenService("test-secret-at-least-16-chars!!", time.Hour, time.Hour)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return ts
}

func TestNewTokenService_ShortSecret(t *testing.T) {
	_, err := NewTokenService("short", time.Hour, time.Hour)
	if err == nil {
		t.Fatal("NewTokenService() should reject secrets shorter than 16 chars")
	}
}

func TestNewTokenService_ZeroTTLsGetDefaults(t *testing.T) {
	ts, err := NewTokenService("this-is-16-chars", 0, 0)
	if err != nil {
		t.Fatalf("NewTokenService() unexpected error: %v", err)
	}
	if ts.accessTTL != time.Hour || ts.resetTTL != time.Hour {
		t.Errorf("TTLs = %v/%v, want 1h/1h", ts.accessTTL, ts.resetTTL)
	}
}

func TestGenerateAccess_RoundTrip(t *testing.T) {
	ts := newTestTokenService(t)
	userID := "user-abc-123"

	token, err := ts.GenerateAccess(userID)
	if err != nil {
		t.Fatalf("GenerateAccess() error = %v", err)
	}
	if strings.Count(token, ".") != 2 {
		t.Errorf("GenerateAccess() doesn't look like a JWT: %q", token)
	}

	got, err := ts.ValidateAccess(token)
	if err != nil {
		t.Fatalf("ValidateAccess() error = %v", err)
	}
	if got != userID {
		t.Errorf("ValidateAccess() userID = %q, want %q", got, userID)
	}
}

func TestGenerateAccess_DifferentUsersGetDifferentTokens(t *testing.T) {
	ts := newTestTokenService(t)

	token1, _ := ts.GenerateAccess("user-aaa")
	token2, _ := ts.GenerateAccess("user-bbb")

	if token1 == token2 {
		t.Error("GenerateAccess() returned identical tokens for different user IDs")
	}
}

func TestGenerateAccess_FreshTokenEveryMint(t *testing.T) {
	ts := newTestTokenService(t)

	// Back-to-back mints land inside the same second, where iat/exp alone
	// cannot tell them apart. Each mint must still be a distinct token.
	seen := make(map[string]bool)
	for i := 0; i < 5; i++ {
		token, err := ts.GenerateAccess("user-1")
		if err != nil {
			t.Fatalf("GenerateAccess() error = %v", err)
		}
		if seen[token] {
			t.Fatal("GenerateAccess() repeated a token for the same user")
		}
		seen[token] = true

		if userID, err := ts.ValidateAccess(token); err != nil || userID != "user-1" {
			t.Fatalf("minted token invalid: user %q, err %v", userID, err)
		}
	}
}

func TestValidateAccess_ExpiredToken(t *testing.T) {
	ts := newTestTokenService(t)

	token, err := ts.GenerateAccessWithTTL("user-1", -time.Minute)
	if err != nil {
		t.Fatalf("GenerateAccessWithTTL() error = %v", err)
	}

	if _, err := ts.ValidateAccess(token); err == nil {
		t.Fatal("ValidateAccess() should reject an expired token")
	}
}

func TestValidateAccess_TamperedToken(t *testing.T) {
	ts := newTestTokenService(t)

	token, _ := ts.GenerateAccess("user-1")
	tampered := token[:len(token)-2] + "xx"

	if _, err := ts.ValidateAccess(tampered); err == nil {
		t.Fatal("ValidateAccess() should reject a tampered token")
	}
}

func TestValidateAccess_WrongSecret(t *testing.T) {
	ts := newTestTokenService(t)
	other, _ := NewTokenService("a-completely-different-secret", time.Hour, time.Hour)

	token, _ := ts.GenerateAccess("user-1")

	if _, err := other.ValidateAccess(token); err == nil {
		t.Fatal("ValidateAccess() should reject a token signed with another secret")
	}
}

func TestValidateAccess_Garbage(t *testing.T) {
	ts := newTestTokenService(t)

	for _, input := range []string{"", "not-a-jwt", "a.b.c"} {
		if _, err := ts.ValidateAccess(input); err == nil {
			t.Errorf("ValidateAccess(%q) should fail", input)
		}
	}
}

func TestResetToken_NotValidAsAccessToken(t *testing.T) {
	ts := newTestTokenService(t)

	reset, err := ts.GenerateReset("user-1")
	if err != nil {
		t.Fatalf("GenerateReset() error = %v", err)
	}

	if _, err := ts.ValidateAccess(reset); err == nil {
		t.Fatal("ValidateAccess() should reject a password-reset token")
	}
}

func TestAccessToken_NotValidAsResetToken(t *testing.T) {
	ts := newTestTokenService(t)

	access, _ := ts.GenerateAccess("user-1")

	if _, err := ts.ValidateReset(access); err == nil {
		t.Fatal("ValidateReset() should reject an access token")
	}
}

func TestValidateReset_RoundTrip(t *testing.T) {
	ts := newTestTokenService(t)

	token, err := ts.GenerateReset("user-42")
	if err != nil {
		t.Fatalf("GenerateReset() error = %v", err)
	}

	got, err := ts.ValidateReset(token)
	if err != nil {
		t.Fatalf("ValidateReset() error = %v", err)
	}
	if got != "user-42" {
		t.Errorf("ValidateReset() userID = %q, want %q", got, "user-42")
	}
}
