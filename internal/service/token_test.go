package service

import (
	"context"
	"testing"
	"time"
)

func TestIssue_VerifyRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	token, err := env.rts.Issue(ctx, "user-1")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if token == "" {
		t.Fatal("Issue() returned an empty token")
	}

	userID, err := env.rts.VerifyRefreshToken(ctx, token)
	if err != nil {
		t.Fatalf("VerifyRefreshToken() error = %v", err)
	}
	if userID != "user-1" {
		t.Errorf("VerifyRefreshToken() = %q, want %q", userID, "user-1")
	}
}

func TestIssue_RotationInvalidatesPrevious(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, _ := env.rts.Issue(ctx, "user-1")
	second, _ := env.rts.Issue(ctx, "user-1")

	if first == second {
		t.Fatal("Issue() returned the same token twice")
	}

	if userID, _ := env.rts.VerifyRefreshToken(ctx, first); userID != "" {
		t.Error("the rotated-out token should no longer verify")
	}
	if userID, _ := env.rts.VerifyRefreshToken(ctx, second); userID != "user-1" {
		t.Errorf("the current token should verify, got %q", userID)
	}
	if n := env.refresh.count("user-1"); n != 1 {
		t.Errorf("user holds %d tokens, want exactly 1", n)
	}
}

func TestIssue_RotationIsPerUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice, _ := env.rts.Issue(ctx, "user-alice")
	bob, _ := env.rts.Issue(ctx, "user-bob")

	// Rotating alice must not touch bob.
	env.rts.Issue(ctx, "user-alice")

	if userID, _ := env.rts.VerifyRefreshToken(ctx, bob); userID != "user-bob" {
		t.Error("rotating one user's token invalidated another user's token")
	}
	if userID, _ := env.rts.VerifyRefreshToken(ctx, alice); userID != "" {
		t.Error("alice's rotated-out token should no longer verify")
	}
}

func TestVerifyRefreshToken_UnknownAndEmpty(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for _, token := range []string{"", "never-issued"} {
		userID, err := env.rts.VerifyRefreshToken(ctx, token)
		if err != nil {
			t.Errorf("VerifyRefreshToken(%q) error = %v, want nil", token, err)
		}
		if userID != "" {
			t.Errorf("VerifyRefreshToken(%q) = %q, want empty", token, userID)
		}
	}
}

func TestVerifyRefreshToken_ExpiredLazyCleanup(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	token, _ := env.rts.Issue(ctx, "user-1")
	env.refresh.expire(token)

	// First verification rejects and deletes the row.
	if userID, err := env.rts.VerifyRefreshToken(ctx, token); err != nil || userID != "" {
		t.Fatalf("first verify = (%q, %v), want empty and nil", userID, err)
	}
	if n := env.refresh.count("user-1"); n != 0 {
		t.Errorf("expired token not cleaned up, %d rows remain", n)
	}

	// Second verification of the same dead token is a harmless no-op.
	if userID, err := env.rts.VerifyRefreshToken(ctx, token); err != nil || userID != "" {
		t.Fatalf("second verify = (%q, %v), want empty and nil", userID, err)
	}
}

func TestRevoke(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	token, _ := env.rts.Issue(ctx, "user-1")

	revoked, err := env.rts.Revoke(ctx, token)
	if err != nil {
		t.Fatalf("Revoke() error = %v", err)
	}
	if !revoked {
		t.Error("Revoke() = false for a live token")
	}

	// Revoking again reports the token was already gone.
	revoked, err = env.rts.Revoke(ctx, token)
	if err != nil {
		t.Fatalf("second Revoke() error = %v", err)
	}
	if revoked {
		t.Error("second Revoke() = true for an already-revoked token")
	}

	if userID, _ := env.rts.VerifyRefreshToken(ctx, token); userID != "" {
		t.Error("revoked token should no longer verify")
	}
}

func TestRevokeAllForUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	token, _ := env.rts.Issue(ctx, "user-1")
	other, _ := env.rts.Issue(ctx, "user-2")

	revoked, err := env.rts.RevokeAllForUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("RevokeAllForUser() error = %v", err)
	}
	if !revoked {
		t.Error("RevokeAllForUser() = false, want true")
	}

	if userID, _ := env.rts.VerifyRefreshToken(ctx, token); userID != "" {
		t.Error("user-1's token should be gone")
	}
	if userID, _ := env.rts.VerifyRefreshToken(ctx, other); userID != "user-2" {
		t.Error("user-2's token should be untouched")
	}
}

func TestNewRefreshTokenService_DefaultTTL(t *testing.T) {
	rts := NewRefreshTokenService(newFakeRefreshRepo(), 0, testLogger())
	if rts.ttl != 30*24*time.Hour {
		t.Errorf("default ttl = %v, want 720h", rts.ttl)
	}
}
