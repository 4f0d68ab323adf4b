package apperror

import (
	"errors"
	"fmt"
	"testing"
)

func TestAppError_UnwrapsToSentinel(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		sentinel error
	}{
		{"not found", NotFound("user", "abc"), ErrNotFound},
		{"validation", ValidationFailed("email", "email is required"), ErrValidation},
		{"conflict", Conflict("user already exists"), ErrConflict},
		{"forbidden", Forbidden("you can only update your own profile"), ErrForbidden},
		{"unauthorized", Unauthorized("Invalid credentials"), ErrUnauthorized},
		{"external", External("Google authentication failed"), ErrExternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.sentinel) {
				t.Errorf("errors.Is(%v, sentinel) = false, want true", tt.err)
			}
		})
	}
}

func TestAppError_SurvivesWrapping(t *testing.T) {
	// Services wrap AppErrors with context; errors.Is and errors.As must
	// still find them through the chain.
	inner := Unauthorized("Invalid credentials")
	wrapped := fmt.Errorf("logging in user: %w", inner)

	if !errors.Is(wrapped, ErrUnauthorized) {
		t.Error("errors.Is should find ErrUnauthorized through a wrap")
	}

	var appErr *AppError
	if !errors.As(wrapped, &appErr) {
		t.Fatal("errors.As should extract *AppError through a wrap")
	}
	if appErr.Message != "Invalid credentials" {
		t.Errorf("Message = %q, want %q", appErr.Message, "Invalid credentials")
	}
}

func TestAppError_ErrorReturnsMessage(t *testing.T) {
	err := NotFound("user", "u1")
	if err.Error() != "user not found with id u1" {
		t.Errorf("Error() = %q", err.Error())
	}
}
