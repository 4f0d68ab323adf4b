// Package apperror defines the application's error taxonomy.
//
// The service layer returns these typed errors for expected business
// failures (duplicate email, bad credentials, expired session) instead of
// raw errors. Handlers map them to HTTP status codes in one place; nothing
// below the handler layer knows about HTTP.
package apperror

import (
	"errors"
	"fmt"
)

// Sentinel errors. Callers branch with errors.Is; the handler layer maps
// each to a status code.
var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation failed")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
	ErrExternal     = errors.New("external provider error")
)

// AppError carries a safe, human-readable message alongside the sentinel.
// Message is what the client sees; the wrapped Err drives status mapping.
type AppError struct {
	Err     error  // sentinel (ErrNotFound, ErrUnauthorized, ...)
	Message string // safe to show to the client
	Field   string // optional: field causing a validation error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// Conflict reports a uniqueness violation, e.g. registering an email that
// already has an account.
func Conflict(message string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: message,
	}
}

func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Unauthorized reports an authentication failure. The message is
// deliberately generic for credential failures ("Invalid credentials") so
// responses don't reveal whether the email or the password was wrong.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// External reports a failure talking to a third-party identity provider.
// The underlying cause is logged server-side, never sent to the client.
func External(message string) *AppError {
	return &AppError{
		Err:     ErrExternal,
		Message: message,
	}
}
