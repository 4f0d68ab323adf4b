// Package handler implements the REST surface. Handlers decode requests,
// call the service layer, and encode results; business rules live below,
// storage below that.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dpereira/auth-service/internal/apperror"
)

// ErrorResponse is the uniform failure body. RequiresLogin tells the
// client to drop its cached session and return to the login screen; it is
// only set by the session endpoints.
type ErrorResponse struct {
	Error         string `json:"error"`
	RequiresLogin bool   `json:"requiresLogin,omitempty"`
}

// writeJSON sends a JSON response. Headers must be set before the body —
// once Encode writes, the status line is gone.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a service error to an HTTP response.
//
// AppErrors carry a client-safe message and map by sentinel. Anything else
// is an infrastructure error: the detail is for the server log only, and
// the client gets a generic message.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, apperror.ErrValidation):
			status = http.StatusBadRequest
		case errors.Is(err, apperror.ErrUnauthorized):
			status = http.StatusUnauthorized
		case errors.Is(err, apperror.ErrForbidden):
			status = http.StatusForbidden
		case errors.Is(err, apperror.ErrNotFound):
			status = http.StatusNotFound
		case errors.Is(err, apperror.ErrConflict):
			status = http.StatusConflict
		case errors.Is(err, apperror.ErrExternal):
			status = http.StatusBadGateway
		}
		writeJSON(w, status, ErrorResponse{Error: appErr.Message})
		return
	}

	logger.Error("internal error", slog.String("error", err.Error()))
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "An internal error occurred"})
}

// decodeJSON decodes a request body into dst, rejecting unknown fields.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
