package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dpereira/auth-service/internal/apperror"
	"github.com/dpereira/auth-service/internal/auth"
	"github.com/dpereira/auth-service/internal/repository"
	"github.com/dpereira/auth-service/internal/service"
)

// UserHandler exposes the protected /users endpoints. Every route here
// sits behind the session guard, so the authenticated user id is always
// in the context.
type UserHandler struct {
	users  *service.UserService
	logger *slog.Logger
}

// NewUserHandler creates a UserHandler.
func NewUserHandler(users *service.UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, logger: logger}
}

// HandleList returns a page of users.
//
// HTTP: GET /users?limit=&offset=
func (h *UserHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	opts := repository.ListOptions{}
	if v := r.URL.Query().Get("limit"); v != "" {
		opts.Limit, _ = strconv.Atoi(v)
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		opts.Offset, _ = strconv.Atoi(v)
	}

	users, err := h.users.List(r.Context(), opts)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

// HandleGet returns one user.
//
// HTTP: GET /users/{id}
func (h *UserHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

// HandleUpdate changes the caller's own name and email. Updating someone
// else's profile is forbidden regardless of what id is in the path.
//
// HTTP: PUT /users/{id} {name,email}
func (h *UserHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !isSelf(r, id) {
		writeError(w, h.logger, apperror.Forbidden("You can only update your own profile"))
		return
	}

	var req struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	user, err := h.users.UpdateProfile(r.Context(), id, req.Name, req.Email)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

// HandleDelete removes the caller's own account, revoking its sessions.
//
// HTTP: DELETE /users/{id}
func (h *UserHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !isSelf(r, id) {
		writeError(w, h.logger, apperror.Forbidden("You can only delete your own profile"))
		return
	}

	if err := h.users.Delete(r.Context(), id); err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func isSelf(r *http.Request, id string) bool {
	callerID, ok := auth.UserIDFromContext(r.Context())
	return ok && callerID == id
}
