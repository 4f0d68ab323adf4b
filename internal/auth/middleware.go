package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
)

// contextKey is unexported so only this package can read or write the
// authenticated user id in a request context.
type contextKey string

const userIDKey contextKey = "userID"

// RefreshTokenCookie is the name of the HTTP-only cookie carrying the
// refresh token. The handler layer sets it; the guard only reads it.
const RefreshTokenCookie = "refreshToken"

// Header names for the silent-renewal path. Non-browser clients that can't
// use cookies send the refresh token in X-Refresh-Token; when the guard
// re-issues an access token it exposes it via X-New-Access-Token so the
// client can persist it.
const (
	RefreshTokenHeader   = "X-Refresh-Token"
	NewAccessTokenHeader = "X-New-Access-Token"
)

// RefreshVerifier resolves a refresh token to its owning user id.
// Returns ("", nil) for unknown or expired tokens; a non-nil error means
// the lookup itself failed (storage trouble), which the guard treats as a
// hard reject, never a pass-through.
type RefreshVerifier interface {
	VerifyRefreshToken(ctx context.Context, token string) (string, error)
}

// RequireAuth is the per-request authentication gate for protected routes.
//
// The happy path is stateless: extract the bearer token, verify the
// signature and expiry, put the user id in the context. When the access
// token is expired or invalid, the guard attempts a silent renewal with
// the refresh token from the cookie or header — re-issuing ONLY a new
// access token. The refresh token itself is not rotated here; rotation
// happens only through the explicit refresh endpoint.
//
// onRenewal, if non-nil, is called once per silent renewal (metrics hook).
func RequireAuth(tokens *TokenService, refresh RefreshVerifier, logger *slog.Logger, onRenewal func()) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bearer := bearerToken(r)
			if bearer == "" {
				writeUnauthorized(w, "No token provided", true)
				return
			}

			userID, err := tokens.ValidateAccess(bearer)
			if err == nil {
				next.ServeHTTP(w, r.WithContext(withUserID(r.Context(), userID)))
				return
			}

			// Access token invalid or expired — try the refresh token.
			refreshToken := refreshTokenFromRequest(r)
			if refreshToken == "" {
				writeUnauthorized(w, "Session expired", true)
				return
			}

			userID, verr := refresh.VerifyRefreshToken(r.Context(), refreshToken)
			if verr != nil {
				// Storage failure: fail closed, but without requiresLogin.
				// The session may well be live; the client should retry,
				// not drop its tokens.
				logger.Error("session guard: refresh verification failed",
					slog.String("error", verr.Error()),
				)
				writeUnauthorized(w, "Unable to verify session", false)
				return
			}
			if userID == "" {
				writeUnauthorized(w, "Session expired", true)
				return
			}

			newAccess, err := tokens.GenerateAccess(userID)
			if err != nil {
				logger.Error("session guard: reissuing access token failed",
					slog.String("userID", userID),
					slog.String("error", err.Error()),
				)
				writeUnauthorized(w, "Unable to verify session", false)
				return
			}

			if onRenewal != nil {
				onRenewal()
			}
			w.Header().Set(NewAccessTokenHeader, newAccess)
			next.ServeHTTP(w, r.WithContext(withUserID(r.Context(), userID)))
		})
	}
}

// UserIDFromContext retrieves the authenticated user's id.
// Returns ("", false) on routes that never passed through RequireAuth.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

func withUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// bearerToken extracts the token from "Authorization: Bearer <token>".
func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// refreshTokenFromRequest reads the refresh token from the cookie first,
// falling back to the X-Refresh-Token header for cookie-less clients.
func refreshTokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(RefreshTokenCookie); err == nil && c.Value != "" {
		return c.Value
	}
	return r.Header.Get(RefreshTokenHeader)
}

// writeUnauthorized sends the uniform 401 body. requiresLogin tells the
// client to drop its session and return to the login screen; it is left
// out for server-side failures, where the session may still be live.
func writeUnauthorized(w http.ResponseWriter, message string, requiresLogin bool) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	body := map[string]any{"error": message}
	if requiresLogin {
		body["requiresLogin"] = true
	}
	json.NewEncoder(w).Encode(body)
}
