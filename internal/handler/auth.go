package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/rs/xid"

	"github.com/dpereira/auth-service/internal/apperror"
	"github.com/dpereira/auth-service/internal/auth"
	"github.com/dpereira/auth-service/internal/metrics"
	"github.com/dpereira/auth-service/internal/service"
)

// refreshCookieMaxAge matches the refresh token TTL: 30 days.
const refreshCookieMaxAge = 30 * 24 * 60 * 60

// AuthHandler exposes the authentication endpoints.
//
// Session transport contract: on every successful session establishment
// the refresh token travels as an HTTP-only, SameSite=Strict cookie (and
// in the body for mobile clients that store it themselves); the access
// token is returned in the body for bearer-header use.
type AuthHandler struct {
	sessions  *service.AuthService
	google    *service.GoogleAuthService // nil when Google auth is not configured
	metrics   *metrics.Collector
	logger    *slog.Logger
	secure    bool   // Secure flag on cookies; true in production
	clientURL string // web app base URL, for OAuth redirects
	appScheme string // mobile deep-link scheme, for OAuth completion
}

// NewAuthHandler creates an AuthHandler. google may be nil; the server
// then skips the Google routes entirely.
func NewAuthHandler(
	sessions *service.AuthService,
	google *service.GoogleAuthService,
	collector *metrics.Collector,
	logger *slog.Logger,
	secure bool,
	clientURL, appScheme string,
) *AuthHandler {
	return &AuthHandler{
		sessions:  sessions,
		google:    google,
		metrics:   collector,
		logger:    logger,
		secure:    secure,
		clientURL: clientURL,
		appScheme: appScheme,
	}
}

// sessionResponse is the success body for register/login/refresh/google.
type sessionResponse struct {
	User         any    `json:"user"`
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

// HandleRegister creates an account and opens a session.
//
// HTTP: POST /auth/register {name,email,password}
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	session, err := h.sessions.Register(r.Context(), req.Name, req.Email, req.Password)
	h.metrics.RecordAuth("register", err == nil)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.writeSession(w, http.StatusCreated, session)
}

// HandleLogin authenticates email/password and opens a session.
//
// HTTP: POST /auth/login {email,password}
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	session, err := h.sessions.Login(r.Context(), req.Email, req.Password)
	h.metrics.RecordAuth("login", err == nil)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.writeSession(w, http.StatusOK, session)
}

// HandleRefresh rotates the session: a live refresh token (cookie or body)
// buys a brand-new access+refresh pair. Any failure carries
// requiresLogin:true — the client's session is over.
//
// HTTP: POST /auth/refresh-token {refreshToken?}
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.RefreshSession(r.Context(), h.refreshTokenFromRequest(r))
	h.metrics.RecordAuth("refresh", err == nil)
	if err != nil {
		var appErr *apperror.AppError
		msg := "Invalid or expired refresh token"
		if errors.As(err, &appErr) {
			msg = appErr.Message
		} else {
			h.logger.Error("refresh failed", slog.String("error", err.Error()))
		}
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: msg, RequiresLogin: true})
		return
	}

	h.writeSession(w, http.StatusOK, session)
}

// HandleLogout revokes the refresh token, best-effort, and clears the
// cookie. Always succeeds: a garbage or already-revoked token still ends
// with no live session, which is what the caller asked for.
//
// HTTP: POST /auth/logout {refreshToken?}
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Logout(r.Context(), h.refreshTokenFromRequest(r))
	h.metrics.RecordAuth("logout", true)

	h.clearRefreshCookie(w)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Logged out successfully",
	})
}

// HandleForgotPassword mails a reset link.
//
// HTTP: POST /auth/forgot-password {email}
func (h *AuthHandler) HandleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	if err := h.sessions.ForgotPassword(r.Context(), req.Email); err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Recovery email sent successfully"})
}

// HandleResetPassword consumes a reset token and sets the new password.
//
// HTTP: POST /auth/reset-password {token,password}
func (h *AuthHandler) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	if err := h.sessions.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Password updated successfully"})
}

// HandleVerifyToken reports on the bearer token the guard already
// validated. If the guard silently renewed the access token, the new one
// is already in the X-New-Access-Token response header by the time this
// runs.
//
// HTTP: GET /auth/verify-token (protected)
func (h *AuthHandler) HandleVerifyToken(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		// Unreachable behind RequireAuth; fail closed anyway.
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "Session expired", RequiresLogin: true})
		return
	}

	user, err := h.sessions.GetUserByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "User not found", RequiresLogin: true})
			return
		}
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"isValid": true,
		"user":    user,
	})
}

// OAuth round-trip cookies. The state cookie is the CSRF check; the
// platform cookie remembers whether the flow started from the web app or
// a mobile client, deciding how the callback hands the tokens back.
const (
	oauthStateCookie    = "oauth_state"
	oauthPlatformCookie = "oauth_platform"
)

// HandleGoogleLogin redirects the browser to Google's consent screen,
// with a CSRF state stored in a short-lived cookie. ?platform=mobile
// marks the flow for deep-link completion; anything else is web.
//
// HTTP: GET /auth/google?platform=
func (h *AuthHandler) HandleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()

	platform := r.URL.Query().Get("platform")
	if platform != "mobile" {
		platform = "web"
	}

	// 10 minutes: enough to approve, short enough to limit replay.
	for name, value := range map[string]string{
		oauthStateCookie:    state,
		oauthPlatformCookie: platform,
	} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    value,
			Path:     "/",
			MaxAge:   600,
			HttpOnly: true,
			Secure:   h.secure,
			SameSite: http.SameSiteLaxMode,
		})
	}

	http.Redirect(w, r, h.google.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGoogleCallback completes the code flow and hands the tokens to the
// app: flows started with ?platform=mobile get a custom-scheme deep link,
// web flows a query redirect onto the client URL. Failures redirect with
// ?error= instead of rendering JSON — the browser is mid-navigation here.
//
// HTTP: GET /auth/google/callback?code=...&state=...
func (h *AuthHandler) HandleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || stateCookie.Value == "" || r.URL.Query().Get("state") != stateCookie.Value {
		h.logger.Warn("google callback: state mismatch")
		h.redirectWithError(w, r, "invalid-state")
		return
	}

	platform := "web"
	if c, err := r.Cookie(oauthPlatformCookie); err == nil && c.Value != "" {
		platform = c.Value
	}

	// Both cookies are single-use.
	http.SetCookie(w, &http.Cookie{Name: oauthStateCookie, Value: "", Path: "/", MaxAge: -1})
	http.SetCookie(w, &http.Cookie{Name: oauthPlatformCookie, Value: "", Path: "/", MaxAge: -1})

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.redirectWithError(w, r, "access-denied")
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		h.redirectWithError(w, r, "missing-code")
		return
	}

	session, err := h.google.AuthenticateCode(r.Context(), code)
	h.metrics.RecordAuth("google", err == nil)
	if err != nil {
		h.logger.Error("google callback failed", slog.String("error", err.Error()))
		h.redirectWithError(w, r, "google-auth-failed")
		return
	}

	h.setRefreshCookie(w, session.RefreshToken)
	http.Redirect(w, r, h.completionTarget(platform, session), http.StatusSeeOther)
}

// completionTarget is where the callback sends the browser with the
// tokens: the mobile deep link when the flow asked for it and a scheme is
// configured, the web client URL otherwise.
func (h *AuthHandler) completionTarget(platform string, session *service.Session) string {
	q := url.Values{}
	q.Set("token", session.AccessToken)
	q.Set("refreshToken", session.RefreshToken)

	if platform == "mobile" && h.appScheme != "" {
		return h.appScheme + "://auth?" + q.Encode()
	}
	return h.clientURL + "/?" + q.Encode()
}

// HandleGoogleProfile accepts a profile the client obtained through the
// on-device Google SDK flow and opens a session for it.
//
// HTTP: POST /auth/google/profile {googleId,email,name}
func (h *AuthHandler) HandleGoogleProfile(w http.ResponseWriter, r *http.Request) {
	var req struct {
		GoogleID string `json:"googleId"`
		Email    string `json:"email"`
		Name     string `json:"name"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	session, err := h.google.AuthenticateProfile(r.Context(), req.GoogleID, req.Email, req.Name)
	h.metrics.RecordAuth("google", err == nil)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.writeSession(w, http.StatusOK, session)
}

// writeSession sets the refresh cookie and writes the uniform session
// body.
func (h *AuthHandler) writeSession(w http.ResponseWriter, status int, session *service.Session) {
	h.setRefreshCookie(w, session.RefreshToken)
	writeJSON(w, status, sessionResponse{
		User:         session.User,
		Token:        session.AccessToken,
		RefreshToken: session.RefreshToken,
	})
}

func (h *AuthHandler) setRefreshCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.RefreshTokenCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   refreshCookieMaxAge,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *AuthHandler) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.RefreshTokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// refreshTokenFromRequest prefers the body's refreshToken field, then the
// cookie. Mobile clients send the body; browsers rely on the cookie.
func (h *AuthHandler) refreshTokenFromRequest(r *http.Request) string {
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	// Body is optional and may be empty; decode errors just mean "not in
	// the body".
	if err := decodeJSON(r, &req); err == nil && req.RefreshToken != "" {
		return req.RefreshToken
	}
	if c, err := r.Cookie(auth.RefreshTokenCookie); err == nil {
		return c.Value
	}
	return ""
}

func (h *AuthHandler) redirectWithError(w http.ResponseWriter, r *http.Request, code string) {
	http.Redirect(w, r, h.clientURL+"/login?error="+url.QueryEscape(code), http.StatusSeeOther)
}
