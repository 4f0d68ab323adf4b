package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpereira/auth-service/internal/auth"
	"github.com/dpereira/auth-service/internal/mail"
	"github.com/dpereira/auth-service/internal/metrics"
	"github.com/dpereira/auth-service/internal/repository/sqlite"
	"github.com/dpereira/auth-service/internal/service"
)

// stubExchanger resolves every authorization code to one fixed profile.
type stubExchanger struct{}

func (stubExchanger) AuthURL(state string) string {
	return "https://accounts.example.com/auth?state=" + state
}

func (stubExchanger) Exchange(_ context.Context, _ string) (*auth.GoogleProfile, error) {
	return &auth.GoogleProfile{Sub: "google-sub-1", Email: "ana@example.com", Name: "Ana"}, nil
}

// newGoogleHandler wires an AuthHandler over an in-memory store, with the
// Google flow backed by the stub exchanger.
func newGoogleHandler(t *testing.T, appScheme string) *AuthHandler {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	tokens, err := auth.NewTokenService("test-secret-at-least-16-chars!!", time.Hour, time.Hour)
	require.NoError(t, err)

	refreshTokens := service.NewRefreshTokenService(db, time.Hour, logger)
	sessions := service.NewAuthService(
		db, tokens, auth.NewPasswordServiceForTest(4), refreshTokens,
		mail.NewLogMailer(logger), "http://client.test", logger,
	)
	google := service.NewGoogleAuthService(stubExchanger{}, db, sessions, logger)

	return NewAuthHandler(sessions, google, metrics.NewCollector(), logger, false, "http://client.test", appScheme)
}

func cookieValue(rec *httptest.ResponseRecorder, name string) (string, bool) {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c.Value, true
		}
	}
	return "", false
}

func TestHandleGoogleLogin_DefaultsToWebPlatform(t *testing.T) {
	h := newGoogleHandler(t, "authapp")

	rec := httptest.NewRecorder()
	h.HandleGoogleLogin(rec, httptest.NewRequest(http.MethodGet, "/auth/google", nil))

	require.Equal(t, http.StatusTemporaryRedirect, rec.Code)

	state, ok := cookieValue(rec, oauthStateCookie)
	require.True(t, ok, "state cookie not set")
	assert.NotEmpty(t, state)
	assert.Contains(t, rec.Header().Get("Location"), "state="+state)

	platform, ok := cookieValue(rec, oauthPlatformCookie)
	require.True(t, ok, "platform cookie not set")
	assert.Equal(t, "web", platform)
}

func TestHandleGoogleLogin_MobilePlatform(t *testing.T) {
	h := newGoogleHandler(t, "authapp")

	rec := httptest.NewRecorder()
	h.HandleGoogleLogin(rec, httptest.NewRequest(http.MethodGet, "/auth/google?platform=mobile", nil))

	platform, ok := cookieValue(rec, oauthPlatformCookie)
	require.True(t, ok)
	assert.Equal(t, "mobile", platform)
}

func callback(t *testing.T, h *AuthHandler, platform string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?state=st-1&code=code-1", nil)
	req.AddCookie(&http.Cookie{Name: oauthStateCookie, Value: "st-1"})
	if platform != "" {
		req.AddCookie(&http.Cookie{Name: oauthPlatformCookie, Value: platform})
	}
	rec := httptest.NewRecorder()
	h.HandleGoogleCallback(rec, req)
	return rec
}

func TestHandleGoogleCallback_WebRedirect(t *testing.T) {
	h := newGoogleHandler(t, "authapp")

	rec := callback(t, h, "web")
	require.Equal(t, http.StatusSeeOther, rec.Code)

	// Web flows land on the client URL even when a mobile scheme is
	// configured.
	location := rec.Header().Get("Location")
	assert.True(t, strings.HasPrefix(location, "http://client.test/?"), "location = %s", location)

	parsed, err := url.Parse(location)
	require.NoError(t, err)
	assert.NotEmpty(t, parsed.Query().Get("token"))
	assert.NotEmpty(t, parsed.Query().Get("refreshToken"))
}

func TestHandleGoogleCallback_MobileDeepLink(t *testing.T) {
	h := newGoogleHandler(t, "authapp")

	rec := callback(t, h, "mobile")
	require.Equal(t, http.StatusSeeOther, rec.Code)

	location := rec.Header().Get("Location")
	assert.True(t, strings.HasPrefix(location, "authapp://auth?"), "location = %s", location)
	assert.Contains(t, location, "token=")
}

func TestHandleGoogleCallback_MissingPlatformCookieIsWeb(t *testing.T) {
	h := newGoogleHandler(t, "authapp")

	rec := callback(t, h, "")
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Location"), "http://client.test/?"))
}

func TestHandleGoogleCallback_StateMismatch(t *testing.T) {
	h := newGoogleHandler(t, "authapp")

	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?state=wrong&code=code-1", nil)
	req.AddCookie(&http.Cookie{Name: oauthStateCookie, Value: "st-1"})
	rec := httptest.NewRecorder()
	h.HandleGoogleCallback(rec, req)

	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "http://client.test/login?error=invalid-state", rec.Header().Get("Location"))
}

func TestCompletionTarget_MobileWithoutSchemeFallsBackToWeb(t *testing.T) {
	h := newGoogleHandler(t, "")

	target := h.completionTarget("mobile", &service.Session{AccessToken: "at", RefreshToken: "rt"})
	assert.True(t, strings.HasPrefix(target, "http://client.test/?"), "target = %s", target)
}
