package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/dpereira/auth-service/internal/model"
)

// Credentials is what a successful auth call hands back to the manager.
type Credentials struct {
	Token        string
	RefreshToken string
	User         *model.User
}

// AuthError is a rejected auth call: the server said no, as opposed to the
// network failing. RequiresLogin means the session is unrecoverable.
type AuthError struct {
	Message       string
	RequiresLogin bool
}

func (e *AuthError) Error() string {
	return e.Message
}

// API is the server surface the manager needs. The HTTP client implements
// it; tests use a fake.
type API interface {
	Login(ctx context.Context, email, password string) (*Credentials, error)
	Register(ctx context.Context, name, email, password string) (*Credentials, error)
	Refresh(ctx context.Context, refreshToken string) (*Credentials, error)
	Logout(ctx context.Context, accessToken, refreshToken string) error
}

// Client talks to the auth REST endpoints. Every call is bounded by the
// HTTP client's timeout — auth calls must fail fast rather than leave the
// UI in a loading state forever.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a Client for the given server base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// authResponse is the wire shape shared by the session endpoints.
type authResponse struct {
	User          *model.User `json:"user"`
	Token         string      `json:"token"`
	RefreshToken  string      `json:"refreshToken"`
	Error         string      `json:"error"`
	RequiresLogin bool        `json:"requiresLogin"`
}

func (c *Client) Login(ctx context.Context, email, password string) (*Credentials, error) {
	return c.postAuth(ctx, "/auth/login", map[string]string{
		"email":    email,
		"password": password,
	})
}

func (c *Client) Register(ctx context.Context, name, email, password string) (*Credentials, error) {
	return c.postAuth(ctx, "/auth/register", map[string]string{
		"name":     name,
		"email":    email,
		"password": password,
	})
}

func (c *Client) Refresh(ctx context.Context, refreshToken string) (*Credentials, error) {
	return c.postAuth(ctx, "/auth/refresh-token", map[string]string{
		"refreshToken": refreshToken,
	})
}

// Logout is best-effort on the server side; a network failure is returned
// but callers treat it as non-fatal (local state is cleared regardless).
func (c *Client) Logout(ctx context.Context, accessToken, refreshToken string) error {
	body, err := json.Marshal(map[string]string{"refreshToken": refreshToken})
	if err != nil {
		return fmt.Errorf("session: encoding logout request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/logout", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("session: creating logout request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("session: logout request: %w", err)
	}
	resp.Body.Close()
	return nil
}

func (c *Client) postAuth(ctx context.Context, path string, payload map[string]string) (*Credentials, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("session: encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("session: creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("session: request to %s: %w", path, err)
	}
	defer resp.Body.Close()

	var parsed authResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("session: decoding response from %s: %w", path, err)
	}

	if parsed.Error != "" {
		return nil, &AuthError{Message: parsed.Error, RequiresLogin: parsed.RequiresLogin}
	}
	if parsed.Token == "" || parsed.User == nil {
		return nil, fmt.Errorf("session: invalid response from server")
	}

	return &Credentials{
		Token:        parsed.Token,
		RefreshToken: parsed.RefreshToken,
		User:         parsed.User,
	}, nil
}
