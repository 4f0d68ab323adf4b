package session

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dpereira/auth-service/internal/model"
)

// renewLead is how long before access-token expiry the manager renews.
const renewLead = 5 * time.Minute

// State is the session snapshot handed to subscribers.
type State struct {
	IsAuthenticated bool
	AccessToken     string
	RefreshToken    string
	User            *model.User
	IsLoading       bool
	Error           string
}

// Listener receives every state transition.
type Listener func(State)

type listenerEntry struct {
	id int
	fn Listener
}

// Manager holds the authoritative in-memory session state, mirrored to
// durable Storage, and keeps the access token fresh with a one-shot
// renewal timer.
//
// Mutations are serialized by the mutex; listeners are notified
// synchronously, in subscription order, after each transition.
type Manager struct {
	api    API
	store  Storage
	logger *slog.Logger

	mu         sync.Mutex
	state      State
	listeners  []listenerEntry
	nextID     int
	renewTimer *time.Timer
}

// NewManager creates a Manager. Call Hydrate before first use to restore
// a persisted session.
func NewManager(api API, store Storage, logger *slog.Logger) *Manager {
	return &Manager{
		api:    api,
		store:  store,
		logger: logger,
		state:  State{IsLoading: true},
	}
}

// Hydrate restores the session from storage. A persisted token is assumed
// valid until a request says otherwise — the server's guard will renew or
// reject it passively.
func (m *Manager) Hydrate(ctx context.Context) {
	token, _ := m.store.Get(keyAccessToken)
	refreshToken, _ := m.store.Get(keyRefreshToken)
	userJSON, _ := m.store.Get(keyUser)

	if token == "" || userJSON == "" {
		m.setState(func(s *State) { s.IsLoading = false })
		return
	}

	var user model.User
	if err := json.Unmarshal([]byte(userJSON), &user); err != nil {
		m.logger.Warn("session: corrupt persisted user, clearing", slog.String("error", err.Error()))
		m.clear()
		return
	}

	m.setState(func(s *State) {
		s.IsAuthenticated = true
		s.AccessToken = token
		s.RefreshToken = refreshToken
		s.User = &user
		s.IsLoading = false
	})
	m.scheduleRenewal(token)
}

// Subscribe registers a listener. It is invoked immediately with the
// current state, and on every transition after that, until the returned
// unsubscribe function is called.
func (m *Manager) Subscribe(l Listener) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners = append(m.listeners, listenerEntry{id: id, fn: l})
	current := m.state
	m.mu.Unlock()

	l(current)

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, e := range m.listeners {
			if e.id == id {
				m.listeners = append(m.listeners[:i], m.listeners[i+1:]...)
				break
			}
		}
	}
}

// State returns a snapshot of the current state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Login authenticates and, on success, persists the session and schedules
// renewal. On failure the error lands in the state for the UI to render.
func (m *Manager) Login(ctx context.Context, email, password string) error {
	return m.establish(func() (*Credentials, error) {
		return m.api.Login(ctx, email, password)
	})
}

// Register creates an account and opens a session.
func (m *Manager) Register(ctx context.Context, name, email, password string) error {
	return m.establish(func() (*Credentials, error) {
		return m.api.Register(ctx, name, email, password)
	})
}

// Refresh explicitly rotates the session with the stored refresh token.
// An unrecoverable failure (no token, server says requiresLogin) clears
// the session entirely.
func (m *Manager) Refresh(ctx context.Context) error {
	m.mu.Lock()
	refreshToken := m.state.RefreshToken
	m.mu.Unlock()

	if refreshToken == "" {
		m.clear()
		return errors.New("session: no refresh token")
	}

	creds, err := m.api.Refresh(ctx, refreshToken)
	if err != nil {
		// Whether the server rejected the token or the network died, the
		// safe local outcome is the same: end the session.
		m.clear()
		return fmt.Errorf("session: refresh failed: %w", err)
	}

	m.save(creds)
	return nil
}

// Logout revokes the session server-side (best-effort) and always clears
// the local state and pending timers.
func (m *Manager) Logout(ctx context.Context) {
	m.mu.Lock()
	accessToken := m.state.AccessToken
	refreshToken := m.state.RefreshToken
	m.mu.Unlock()

	if accessToken != "" {
		if err := m.api.Logout(ctx, accessToken, refreshToken); err != nil {
			m.logger.Warn("session: logout request failed", slog.String("error", err.Error()))
		}
	}

	m.clear()
}

// establish runs one session-establishing call and commits the outcome.
func (m *Manager) establish(call func() (*Credentials, error)) error {
	m.setState(func(s *State) {
		s.IsLoading = true
		s.Error = ""
	})

	creds, err := call()
	if err != nil {
		msg := "Authentication failed"
		var authErr *AuthError
		if errors.As(err, &authErr) {
			msg = authErr.Message
		}
		m.setState(func(s *State) {
			s.IsLoading = false
			s.Error = msg
		})
		return err
	}

	m.save(creds)
	return nil
}

// save persists the credentials, updates the state, and schedules the
// proactive renewal.
func (m *Manager) save(creds *Credentials) {
	if err := m.store.Set(keyAccessToken, creds.Token); err != nil {
		m.logger.Warn("session: persisting access token failed", slog.String("error", err.Error()))
	}
	if creds.RefreshToken != "" {
		if err := m.store.Set(keyRefreshToken, creds.RefreshToken); err != nil {
			m.logger.Warn("session: persisting refresh token failed", slog.String("error", err.Error()))
		}
	}
	if userJSON, err := json.Marshal(creds.User); err == nil {
		if err := m.store.Set(keyUser, string(userJSON)); err != nil {
			m.logger.Warn("session: persisting user failed", slog.String("error", err.Error()))
		}
	}

	m.setState(func(s *State) {
		s.IsAuthenticated = true
		s.AccessToken = creds.Token
		if creds.RefreshToken != "" {
			s.RefreshToken = creds.RefreshToken
		}
		s.User = creds.User
		s.IsLoading = false
		s.Error = ""
	})

	m.scheduleRenewal(creds.Token)
}

// clear wipes storage and state and cancels any pending renewal.
func (m *Manager) clear() {
	m.store.Delete(keyAccessToken)
	m.store.Delete(keyRefreshToken)
	m.store.Delete(keyUser)

	m.mu.Lock()
	if m.renewTimer != nil {
		m.renewTimer.Stop()
		m.renewTimer = nil
	}
	m.mu.Unlock()

	m.setState(func(s *State) {
		*s = State{}
	})
}

// scheduleRenewal arms a one-shot timer at (exp - renewLead), floored at
// zero. Re-scheduling always supersedes the previous timer — timers never
// stack.
func (m *Manager) scheduleRenewal(accessToken string) {
	exp, err := decodeExpiry(accessToken)
	if err != nil {
		m.logger.Warn("session: cannot schedule renewal", slog.String("error", err.Error()))
		return
	}

	delay := time.Until(exp) - renewLead
	if delay < 0 {
		delay = 0
	}

	m.mu.Lock()
	if m.renewTimer != nil {
		m.renewTimer.Stop()
	}
	m.renewTimer = time.AfterFunc(delay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := m.Refresh(ctx); err != nil {
			m.logger.Warn("session: scheduled renewal failed", slog.String("error", err.Error()))
		}
	})
	m.mu.Unlock()
}

// setState applies a mutation and notifies every listener, in
// subscription order, with the resulting snapshot.
func (m *Manager) setState(mutate func(*State)) {
	m.mu.Lock()
	mutate(&m.state)
	snapshot := m.state
	listeners := make([]listenerEntry, len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.Unlock()

	for _, e := range listeners {
		e.fn(snapshot)
	}
}

// decodeExpiry reads the exp claim from a JWT without verifying it — the
// client only needs the timestamp; the server remains the authority on
// validity.
func decodeExpiry(token string) (time.Time, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return time.Time{}, errors.New("session: token is not a JWT")
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return time.Time{}, fmt.Errorf("session: decoding token payload: %w", err)
	}

	var claims struct {
		Exp int64 `json:"exp"`
	}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return time.Time{}, fmt.Errorf("session: parsing token payload: %w", err)
	}
	if claims.Exp == 0 {
		return time.Time{}, errors.New("session: token has no expiry claim")
	}

	return time.Unix(claims.Exp, 0), nil
}
