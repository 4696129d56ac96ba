// Package session owns the lifecycle of signed-in users: a session is
// created at login or signup, resolved on every request and deleted at
// logout. Components receive the session's credentials explicitly.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/terra-clan/codeladder/internal/models"
)

var (
	// ErrNotFound is returned when a session id is unknown
	ErrNotFound = errors.New("session not found")

	// ErrExpired is returned when a session has passed its expiry
	ErrExpired = errors.New("session expired")
)

// Authenticator exchanges user credentials for a backend token
type Authenticator interface {
	Login(ctx context.Context, username, password string) (*models.AuthResponse, error)
	Signup(ctx context.Context, req models.SignupRequest) (*models.AuthResponse, error)
}

// Manager creates, resolves and deletes sessions
type Manager struct {
	auth   Authenticator
	store  Store
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// NewManager creates a session manager. ttl applies when the backend token
// carries no expiry of its own; ttl <= 0 means such sessions never expire.
func NewManager(auth Authenticator, store Store, ttl time.Duration, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		auth:   auth,
		store:  store,
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
	}
}

// Login authenticates against the backend and opens a session
func (m *Manager) Login(ctx context.Context, username, password string) (*models.Session, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, models.NewValidationError("username", "username is required")
	}
	if password == "" {
		return nil, models.NewValidationError("password", "password is required")
	}

	resp, err := m.auth.Login(ctx, username, password)
	if err != nil {
		m.logger.Info("login failed", "username", username, "error", err)
		return nil, fmt.Errorf("failed to login: %w", err)
	}

	return m.open(ctx, resp)
}

// Signup registers a new account, opens a session and returns the
// backend's welcome message alongside it
func (m *Manager) Signup(ctx context.Context, req models.SignupRequest) (*models.Session, string, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	req.Phone = strings.TrimSpace(req.Phone)

	switch {
	case req.Username == "":
		return nil, "", models.NewValidationError("username", "username is required")
	case req.Email == "":
		return nil, "", models.NewValidationError("email", "email is required")
	case req.Password == "":
		return nil, "", models.NewValidationError("password", "password is required")
	}

	resp, err := m.auth.Signup(ctx, req)
	if err != nil {
		m.logger.Info("signup failed", "username", req.Username, "error", err)
		return nil, "", fmt.Errorf("failed to sign up: %w", err)
	}

	s, err := m.open(ctx, resp)
	if err != nil {
		return nil, "", err
	}
	return s, resp.Message, nil
}

func (m *Manager) open(ctx context.Context, resp *models.AuthResponse) (*models.Session, error) {
	now := m.now().UTC()
	s := &models.Session{
		ID:        uuid.New().String(),
		Username:  resp.User.Username,
		Token:     resp.Token,
		CreatedAt: now,
		ExpiresAt: m.expiry(resp.Token, now),
	}

	if err := m.store.Save(ctx, s); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	m.logger.Info("session opened",
		"session_id", s.ID,
		"username", s.Username,
		"expires_at", s.ExpiresAt,
	)
	return s, nil
}

// expiry uses the token's exp claim when the token is a JWT. The signature
// is not checked here; the backend verifies the token on every call.
func (m *Manager) expiry(token string, now time.Time) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			return exp.Time.UTC()
		}
	}
	if m.ttl <= 0 {
		return time.Time{}
	}
	return now.Add(m.ttl)
}

// Resolve returns the live session with id. Expired sessions are deleted.
func (m *Manager) Resolve(ctx context.Context, id string) (*models.Session, error) {
	if id == "" {
		return nil, ErrNotFound
	}

	s, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if s == nil {
		return nil, ErrNotFound
	}

	if !s.ExpiresAt.IsZero() && m.now().After(s.ExpiresAt) {
		if err := m.store.Delete(ctx, id); err != nil {
			m.logger.Warn("failed to delete expired session", "session_id", id, "error", err)
		}
		return nil, ErrExpired
	}

	return s, nil
}

// Logout deletes the session. Logging out twice is not an error.
func (m *Manager) Logout(ctx context.Context, id string) error {
	if err := m.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	m.logger.Info("session closed", "session_id", id)
	return nil
}

// Sweep deletes every expired session and returns how many were removed
func (m *Manager) Sweep(ctx context.Context) (int, error) {
	n, err := m.store.DeleteExpired(ctx, m.now())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	return n, nil
}

// Ping checks the session store
func (m *Manager) Ping(ctx context.Context) error {
	return m.store.Ping(ctx)
}
