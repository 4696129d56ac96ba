package models

import (
	"time"
)

// Credentials is the username/token pair attached to every backend call
type Credentials struct {
	Username string `json:"username"`
	Token    string `json:"-"`
}

// Valid reports whether both halves of the pair are present
func (c Credentials) Valid() bool {
	return c.Username != "" && c.Token != ""
}

// Session is a signed-in user as tracked by the gateway.
// Created at login, deleted at logout.
type Session struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Token     string    `json:"token"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Credentials returns the backend credential pair of the session
func (s *Session) Credentials() Credentials {
	if s == nil {
		return Credentials{}
	}
	return Credentials{Username: s.Username, Token: s.Token}
}

// IsExpired checks if the session has passed its expiry
func (s *Session) IsExpired() bool {
	if s.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().After(s.ExpiresAt)
}

// TimeRemaining returns the duration until expiry (0 if expired)
func (s *Session) TimeRemaining() time.Duration {
	if s.ExpiresAt.IsZero() {
		return 0
	}
	remaining := time.Until(s.ExpiresAt)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// AuthResponse is the backend reply to login and signup
type AuthResponse struct {
	User struct {
		Username string `json:"username"`
	} `json:"user"`
	Token   string `json:"token"`
	Message string `json:"message,omitempty"`
}

// SignupRequest is the backend signup payload
type SignupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone"`
}
