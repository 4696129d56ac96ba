package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/terra-clan/codeladder/internal/session"
)

// LoginPath is where unauthenticated callers are sent
const LoginPath = "/login"

// AuthMiddleware resolves the caller's gateway session
type AuthMiddleware struct {
	sessions   *session.Manager
	workspaces *Workspaces
	cookieName string
}

// NewAuthMiddleware creates new auth middleware
func NewAuthMiddleware(sessions *session.Manager, workspaces *Workspaces, cookieName string) *AuthMiddleware {
	return &AuthMiddleware{
		sessions:   sessions,
		workspaces: workspaces,
		cookieName: cookieName,
	}
}

// Authenticate resolves the session id from the Authorization header
// ("Bearer <sid>") or the session cookie. Requests without a live session
// get 401 with a redirect to the login page.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := m.extractSessionID(r)
		if id == "" {
			respondRedirect(w, "not_authenticated", "please log in")
			return
		}

		s, err := m.sessions.Resolve(r.Context(), id)
		switch {
		case errors.Is(err, session.ErrExpired):
			m.workspaces.Drop(id)
			respondRedirect(w, "session_expired", "your session has expired, please log in again")
			return
		case errors.Is(err, session.ErrNotFound):
			slog.Debug("unknown session", "session_prefix", maskID(id), "remote_addr", r.RemoteAddr)
			respondRedirect(w, "not_authenticated", "please log in")
			return
		case err != nil:
			slog.Error("failed to resolve session", "error", err, "session_prefix", maskID(id))
			respondError(w, http.StatusInternalServerError, "internal_error", "authentication error")
			return
		}

		slog.Debug("authenticated request", "username", s.Username, "session_prefix", maskID(id))

		ctx := ContextWithSession(r.Context(), s)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// extractSessionID reads the session id from the request
func (m *AuthMiddleware) extractSessionID(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}

	if c, err := r.Cookie(m.cookieName); err == nil {
		return c.Value
	}
	return ""
}

// maskID returns the first 8 chars of a session id for safe logging
func maskID(id string) string {
	if len(id) < 8 {
		return "***"
	}
	return id[:8] + "..."
}
