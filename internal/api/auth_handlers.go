package api

import (
	"net/http"
	"time"

	"github.com/terra-clan/codeladder/internal/models"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type sessionResponse struct {
	SessionID string     `json:"session_id"`
	Username  string     `json:"username"`
	IsAdmin   bool       `json:"is_admin"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Message   string     `json:"message,omitempty"`
}

func (s *Server) newSessionResponse(sess *models.Session, message string) sessionResponse {
	resp := sessionResponse{
		SessionID: sess.ID,
		Username:  sess.Username,
		IsAdmin:   s.isAdmin(sess.Username),
		Message:   message,
	}
	if !sess.ExpiresAt.IsZero() {
		exp := sess.ExpiresAt
		resp.ExpiresAt = &exp
	}
	return resp
}

func (s *Server) isAdmin(username string) bool {
	return s.config.Session.AdminUsername != "" && username == s.config.Session.AdminUsername
}

func (s *Server) setSessionCookie(w http.ResponseWriter, sess *models.Session) {
	c := &http.Cookie{
		Name:     s.config.Session.CookieName,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if !sess.ExpiresAt.IsZero() {
		c.Expires = sess.ExpiresAt
	}
	http.SetCookie(w, c)
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.config.Session.CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	sess, err := s.sessions.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		respondFailure(w, err, models.Failure(err, "login failed"))
		return
	}

	s.setSessionCookie(w, sess)
	respondJSON(w, http.StatusOK, s.newSessionResponse(sess, ""))
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req models.SignupRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	sess, message, err := s.sessions.Signup(r.Context(), req)
	if err != nil {
		respondFailure(w, err, models.Failure(err, "signup failed"))
		return
	}

	s.setSessionCookie(w, sess)
	respondJSON(w, http.StatusCreated, s.newSessionResponse(sess, message))
}

// handleLogout ends the caller's session if there is one. Logging out
// without a session still clears the cookie.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if id := s.auth.extractSessionID(r); id != "" {
		if err := s.sessions.Logout(r.Context(), id); err != nil {
			respondFailure(w, err, models.Message{})
			return
		}
		s.workspaces.Drop(id)
	}

	s.clearSessionCookie(w)
	respondJSON(w, http.StatusOK, map[string]string{
		"redirect": LoginPath,
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	sess := SessionFromContext(r.Context())
	respondJSON(w, http.StatusOK, s.newSessionResponse(sess, ""))
}
