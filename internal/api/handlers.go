package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/terra-clan/codeladder/internal/admin"
	"github.com/terra-clan/codeladder/internal/importer"
	"github.com/terra-clan/codeladder/internal/ladders"
	"github.com/terra-clan/codeladder/internal/ladderview"
	"github.com/terra-clan/codeladder/internal/models"
	"github.com/terra-clan/codeladder/internal/problemset"
	"github.com/terra-clan/codeladder/pkg/client"
)

// Response helpers

type apiResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *apiError `json:"error,omitempty"`
}

type apiError struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Redirect string `json:"redirect,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	writeError(w, status, &apiError{Code: code, Message: message})
}

// respondRedirect tells the caller to sign in again
func respondRedirect(w http.ResponseWriter, code, message string) {
	writeError(w, http.StatusUnauthorized, &apiError{Code: code, Message: message, Redirect: LoginPath})
}

func writeError(w http.ResponseWriter, status int, e *apiError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(apiResponse{Error: e}); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

// respondFailure maps a component error to a status and code. The inline
// notice left by the component is preferred as the message.
func respondFailure(w http.ResponseWriter, err error, notice models.Message) {
	status, code := classify(err)

	message := notice.Text
	if notice.Kind != models.MessageError || message == "" {
		message = err.Error()
	}

	if status == http.StatusUnauthorized {
		writeError(w, status, &apiError{Code: code, Message: message, Redirect: LoginPath})
		return
	}
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "error", err, "code", code)
	}
	respondError(w, status, code, message)
}

func classify(err error) (int, string) {
	var ve *models.ValidationError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, ladderview.ErrNotOwner), errors.Is(err, admin.ErrNotAdmin), errors.Is(err, ladderview.ErrAccessDenied):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, ladderview.ErrNotReady), errors.Is(err, problemset.ErrNotLoaded):
		return http.StatusConflict, "not_ready"
	case errors.Is(err, problemset.ErrAllSolved):
		return http.StatusNotFound, "all_solved"
	case errors.Is(err, importer.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType, "unsupported_format"
	case errors.Is(err, ladders.ErrClosed), errors.Is(err, ladderview.ErrClosed), errors.Is(err, problemset.ErrClosed):
		return http.StatusConflict, "closed"
	}

	switch client.KindOf(err) {
	case client.ErrUnauthorized:
		return http.StatusUnauthorized, "unauthorized"
	case client.ErrForbidden:
		return http.StatusForbidden, "forbidden"
	case client.ErrNotFound:
		return http.StatusNotFound, "not_found"
	case client.ErrConflict:
		return http.StatusConflict, "conflict"
	case client.ErrNetwork, client.ErrServer:
		return http.StatusBadGateway, "backend_error"
	}

	if errors.Is(err, ladderview.ErrIncomplete) {
		return http.StatusBadGateway, "backend_error"
	}
	return http.StatusInternalServerError, "internal_error"
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return false
	}
	return true
}

func queryBool(r *http.Request, key string) bool {
	b, _ := strconv.ParseBool(r.URL.Query().Get(key))
	return b
}

func queryInt(r *http.Request, key string, defaultValue int) int {
	if n, err := strconv.Atoi(r.URL.Query().Get(key)); err == nil {
		return n
	}
	return defaultValue
}

// Health handlers

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Ping(r.Context()); err != nil {
		slog.Warn("session store not ready", "error", err)
		respondError(w, http.StatusServiceUnavailable, "not_ready", "service not ready")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}
