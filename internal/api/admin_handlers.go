package api

import (
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/terra-clan/codeladder/internal/admin"
	"github.com/terra-clan/codeladder/internal/importer"
	"github.com/terra-clan/codeladder/internal/models"
)

type addQuestionRequest struct {
	Title string `json:"title"`
	Link  string `json:"link"`
	Tags  string `json:"tags"`
}

type adminResult struct {
	Message models.Message `json:"message"`
}

type importResponse struct {
	admin.ImportResult
	Message models.Message `json:"message"`
}

// console opens the admin console for the caller, answering 403 for
// anyone but the configured admin
func (s *Server) console(w http.ResponseWriter, r *http.Request) (*admin.Console, bool) {
	sess := SessionFromContext(r.Context())
	c, err := admin.NewConsole(s.backend, sess.Credentials(), s.config.Session.AdminUsername, s.logger)
	if err != nil {
		respondError(w, http.StatusForbidden, "forbidden", err.Error())
		return nil, false
	}
	return c, true
}

func (s *Server) handleAdminUsers(w http.ResponseWriter, r *http.Request) {
	c, ok := s.console(w, r)
	if !ok {
		return
	}
	users, err := c.Users(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		respondFailure(w, err, c.Message())
		return
	}
	respondJSON(w, http.StatusOK, users)
}

func (s *Server) handleAdminQuestions(w http.ResponseWriter, r *http.Request) {
	c, ok := s.console(w, r)
	if !ok {
		return
	}
	questions, err := c.Questions(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		respondFailure(w, err, c.Message())
		return
	}
	respondJSON(w, http.StatusOK, questions)
}

func (s *Server) handleAdminLadders(w http.ResponseWriter, r *http.Request) {
	c, ok := s.console(w, r)
	if !ok {
		return
	}
	ladders, err := c.Ladders(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		respondFailure(w, err, c.Message())
		return
	}
	respondJSON(w, http.StatusOK, ladders)
}

// respondConsole writes the outcome of an admin mutation
func respondConsole(w http.ResponseWriter, c *admin.Console, status int, err error) {
	if err != nil {
		respondFailure(w, err, c.Message())
		return
	}
	respondJSON(w, status, adminResult{Message: c.Message()})
}

func (s *Server) handleAdminDeleteUser(w http.ResponseWriter, r *http.Request) {
	c, ok := s.console(w, r)
	if !ok {
		return
	}
	respondConsole(w, c, http.StatusOK, c.DeleteUser(r.Context(), chi.URLParam(r, "username")))
}

func (s *Server) handleAdminDeleteQuestion(w http.ResponseWriter, r *http.Request) {
	c, ok := s.console(w, r)
	if !ok {
		return
	}
	id := models.ID(chi.URLParam(r, "questionID"))
	respondConsole(w, c, http.StatusOK, c.DeleteQuestion(r.Context(), id))
}

func (s *Server) handleAdminDeleteLadder(w http.ResponseWriter, r *http.Request) {
	c, ok := s.console(w, r)
	if !ok {
		return
	}
	id := models.ID(chi.URLParam(r, "ladderID"))
	respondConsole(w, c, http.StatusOK, c.DeleteLadder(r.Context(), id))
}

func (s *Server) handleAdminAddQuestion(w http.ResponseWriter, r *http.Request) {
	c, ok := s.console(w, r)
	if !ok {
		return
	}
	var req addQuestionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	respondConsole(w, c, http.StatusCreated, c.AddQuestion(r.Context(), req.Title, req.Link, req.Tags))
}

// handleAdminImport uploads a CSV or YAML question file sent as the request
// body. The format comes from ?format= or the Content-Type header.
func (s *Server) handleAdminImport(w http.ResponseWriter, r *http.Request) {
	c, ok := s.console(w, r)
	if !ok {
		return
	}

	format := importFormat(r)
	batch, err := importer.Parse(r.Body, format)
	if err != nil {
		respondFailure(w, err, models.Failure(err, "failed to parse import file"))
		return
	}
	batch.Source = r.URL.Query().Get("name")
	if batch.Source == "" {
		batch.Source = "upload." + string(format)
	}

	result := c.ImportBatch(r.Context(), batch)
	respondJSON(w, http.StatusOK, importResponse{ImportResult: result, Message: c.Message()})
}

func importFormat(r *http.Request) importer.Format {
	if f := strings.ToLower(r.URL.Query().Get("format")); f != "" {
		if f == "yml" {
			return importer.FormatYAML
		}
		return importer.Format(f)
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "text/csv":
		return importer.FormatCSV
	case "application/yaml", "application/x-yaml", "text/yaml", "text/x-yaml":
		return importer.FormatYAML
	}
	return importer.Format(mediaType)
}
