package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/terra-clan/codeladder/internal/ladderview"
	"github.com/terra-clan/codeladder/internal/models"
	"github.com/terra-clan/codeladder/pkg/client"
)

type createLadderRequest struct {
	Title string `json:"title"`
}

type copyLadderRequest struct {
	SourceID models.ID `json:"source_id"`
	Title    string    `json:"title"`
}

type questionsRequest struct {
	QuestionIDs []models.ID `json:"question_ids"`
}

type collaboratorRequest struct {
	Username string `json:"username"`
}

type questionsResponse struct {
	Questions []models.Question `json:"questions"`
}

// Ladder collection handlers

func (s *Server) handleListLadders(w http.ResponseWriter, r *http.Request) {
	c := s.workspace(r).Ladders
	if !c.Snapshot().Loaded || queryBool(r, "refresh") {
		if err := c.Refresh(r.Context()); err != nil {
			respondFailure(w, err, c.Message())
			return
		}
	}
	respondJSON(w, http.StatusOK, c.Snapshot())
}

func (s *Server) handleRefreshLadders(w http.ResponseWriter, r *http.Request) {
	c := s.workspace(r).Ladders
	if err := c.Refresh(r.Context()); err != nil {
		respondFailure(w, err, c.Message())
		return
	}
	respondJSON(w, http.StatusOK, c.Snapshot())
}

func (s *Server) handleCreateLadder(w http.ResponseWriter, r *http.Request) {
	var req createLadderRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	c := s.workspace(r).Ladders
	if err := c.Create(r.Context(), req.Title); err != nil {
		respondFailure(w, err, c.Message())
		return
	}
	respondJSON(w, http.StatusCreated, c.Snapshot())
}

func (s *Server) handleCopyLadder(w http.ResponseWriter, r *http.Request) {
	var req copyLadderRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	c := s.workspace(r).Ladders
	if err := c.Copy(r.Context(), req.SourceID, req.Title); err != nil {
		respondFailure(w, err, c.Message())
		return
	}
	respondJSON(w, http.StatusCreated, c.Snapshot())
}

func (s *Server) handleDeleteLadder(w http.ResponseWriter, r *http.Request) {
	ws := s.workspace(r)
	id := models.ID(chi.URLParam(r, "ladderID"))

	if err := ws.Ladders.Delete(r.Context(), id); err != nil {
		respondFailure(w, err, ws.Ladders.Message())
		return
	}
	respondJSON(w, http.StatusOK, ws.Ladders.Snapshot())
}

// Ladder detail handlers

// ladderView opens the detail view of the request's ladder. A backend 401
// while loading is answered with the login redirect and ok is false.
func (s *Server) ladderView(w http.ResponseWriter, r *http.Request, reload bool) (*ladderview.View, bool) {
	id := models.ID(chi.URLParam(r, "ladderID"))
	v, err := s.workspace(r).View(r.Context(), id, reload)
	if errors.Is(err, client.ErrUnauthorized) {
		respondFailure(w, err, v.Snapshot().Message)
		return nil, false
	}
	return v, true
}

// handleGetLadder answers with the view snapshot. Access denied and load
// errors are states of the view, not request failures; only a rejected
// backend token turns into the login redirect.
func (s *Server) handleGetLadder(w http.ResponseWriter, r *http.Request) {
	v, ok := s.ladderView(w, r, queryBool(r, "reload"))
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, v.Snapshot())
}

func (s *Server) handleLadderCandidates(w http.ResponseWriter, r *http.Request) {
	v, ok := s.ladderView(w, r, false)
	if !ok {
		return
	}
	qs, err := v.Candidates(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		respondFailure(w, err, v.Snapshot().Message)
		return
	}
	respondJSON(w, http.StatusOK, questionsResponse{Questions: qs})
}

func (s *Server) handleLadderRemovable(w http.ResponseWriter, r *http.Request) {
	v, ok := s.ladderView(w, r, false)
	if !ok {
		return
	}
	qs, err := v.Removable(r.URL.Query().Get("q"))
	if err != nil {
		respondFailure(w, err, v.Snapshot().Message)
		return
	}
	respondJSON(w, http.StatusOK, questionsResponse{Questions: qs})
}

// respondView writes the outcome of a detail view mutation
func respondView(w http.ResponseWriter, v *ladderview.View, err error) {
	snap := v.Snapshot()
	if err != nil {
		respondFailure(w, err, snap.Message)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

func (s *Server) handleAddLadderQuestions(w http.ResponseWriter, r *http.Request) {
	var req questionsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	v, ok := s.ladderView(w, r, false)
	if !ok {
		return
	}
	respondView(w, v, v.AddQuestions(r.Context(), req.QuestionIDs))
}

func (s *Server) handleRemoveLadderQuestions(w http.ResponseWriter, r *http.Request) {
	var req questionsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	v, ok := s.ladderView(w, r, false)
	if !ok {
		return
	}
	respondView(w, v, v.RemoveQuestions(r.Context(), req.QuestionIDs))
}

func (s *Server) handleMarkLadderQuestion(solved bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, ok := s.ladderView(w, r, false)
		if !ok {
			return
		}
		id := models.ID(chi.URLParam(r, "questionID"))
		if solved {
			respondView(w, v, v.MarkSolved(r.Context(), id))
			return
		}
		respondView(w, v, v.Unmark(r.Context(), id))
	}
}

func (s *Server) handleAddCollaborator(w http.ResponseWriter, r *http.Request) {
	var req collaboratorRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	v, ok := s.ladderView(w, r, false)
	if !ok {
		return
	}
	respondView(w, v, v.AddCollaborator(r.Context(), req.Username))
}

func (s *Server) handleRemoveCollaborator(w http.ResponseWriter, r *http.Request) {
	v, ok := s.ladderView(w, r, false)
	if !ok {
		return
	}
	respondView(w, v, v.RemoveCollaborator(r.Context(), chi.URLParam(r, "username")))
}
