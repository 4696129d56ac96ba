package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/terra-clan/codeladder/internal/models"
	"github.com/terra-clan/codeladder/internal/problemset"
)

func (s *Server) workspace(r *http.Request) *Workspace {
	return s.workspaces.Get(SessionFromContext(r.Context()))
}

func (s *Server) handleListProblems(w http.ResponseWriter, r *http.Request) {
	b, err := s.workspace(r).Problemset(r.Context(), queryBool(r, "refresh"))
	if err != nil {
		respondFailure(w, err, models.Failure(err, "failed to load questions"))
		return
	}

	page, err := b.View(problemset.Filter{
		Search:     r.URL.Query().Get("search"),
		HideSolved: queryBool(r, "hide_solved"),
		Page:       queryInt(r, "page", 1),
	})
	if err != nil {
		respondFailure(w, err, models.Message{})
		return
	}

	respondJSON(w, http.StatusOK, page)
}

func (s *Server) handleRandomProblem(w http.ResponseWriter, r *http.Request) {
	b, err := s.workspace(r).Problemset(r.Context(), false)
	if err != nil {
		respondFailure(w, err, models.Message{})
		return
	}

	q, err := b.RandomUnsolved()
	if err != nil {
		respondFailure(w, err, models.Message{})
		return
	}

	respondJSON(w, http.StatusOK, q)
}

func (s *Server) handleMarkProblem(solved bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, err := s.workspace(r).Problemset(r.Context(), false)
		if err != nil {
			respondFailure(w, err, models.Message{})
			return
		}

		id := models.ID(chi.URLParam(r, "questionID"))
		if solved {
			err = b.MarkSolved(r.Context(), id)
		} else {
			err = b.Unmark(r.Context(), id)
		}

		page, _ := b.View(problemset.Filter{
			Search:     r.URL.Query().Get("search"),
			HideSolved: queryBool(r, "hide_solved"),
			Page:       queryInt(r, "page", 1),
		})
		if err != nil {
			respondFailure(w, err, page.Message)
			return
		}

		respondJSON(w, http.StatusOK, page)
	}
}
