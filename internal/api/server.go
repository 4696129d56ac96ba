package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/terra-clan/codeladder/internal/admin"
	"github.com/terra-clan/codeladder/internal/config"
	"github.com/terra-clan/codeladder/internal/ladders"
	"github.com/terra-clan/codeladder/internal/ladderview"
	"github.com/terra-clan/codeladder/internal/problemset"
	"github.com/terra-clan/codeladder/internal/session"
)

// Backend is the ladder backend as used by every gateway component.
// *client.Client implements it.
type Backend interface {
	ladders.API
	ladderview.API
	problemset.API
	admin.API
}

// Server represents the HTTP gateway
type Server struct {
	config     *config.Config
	router     *chi.Mux
	backend    Backend
	sessions   *session.Manager
	workspaces *Workspaces
	auth       *AuthMiddleware
	logger     *slog.Logger
}

// NewServer creates a new gateway server
func NewServer(cfg *config.Config, backend Backend, sessions *session.Manager, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	workspaces := NewWorkspaces(backend, cfg.Backend.MaxConcurrentFetches, logger)
	s := &Server{
		config:     cfg,
		backend:    backend,
		sessions:   sessions,
		workspaces: workspaces,
		auth:       NewAuthMiddleware(sessions, workspaces, cfg.Session.CookieName),
		logger:     logger,
	}
	s.setupRouter()
	return s
}

// Router returns the configured router
func (s *Server) Router() http.Handler {
	return s.router
}

// Workspaces returns the per-session workspace registry
func (s *Server) Workspaces() *Workspaces {
	return s.workspaces
}

// setupRouter configures all routes and middleware
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.config.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))

		// Health check (outside versioned API - public)
		r.Get("/health", s.handleHealth)
		r.Get("/ready", s.handleReady)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", s.handleLogin)
			r.Post("/signup", s.handleSignup)
			r.Post("/logout", s.handleLogout)
		})
	})

	// API v1 routes (require a session)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.auth.Authenticate)

		// Websocket stream, outside the request timeout
		r.Get("/ladders/stream", s.handleLadderStream)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))

			r.Get("/me", s.handleMe)

			// Problem set
			r.Route("/problems", func(r chi.Router) {
				r.Get("/", s.handleListProblems)
				r.Get("/random", s.handleRandomProblem)
				r.Post("/{questionID}/solved", s.handleMarkProblem(true))
				r.Delete("/{questionID}/solved", s.handleMarkProblem(false))
			})

			// Ladders
			r.Route("/ladders", func(r chi.Router) {
				r.Get("/", s.handleListLadders)
				r.Post("/", s.handleCreateLadder)
				r.Post("/refresh", s.handleRefreshLadders)
				r.Post("/copy", s.handleCopyLadder)

				r.Route("/{ladderID}", func(r chi.Router) {
					r.Get("/", s.handleGetLadder)
					r.Delete("/", s.handleDeleteLadder)
					r.Get("/candidates", s.handleLadderCandidates)
					r.Get("/removable", s.handleLadderRemovable)
					r.Post("/questions", s.handleAddLadderQuestions)
					r.Post("/questions/remove", s.handleRemoveLadderQuestions)
					r.Post("/questions/{questionID}/solved", s.handleMarkLadderQuestion(true))
					r.Delete("/questions/{questionID}/solved", s.handleMarkLadderQuestion(false))
					r.Post("/collaborators", s.handleAddCollaborator)
					r.Delete("/collaborators/{username}", s.handleRemoveCollaborator)
				})
			})

			// Admin
			r.Route("/admin", func(r chi.Router) {
				r.Get("/users", s.handleAdminUsers)
				r.Delete("/users/{username}", s.handleAdminDeleteUser)
				r.Get("/questions", s.handleAdminQuestions)
				r.Post("/questions", s.handleAdminAddQuestion)
				r.Post("/questions/import", s.handleAdminImport)
				r.Delete("/questions/{questionID}", s.handleAdminDeleteQuestion)
				r.Get("/ladders", s.handleAdminLadders)
				r.Delete("/ladders/{ladderID}", s.handleAdminDeleteLadder)
			})
		})
	})

	s.router = r
}

// loggingMiddleware logs HTTP requests using slog
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			s.logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
				"remote_addr", r.RemoteAddr,
			)
		}()

		next.ServeHTTP(ww, r)
	})
}
