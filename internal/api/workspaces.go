package api

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/terra-clan/codeladder/internal/ladders"
	"github.com/terra-clan/codeladder/internal/ladderview"
	"github.com/terra-clan/codeladder/internal/models"
	"github.com/terra-clan/codeladder/internal/problemset"
	"github.com/terra-clan/codeladder/internal/progress"
)

// Workspace is the view state held for one session
type Workspace struct {
	creds     models.Credentials
	expiresAt time.Time

	Ladders  *ladders.Collection
	Problems *problemset.Browser

	backend     Backend
	concurrency int
	logger      *slog.Logger

	mu    sync.Mutex
	views map[models.ID]*ladderview.View
}

// View returns the open detail view of ladder id. A new view is opened and
// loaded when none is open, when reload is set, or when the previous view
// is not ready. The error is the one Load returned.
func (w *Workspace) View(ctx context.Context, id models.ID, reload bool) (*ladderview.View, error) {
	w.mu.Lock()
	v, ok := w.views[id]
	if ok && !reload && v.State() == ladderview.StateReady {
		w.mu.Unlock()
		return v, nil
	}
	if ok {
		v.Close()
	}
	v = ladderview.New(w.backend, w.creds, id,
		ladderview.WithConcurrency(w.concurrency),
		ladderview.WithLogger(w.logger),
	)
	w.views[id] = v
	w.mu.Unlock()

	err := v.Load(ctx)
	if err != nil {
		w.logger.Debug("ladder view did not load", "ladder_id", id, "state", v.State(), "error", err)
	}
	return v, err
}

// Problemset returns the browser, loading the problem set on first use or
// when reload is set
func (w *Workspace) Problemset(ctx context.Context, reload bool) (*problemset.Browser, error) {
	if !reload && w.Problems.Loaded() {
		return w.Problems, nil
	}
	if err := w.Problems.Load(ctx); err != nil {
		return w.Problems, err
	}
	return w.Problems, nil
}

// Close closes every component so in-flight responses are discarded
func (w *Workspace) Close() {
	w.Ladders.Close()
	w.Problems.Close()

	w.mu.Lock()
	defer w.mu.Unlock()
	for id, v := range w.views {
		v.Close()
		delete(w.views, id)
	}
}

// Workspaces keeps one workspace per session id
type Workspaces struct {
	backend     Backend
	agg         *progress.Aggregator
	concurrency int
	logger      *slog.Logger
	now         func() time.Time

	mu    sync.RWMutex
	items map[string]*Workspace
}

// NewWorkspaces creates an empty registry
func NewWorkspaces(backend Backend, concurrency int, logger *slog.Logger) *Workspaces {
	if logger == nil {
		logger = slog.Default()
	}
	return &Workspaces{
		backend:     backend,
		agg:         progress.NewAggregator(backend, progress.WithConcurrency(concurrency), progress.WithLogger(logger)),
		concurrency: concurrency,
		logger:      logger,
		now:         time.Now,
		items:       make(map[string]*Workspace),
	}
}

// Get returns the workspace of s, creating it on first use
func (r *Workspaces) Get(s *models.Session) *Workspace {
	r.mu.RLock()
	w, ok := r.items[s.ID]
	r.mu.RUnlock()
	if ok {
		return w
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if w, ok := r.items[s.ID]; ok {
		return w
	}

	creds := s.Credentials()
	w = &Workspace{
		creds:     creds,
		expiresAt: s.ExpiresAt,
		Ladders: ladders.NewCollection(r.backend, r.agg, creds,
			ladders.WithConcurrency(r.concurrency),
			ladders.WithLogger(r.logger),
		),
		Problems:    problemset.NewBrowser(r.backend, creds, problemset.WithLogger(r.logger)),
		backend:     r.backend,
		concurrency: r.concurrency,
		logger:      r.logger,
		views:       make(map[models.ID]*ladderview.View),
	}
	r.items[s.ID] = w
	r.logger.Debug("workspace opened", "session_id", s.ID, "username", creds.Username)
	return w
}

// Collection creates a standalone ladder collection for s, outside its workspace
func (r *Workspaces) Collection(s *models.Session) *ladders.Collection {
	return ladders.NewCollection(r.backend, r.agg, s.Credentials(),
		ladders.WithConcurrency(r.concurrency),
		ladders.WithLogger(r.logger),
	)
}

// Drop closes and removes the workspace of session id
func (r *Workspaces) Drop(id string) {
	r.mu.Lock()
	w, ok := r.items[id]
	delete(r.items, id)
	r.mu.Unlock()

	if ok {
		w.Close()
		r.logger.Debug("workspace dropped", "session_id", id)
	}
}

// Len returns the number of open workspaces
func (r *Workspaces) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

// Sweep drops workspaces whose session has expired
func (r *Workspaces) Sweep(context.Context) (int, error) {
	now := r.now()

	r.mu.Lock()
	var expired []*Workspace
	for id, w := range r.items {
		if !w.expiresAt.IsZero() && now.After(w.expiresAt) {
			expired = append(expired, w)
			delete(r.items, id)
		}
	}
	r.mu.Unlock()

	for _, w := range expired {
		w.Close()
	}
	return len(expired), nil
}

// CloseAll drops every workspace
func (r *Workspaces) CloseAll() {
	r.mu.Lock()
	items := r.items
	r.items = make(map[string]*Workspace)
	r.mu.Unlock()

	for _, w := range items {
		w.Close()
	}
}
