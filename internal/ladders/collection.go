package ladders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/terra-clan/codeladder/internal/fanout"
	"github.com/terra-clan/codeladder/internal/models"
	"github.com/terra-clan/codeladder/internal/progress"
)

// MinTitleLength is the shortest accepted ladder title, in characters
const MinTitleLength = 3

// ErrClosed is returned by operations on a closed collection
var ErrClosed = errors.New("ladder collection is closed")

// API is the slice of the backend SDK the collection uses
type API interface {
	ListLadders(ctx context.Context, creds models.Credentials) ([]models.Ladder, error)
	CreateLadder(ctx context.Context, creds models.Credentials, title string) (*models.Ladder, error)
	CopyLadder(ctx context.Context, creds models.Credentials, sourceID models.ID, title string) (*models.Ladder, error)
	DeleteLadder(ctx context.Context, creds models.Credentials, id models.ID) error
}

// Entry is a ladder with its progress for the session user
type Entry struct {
	Ladder   models.Ladder   `json:"ladder"`
	Progress models.Progress `json:"progress"`
}

// Snapshot is a copy of the collection state for rendering
type Snapshot struct {
	Ladders     []Entry        `json:"ladders"`
	Message     models.Message `json:"message"`
	Loaded      bool           `json:"loaded"`
	RefreshedAt *time.Time     `json:"refreshed_at,omitempty"`
}

// Collection holds the signed-in user's ladders enriched with progress.
// Responses that land after Close, or after a newer refresh was applied,
// are discarded.
type Collection struct {
	api    API
	agg    *progress.Aggregator
	creds  models.Credentials
	limit  int
	logger *slog.Logger

	mu          sync.Mutex
	entries     []Entry
	message     models.Message
	loaded      bool
	closed      bool
	issued      uint64
	applied     uint64
	refreshedAt time.Time
}

// Option configures a collection
type Option func(*Collection)

// WithConcurrency bounds how many ladders are aggregated at once
func WithConcurrency(limit int) Option {
	return func(c *Collection) {
		c.limit = limit
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *Collection) {
		c.logger = logger
	}
}

// NewCollection creates an empty collection for creds
func NewCollection(api API, agg *progress.Aggregator, creds models.Credentials, opts ...Option) *Collection {
	c := &Collection{
		api:    api,
		agg:    agg,
		creds:  creds,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Refresh fetches every ladder visible to the user and aggregates progress
// for each concurrently. Held state is replaced in one step; on a list
// failure it is left as it was.
func (c *Collection) Refresh(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.issued++
	ticket := c.issued
	c.mu.Unlock()

	list, err := c.api.ListLadders(ctx, c.creds)
	if err != nil {
		c.logger.Warn("failed to list ladders", "username", c.creds.Username, "error", err)
		c.setMessage(models.Failure(err, "failed to load ladders"))
		return fmt.Errorf("failed to list ladders: %w", err)
	}

	results := fanout.Settle(ctx, c.limit, list, func(ctx context.Context, ladder models.Ladder) (models.Progress, error) {
		return c.agg.Aggregate(ctx, c.creds, ladder.Questions), nil
	})

	entries := make([]Entry, len(results))
	for i, r := range results {
		entries[i] = Entry{Ladder: r.Key, Progress: r.Value}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || ticket < c.applied {
		c.logger.Debug("discarding stale ladder refresh", "username", c.creds.Username, "ticket", ticket)
		return nil
	}

	c.entries = entries
	c.applied = ticket
	c.loaded = true
	c.refreshedAt = time.Now()

	return nil
}

// Create validates title, creates the ladder, then refreshes
func (c *Collection) Create(ctx context.Context, title string) error {
	title = strings.TrimSpace(title)
	if err := validateTitle(title, "please enter a name for your ladder"); err != nil {
		c.setMessage(models.Failure(err, ""))
		return err
	}

	if _, err := c.api.CreateLadder(ctx, c.creds, title); err != nil {
		c.logger.Warn("failed to create ladder", "title", title, "error", err)
		c.setMessage(models.Failure(err, "failed to create ladder"))
		return fmt.Errorf("failed to create ladder: %w", err)
	}

	c.refreshAfterMutation(ctx)
	c.setMessage(models.Success("ladder %q created successfully", title))
	return nil
}

// Copy validates the input, copies sourceID into a new ladder, then refreshes
func (c *Collection) Copy(ctx context.Context, sourceID models.ID, title string) error {
	sourceID = models.ID(strings.TrimSpace(sourceID.String()))
	title = strings.TrimSpace(title)

	if sourceID.IsZero() {
		err := models.NewValidationError("source_id", "please enter a source ladder ID")
		c.setMessage(models.Failure(err, ""))
		return err
	}
	if err := validateTitle(title, "please enter a name for the new ladder"); err != nil {
		c.setMessage(models.Failure(err, ""))
		return err
	}

	if _, err := c.api.CopyLadder(ctx, c.creds, sourceID, title); err != nil {
		c.logger.Warn("failed to copy ladder", "source_id", sourceID, "error", err)
		c.setMessage(models.Failure(err, "failed to copy ladder"))
		return fmt.Errorf("failed to copy ladder: %w", err)
	}

	c.refreshAfterMutation(ctx)
	c.setMessage(models.Success("ladder %q copied successfully", title))
	return nil
}

// Delete deletes the ladder and drops it from held state without a refresh.
// A failed call leaves held state untouched.
func (c *Collection) Delete(ctx context.Context, id models.ID) error {
	if id.IsZero() {
		err := models.NewValidationError("id", "ladder id is required")
		c.setMessage(models.Failure(err, ""))
		return err
	}

	if err := c.api.DeleteLadder(ctx, c.creds, id); err != nil {
		c.logger.Warn("failed to delete ladder", "ladder_id", id, "error", err)
		c.setMessage(models.Failure(err, "failed to delete ladder"))
		return fmt.Errorf("failed to delete ladder: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}

	title := id.String()
	kept := make([]Entry, 0, len(c.entries))
	for _, e := range c.entries {
		if e.Ladder.ID == id {
			title = e.Ladder.Title
			continue
		}
		kept = append(kept, e)
	}
	c.entries = kept
	c.message = models.Success("ladder %q deleted successfully", title)

	return nil
}

// Entries returns a copy of the held ladders
func (c *Collection) Entries() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneEntries(c.entries)
}

// Message returns the notice left by the last operation
func (c *Collection) Message() models.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.message
}

// Snapshot returns a copy of the whole collection state
func (c *Collection) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		Ladders: cloneEntries(c.entries),
		Message: c.message,
		Loaded:  c.loaded,
	}
	if !c.refreshedAt.IsZero() {
		t := c.refreshedAt
		s.RefreshedAt = &t
	}
	return s
}

// Close deactivates the collection. In-flight calls still complete but
// their results are no longer applied.
func (c *Collection) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

// refreshAfterMutation reloads the list after a successful mutation.
// The mutation already succeeded, so a refresh failure is only logged.
func (c *Collection) refreshAfterMutation(ctx context.Context) {
	if err := c.Refresh(ctx); err != nil && !errors.Is(err, ErrClosed) {
		c.logger.Warn("refresh after ladder mutation failed", "username", c.creds.Username, "error", err)
	}
}

func (c *Collection) setMessage(m models.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.message = m
	}
}

func validateTitle(title, emptyMessage string) error {
	if title == "" {
		return models.NewValidationError("title", emptyMessage)
	}
	if utf8.RuneCountInString(title) < MinTitleLength {
		return models.NewValidationError("title", fmt.Sprintf("ladder name must be at least %d characters long", MinTitleLength))
	}
	return nil
}

func cloneEntries(entries []Entry) []Entry {
	out := make([]Entry, len(entries))
	for i, e := range entries {
		out[i] = Entry{Ladder: e.Ladder.Clone(), Progress: e.Progress}
	}
	return out
}
