package problemset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/terra-clan/codeladder/internal/models"
)

// PageSize is the number of questions shown per page
const PageSize = 50

var (
	// ErrAllSolved is returned by RandomUnsolved when nothing is left to solve
	ErrAllSolved = errors.New("you've solved all problems")

	// ErrNotLoaded is returned before the first successful Load
	ErrNotLoaded = errors.New("problem set is not loaded")

	// ErrClosed is returned by operations on a closed browser
	ErrClosed = errors.New("problem set browser is closed")
)

// API is the slice of the backend SDK the browser uses
type API interface {
	ListProblemSet(ctx context.Context, creds models.Credentials) ([]models.Question, error)
	MarkSolved(ctx context.Context, creds models.Credentials, id models.ID) error
	UnmarkSolved(ctx context.Context, creds models.Credentials, id models.ID) error
}

// Filter selects which questions a page shows
type Filter struct {
	Search     string
	HideSolved bool
	Page       int
}

// Row is one question as listed, with its 1-based position in the filtered list
type Row struct {
	Index    int             `json:"index"`
	Question models.Question `json:"question"`
	Solved   bool            `json:"solved"`
}

// Page is one page of the filtered problem set
type Page struct {
	Rows       []Row           `json:"rows"`
	Page       int             `json:"page"`
	TotalPages int             `json:"total_pages"`
	Total      int             `json:"total"`
	Progress   models.Progress `json:"progress"`
	Message    models.Message  `json:"message"`
}

// Browser holds the problem set for one user
type Browser struct {
	api    API
	creds  models.Credentials
	logger *slog.Logger
	intn   func(n int) int

	mu        sync.Mutex
	questions []models.Question
	loaded    bool
	closed    bool
	message   models.Message
	toggles   models.Toggles
}

// Option configures a browser
type Option func(*Browser)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(b *Browser) {
		b.logger = logger
	}
}

// WithRandom replaces the source used by RandomUnsolved. intn must return
// a value in [0, n).
func WithRandom(intn func(n int) int) Option {
	return func(b *Browser) {
		b.intn = intn
	}
}

// NewBrowser creates an empty browser for creds
func NewBrowser(api API, creds models.Credentials, opts ...Option) *Browser {
	b := &Browser{
		api:    api,
		creds:  creds,
		logger: slog.Default(),
		intn:   rand.IntN,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Load fetches the whole problem set, replacing held questions
func (b *Browser) Load(ctx context.Context) error {
	if b.isClosed() {
		return ErrClosed
	}

	questions, err := b.api.ListProblemSet(ctx, b.creds)
	if err != nil {
		b.logger.Warn("failed to load problem set", "username", b.creds.Username, "error", err)
		b.setMessage(models.Failure(err, "failed to load questions"))
		return fmt.Errorf("failed to load problem set: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.questions = questions
	b.loaded = true
	return nil
}

// View returns one page of questions matching filter. Out of range pages
// are clamped to the nearest valid page.
func (b *Browser) View(filter Filter) (Page, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.loaded {
		return Page{}, ErrNotLoaded
	}

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	var matched []models.Question
	for i := range b.questions {
		q := &b.questions[i]
		if search != "" && !strings.Contains(strings.ToLower(q.Title), search) {
			continue
		}
		if filter.HideSolved && q.IsSolvedBy(b.creds.Username) {
			continue
		}
		matched = append(matched, *q)
	}

	totalPages := (len(matched) + PageSize - 1) / PageSize
	page := filter.Page
	if page > totalPages {
		page = totalPages
	}
	if page < 1 {
		page = 1
	}

	start := (page - 1) * PageSize
	end := min(start+PageSize, len(matched))

	rows := make([]Row, 0, max(end-start, 0))
	for i := start; i < end; i++ {
		rows = append(rows, Row{
			Index:    i + 1,
			Question: matched[i].Clone(),
			Solved:   matched[i].IsSolvedBy(b.creds.Username),
		})
	}

	return Page{
		Rows:       rows,
		Page:       page,
		TotalPages: totalPages,
		Total:      len(matched),
		Progress:   models.ProgressOf(b.questions, b.creds.Username),
		Message:    b.message,
	}, nil
}

// RandomUnsolved picks a question the user has not solved yet
func (b *Browser) RandomUnsolved() (models.Question, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.loaded {
		return models.Question{}, ErrNotLoaded
	}

	var unsolved []int
	for i := range b.questions {
		if !b.questions[i].IsSolvedBy(b.creds.Username) {
			unsolved = append(unsolved, i)
		}
	}
	if len(unsolved) == 0 {
		b.message = models.Success("%s", "you've solved all problems!")
		return models.Question{}, ErrAllSolved
	}

	return b.questions[unsolved[b.intn(len(unsolved))]].Clone(), nil
}

// MarkSolved optimistically adds the user to the question's solved set and
// reverts it if the backend call fails
func (b *Browser) MarkSolved(ctx context.Context, id models.ID) error {
	return b.toggle(ctx, id, true)
}

// Unmark optimistically removes the user from the question's solved set and
// reverts it if the backend call fails
func (b *Browser) Unmark(ctx context.Context, id models.ID) error {
	return b.toggle(ctx, id, false)
}

func (b *Browser) toggle(ctx context.Context, id models.ID, solved bool) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	if !b.loaded {
		b.mu.Unlock()
		return ErrNotLoaded
	}
	idx := -1
	for i := range b.questions {
		if b.questions[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		b.mu.Unlock()
		return models.NewValidationError("question_id", "question is not in the problem set")
	}
	pending := b.toggles.Begin(&b.questions[idx], b.creds.Username, solved)
	b.mu.Unlock()

	var err error
	if solved {
		err = b.api.MarkSolved(ctx, b.creds, id)
	} else {
		err = b.api.UnmarkSolved(ctx, b.creds, id)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return err
	}
	rolledBack := b.toggles.Finish(b.questions, pending, err)
	if err != nil {
		b.logger.Warn("solved toggle failed", "question_id", id, "solved", solved, "rolled_back", rolledBack, "error", err)
		if solved {
			b.message = models.Failure(err, "could not mark as solved")
		} else {
			b.message = models.Failure(err, "could not unmark the question")
		}
		return fmt.Errorf("failed to toggle question %s: %w", id, err)
	}

	b.message = models.Message{}
	return nil
}

// Loaded reports whether the problem set has been fetched
func (b *Browser) Loaded() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.loaded
}

// Close deactivates the browser. Responses landing afterwards are discarded.
func (b *Browser) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
}

func (b *Browser) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

func (b *Browser) setMessage(m models.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.message = m
	}
}
