// Package ladderview holds the state of one ladder's detail page: its
// collaborator set, the full question rows and the mutations a member can
// apply to them.
package ladderview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/terra-clan/codeladder/internal/fanout"
	"github.com/terra-clan/codeladder/internal/models"
	"github.com/terra-clan/codeladder/pkg/client"
)

// State is the load state of a view
type State string

const (
	StateLoading      State = "loading"
	StateAuthorized   State = "authorized"
	StateReady        State = "ready"
	StateAccessDenied State = "access_denied"
	StateLoadError    State = "load_error"
)

var (
	// ErrNotReady is returned by mutations attempted outside StateReady
	ErrNotReady = errors.New("ladder view is not ready")

	// ErrNotOwner is returned when a non-owner edits the collaborator set
	ErrNotOwner = errors.New("only the ladder owner can manage collaborators")

	// ErrAccessDenied is returned when the user is not a collaborator
	ErrAccessDenied = errors.New("you do not have access to this ladder")

	// ErrClosed is returned by operations on a closed view
	ErrClosed = errors.New("ladder view is closed")

	// ErrIncomplete is returned when question rows failed to load. The
	// view is then in StateLoadError.
	ErrIncomplete = errors.New("ladder questions failed to load")
)

// API is the slice of the backend SDK the view uses
type API interface {
	GetLadder(ctx context.Context, creds models.Credentials, id models.ID) (*models.Ladder, error)
	GetQuestion(ctx context.Context, creds models.Credentials, id models.ID) (*models.Question, error)
	ListProblemSet(ctx context.Context, creds models.Credentials) ([]models.Question, error)
	MarkSolved(ctx context.Context, creds models.Credentials, id models.ID) error
	UnmarkSolved(ctx context.Context, creds models.Credentials, id models.ID) error
	EditLadder(ctx context.Context, creds models.Credentials, id models.ID, questionIDs []models.ID, action models.EditAction) error
	AddCollaborator(ctx context.Context, creds models.Credentials, id models.ID, username string) (*models.Ladder, error)
	RemoveCollaborator(ctx context.Context, creds models.Credentials, id models.ID, username string) ([]string, error)
}

// Snapshot is a copy of the view state for rendering
type Snapshot struct {
	ID        models.ID         `json:"id"`
	State     State             `json:"state"`
	Ladder    *models.Ladder    `json:"ladder,omitempty"`
	Questions []models.Question `json:"questions"`
	Progress  models.Progress   `json:"progress"`
	IsOwner   bool              `json:"is_owner"`
	Failed    []models.ID       `json:"failed,omitempty"`
	Message   models.Message    `json:"message"`
}

// View is the detail model of a single ladder
type View struct {
	api    API
	creds  models.Credentials
	id     models.ID
	limit  int
	logger *slog.Logger

	mu        sync.Mutex
	state     State
	ladder    models.Ladder
	questions []models.Question
	failed    []models.ID
	message   models.Message
	toggles   models.Toggles
	closed    bool
}

// Option configures a view
type Option func(*View)

// WithConcurrency bounds how many question rows are fetched at once
func WithConcurrency(limit int) Option {
	return func(v *View) {
		v.limit = limit
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(v *View) {
		v.logger = logger
	}
}

// New creates a view for ladder id in StateLoading. Call Load to populate it.
func New(api API, creds models.Credentials, id models.ID, opts ...Option) *View {
	v := &View{
		api:    api,
		creds:  creds,
		id:     id,
		state:  StateLoading,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// ID returns the ladder id the view was opened for
func (v *View) ID() models.ID {
	return v.id
}

// Load fetches the ladder, checks membership and fetches every question row.
// Any row that fails to load moves the view to StateLoadError so missing
// rows are never shown as a complete ladder. StateAccessDenied is terminal.
func (v *View) Load(ctx context.Context) error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return ErrClosed
	}
	if v.state == StateAccessDenied {
		v.mu.Unlock()
		return ErrAccessDenied
	}
	v.state = StateLoading
	v.mu.Unlock()

	ladder, err := v.api.GetLadder(ctx, v.creds, v.id)
	if err != nil {
		if errors.Is(err, client.ErrForbidden) {
			v.deny()
			return ErrAccessDenied
		}
		v.logger.Warn("failed to load ladder", "ladder_id", v.id, "error", err)
		v.fail(models.Failure(err, "failed to load ladder"))
		return fmt.Errorf("failed to load ladder: %w", err)
	}

	if !ladder.IsMember(v.creds.Username) {
		v.logger.Info("ladder access denied", "ladder_id", v.id, "username", v.creds.Username)
		v.deny()
		return ErrAccessDenied
	}

	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return nil
	}
	v.state = StateAuthorized
	v.ladder = ladder.Clone()
	v.mu.Unlock()

	rows, failed, cause := v.fetchRows(ctx, ladder.Questions)

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return nil
	}

	v.questions = rows
	v.failed = failed
	if len(failed) > 0 {
		v.state = StateLoadError
		v.message = models.Failure(nil, fmt.Sprintf("failed to load %d of %d questions: %s",
			len(failed), len(ladder.Questions), joinIDs(failed)))
		return incomplete(failed, cause)
	}

	v.state = StateReady
	return nil
}

// MarkSolved optimistically adds the user to the question's solved set and
// reverts it if the backend call fails
func (v *View) MarkSolved(ctx context.Context, id models.ID) error {
	return v.toggle(ctx, id, true)
}

// Unmark optimistically removes the user from the question's solved set and
// reverts it if the backend call fails
func (v *View) Unmark(ctx context.Context, id models.ID) error {
	return v.toggle(ctx, id, false)
}

func (v *View) toggle(ctx context.Context, id models.ID, solved bool) error {
	v.mu.Lock()
	if err := v.readyLocked(); err != nil {
		v.mu.Unlock()
		return err
	}
	idx := v.rowIndexLocked(id)
	if idx < 0 {
		v.mu.Unlock()
		err := models.NewValidationError("question_id", "question is not in this ladder")
		v.setMessage(models.Failure(err, ""))
		return err
	}
	pending := v.toggles.Begin(&v.questions[idx], v.creds.Username, solved)
	v.mu.Unlock()

	call, verb := v.api.UnmarkSolved, "unmark"
	if solved {
		call, verb = v.api.MarkSolved, "mark"
	}

	err := call(ctx, v.creds, id)

	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return err
	}
	rolledBack := v.toggles.Finish(v.questions, pending, err)
	v.mu.Unlock()

	if err != nil {
		v.logger.Warn("solved toggle failed", "ladder_id", v.id, "question_id", id, "solved", solved, "rolled_back", rolledBack, "error", err)
		v.setMessage(models.Failure(err, fmt.Sprintf("failed to %s question", verb)))
		return fmt.Errorf("failed to %s question: %w", verb, err)
	}

	if solved {
		v.setMessage(models.Success("question marked as solved"))
	} else {
		v.setMessage(models.Success("question marked as unsolved"))
	}
	return nil
}

// AddQuestions appends ids to the ladder. Ids repeated in the selection or
// already in the ladder are dropped before the call. When a new row fails
// to load the view moves to StateLoadError, the same as Load.
func (v *View) AddQuestions(ctx context.Context, ids []models.ID) error {
	v.mu.Lock()
	if err := v.readyLocked(); err != nil {
		v.mu.Unlock()
		return err
	}
	fresh := newIDs(v.ladder.Questions, ids)
	v.mu.Unlock()

	if len(ids) == 0 {
		err := models.NewValidationError("question_ids", "please select at least one question")
		v.setMessage(models.Failure(err, ""))
		return err
	}
	if len(fresh) == 0 {
		err := models.NewValidationError("question_ids", "selected questions are already in this ladder")
		v.setMessage(models.Failure(err, ""))
		return err
	}

	if err := v.api.EditLadder(ctx, v.creds, v.id, fresh, models.EditAdd); err != nil {
		v.logger.Warn("failed to add questions", "ladder_id", v.id, "count", len(fresh), "error", err)
		v.setMessage(models.Failure(err, "failed to add questions"))
		return fmt.Errorf("failed to add questions: %w", err)
	}

	rows, failed, cause := v.fetchRows(ctx, fresh)

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return nil
	}

	for _, id := range fresh {
		if !models.ContainsID(v.ladder.Questions, id) {
			v.ladder.Questions = append(v.ladder.Questions, id)
		}
	}
	for _, q := range rows {
		if v.rowIndexLocked(q.ID) < 0 {
			v.questions = append(v.questions, q)
		}
	}

	if len(failed) > 0 {
		v.state = StateLoadError
		v.failed = append(v.failed, failed...)
		v.message = models.Failure(nil, fmt.Sprintf("added %d questions but failed to load %s", len(fresh), joinIDs(failed)))
		return incomplete(failed, cause)
	}

	v.message = models.Success("added %d questions to the ladder", len(fresh))
	return nil
}

// RemoveQuestions removes ids from the ladder
func (v *View) RemoveQuestions(ctx context.Context, ids []models.ID) error {
	v.mu.Lock()
	if err := v.readyLocked(); err != nil {
		v.mu.Unlock()
		return err
	}
	var present []models.ID
	for _, id := range uniqueIDs(ids) {
		if models.ContainsID(v.ladder.Questions, id) {
			present = append(present, id)
		}
	}
	v.mu.Unlock()

	if len(ids) == 0 {
		err := models.NewValidationError("question_ids", "please select at least one question")
		v.setMessage(models.Failure(err, ""))
		return err
	}
	if len(present) == 0 {
		err := models.NewValidationError("question_ids", "selected questions are not in this ladder")
		v.setMessage(models.Failure(err, ""))
		return err
	}

	if err := v.api.EditLadder(ctx, v.creds, v.id, present, models.EditRemove); err != nil {
		v.logger.Warn("failed to remove questions", "ladder_id", v.id, "count", len(present), "error", err)
		v.setMessage(models.Failure(err, "failed to remove questions"))
		return fmt.Errorf("failed to remove questions: %w", err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return nil
	}

	kept := make([]models.ID, 0, len(v.ladder.Questions))
	for _, id := range v.ladder.Questions {
		if !models.ContainsID(present, id) {
			kept = append(kept, id)
		}
	}
	v.ladder.Questions = kept

	rows := make([]models.Question, 0, len(v.questions))
	for _, q := range v.questions {
		if !models.ContainsID(present, q.ID) {
			rows = append(rows, q)
		}
	}
	v.questions = rows

	v.message = models.Success("removed %d questions from the ladder", len(present))
	return nil
}

// AddCollaborator grants username access. Only the owner may call it.
func (v *View) AddCollaborator(ctx context.Context, username string) error {
	username = strings.TrimSpace(username)

	v.mu.Lock()
	if err := v.ownerLocked(); err != nil {
		v.mu.Unlock()
		return err
	}
	member := v.ladder.IsMember(username)
	v.mu.Unlock()

	if username == "" {
		err := models.NewValidationError("username", "please enter a username")
		v.setMessage(models.Failure(err, ""))
		return err
	}
	if member {
		err := models.NewValidationError("username", fmt.Sprintf("%s is already a collaborator", username))
		v.setMessage(models.Failure(err, ""))
		return err
	}

	if _, err := v.api.AddCollaborator(ctx, v.creds, v.id, username); err != nil {
		v.logger.Warn("failed to add collaborator", "ladder_id", v.id, "collaborator", username, "error", err)
		v.setMessage(models.Failure(err, "failed to add collaborator"))
		return fmt.Errorf("failed to add collaborator: %w", err)
	}

	var users []string
	if ladder, err := v.api.GetLadder(ctx, v.creds, v.id); err == nil {
		users = ladder.Users
	} else {
		v.logger.Warn("failed to reload collaborators", "ladder_id", v.id, "error", err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return nil
	}
	if len(users) > 0 {
		v.ladder.Users = append([]string(nil), users...)
	} else if !v.ladder.IsMember(username) {
		v.ladder.Users = append(v.ladder.Users, username)
	}
	v.message = models.Success("%s added as a collaborator", username)
	return nil
}

// RemoveCollaborator revokes username's access. Only the owner may call it
// and the owner itself can never be removed.
func (v *View) RemoveCollaborator(ctx context.Context, username string) error {
	username = strings.TrimSpace(username)

	v.mu.Lock()
	if err := v.ownerLocked(); err != nil {
		v.mu.Unlock()
		return err
	}
	owner := v.ladder.Owner()
	member := v.ladder.IsMember(username)
	v.mu.Unlock()

	var err error
	switch {
	case username == "":
		err = models.NewValidationError("username", "please select a collaborator")
	case username == owner:
		err = models.NewValidationError("username", "the ladder owner cannot be removed")
	case !member:
		err = models.NewValidationError("username", fmt.Sprintf("%s is not a collaborator", username))
	}
	if err != nil {
		v.setMessage(models.Failure(err, ""))
		return err
	}

	users, err := v.api.RemoveCollaborator(ctx, v.creds, v.id, username)
	if err != nil {
		v.logger.Warn("failed to remove collaborator", "ladder_id", v.id, "collaborator", username, "error", err)
		v.setMessage(models.Failure(err, "failed to remove collaborator"))
		return fmt.Errorf("failed to remove collaborator: %w", err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return nil
	}
	if len(users) > 0 {
		v.ladder.Users = append([]string(nil), users...)
	} else {
		kept := make([]string, 0, len(v.ladder.Users))
		for _, u := range v.ladder.Users {
			if u != username {
				kept = append(kept, u)
			}
		}
		v.ladder.Users = kept
	}
	v.message = models.Success("%s removed from collaborators", username)
	return nil
}

// Candidates returns problem set questions not yet in the ladder whose title
// or tags match query
func (v *View) Candidates(ctx context.Context, query string) ([]models.Question, error) {
	v.mu.Lock()
	if err := v.readyLocked(); err != nil {
		v.mu.Unlock()
		return nil, err
	}
	inLadder := append([]models.ID(nil), v.ladder.Questions...)
	v.mu.Unlock()

	all, err := v.api.ListProblemSet(ctx, v.creds)
	if err != nil {
		v.setMessage(models.Failure(err, "failed to load problem set"))
		return nil, fmt.Errorf("failed to list problem set: %w", err)
	}

	out := []models.Question{}
	for i := range all {
		if models.ContainsID(inLadder, all[i].ID) || !all[i].Matches(query) {
			continue
		}
		out = append(out, all[i].Clone())
	}
	return out, nil
}

// Removable returns the ladder's own rows whose title or tags match query
func (v *View) Removable(query string) ([]models.Question, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.readyLocked(); err != nil {
		return nil, err
	}

	out := []models.Question{}
	for i := range v.questions {
		if v.questions[i].Matches(query) {
			out = append(out, v.questions[i].Clone())
		}
	}
	return out, nil
}

// Progress computes the user's progress over the held rows
func (v *View) Progress() models.Progress {
	v.mu.Lock()
	defer v.mu.Unlock()
	return models.ProgressOf(v.questions, v.creds.Username)
}

// State returns the current load state
func (v *View) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Snapshot returns a copy of the whole view state
func (v *View) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()

	s := Snapshot{
		ID:        v.id,
		State:     v.state,
		Questions: cloneQuestions(v.questions),
		Progress:  models.ProgressOf(v.questions, v.creds.Username),
		Failed:    append([]models.ID(nil), v.failed...),
		Message:   v.message,
	}
	if v.state != StateLoading && v.state != StateAccessDenied && !v.ladder.ID.IsZero() {
		l := v.ladder.Clone()
		s.Ladder = &l
		s.IsOwner = l.IsOwner(v.creds.Username)
	}
	return s
}

// Close deactivates the view. Responses landing afterwards are discarded.
func (v *View) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.closed = true
}

// fetchRows loads the rows of ids. It returns the rows that loaded, the ids
// that did not and the first fetch error.
func (v *View) fetchRows(ctx context.Context, ids []models.ID) ([]models.Question, []models.ID, error) {
	results := fanout.Settle(ctx, v.limit, ids, func(ctx context.Context, id models.ID) (*models.Question, error) {
		return v.api.GetQuestion(ctx, v.creds, id)
	})

	rows := make([]models.Question, 0, len(results))
	var failed []models.ID
	var cause error
	for _, r := range results {
		if r.Err != nil || r.Value == nil {
			v.logger.Warn("failed to load question", "ladder_id", v.id, "question_id", r.Key, "error", r.Err)
			failed = append(failed, r.Key)
			if cause == nil {
				cause = r.Err
			}
			continue
		}
		rows = append(rows, r.Value.Clone())
	}
	return rows, failed, cause
}

func incomplete(failed []models.ID, cause error) error {
	if cause == nil {
		return fmt.Errorf("%w: %s", ErrIncomplete, joinIDs(failed))
	}
	return fmt.Errorf("%w: %s: %w", ErrIncomplete, joinIDs(failed), cause)
}

func (v *View) readyLocked() error {
	if v.closed {
		return ErrClosed
	}
	if v.state != StateReady {
		return ErrNotReady
	}
	return nil
}

func (v *View) ownerLocked() error {
	if err := v.readyLocked(); err != nil {
		return err
	}
	if !v.ladder.IsOwner(v.creds.Username) {
		return ErrNotOwner
	}
	return nil
}

func (v *View) rowIndexLocked(id models.ID) int {
	for i := range v.questions {
		if v.questions[i].ID == id {
			return i
		}
	}
	return -1
}

func (v *View) deny() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return
	}
	v.state = StateAccessDenied
	v.ladder = models.Ladder{}
	v.questions = nil
	v.message = models.Failure(nil, ErrAccessDenied.Error())
}

func (v *View) fail(m models.Message) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return
	}
	v.state = StateLoadError
	v.message = m
}

func (v *View) setMessage(m models.Message) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.closed {
		v.message = m
	}
}

// newIDs returns selected minus repeats and ids already in existing, in selection order
func newIDs(existing, selected []models.ID) []models.ID {
	var out []models.ID
	for _, id := range uniqueIDs(selected) {
		if !models.ContainsID(existing, id) {
			out = append(out, id)
		}
	}
	return out
}

func uniqueIDs(ids []models.ID) []models.ID {
	seen := make(map[models.ID]struct{}, len(ids))
	out := make([]models.ID, 0, len(ids))
	for _, id := range ids {
		id = models.ID(strings.TrimSpace(id.String()))
		if id.IsZero() {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func joinIDs(ids []models.ID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = id.String()
	}
	return strings.Join(parts, ", ")
}

func cloneQuestions(qs []models.Question) []models.Question {
	out := make([]models.Question, len(qs))
	for i := range qs {
		out[i] = qs[i].Clone()
	}
	return out
}
