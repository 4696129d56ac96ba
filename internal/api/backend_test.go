package api

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"sync"

	"github.com/terra-clan/codeladder/internal/models"
	"github.com/terra-clan/codeladder/pkg/client"
)

// memoryBackend is an in-process ladder backend
type memoryBackend struct {
	mu        sync.Mutex
	questions []*models.Question
	ladders   []*models.Ladder
	users     []models.User
	nextID    int
	fail      map[string]error
	added     []models.NewQuestion
}

func newMemoryBackend() *memoryBackend {
	b := &memoryBackend{nextID: 100, fail: make(map[string]error)}
	b.questions = []*models.Question{
		{ID: "1", Title: "Two Sum", Link: "https://example.test/two-sum", Tags: []string{"array"}, SolvedBy: []string{"alice"}},
		{ID: "2", Title: "Add Two Numbers", Link: "https://example.test/add", Tags: []string{"list"}},
		{ID: "3", Title: "Longest Substring", Link: "https://example.test/substr", Tags: []string{"string"}},
	}
	b.ladders = []*models.Ladder{
		{ID: "10", Title: "Warmup", Questions: []models.ID{"1", "2"}, Users: []string{"alice", "bob"}},
		{ID: "11", Title: "Private", Questions: []models.ID{"3"}, Users: []string{"carol"}},
	}
	b.users = []models.User{{Username: "alice", Email: "alice@example.test"}, {Username: "bob"}, {Username: "admin"}}
	return b
}

func (b *memoryBackend) failing(op string) error {
	return b.fail[op]
}

func (b *memoryBackend) question(id models.ID) *models.Question {
	for _, q := range b.questions {
		if q.ID == id {
			return q
		}
	}
	return nil
}

func (b *memoryBackend) ladder(id models.ID) *models.Ladder {
	for _, l := range b.ladders {
		if l.ID == id {
			return l
		}
	}
	return nil
}

func notFound(what string) error {
	return &client.APIError{Kind: client.ErrNotFound, Status: 404, Message: what + " not found"}
}

func (b *memoryBackend) Login(_ context.Context, username, password string) (*models.AuthResponse, error) {
	if password != "pw" {
		return nil, &client.APIError{Kind: client.ErrUnauthorized, Status: 401, Message: "invalid credentials"}
	}
	resp := &models.AuthResponse{Token: "token-" + username}
	resp.User.Username = username
	return resp, nil
}

func (b *memoryBackend) Signup(_ context.Context, req models.SignupRequest) (*models.AuthResponse, error) {
	resp := &models.AuthResponse{Token: "token-" + req.Username, Message: "account created"}
	resp.User.Username = req.Username
	return resp, nil
}

func (b *memoryBackend) ListProblemSet(context.Context, models.Credentials) ([]models.Question, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.failing("ListProblemSet"); err != nil {
		return nil, err
	}
	out := make([]models.Question, 0, len(b.questions))
	for _, q := range b.questions {
		out = append(out, q.Clone())
	}
	return out, nil
}

func (b *memoryBackend) GetQuestion(_ context.Context, _ models.Credentials, id models.ID) (*models.Question, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.failing("GetQuestion " + string(id)); err != nil {
		return nil, err
	}
	q := b.question(id)
	if q == nil {
		return nil, notFound("question")
	}
	c := q.Clone()
	return &c, nil
}

func (b *memoryBackend) setSolved(creds models.Credentials, id models.ID, solved bool, op string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.failing(op); err != nil {
		return err
	}
	q := b.question(id)
	if q == nil {
		return notFound("question")
	}
	q.SolvedBy = slices.DeleteFunc(q.SolvedBy, func(u string) bool { return u == creds.Username })
	if solved {
		q.SolvedBy = append(q.SolvedBy, creds.Username)
	}
	return nil
}

func (b *memoryBackend) MarkSolved(_ context.Context, creds models.Credentials, id models.ID) error {
	return b.setSolved(creds, id, true, "MarkSolved")
}

func (b *memoryBackend) UnmarkSolved(_ context.Context, creds models.Credentials, id models.ID) error {
	return b.setSolved(creds, id, false, "UnmarkSolved")
}

func (b *memoryBackend) ListLadders(_ context.Context, creds models.Credentials) ([]models.Ladder, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.failing("ListLadders"); err != nil {
		return nil, err
	}
	out := []models.Ladder{}
	for _, l := range b.ladders {
		if l.IsMember(creds.Username) {
			out = append(out, l.Clone())
		}
	}
	return out, nil
}

func (b *memoryBackend) GetLadder(_ context.Context, _ models.Credentials, id models.ID) (*models.Ladder, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.failing("GetLadder"); err != nil {
		return nil, err
	}
	l := b.ladder(id)
	if l == nil {
		return nil, notFound("ladder")
	}
	c := l.Clone()
	return &c, nil
}

func (b *memoryBackend) newLadder(creds models.Credentials, title string, questions []models.ID) *models.Ladder {
	b.nextID++
	l := &models.Ladder{
		ID:        models.ID(strconv.Itoa(b.nextID)),
		Title:     title,
		Questions: append([]models.ID(nil), questions...),
		Users:     []string{creds.Username},
	}
	b.ladders = append(b.ladders, l)
	return l
}

func (b *memoryBackend) CreateLadder(_ context.Context, creds models.Credentials, title string) (*models.Ladder, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c := b.newLadder(creds, title, nil).Clone()
	return &c, nil
}

func (b *memoryBackend) CopyLadder(_ context.Context, creds models.Credentials, sourceID models.ID, title string) (*models.Ladder, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	src := b.ladder(sourceID)
	if src == nil {
		return nil, notFound("ladder")
	}
	c := b.newLadder(creds, title, src.Questions).Clone()
	return &c, nil
}

func (b *memoryBackend) DeleteLadder(_ context.Context, _ models.Credentials, id models.ID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ladder(id) == nil {
		return notFound("ladder")
	}
	b.ladders = slices.DeleteFunc(b.ladders, func(l *models.Ladder) bool { return l.ID == id })
	return nil
}

func (b *memoryBackend) EditLadder(_ context.Context, _ models.Credentials, id models.ID, questionIDs []models.ID, action models.EditAction) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	l := b.ladder(id)
	if l == nil {
		return notFound("ladder")
	}
	switch action {
	case models.EditAdd:
		l.Questions = append(l.Questions, questionIDs...)
	case models.EditRemove:
		l.Questions = slices.DeleteFunc(l.Questions, func(q models.ID) bool { return slices.Contains(questionIDs, q) })
	default:
		return fmt.Errorf("unknown action %q", action)
	}
	return nil
}

func (b *memoryBackend) AddCollaborator(_ context.Context, _ models.Credentials, id models.ID, username string) (*models.Ladder, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	l := b.ladder(id)
	if l == nil {
		return nil, notFound("ladder")
	}
	l.Users = append(l.Users, username)
	c := l.Clone()
	return &c, nil
}

func (b *memoryBackend) RemoveCollaborator(_ context.Context, _ models.Credentials, id models.ID, username string) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	l := b.ladder(id)
	if l == nil {
		return nil, notFound("ladder")
	}
	l.Users = slices.DeleteFunc(l.Users, func(u string) bool { return u == username })
	return append([]string(nil), l.Users...), nil
}

func (b *memoryBackend) AddQuestion(_ context.Context, _ models.Credentials, q models.NewQuestion) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.failing("AddQuestion"); err != nil {
		return err
	}
	b.added = append(b.added, q)
	return nil
}

func (b *memoryBackend) AdminListUsers(context.Context, models.Credentials) ([]models.User, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]models.User(nil), b.users...), nil
}

func (b *memoryBackend) AdminListQuestions(ctx context.Context, creds models.Credentials) ([]models.Question, error) {
	return b.ListProblemSet(ctx, creds)
}

func (b *memoryBackend) AdminListLadders(context.Context, models.Credentials) ([]models.Ladder, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]models.Ladder, 0, len(b.ladders))
	for _, l := range b.ladders {
		out = append(out, l.Clone())
	}
	return out, nil
}

func (b *memoryBackend) AdminDeleteUser(_ context.Context, _ models.Credentials, username string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.users = slices.DeleteFunc(b.users, func(u models.User) bool { return u.Username == username })
	return nil
}

func (b *memoryBackend) AdminDeleteQuestion(_ context.Context, _ models.Credentials, id models.ID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.questions = slices.DeleteFunc(b.questions, func(q *models.Question) bool { return q.ID == id })
	return nil
}

func (b *memoryBackend) AdminDeleteLadder(ctx context.Context, creds models.Credentials, id models.ID) error {
	return b.DeleteLadder(ctx, creds, id)
}
