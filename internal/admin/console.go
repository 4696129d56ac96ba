// Package admin is the console for the configured admin account: listing
// and deleting users, questions and ladders, and adding questions one at a
// time or from import files.
package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/terra-clan/codeladder/internal/importer"
	"github.com/terra-clan/codeladder/internal/models"
)

// ErrNotAdmin is returned when the session user is not the admin account
var ErrNotAdmin = errors.New("admin access required")

// API is the slice of the backend SDK the console uses
type API interface {
	AdminListUsers(ctx context.Context, creds models.Credentials) ([]models.User, error)
	AdminListQuestions(ctx context.Context, creds models.Credentials) ([]models.Question, error)
	AdminListLadders(ctx context.Context, creds models.Credentials) ([]models.Ladder, error)
	AdminDeleteUser(ctx context.Context, creds models.Credentials, username string) error
	AdminDeleteQuestion(ctx context.Context, creds models.Credentials, id models.ID) error
	AdminDeleteLadder(ctx context.Context, creds models.Credentials, id models.ID) error
	AddQuestion(ctx context.Context, creds models.Credentials, q models.NewQuestion) error
}

// ImportResult counts the outcome of a bulk import
type ImportResult struct {
	Uploaded int `json:"uploaded"`
	Failed   int `json:"failed"`
}

// Console runs admin operations for one session
type Console struct {
	api    API
	creds  models.Credentials
	logger *slog.Logger

	mu      sync.Mutex
	message models.Message
}

// NewConsole opens the console for creds. It fails with ErrNotAdmin unless
// creds.Username equals adminUsername.
func NewConsole(api API, creds models.Credentials, adminUsername string, logger *slog.Logger) (*Console, error) {
	if adminUsername == "" || creds.Username != adminUsername {
		return nil, ErrNotAdmin
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Console{api: api, creds: creds, logger: logger}, nil
}

// Message returns the notice left by the last operation
func (c *Console) Message() models.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.message
}

// Users lists accounts whose username or email contains query
func (c *Console) Users(ctx context.Context, query string) ([]models.User, error) {
	users, err := c.api.AdminListUsers(ctx, c.creds)
	if err != nil {
		c.setMessage(models.Failure(err, "failed to fetch users"))
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	q := strings.ToLower(strings.TrimSpace(query))
	out := []models.User{}
	for _, u := range users {
		if q == "" ||
			strings.Contains(strings.ToLower(u.Username), q) ||
			strings.Contains(strings.ToLower(u.Email), q) {
			out = append(out, u)
		}
	}
	return out, nil
}

// Questions lists questions whose title, id or tags contain query
func (c *Console) Questions(ctx context.Context, query string) ([]models.Question, error) {
	questions, err := c.api.AdminListQuestions(ctx, c.creds)
	if err != nil {
		c.setMessage(models.Failure(err, "failed to fetch questions"))
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}

	q := strings.ToLower(strings.TrimSpace(query))
	out := []models.Question{}
	for _, question := range questions {
		if q == "" ||
			strings.Contains(strings.ToLower(question.Title), q) ||
			strings.Contains(strings.ToLower(question.ID.String()), q) ||
			strings.Contains(strings.ToLower(strings.Join(question.Tags, " ")), q) {
			out = append(out, question.Clone())
		}
	}
	return out, nil
}

// Ladders lists ladders whose title or id contain query
func (c *Console) Ladders(ctx context.Context, query string) ([]models.Ladder, error) {
	ladders, err := c.api.AdminListLadders(ctx, c.creds)
	if err != nil {
		c.setMessage(models.Failure(err, "failed to fetch ladders"))
		return nil, fmt.Errorf("failed to list ladders: %w", err)
	}

	q := strings.ToLower(strings.TrimSpace(query))
	out := []models.Ladder{}
	for _, l := range ladders {
		if q == "" ||
			strings.Contains(strings.ToLower(l.Title), q) ||
			strings.Contains(strings.ToLower(l.ID.String()), q) {
			out = append(out, l.Clone())
		}
	}
	return out, nil
}

// DeleteUser deletes an account
func (c *Console) DeleteUser(ctx context.Context, username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		err := models.NewValidationError("username", "username is required")
		c.setMessage(models.Failure(err, ""))
		return err
	}

	if err := c.api.AdminDeleteUser(ctx, c.creds, username); err != nil {
		c.logger.Warn("failed to delete user", "username", username, "error", err)
		c.setMessage(models.Failure(err, "failed to delete user"))
		return fmt.Errorf("failed to delete user: %w", err)
	}

	c.logger.Info("user deleted", "username", username, "admin", c.creds.Username)
	c.setMessage(models.Success("user '%s' deleted successfully", username))
	return nil
}

// DeleteQuestion deletes a question
func (c *Console) DeleteQuestion(ctx context.Context, id models.ID) error {
	if id.IsZero() {
		err := models.NewValidationError("question_id", "question id is required")
		c.setMessage(models.Failure(err, ""))
		return err
	}

	if err := c.api.AdminDeleteQuestion(ctx, c.creds, id); err != nil {
		c.logger.Warn("failed to delete question", "question_id", id, "error", err)
		c.setMessage(models.Failure(err, "failed to delete question"))
		return fmt.Errorf("failed to delete question: %w", err)
	}

	c.logger.Info("question deleted", "question_id", id, "admin", c.creds.Username)
	c.setMessage(models.Success("question '%s' deleted successfully", id))
	return nil
}

// DeleteLadder deletes any ladder
func (c *Console) DeleteLadder(ctx context.Context, id models.ID) error {
	if id.IsZero() {
		err := models.NewValidationError("ladder_id", "ladder id is required")
		c.setMessage(models.Failure(err, ""))
		return err
	}

	if err := c.api.AdminDeleteLadder(ctx, c.creds, id); err != nil {
		c.logger.Warn("failed to delete ladder", "ladder_id", id, "error", err)
		c.setMessage(models.Failure(err, "failed to delete ladder"))
		return fmt.Errorf("failed to delete ladder: %w", err)
	}

	c.logger.Info("ladder deleted", "ladder_id", id, "admin", c.creds.Username)
	c.setMessage(models.Success("ladder '%s' deleted successfully", id))
	return nil
}

// AddQuestion adds one question. tags is a comma-separated list.
func (c *Console) AddQuestion(ctx context.Context, title, link, tags string) error {
	q := models.NewQuestion{
		Title: strings.TrimSpace(title),
		Link:  strings.TrimSpace(link),
		Tags:  models.ParseTags(tags),
	}

	var err error
	switch {
	case q.Title == "":
		err = models.NewValidationError("title", "title is required")
	case q.Link == "":
		err = models.NewValidationError("link", "link is required")
	}
	if err != nil {
		c.setMessage(models.Failure(err, ""))
		return err
	}

	if err := c.api.AddQuestion(ctx, c.creds, q); err != nil {
		c.logger.Warn("failed to add question", "title", q.Title, "error", err)
		c.setMessage(models.Failure(err, "failed to add question"))
		return fmt.Errorf("failed to add question: %w", err)
	}

	c.setMessage(models.Success("question added successfully"))
	return nil
}

// Import parses the file at path and uploads its rows
func (c *Console) Import(ctx context.Context, path string) (ImportResult, error) {
	batch, err := importer.LoadFromFile(path)
	if err != nil {
		c.setMessage(models.Failure(err, "failed to parse import file"))
		return ImportResult{}, fmt.Errorf("failed to parse import file: %w", err)
	}
	return c.ImportBatch(ctx, batch), nil
}

// ImportBatch uploads the rows of batch one at a time. Invalid rows count as
// failed without a call, and one failed upload does not stop the rest.
func (c *Console) ImportBatch(ctx context.Context, batch *importer.Batch) ImportResult {
	var result ImportResult
	for _, row := range batch.Rows {
		if row.Err != nil {
			result.Failed++
			continue
		}
		if err := c.api.AddQuestion(ctx, c.creds, row.Question); err != nil {
			c.logger.Debug("import row failed", "source", batch.Source, "line", row.Line, "error", err)
			result.Failed++
			continue
		}
		result.Uploaded++
	}

	c.logger.Info("questions imported",
		"source", batch.Source,
		"uploaded", result.Uploaded,
		"failed", result.Failed,
	)

	msg := models.Success("%d uploaded, %d failed", result.Uploaded, result.Failed)
	if result.Uploaded == 0 && result.Failed > 0 {
		msg.Kind = models.MessageError
	}
	c.setMessage(msg)
	return result
}

func (c *Console) setMessage(m models.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.message = m
}
