package admin

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terra-clan/codeladder/internal/importer"
	"github.com/terra-clan/codeladder/internal/models"
	"github.com/terra-clan/codeladder/pkg/client"
)

var root = models.Credentials{Username: "admin", Token: "t"}

type fakeAPI struct {
	added   []models.NewQuestion
	deleted []string
	addErr  func(q models.NewQuestion) error
	delErr  error
}

func (f *fakeAPI) AdminListUsers(context.Context, models.Credentials) ([]models.User, error) {
	return []models.User{
		{Username: "alice", Email: "alice@example.com"},
		{Username: "bob", Email: "bob@corp.test"},
		{Username: "carol"},
	}, nil
}

func (f *fakeAPI) AdminListQuestions(context.Context, models.Credentials) ([]models.Question, error) {
	return []models.Question{
		{ID: "11", Title: "Two Sum", Tags: []string{"array"}},
		{ID: "12", Title: "Word Ladder", Tags: []string{"graph", "bfs"}},
		{ID: "21", Title: "Clone Graph", Tags: []string{"graph"}},
	}, nil
}

func (f *fakeAPI) AdminListLadders(context.Context, models.Credentials) ([]models.Ladder, error) {
	return []models.Ladder{
		{ID: "7", Title: "Graphs"},
		{ID: "17", Title: "Arrays"},
	}, nil
}

func (f *fakeAPI) AdminDeleteUser(_ context.Context, _ models.Credentials, username string) error {
	f.deleted = append(f.deleted, "user "+username)
	return f.delErr
}

func (f *fakeAPI) AdminDeleteQuestion(_ context.Context, _ models.Credentials, id models.ID) error {
	f.deleted = append(f.deleted, "question "+id.String())
	return f.delErr
}

func (f *fakeAPI) AdminDeleteLadder(_ context.Context, _ models.Credentials, id models.ID) error {
	f.deleted = append(f.deleted, "ladder "+id.String())
	return f.delErr
}

func (f *fakeAPI) AddQuestion(_ context.Context, _ models.Credentials, q models.NewQuestion) error {
	if f.addErr != nil {
		if err := f.addErr(q); err != nil {
			return err
		}
	}
	f.added = append(f.added, q)
	return nil
}

func console(t *testing.T, api API) *Console {
	t.Helper()
	c, err := NewConsole(api, root, "admin", nil)
	require.NoError(t, err)
	return c
}

func TestNonAdminRejected(t *testing.T) {
	_, err := NewConsole(&fakeAPI{}, models.Credentials{Username: "alice", Token: "t"}, "admin", nil)
	assert.ErrorIs(t, err, ErrNotAdmin)

	_, err = NewConsole(&fakeAPI{}, root, "", nil)
	assert.ErrorIs(t, err, ErrNotAdmin)
}

func TestListingFilters(t *testing.T) {
	c := console(t, &fakeAPI{})
	ctx := context.Background()

	users, err := c.Users(ctx, "CORP")
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "bob", users[0].Username)

	all, err := c.Users(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	questions, err := c.Questions(ctx, "graph")
	require.NoError(t, err)
	assert.Len(t, questions, 2)

	byID, err := c.Questions(ctx, "1")
	require.NoError(t, err)
	assert.Len(t, byID, 3)

	ladders, err := c.Ladders(ctx, "7")
	require.NoError(t, err)
	assert.Len(t, ladders, 2)
}

func TestDeletes(t *testing.T) {
	api := &fakeAPI{}
	c := console(t, api)
	ctx := context.Background()

	require.NoError(t, c.DeleteUser(ctx, "bob"))
	assert.Equal(t, "user 'bob' deleted successfully", c.Message().Text)
	require.NoError(t, c.DeleteQuestion(ctx, "12"))
	require.NoError(t, c.DeleteLadder(ctx, "7"))

	assert.Equal(t, []string{"user bob", "question 12", "ladder 7"}, api.deleted)

	assert.True(t, models.IsValidation(c.DeleteUser(ctx, " ")))
	assert.Len(t, api.deleted, 3)
}

func TestDeleteFailureMessage(t *testing.T) {
	api := &fakeAPI{delErr: &client.APIError{Kind: client.ErrForbidden, Status: 403, Message: "cannot delete admin"}}
	c := console(t, api)

	err := c.DeleteUser(context.Background(), "admin")

	assert.ErrorIs(t, err, client.ErrForbidden)
	assert.Equal(t, models.MessageError, c.Message().Kind)
	assert.Contains(t, c.Message().Text, "cannot delete admin")
}

func TestAddQuestionParsesTags(t *testing.T) {
	api := &fakeAPI{}
	c := console(t, api)

	require.NoError(t, c.AddQuestion(context.Background(), " Two Sum ", "https://x.test/1", "array, , hash map "))

	require.Len(t, api.added, 1)
	assert.Equal(t, models.NewQuestion{Title: "Two Sum", Link: "https://x.test/1", Tags: []string{"array", "hash map"}}, api.added[0])

	assert.True(t, models.IsValidation(c.AddQuestion(context.Background(), "", "https://x.test/2", "")))
	assert.True(t, models.IsValidation(c.AddQuestion(context.Background(), "No link", "", "")))
	assert.Len(t, api.added, 1)
}

func TestImportCountsFailures(t *testing.T) {
	api := &fakeAPI{addErr: func(q models.NewQuestion) error {
		if q.Title == "Duplicate" {
			return &client.APIError{Kind: client.ErrConflict, Status: 409}
		}
		return nil
	}}
	c := console(t, api)

	path := filepath.Join(t.TempDir(), "bulk.csv")
	content := "title,link,tags\nOne,https://x.test/1,a\nDuplicate,https://x.test/2,b\nNo link,,c\nTwo,https://x.test/3,\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	result, err := c.Import(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, ImportResult{Uploaded: 2, Failed: 2}, result)
	assert.Equal(t, "2 uploaded, 2 failed", c.Message().Text)
	assert.Len(t, api.added, 2)
}

func TestImportAllFailedIsError(t *testing.T) {
	c := console(t, &fakeAPI{})
	batch := &importer.Batch{Rows: []importer.Row{
		{Line: 2, Err: models.NewValidationError("title", "title is required")},
	}}

	result := c.ImportBatch(context.Background(), batch)

	assert.Equal(t, ImportResult{Failed: 1}, result)
	assert.Equal(t, models.MessageError, c.Message().Kind)
}

func TestImportUnsupportedFile(t *testing.T) {
	c := console(t, &fakeAPI{})

	_, err := c.Import(context.Background(), "questions.json")

	assert.ErrorIs(t, err, importer.ErrUnsupportedFormat)
}
