package ladders

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terra-clan/codeladder/internal/models"
	"github.com/terra-clan/codeladder/internal/progress"
	"github.com/terra-clan/codeladder/pkg/client"
)

var alice = models.Credentials{Username: "alice", Token: "t"}

type fakeAPI struct {
	mu        sync.Mutex
	ladders   []models.Ladder
	questions map[models.ID]models.Question
	listErr   error
	mutateErr error
	calls     []string

	// onList runs inside ListLadders before it returns
	onList func()
}

func (f *fakeAPI) record(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
}

func (f *fakeAPI) callNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeAPI) ListLadders(context.Context, models.Credentials) ([]models.Ladder, error) {
	f.record("list")
	if f.onList != nil {
		f.onList()
	}
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Ladder, len(f.ladders))
	for i, l := range f.ladders {
		out[i] = l.Clone()
	}
	return out, nil
}

func (f *fakeAPI) CreateLadder(_ context.Context, creds models.Credentials, title string) (*models.Ladder, error) {
	f.record("create")
	if f.mutateErr != nil {
		return nil, f.mutateErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	l := models.Ladder{ID: "new", Title: title, Users: []string{creds.Username}}
	f.ladders = append(f.ladders, l)
	return &l, nil
}

func (f *fakeAPI) CopyLadder(_ context.Context, creds models.Credentials, sourceID models.ID, title string) (*models.Ladder, error) {
	f.record("copy")
	if f.mutateErr != nil {
		return nil, f.mutateErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, src := range f.ladders {
		if src.ID == sourceID {
			l := models.Ladder{ID: "copy", Title: title, Questions: src.Questions, Users: []string{creds.Username}}
			f.ladders = append(f.ladders, l)
			return &l, nil
		}
	}
	return nil, &client.APIError{Kind: client.ErrNotFound, Status: 404}
}

func (f *fakeAPI) DeleteLadder(_ context.Context, _ models.Credentials, id models.ID) error {
	f.record("delete")
	if f.mutateErr != nil {
		return f.mutateErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, l := range f.ladders {
		if l.ID == id {
			f.ladders = append(f.ladders[:i], f.ladders[i+1:]...)
			break
		}
	}
	return nil
}

func (f *fakeAPI) GetQuestion(_ context.Context, _ models.Credentials, id models.ID) (*models.Question, error) {
	q, ok := f.questions[id]
	if !ok {
		return nil, &client.APIError{Kind: client.ErrNotFound, Status: 404}
	}
	return &q, nil
}

func newFixture() *fakeAPI {
	return &fakeAPI{
		ladders: []models.Ladder{
			{ID: "7", Title: "Graphs", Questions: models.IDs("1", "2", "3"), Users: []string{"alice", "bob"}},
			{ID: "8", Title: "Empty", Users: []string{"alice"}},
		},
		questions: map[models.ID]models.Question{
			"1": {ID: "1", Title: "one"},
			"2": {ID: "2", Title: "two", SolvedBy: []string{"alice"}},
			"3": {ID: "3", Title: "three"},
		},
	}
}

func newCollection(api *fakeAPI) *Collection {
	return NewCollection(api, progress.NewAggregator(api), alice, WithConcurrency(4))
}

func TestRefreshAggregatesEveryLadder(t *testing.T) {
	api := newFixture()
	c := newCollection(api)

	require.NoError(t, c.Refresh(context.Background()))

	entries := c.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, models.ID("7"), entries[0].Ladder.ID)
	assert.Equal(t, 1, entries[0].Progress.SolvedCount)
	assert.Equal(t, 3, entries[0].Progress.TotalCount)
	assert.Equal(t, 33, entries[0].Progress.Rounded())
	assert.Equal(t, models.Progress{}, entries[1].Progress)

	snap := c.Snapshot()
	assert.True(t, snap.Loaded)
	assert.NotNil(t, snap.RefreshedAt)
}

func TestRefreshFailureKeepsState(t *testing.T) {
	api := newFixture()
	c := newCollection(api)
	require.NoError(t, c.Refresh(context.Background()))

	api.listErr = &client.APIError{Kind: client.ErrServer, Status: 500, Message: "db down"}
	err := c.Refresh(context.Background())

	assert.ErrorIs(t, err, client.ErrServer)
	assert.Len(t, c.Entries(), 2)
	assert.Equal(t, models.MessageError, c.Message().Kind)
}

func TestCreateShortTitleMakesNoCalls(t *testing.T) {
	api := newFixture()
	c := newCollection(api)

	for _, title := range []string{"ab", "  ab  ", "", "   "} {
		err := c.Create(context.Background(), title)
		assert.True(t, models.IsValidation(err), "title %q", title)
	}

	assert.Empty(t, api.callNames())
	assert.Equal(t, models.MessageError, c.Message().Kind)
}

func TestCreateRefreshesOnce(t *testing.T) {
	api := newFixture()
	c := newCollection(api)

	require.NoError(t, c.Create(context.Background(), "abc"))

	assert.Equal(t, []string{"create", "list"}, api.callNames())
	assert.Len(t, c.Entries(), 3)
	assert.Equal(t, models.MessageSuccess, c.Message().Kind)
}

func TestCreateCountsCharactersNotBytes(t *testing.T) {
	api := newFixture()
	c := newCollection(api)

	// two characters, four bytes
	err := c.Create(context.Background(), "éé")
	assert.True(t, models.IsValidation(err))

	require.NoError(t, c.Create(context.Background(), "ééé"))
}

func TestCreateSurfacesRemoteFailure(t *testing.T) {
	api := newFixture()
	api.mutateErr = &client.APIError{Kind: client.ErrConflict, Status: 409, Message: "duplicate title"}
	c := newCollection(api)

	err := c.Create(context.Background(), "Graphs")

	assert.ErrorIs(t, err, client.ErrConflict)
	assert.Equal(t, []string{"create"}, api.callNames())
	assert.Contains(t, c.Message().Text, "duplicate title")
}

func TestCopyValidation(t *testing.T) {
	api := newFixture()
	c := newCollection(api)

	err := c.Copy(context.Background(), "  ", "My copy")
	assert.True(t, models.IsValidation(err))

	err = c.Copy(context.Background(), "7", "no")
	assert.True(t, models.IsValidation(err))

	assert.Empty(t, api.callNames())
}

func TestCopyRefreshes(t *testing.T) {
	api := newFixture()
	c := newCollection(api)

	require.NoError(t, c.Copy(context.Background(), " 7 ", "Graphs again"))

	assert.Equal(t, []string{"copy", "list"}, api.callNames())
	entries := c.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "Graphs again", entries[2].Ladder.Title)
	assert.Equal(t, 3, entries[2].Progress.TotalCount)
}

func TestDeleteRemovesLocally(t *testing.T) {
	api := newFixture()
	c := newCollection(api)
	require.NoError(t, c.Refresh(context.Background()))

	require.NoError(t, c.Delete(context.Background(), "7"))

	entries := c.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, models.ID("8"), entries[0].Ladder.ID)
	assert.Equal(t, []string{"list", "delete"}, api.callNames())
	assert.Contains(t, c.Message().Text, "Graphs")
}

func TestDeleteFailureKeepsLadder(t *testing.T) {
	api := newFixture()
	c := newCollection(api)
	require.NoError(t, c.Refresh(context.Background()))

	api.mutateErr = &client.APIError{Kind: client.ErrForbidden, Status: 403}
	err := c.Delete(context.Background(), "7")

	assert.ErrorIs(t, err, client.ErrForbidden)
	assert.Len(t, c.Entries(), 2)
}

func TestClosedCollectionDiscardsInFlightRefresh(t *testing.T) {
	api := newFixture()
	c := newCollection(api)
	api.onList = c.Close

	require.NoError(t, c.Refresh(context.Background()))

	assert.Empty(t, c.Entries())
	assert.False(t, c.Snapshot().Loaded)
	assert.ErrorIs(t, c.Refresh(context.Background()), ErrClosed)
}

func TestStaleRefreshIsDiscarded(t *testing.T) {
	api := newFixture()
	c := newCollection(api)

	// The first refresh lists, then a second refresh starts and finishes
	// after the ladder set changed. The first result must not overwrite it.
	fired := false
	api.onList = func() {
		if fired {
			return
		}
		fired = true
		api.mu.Lock()
		api.ladders = api.ladders[:1]
		api.mu.Unlock()
		require.NoError(t, c.Refresh(context.Background()))
		api.mu.Lock()
		api.ladders = append(api.ladders, models.Ladder{ID: "9", Title: "Late", Users: []string{"alice"}})
		api.mu.Unlock()
	}

	require.NoError(t, c.Refresh(context.Background()))

	entries := c.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, models.ID("7"), entries[0].Ladder.ID)
}

func TestEntriesAreCopies(t *testing.T) {
	api := newFixture()
	c := newCollection(api)
	require.NoError(t, c.Refresh(context.Background()))

	entries := c.Entries()
	entries[0].Ladder.Questions[0] = "changed"

	assert.Equal(t, models.ID("1"), c.Entries()[0].Ladder.Questions[0])
}

func TestMessageFallbackForUnknownErrors(t *testing.T) {
	api := newFixture()
	api.mutateErr = errors.New("socket closed")
	c := newCollection(api)

	require.Error(t, c.Delete(context.Background(), "7"))
	assert.Contains(t, c.Message().Text, "failed to delete ladder")
}
