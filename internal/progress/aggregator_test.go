package progress

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/terra-clan/codeladder/internal/models"
	"github.com/terra-clan/codeladder/pkg/client"
)

var alice = models.Credentials{Username: "alice", Token: "t"}

// fakeFetcher serves questions from a map and fails for ids in failing
type fakeFetcher struct {
	mu        sync.Mutex
	questions map[models.ID]models.Question
	failing   map[models.ID]error
	calls     []models.ID
}

func (f *fakeFetcher) GetQuestion(_ context.Context, _ models.Credentials, id models.ID) (*models.Question, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, id)
	if err, ok := f.failing[id]; ok {
		return nil, err
	}
	q, ok := f.questions[id]
	if !ok {
		return nil, &client.APIError{Kind: client.ErrNotFound, Status: 404}
	}
	return &q, nil
}

func ladderSeven() *fakeFetcher {
	return &fakeFetcher{
		questions: map[models.ID]models.Question{
			"1": {ID: "1", Title: "one"},
			"2": {ID: "2", Title: "two", SolvedBy: []string{"alice"}},
			"3": {ID: "3", Title: "three"},
		},
	}
}

func TestAggregateScenario(t *testing.T) {
	agg := NewAggregator(ladderSeven())

	p := agg.Aggregate(context.Background(), alice, models.IDs("1", "2", "3"))

	assert.Equal(t, 1, p.SolvedCount)
	assert.Equal(t, 3, p.TotalCount)
	assert.InDelta(t, 33.333, p.Percentage, 0.01)
	assert.Equal(t, 33, p.Rounded())
}

func TestAggregateEmptyMakesNoCalls(t *testing.T) {
	f := ladderSeven()
	agg := NewAggregator(f)

	p := agg.Aggregate(context.Background(), alice, nil)

	assert.Equal(t, models.Progress{}, p)
	assert.Empty(t, f.calls)
}

func TestAggregateToleratesFailedFetch(t *testing.T) {
	f := ladderSeven()
	f.failing = map[models.ID]error{
		"3": &client.APIError{Kind: client.ErrNetwork, Message: "connection reset"},
	}
	agg := NewAggregator(f, WithConcurrency(2))

	p := agg.Aggregate(context.Background(), alice, models.IDs("1", "2", "3"))

	assert.Equal(t, 2, p.TotalCount)
	assert.Equal(t, 1, p.SolvedCount)
	assert.InDelta(t, 50.0, p.Percentage, 0.0001)
	assert.Len(t, f.calls, 3)
}

func TestAggregateAllFailed(t *testing.T) {
	f := &fakeFetcher{questions: map[models.ID]models.Question{}}
	agg := NewAggregator(f)

	p := agg.Aggregate(context.Background(), alice, models.IDs("8", "9"))

	assert.Equal(t, models.Progress{}, p)
}

func TestPercentageMatchesCounts(t *testing.T) {
	for total := 1; total <= 12; total++ {
		for solved := 0; solved <= total; solved++ {
			t.Run(fmt.Sprintf("%d_of_%d", solved, total), func(t *testing.T) {
				f := &fakeFetcher{questions: map[models.ID]models.Question{}}
				var ids []models.ID
				for i := 0; i < total; i++ {
					id := models.ID(fmt.Sprint(i))
					q := models.Question{ID: id}
					if i < solved {
						q.SolvedBy = []string{"alice"}
					}
					f.questions[id] = q
					ids = append(ids, id)
				}

				p := NewAggregator(f).Aggregate(context.Background(), alice, ids)
				assert.Equal(t, solved, p.SolvedCount)
				assert.Equal(t, total, p.TotalCount)
				assert.InDelta(t, 100*float64(solved)/float64(total), p.Percentage, 1e-9)
			})
		}
	}
}
