package progress

import (
	"context"
	"log/slog"

	"github.com/terra-clan/codeladder/internal/fanout"
	"github.com/terra-clan/codeladder/internal/models"
)

// QuestionFetcher retrieves a question by ID
type QuestionFetcher interface {
	GetQuestion(ctx context.Context, creds models.Credentials, id models.ID) (*models.Question, error)
}

// Aggregator computes progress snapshots for ladders.
// It holds no state between calls and is safe for concurrent use.
type Aggregator struct {
	fetcher QuestionFetcher
	limit   int
	logger  *slog.Logger
}

// Option configures the aggregator
type Option func(*Aggregator)

// WithConcurrency bounds the number of question fetches in flight per call
func WithConcurrency(limit int) Option {
	return func(a *Aggregator) {
		a.limit = limit
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(a *Aggregator) {
		a.logger = logger
	}
}

// NewAggregator creates a new progress aggregator
func NewAggregator(fetcher QuestionFetcher, opts ...Option) *Aggregator {
	a := &Aggregator{
		fetcher: fetcher,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Aggregate fetches every question of ids concurrently and counts those
// solved by creds.Username. Questions that fail to load are left out of
// both counts, so the call itself never fails.
func (a *Aggregator) Aggregate(ctx context.Context, creds models.Credentials, ids []models.ID) models.Progress {
	if len(ids) == 0 {
		return models.Progress{}
	}

	results := fanout.Settle(ctx, a.limit, ids, func(ctx context.Context, id models.ID) (*models.Question, error) {
		return a.fetcher.GetQuestion(ctx, creds, id)
	})

	for _, failed := range fanout.Failed(results) {
		a.logger.Debug("question excluded from progress",
			"question_id", failed.Key,
			"error", failed.Err,
		)
	}

	solved, total := 0, 0
	for _, q := range fanout.Succeeded(results) {
		if q == nil {
			continue
		}
		total++
		if q.IsSolvedBy(creds.Username) {
			solved++
		}
	}

	return models.NewProgress(solved, total)
}
