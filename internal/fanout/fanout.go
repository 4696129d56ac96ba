// Package fanout runs one call per key concurrently and joins on all of
// them, keeping successes and failures apart.
package fanout

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Result is the settled outcome of one call
type Result[K, T any] struct {
	Key   K
	Value T
	Err   error
}

// OK reports whether the call succeeded
func (r Result[K, T]) OK() bool {
	return r.Err == nil
}

// Settle calls fn for every key and waits for all calls to finish.
// A failing call never cancels the others. Results are returned in key order.
// limit bounds the number of calls in flight; limit <= 0 means unbounded.
func Settle[K, T any](ctx context.Context, limit int, keys []K, fn func(ctx context.Context, key K) (T, error)) []Result[K, T] {
	results := make([]Result[K, T], len(keys))
	if len(keys) == 0 {
		return results
	}

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}

	for i, key := range keys {
		g.Go(func() error {
			value, err := fn(ctx, key)
			results[i] = Result[K, T]{Key: key, Value: value, Err: err}
			return nil
		})
	}

	// Workers never return an error so Wait only joins.
	_ = g.Wait()
	return results
}

// Succeeded returns the values of successful results, in order
func Succeeded[K, T any](results []Result[K, T]) []T {
	values := make([]T, 0, len(results))
	for _, r := range results {
		if r.Err == nil {
			values = append(values, r.Value)
		}
	}
	return values
}

// Failed returns the failed results, in order
func Failed[K, T any](results []Result[K, T]) []Result[K, T] {
	var failed []Result[K, T]
	for _, r := range results {
		if r.Err != nil {
			failed = append(failed, r)
		}
	}
	return failed
}

// Keys returns the keys of the given results, in order
func Keys[K, T any](results []Result[K, T]) []K {
	keys := make([]K, len(results))
	for i, r := range results {
		keys[i] = r.Key
	}
	return keys
}
