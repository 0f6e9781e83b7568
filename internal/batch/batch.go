// Package batch fans a fixed number of independent calls out over a bounded set of goroutines.
package batch

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// DefaultLimit is the number of calls in flight when Run is given no limit.
const DefaultLimit = 8

// Result is the outcome of one item. Exactly one of Value or Err is meaningful.
type Result[T any] struct {
	Value T
	Err   error
}

// Run calls fn once for every index in [0, n) with at most limit calls in flight.
// Results are returned in index order. A failing or panicking item never cancels its
// siblings; a cancelled ctx marks every item that has not started yet as failed.
func Run[T any](ctx context.Context, n, limit int, fn func(ctx context.Context, i int) (T, error)) []Result[T] {
	results := make([]Result[T], n)
	if n == 0 {
		return results
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	var g errgroup.Group
	g.SetLimit(limit)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			defer func() {
				if rec := recover(); rec != nil {
					results[i] = Result[T]{Err: fmt.Errorf("panic: %v", rec)}
				}
			}()
			if err := ctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}
			v, err := fn(ctx, i)
			results[i] = Result[T]{Value: v, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}
