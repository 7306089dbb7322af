package utils

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// FloatFunc is for GetInParallel.
type FloatFunc func(ctx context.Context) (float64, error)

// GetInParallel runs all functions in parallel, at most limit at a time, and returns the elapsed time
// and their results in the order of fs. The first failure or panic cancels the context handed to
// the remaining functions and is the error returned. A limit below one runs everything at once.
func GetInParallel(ctx context.Context, limit int, fs []FloatFunc) (time.Duration, []float64, error) {
	start := time.Now()
	group, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		group.SetLimit(limit)
	}

	results := make([]float64, len(fs))
	for i, f := range fs {
		i, f := i, f
		group.Go(func() (err error) {
			defer func() {
				if thePanic := recover(); thePanic != nil {
					err = fmt.Errorf("got panic getting something in parallel: %v", thePanic)
				}
			}()
			if err := ctx.Err(); err != nil {
				return err
			}
			value, err := f(ctx)
			if err != nil {
				return err
			}
			results[i] = value
			return nil
		})
	}

	err := group.Wait()
	return time.Since(start), results, err
}
