package pipeline

import (
	"context"
	"sync"
)

// ForEach runs fn over items with at most workers goroutines and returns the
// per-item errors aligned by index. Items are independent; no ordering is
// guaranteed between them. Used for in-process fan-out such as rendering all
// tickets of a print sheet.
func ForEach[T any](ctx context.Context, items []T, workers int, fn func(context.Context, int, T) error) []error {
	if workers <= 0 {
		workers = 1
	}
	if workers > len(items) {
		workers = len(items)
	}

	errs := make([]error, len(items))
	if len(items) == 0 {
		return errs
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				errs[i] = fn(ctx, i, items[i])
			}
		}()
	}

	for i := range items {
		select {
		case jobs <- i:
		case <-ctx.Done():
			errs[i] = ctx.Err()
		}
	}
	close(jobs)
	wg.Wait()

	return errs
}
