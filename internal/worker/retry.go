package worker

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
)

// nowFunc is swapped out in tests for deterministic timestamps.
var nowFunc = time.Now

// RetryDelay returns the backoff policy for failed jobs: the delay doubles
// from base on every retry (base, 2*base, 4*base, ...).
func RetryDelay(base time.Duration) asynq.RetryDelayFunc {
	return func(n int, _ error, _ *asynq.Task) time.Duration {
		return base * (1 << n)
	}
}

// isFinalAttempt reports whether the current task execution is the last one
// before asynq archives the task. Terminal failures are recorded exactly
// once, on this attempt.
func isFinalAttempt(ctx context.Context) bool {
	retryCount, ok1 := asynq.GetRetryCount(ctx)
	maxRetry, ok2 := asynq.GetMaxRetry(ctx)
	if !ok1 || !ok2 {
		return false
	}
	return retryCount >= maxRetry
}
