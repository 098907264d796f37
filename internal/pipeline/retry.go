package pipeline

import (
	"context"
	"time"
)

// RetryPolicy bounds how often a transient external failure is retried and
// how long to back off in between. It is injected from configuration so tests
// and deployments can tune it without code changes.
type RetryPolicy struct {
	// MaxRetries is the number of additional attempts after the first.
	MaxRetries int
	// Backoff is the base delay; attempt n waits n*Backoff.
	Backoff time.Duration
	// Sleep is swappable for tests. Defaults to a context-aware wait.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Do runs fn, retrying transient failures within the budget. Permanent
// failures and unclassified errors return immediately. It reports how many
// retries were attempted alongside the final error.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) (int, error) {
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var err error
	retries := 0
	for attempt := 0; ; attempt++ {
		err = fn(ctx)
		if err == nil {
			return retries, nil
		}
		if !IsTransient(err) {
			return retries, err
		}
		if attempt >= p.MaxRetries {
			return retries, err
		}
		retries++
		if serr := sleep(ctx, time.Duration(attempt+1)*p.Backoff); serr != nil {
			return retries, err
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
