package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noSleep(ctx context.Context, d time.Duration) error { return nil }

func TestRetryPolicyRetriesTransientWithinBudget(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 1, Backoff: time.Second, Sleep: noSleep}

	calls := 0
	retries, err := policy.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return &TransientExternalError{Op: "test", Err: errors.New("503")}
	})

	require.Error(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, retries)
}

func TestRetryPolicySucceedsAfterTransientFailure(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 3, Sleep: noSleep}

	calls := 0
	retries, err := policy.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls == 1 {
			return &TransientExternalError{Op: "test", Err: errors.New("timeout")}
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, retries)
}

func TestRetryPolicyDoesNotRetryPermanentFailure(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 3, Sleep: noSleep}

	calls := 0
	retries, err := policy.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return &PermanentExternalError{Op: "test", Err: errors.New("unsupported format")}
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, retries)
	assert.True(t, IsPermanent(err))
}

func TestRetryPolicyStopsWhenSleepIsCancelled(t *testing.T) {
	policy := RetryPolicy{
		MaxRetries: 5,
		Sleep: func(ctx context.Context, d time.Duration) error {
			return context.Canceled
		},
	}

	calls := 0
	retries, err := policy.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return &TransientExternalError{Op: "test", Err: errors.New("flaky")}
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, retries)
}

func TestDeadlineExceededIsTransient(t *testing.T) {
	assert.True(t, IsTransient(context.DeadlineExceeded))
	assert.False(t, IsTransient(errors.New("plain error")))
}

func TestStatusErrorClassification(t *testing.T) {
	assert.True(t, IsTransient(StatusError("op", 503, nil)))
	assert.True(t, IsTransient(StatusError("op", 429, nil)))
	assert.True(t, IsTransient(StatusError("op", 408, nil)))
	assert.True(t, IsPermanent(StatusError("op", 400, nil)))
	assert.True(t, IsPermanent(StatusError("op", 404, nil)))
}

func TestClassifyMapsErrorFamilies(t *testing.T) {
	assert.Equal(t, ClassTransient, Classify(&TransientExternalError{Op: "op", Err: errors.New("x")}))
	assert.Equal(t, ClassPermanent, Classify(&PermanentExternalError{Op: "op", Err: errors.New("x")}))
	assert.Equal(t, ClassInternal, Classify(errors.New("db down")))
}
