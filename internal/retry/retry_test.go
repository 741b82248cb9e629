package retry_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/library-lending/internal/repository"
	"github.com/Shivanand-hulikatti/library-lending/internal/retry"
)

func fast() []retry.Option {
	return []retry.Option{retry.WithBaseDelay(time.Millisecond), retry.WithJitterFactor(0)}
}

func Test_Do_SucceedsAfterTransientFailures(t *testing.T) {
	// arrange
	calls := 0
	fn := func(context.Context) error {
		calls++
		if calls < 3 {
			return fmt.Errorf("lock wait: %w", repository.ErrTransient)
		}
		return nil
	}

	var hooks []int
	opts := append(fast(), retry.OnRetry(func(attempt int, _ error) { hooks = append(hooks, attempt) }))

	// act
	err := retry.Do(context.Background(), fn, opts...)

	// assert
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, hooks)
}

func Test_Do_DoesNotRetryOtherErrors(t *testing.T) {
	boom := errors.New("boom")
	calls := 0

	err := retry.Do(context.Background(), func(context.Context) error {
		calls++
		return boom
	}, fast()...)

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func Test_Do_GivesUpAfterMaxAttempts(t *testing.T) {
	calls := 0

	err := retry.Do(context.Background(), func(context.Context) error {
		calls++
		return repository.ErrTransient
	}, append(fast(), retry.WithMaxAttempts(3))...)

	assert.ErrorIs(t, err, repository.ErrTransient)
	assert.Equal(t, 3, calls)
}

func Test_Do_StopsWhenContextIsCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	err := retry.Do(ctx, func(context.Context) error {
		calls++
		cancel()
		return repository.ErrTransient
	}, retry.WithBaseDelay(time.Hour))

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func Test_Do_RejectsInvalidOptions(t *testing.T) {
	noop := func(context.Context) error { return nil }

	cases := []struct {
		name     string
		option   retry.Option
		expected error
	}{
		{"zero attempts", retry.WithMaxAttempts(0), retry.ErrInvalidMaxAttempts},
		{"negative delay", retry.WithBaseDelay(-time.Second), retry.ErrNegativeBaseDelay},
		{"jitter below zero", retry.WithJitterFactor(-0.1), retry.ErrInvalidJitterFactor},
		{"jitter above one", retry.WithJitterFactor(1.5), retry.ErrInvalidJitterFactor},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, retry.Do(context.Background(), noop, tc.option), tc.expected)
		})
	}
}

func Test_Retryable(t *testing.T) {
	assert.True(t, retry.Retryable(fmt.Errorf("wrapped: %w", repository.ErrTransient)))
	assert.False(t, retry.Retryable(repository.ErrConflict))
	assert.False(t, retry.Retryable(context.DeadlineExceeded))
}
