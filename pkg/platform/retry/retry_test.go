package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skillchain/pkg/platform/retry"
)

func fastPolicy(attempts int) retry.Policy {
	return retry.Policy{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     2 * time.Millisecond,
		Multiplier:   2,
	}
}

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	e := retry.New(fastPolicy(3))

	calls := 0
	err := e.Do(context.Background(), "upload", func(context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_RecoversAfterTransientFailures(t *testing.T) {
	e := retry.New(fastPolicy(5))

	calls := 0
	err := e.Do(context.Background(), "upload", func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_ExhaustionReturnsLastError(t *testing.T) {
	e := retry.New(fastPolicy(3))

	calls := 0
	boom := errors.New("still down")
	err := e.Do(context.Background(), "upload", func(context.Context) error {
		calls++
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, calls)
}

func TestDo_ContextCancellationStopsRetrying(t *testing.T) {
	e := retry.New(retry.Policy{
		MaxAttempts:  5,
		InitialDelay: time.Minute,
		MaxDelay:     time.Minute,
		Multiplier:   2,
	})

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := e.Do(ctx, "upload", func(context.Context) error {
		calls++
		cancel()
		return errors.New("transient")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls, "canceled context must suppress further attempts")
}

func TestDo_RetryHookFiresPerReattempt(t *testing.T) {
	var hooked []string
	e := retry.New(fastPolicy(3), retry.WithRetryHook(func(operation string) {
		hooked = append(hooked, operation)
	}))

	_ = e.Do(context.Background(), "persist", func(context.Context) error {
		return errors.New("nope")
	})

	// Three attempts means two re-attempts.
	assert.Equal(t, []string{"persist", "persist"}, hooked)
}

func TestValue_ReturnsResultFromSuccessfulAttempt(t *testing.T) {
	e := retry.New(fastPolicy(3))

	calls := 0
	got, err := retry.Value(context.Background(), e, "upload", func(context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("transient")
		}
		return "QmCid", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "QmCid", got)
}

func TestNew_ZeroPolicyFieldsGetDefaults(t *testing.T) {
	// A zeroed policy must not produce a zero-attempt executor.
	e := retry.New(retry.Policy{})

	calls := 0
	_ = e.Do(context.Background(), "noop", func(context.Context) error {
		calls++
		return nil
	})
	assert.Equal(t, 1, calls)
}

func TestDo_GeometricBackoffCappedAtMaxDelay(t *testing.T) {
	// Scaled-down version of the production policy: delays should grow
	// 50ms, 100ms, then stay at the 100ms cap instead of reaching 200ms.
	e := retry.New(retry.Policy{
		MaxAttempts:  4,
		InitialDelay: 50 * time.Millisecond,
		MaxDelay:     100 * time.Millisecond,
		Multiplier:   2,
	})

	var stamps []time.Time
	_ = e.Do(context.Background(), "upload", func(context.Context) error {
		stamps = append(stamps, time.Now())
		return errors.New("transient")
	})
	require.Len(t, stamps, 4)

	gaps := make([]time.Duration, 0, 3)
	for i := 1; i < len(stamps); i++ {
		gaps = append(gaps, stamps[i].Sub(stamps[i-1]))
	}

	assert.GreaterOrEqual(t, gaps[0], 50*time.Millisecond)
	assert.Less(t, gaps[0], 90*time.Millisecond)

	assert.GreaterOrEqual(t, gaps[1], 100*time.Millisecond, "second delay must double the first")
	assert.Less(t, gaps[1], 160*time.Millisecond)

	assert.GreaterOrEqual(t, gaps[2], 100*time.Millisecond)
	assert.Less(t, gaps[2], 160*time.Millisecond, "third delay must hold at MaxDelay, not grow to 200ms")
}

func TestDo_ElapsedDelayBeforeLateSuccess(t *testing.T) {
	e := retry.New(retry.Policy{
		MaxAttempts:  3,
		InitialDelay: 50 * time.Millisecond,
		MaxDelay:     200 * time.Millisecond,
		Multiplier:   2,
	})

	calls := 0
	start := time.Now()
	err := e.Do(context.Background(), "persist", func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	// Two failures cost InitialDelay plus its double before the third try.
	assert.GreaterOrEqual(t, elapsed, 150*time.Millisecond)
	assert.Less(t, elapsed, 300*time.Millisecond)
}
