package retry

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDo_SucceedsWithoutRetry(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Policy{InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, MaxAttempts: 3}, nil, func(ctx context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, calls)
}

func TestDo_RetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Policy{InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, MaxAttempts: 5}, nil, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return fmt.Errorf("not yet")
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Policy{InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, MaxAttempts: 3}, nil, func(ctx context.Context) error {
		calls++
		return fmt.Errorf("always fails")
	})
	require.Error(t, err)
	require.Equal(t, 3, calls)

	var exceeded *ErrAttemptsExceeded
	require.ErrorAs(t, err, &exceeded)
	require.Equal(t, 3, exceeded.Attempts)
}

func TestDo_OnRetryCalledBetweenAttempts(t *testing.T) {
	var retries []int
	calls := 0
	_ = Do(context.Background(), Policy{InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, MaxAttempts: 3},
		func(attempt int, delay time.Duration, err error) { retries = append(retries, attempt) },
		func(ctx context.Context) error {
			calls++
			return fmt.Errorf("fail")
		})
	require.Equal(t, []int{1, 2}, retries)
}

func TestDo_StopsOnContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Do(ctx, Policy{InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, MaxAttempts: 0}, nil, func(ctx context.Context) error {
		return fmt.Errorf("fail")
	})
	require.ErrorIs(t, err, context.Canceled)
}

func TestNamedPolicies_HaveSaneBounds(t *testing.T) {
	for _, p := range []Policy{NamespaceBootstrap(), CelestiaReconnect(), SequencerCrossCheck(), ExecutorRPC(), DepositHook()} {
		require.Greater(t, p.InitialDelay, time.Duration(0))
		require.GreaterOrEqual(t, p.MaxDelay, p.InitialDelay)
	}
	require.Equal(t, 0, CelestiaReconnect().MaxAttempts, "celestia reconnect must retry forever")
}
