// Package retry implements the conductor's two capped exponential
// backoff policies: a bounded-attempt variant (used for one-shot
// startup calls like the namespace bootstrap) and an infinite,
// delay-capped variant (used by long-running readers that must never
// give up reconnecting).
package retry

import (
	"context"
	"fmt"
	"time"
)

// Policy configures a capped exponential backoff.
type Policy struct {
	// InitialDelay is the delay before the second attempt.
	InitialDelay time.Duration
	// MaxDelay caps the computed delay; it also caps the backoff
	// itself when MaxAttempts is 0 (infinite retries).
	MaxDelay time.Duration
	// MaxAttempts bounds the number of attempts. Zero means retry
	// forever (still capped at MaxDelay between attempts).
	MaxAttempts int
}

// OnRetry is invoked after a failed attempt, before sleeping.
type OnRetry func(attempt int, delay time.Duration, err error)

// ErrAttemptsExceeded is returned once a bounded Policy's MaxAttempts
// is exhausted.
type ErrAttemptsExceeded struct {
	Attempts int
	Last     error
}

func (e *ErrAttemptsExceeded) Error() string {
	return fmt.Sprintf("exceeded %d attempts, last error: %v", e.Attempts, e.Last)
}

func (e *ErrAttemptsExceeded) Unwrap() error { return e.Last }

// Do runs fn, retrying on error according to p, until fn succeeds, the
// attempt budget (if any) is exhausted, or ctx is done.
func Do(ctx context.Context, p Policy, onRetry OnRetry, fn func(ctx context.Context) error) error {
	delay := p.InitialDelay
	var lastErr error
	for attempt := 1; p.MaxAttempts == 0 || attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if p.MaxAttempts != 0 && attempt == p.MaxAttempts {
			break
		}

		if onRetry != nil {
			onRetry(attempt, delay, err)
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}

		delay *= 2
		if delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}
	return &ErrAttemptsExceeded{Attempts: p.MaxAttempts, Last: lastErr}
}

// NamespaceBootstrap is the retry policy used to fetch the latest
// sequencer block at startup (spec.md §4.5): 10 attempts, 100ms
// initial delay, capped at 20s.
func NamespaceBootstrap() Policy {
	return Policy{InitialDelay: 100 * time.Millisecond, MaxDelay: 20 * time.Second, MaxAttempts: 10}
}

// CelestiaReconnect is the retry policy used by the DA reader to
// reconnect to the Celestia node (spec.md §4.4): unbounded attempts,
// capped at 20s.
func CelestiaReconnect() Policy {
	return Policy{InitialDelay: 200 * time.Millisecond, MaxDelay: 20 * time.Second, MaxAttempts: 0}
}

// SequencerCrossCheck is the retry policy used by the DA reader when
// fetching the rollup-namespace blob for a verified sequencer-namespace
// entry: bounded at 10 attempts. The DA reader does not fetch sequencer
// headers from the sequencer for cross-verification.
func SequencerCrossCheck() Policy {
	return Policy{InitialDelay: 200 * time.Millisecond, MaxDelay: 5 * time.Second, MaxAttempts: 10}
}

// ExecutorRPC is the retry policy used by the executor for rollup RPC
// calls (spec.md §4.2, §7): capped exponential, exhaustion is fatal.
func ExecutorRPC() Policy {
	return Policy{InitialDelay: 100 * time.Millisecond, MaxDelay: 10 * time.Second, MaxAttempts: 8}
}

// DepositHook is the retry policy for the optional deposit hook's L1
// calls (spec.md §4.6): retry with backoff, then surface.
func DepositHook() Policy {
	return Policy{InitialDelay: 250 * time.Millisecond, MaxDelay: 15 * time.Second, MaxAttempts: 5}
}
