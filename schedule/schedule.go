// Package schedule provides the polling and retry primitives shared by the
// pipeline jobs.
//
// Failures around an external batch job fall into three classes that must not
// be conflated: a submission failure means nothing was created externally and
// the whole run is safe to redo; a poll failure means the job state is unknown
// and only the poll is retried, inside its attempt budget; a result-fetch
// failure means the job ended but its output is temporarily unavailable, so
// only the fetch is retried. Re-submitting after the first call went through
// double-spends paid generation work.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrBudgetExhausted is returned by Poll when the attempt budget runs out
// before the check reports completion.
var ErrBudgetExhausted = errors.New("schedule: poll attempt budget exhausted")

// CheckFunc reports whether polling is complete. A non-nil error is treated as
// transient: it consumes one attempt and polling continues.
type CheckFunc func(ctx context.Context) (done bool, err error)

// Poll invokes check at the fixed interval until it reports done, the attempt
// budget is exhausted, or the context is cancelled.
func Poll(ctx context.Context, interval time.Duration, maxAttempts int, check CheckFunc) error {
	if interval <= 0 || maxAttempts <= 0 {
		return fmt.Errorf("schedule: invalid poll parameters interval=%s maxAttempts=%d", interval, maxAttempts)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		done, err := check(ctx)
		if err != nil {
			lastErr = err
			continue
		}
		if done {
			return nil
		}
	}

	if lastErr != nil {
		return fmt.Errorf("%w (last poll error: %v)", ErrBudgetExhausted, lastErr)
	}
	return ErrBudgetExhausted
}

// Retry runs fn up to attempts times with a fixed delay between tries,
// returning nil on the first success.
func Retry(ctx context.Context, attempts int, delay time.Duration, fn func(ctx context.Context) error) error {
	if attempts <= 0 {
		return fmt.Errorf("schedule: attempts must be positive")
	}

	var err error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		if err = fn(ctx); err == nil {
			return nil
		}
	}

	return fmt.Errorf("schedule: %d attempts exhausted: %w", attempts, err)
}
