package adapter

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// RetryPolicy retries a publish with exponential backoff.
type RetryPolicy struct {
	// Retries is the number of attempts after the first.
	Retries int
	// Backoff is the delay before the first retry; it doubles per retry.
	Backoff time.Duration
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }

func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	return &permanentError{err: err}
}

// Do calls fn until it succeeds, returns a Permanent error, ctx ends, or
// the retries are used up. A Permanent error is returned unwrapped.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := 1 + max(p.Retries, 0)
	var err error
	for i := range attempts {
		if i > 0 {
			timer := time.NewTimer(p.Backoff << (i - 1))
			select {
			case <-ctx.Done():
				timer.Stop()
				return fmt.Errorf("canceled after %d attempts: %w", i, ctx.Err())
			case <-timer.C:
			}
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		err = fn(ctx)
		if err == nil {
			return nil
		}
		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
	}
	return fmt.Errorf("failed after %d attempts: %w", attempts, err)
}
