// Package retry wraps cenkalti/backoff/v4 into a small policy type with
// operation > collection > database precedence, grounded on the teacher's
// own fixed-ladder execWithRetry/ExecContextWithRetry (api/data/db_retry.go),
// generalized into a configurable exponential-backoff policy.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/mattn/go-sqlite3"
)

// Policy configures how Do retries a fallible operation.
type Policy struct {
	MaxAttempts        int
	MinDelay           time.Duration
	MaxDelay           time.Duration
	Factor             float64
	Jitter             bool
	MaxElapsed         time.Duration
	Classify           func(error) bool
	OnFailedAttempt    func(ctx context.Context, attempt int, err error)
	ShouldRetry        func(ctx context.Context, err error) bool
	ShouldConsumeRetry func(ctx context.Context, err error) bool
}

// DefaultPolicy mirrors the teacher's own fixed ladder's rough shape,
// translated into exponential-backoff parameters. Its Classify only
// retries SQLITE_BUSY/SQLITE_LOCKED, matching the teacher's own
// isLockError string-sniff (api/data/db_retry.go) generalized to typed
// sqlite3.Error inspection.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 5,
		MinDelay:    10 * time.Millisecond,
		MaxDelay:    500 * time.Millisecond,
		Factor:      2.0,
		Jitter:      true,
		MaxElapsed:  5 * time.Second,
		Classify:    IsBusyOrLocked,
	}
}

// IsBusyOrLocked reports whether err represents a transient
// SQLITE_BUSY/SQLITE_LOCKED condition.
func IsBusyOrLocked(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	return false
}

// Merge overlays override on top of p, field by field, implementing
// operation > collection > database precedence: a zero-valued field in
// override keeps p's value.
func (p Policy) Merge(override Policy) Policy {
	out := p
	if override.MaxAttempts != 0 {
		out.MaxAttempts = override.MaxAttempts
	}
	if override.MinDelay != 0 {
		out.MinDelay = override.MinDelay
	}
	if override.MaxDelay != 0 {
		out.MaxDelay = override.MaxDelay
	}
	if override.Factor != 0 {
		out.Factor = override.Factor
	}
	if override.MaxElapsed != 0 {
		out.MaxElapsed = override.MaxElapsed
	}
	if override.Classify != nil {
		out.Classify = override.Classify
	}
	if override.OnFailedAttempt != nil {
		out.OnFailedAttempt = override.OnFailedAttempt
	}
	if override.ShouldRetry != nil {
		out.ShouldRetry = override.ShouldRetry
	}
	if override.ShouldConsumeRetry != nil {
		out.ShouldConsumeRetry = override.ShouldConsumeRetry
	}
	out.Jitter = override.Jitter || p.Jitter
	return out
}

func (p Policy) backOff(ctx context.Context) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	if p.MinDelay > 0 {
		eb.InitialInterval = p.MinDelay
	}
	if p.MaxDelay > 0 {
		eb.MaxInterval = p.MaxDelay
	}
	if p.Factor > 0 {
		eb.Multiplier = p.Factor
	}
	if !p.Jitter {
		eb.RandomizationFactor = 0
	}
	if p.MaxElapsed > 0 {
		eb.MaxElapsedTime = p.MaxElapsed
	}

	var bo backoff.BackOff = eb
	if p.MaxAttempts > 0 {
		bo = backoff.WithMaxRetries(bo, uint64(p.MaxAttempts-1))
	}
	return backoff.WithContext(bo, ctx)
}

// Do runs fn, retrying per p until it succeeds, a non-retryable error is
// classified, attempts are exhausted, or ctx is canceled. ctx.Err() is
// checked before every sleep so cancellation preempts backoff immediately.
func Do[R any](ctx context.Context, p Policy, fn func() (R, error)) (R, error) {
	var result R
	attempt := 0

	operation := func() error {
		attempt++
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}

		r, err := fn()
		if err == nil {
			result = r
			return nil
		}

		if p.ShouldConsumeRetry != nil && !p.ShouldConsumeRetry(ctx, err) {
			return backoff.Permanent(err)
		}

		retryable := true
		if p.Classify != nil {
			retryable = p.Classify(err)
		}
		if p.ShouldRetry != nil {
			retryable = retryable && p.ShouldRetry(ctx, err)
		}

		if p.OnFailedAttempt != nil {
			p.OnFailedAttempt(ctx, attempt, err)
		}

		if !retryable {
			return backoff.Permanent(err)
		}
		return err
	}

	err := backoff.Retry(operation, p.backOff(ctx))
	return result, err
}
