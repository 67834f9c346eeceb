package backoff

import (
	"context"
	"errors"
)

// permanentError marks an error that must not be retried.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so Retry returns it immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was wrapped with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Result holds the outcome of Retry.
type Result[T any] struct {
	Value    T
	Attempts int
}

// Retry calls fn up to maxAttempts times, sleeping between attempts
// according to policy. It stops early on success, on a Permanent error, or
// when ctx is done. The error returned is always the last error from fn
// (unwrapped from Permanent), or ctx.Err() if the context ended first.
func Retry[T any](ctx context.Context, policy Policy, maxAttempts int, fn func(ctx context.Context, attempt int) (T, error)) (Result[T], error) {
	var res Result[T]
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		res.Attempts = attempt
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return res, lastErr
			}
			return res, err
		}

		v, err := fn(ctx, attempt)
		if err == nil {
			res.Value = v
			return res, nil
		}

		var p *permanentError
		if errors.As(err, &p) {
			return res, p.err
		}
		lastErr = err

		if attempt < maxAttempts {
			if err := Sleep(ctx, policy.Delay(attempt)); err != nil {
				return res, lastErr
			}
		}
	}
	return res, lastErr
}
