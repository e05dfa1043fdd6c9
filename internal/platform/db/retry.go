package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// RetryOnTimeout runs fn under timeout. If that attempt times out while the
// parent context is still live, fn runs exactly once more. Any other error
// is returned as is.
func RetryOnTimeout(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	err := attempt(ctx, timeout, fn)
	if err == nil || ctx.Err() != nil || !IsTimeout(err) {
		return err
	}
	return attempt(ctx, timeout, fn)
}

func attempt(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(ctx)
}

// IsTimeout reports whether err came from a deadline rather than the database.
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err)
}
