package xrefcore

import (
	"context"
	"errors"
	"time"
)

// RetryBatch runs fn through db.WithBatch, retrying with exponential
// backoff on ErrDatabaseBusy up to maxAttempts times before surfacing the
// error as fatal.
func RetryBatch(ctx context.Context, db Database, maxAttempts int, fn func(b *Batch) error) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	backoff := 50 * time.Millisecond
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		err := db.WithBatch(ctx, fn)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrDatabaseBusy) {
			return err
		}
		lastErr = err
	}
	return lastErr
}
