package utils

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// WaitFor polls check every interval until it reports done, returns an
// error, or timeout elapses. A timeout wraps context.DeadlineExceeded.
func WaitFor(ctx context.Context, timeout, interval time.Duration, check func() (done bool, err error)) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		done, err := check()
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("not ready after %s: %w", timeout, ctx.Err())
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
