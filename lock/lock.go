package lock

import (
	"context"
	"errors"
)

// Locker provides mutual exclusion with context support.
type Locker interface {
	Lock(ctx context.Context) error
	Unlock(ctx context.Context) error
}

// WithLock acquires the lock, calls fn, and releases the lock.
// If fn returns an error, the lock is still released.
func WithLock(ctx context.Context, l Locker, fn func() error) error {
	if err := l.Lock(ctx); err != nil {
		return err
	}
	defer l.Unlock(ctx) //nolint:errcheck
	return fn()
}

// chain acquires its lockers in order and releases them in reverse.
type chain []Locker

// Chain combines lockers into one. Typically an in-process Mutex followed by
// a cross-process file lock: the mutex serializes goroutines, the file lock
// serializes processes.
func Chain(lockers ...Locker) Locker {
	var c chain
	for _, l := range lockers {
		if l != nil {
			c = append(c, l)
		}
	}
	return c
}

func (c chain) Lock(ctx context.Context) error {
	for i, l := range c {
		if err := l.Lock(ctx); err != nil {
			for j := i - 1; j >= 0; j-- {
				_ = c[j].Unlock(ctx)
			}
			return err
		}
	}
	return nil
}

func (c chain) Unlock(ctx context.Context) error {
	var errs []error
	for i := len(c) - 1; i >= 0; i-- {
		errs = append(errs, c[i].Unlock(ctx))
	}
	return errors.Join(errs...)
}
