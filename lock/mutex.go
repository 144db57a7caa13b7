package lock

import (
	"context"
	"errors"
)

// ErrNotLocked is returned when unlocking a Mutex that is not held.
var ErrNotLocked = errors.New("unlock of unlocked mutex")

var _ Locker = (*Mutex)(nil)

// Mutex is an in-process Locker whose Lock can be abandoned via ctx.
type Mutex struct {
	ch chan struct{}
}

// NewMutex returns an unlocked Mutex.
func NewMutex() *Mutex {
	return &Mutex{ch: make(chan struct{}, 1)}
}

// Lock blocks until the mutex is acquired or ctx is done.
func (m *Mutex) Lock(ctx context.Context) error {
	select {
	case m.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryLock acquires the mutex if it is free.
func (m *Mutex) TryLock() bool {
	select {
	case m.ch <- struct{}{}:
		return true
	default:
		return false
	}
}

func (m *Mutex) Unlock(_ context.Context) error {
	select {
	case <-m.ch:
		return nil
	default:
		return ErrNotLocked
	}
}
