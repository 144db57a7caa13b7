package flock

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/cocoonstack/emuhost/lock"
	"github.com/cocoonstack/emuhost/utils"
)

const retryDelay = 100 * time.Millisecond

// ErrHeld is returned by a non-blocking Lock when another process owns the file.
var ErrHeld = errors.New("session lock held by another process")

var _ lock.Locker = (*Lock)(nil)

// Lock keeps a second emuhost process from running a session against the
// same root directory. Lock files are long-lived and never deleted.
type Lock struct {
	fl   *flock.Flock
	wait bool
}

// Option configures a Lock.
type Option func(*Lock)

// NonBlocking makes Lock fail with ErrHeld instead of waiting for the owner.
func NonBlocking() Option { return func(l *Lock) { l.wait = false } }

// New creates a Lock on path. By default Lock waits until the file is free
// or ctx is done.
func New(path string, opts ...Option) *Lock {
	l := &Lock{fl: flock.New(path), wait: true}
	for _, o := range opts {
		o(l)
	}
	return l
}

func (l *Lock) Lock(ctx context.Context) error {
	if err := utils.EnsureDirs(filepath.Dir(l.fl.Path())); err != nil {
		return err
	}
	var (
		locked bool
		err    error
	)
	if l.wait {
		locked, err = l.fl.TryLockContext(ctx, retryDelay)
	} else {
		locked, err = l.fl.TryLock()
	}
	switch {
	case err != nil:
		return fmt.Errorf("acquire flock %s: %w", l.fl.Path(), err)
	case !locked && !l.wait:
		return fmt.Errorf("%s: %w", l.fl.Path(), ErrHeld)
	case !locked:
		return fmt.Errorf("acquire flock %s: context done", l.fl.Path())
	}
	return nil
}

func (l *Lock) Unlock(_ context.Context) error {
	if err := l.fl.Unlock(); err != nil {
		return fmt.Errorf("release flock %s: %w", l.fl.Path(), err)
	}
	return nil
}
