// Package headless provides a window backend with no native rendering. It
// tracks the current surface and counts presents, which is all the session
// controller needs from a window.
package headless

import (
	"sync"
	"sync/atomic"

	"github.com/cocoonstack/emuhost/driver"
	"github.com/cocoonstack/emuhost/window"
)

var _ window.Window = (*Window)(nil)

// Window is a headless window.Window.
type Window struct {
	mu      sync.Mutex
	surface *window.Surface
	current bool

	stopped  atomic.Bool
	presents atomic.Int64
	dropped  atomic.Int64
	polls    atomic.Int64
}

// New returns a Window targeting surface.
func New(surface *window.Surface) *Window {
	return &Window{surface: surface}
}

// Factory adapts New to window.Factory.
func Factory(surface *window.Surface, _ *driver.Handle) (window.Window, error) {
	return New(surface), nil
}

func (w *Window) MakeCurrent() {
	w.mu.Lock()
	w.current = true
	w.mu.Unlock()
}

func (w *Window) DoneCurrent() {
	w.mu.Lock()
	w.current = false
	w.mu.Unlock()
}

// Current reports whether the rendering context is bound.
func (w *Window) Current() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

func (w *Window) OnSurfaceChanged(s *window.Surface) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.surface.Same(s) {
		return false
	}
	w.surface = s
	return true
}

// TryPresenting counts a present, or a dropped frame when there is no surface.
func (w *Window) TryPresenting() {
	if w.stopped.Load() {
		return
	}
	w.mu.Lock()
	hasSurface := w.surface != nil
	w.mu.Unlock()
	if !hasSurface {
		w.dropped.Add(1)
		return
	}
	w.presents.Add(1)
}

func (w *Window) StopPresenting() { w.stopped.Store(true) }

func (w *Window) PollEvents() { w.polls.Add(1) }

// Presents returns the number of frames presented.
func (w *Window) Presents() int64 { return w.presents.Load() }

// Dropped returns the number of presents dropped for lack of a surface.
func (w *Window) Dropped() int64 { return w.dropped.Load() }

// Polls returns how many times events were drained.
func (w *Window) Polls() int64 { return w.polls.Load() }
