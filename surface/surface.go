// Package surface tracks the host presentation surface and gates per-frame
// presentation on the session run state.
package surface

import (
	"sync"
	"sync/atomic"

	"github.com/cocoonstack/emuhost/engine"
	"github.com/cocoonstack/emuhost/window"
)

// RunState is the view of the session the coordinator gates on.
type RunState interface {
	IsRunning() bool
	IsPaused() bool
}

type windowRef struct{ w window.Window }

// Coordinator owns the current surface reference and the active window.
// Both are swapped atomically; readers tolerate either becoming nil at any
// time.
type Coordinator struct {
	renderer engine.Renderer
	state    RunState

	surface atomic.Pointer[window.Surface]
	win     atomic.Pointer[windowRef]

	layoutMu sync.Mutex
	layout   engine.Layout
}

// New returns a Coordinator forwarding geometry changes to renderer.
func New(renderer engine.Renderer, state RunState) *Coordinator {
	return &Coordinator{renderer: renderer, state: state}
}

// Surface returns the tracked surface, possibly nil.
func (c *Coordinator) Surface() *window.Surface { return c.surface.Load() }

// Window returns the active window, possibly nil.
func (c *Coordinator) Window() window.Window {
	if ref := c.win.Load(); ref != nil {
		return ref.w
	}
	return nil
}

// SetWindow installs the session window. nil drops it.
func (c *Coordinator) SetWindow(w window.Window) {
	if w == nil {
		c.win.Store(nil)
		return
	}
	c.win.Store(&windowRef{w: w})
}

// OnSurfaceChanged tracks s in place of the previous surface. The host keeps
// ownership of both.
func (c *Coordinator) OnSurfaceChanged(s *window.Surface) {
	c.surface.Store(s)
	changed := false
	if w := c.Window(); w != nil {
		changed = w.OnSurfaceChanged(s)
	}
	if changed && c.renderer.IsPoweredOn() {
		c.renderer.NotifySurfaceChanged()
	}
}

// OnSurfaceDestroyed forgets the surface. The window keeps running with none.
func (c *Coordinator) OnSurfaceDestroyed() {
	c.surface.Store(nil)
	if w := c.Window(); w != nil {
		w.OnSurfaceChanged(nil)
	}
}

// PresentFrame asks the window for one best-effort present.
func (c *Coordinator) PresentFrame() {
	if !c.state.IsRunning() || c.state.IsPaused() {
		return
	}
	if w := c.Window(); w != nil {
		w.TryPresenting()
	}
}

// StopPresenting silences the window until the next session.
func (c *Coordinator) StopPresenting() {
	if w := c.Window(); w != nil {
		w.StopPresenting()
	}
}

// Layout returns the current framebuffer layout.
func (c *Coordinator) Layout() engine.Layout {
	c.layoutMu.Lock()
	defer c.layoutMu.Unlock()
	return c.layout
}

// SetLayout records l without forwarding it. Used when settings are reloaded
// before the engine is powered on.
func (c *Coordinator) SetLayout(l engine.Layout) {
	c.layoutMu.Lock()
	c.layout = l
	c.layoutMu.Unlock()
}

// UpdateFramebufferLayout switches between landscape and portrait.
func (c *Coordinator) UpdateFramebufferLayout(portrait bool) {
	c.updateLayout(func(l *engine.Layout) { l.Portrait = portrait })
}

// SwapScreens exchanges the screens and optionally rotates them upright.
func (c *Coordinator) SwapScreens(swap, upright bool) {
	c.updateLayout(func(l *engine.Layout) {
		l.Swap = swap
		l.Upright = upright
	})
}

func (c *Coordinator) updateLayout(fn func(*engine.Layout)) {
	c.layoutMu.Lock()
	fn(&c.layout)
	l := c.layout
	c.layoutMu.Unlock()
	if c.renderer.IsPoweredOn() {
		c.renderer.UpdateFramebufferLayout(l)
	}
}
