package surface

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cocoonstack/emuhost/engine"
	"github.com/cocoonstack/emuhost/window"
	"github.com/cocoonstack/emuhost/window/headless"
)

type fakeRenderer struct {
	powered atomic.Bool
	changes atomic.Int64
	layouts []engine.Layout
}

func (r *fakeRenderer) IsPoweredOn() bool { return r.powered.Load() }
func (r *fakeRenderer) NotifySurfaceChanged() { r.changes.Add(1) }
func (r *fakeRenderer) UpdateFramebufferLayout(l engine.Layout) { r.layouts = append(r.layouts, l) }

type fakeState struct{ running, paused atomic.Bool }

func (s *fakeState) IsRunning() bool { return s.running.Load() }
func (s *fakeState) IsPaused() bool { return s.paused.Load() }

func setup() (*Coordinator, *fakeRenderer, *fakeState, *headless.Window) {
	r := &fakeRenderer{}
	s := &fakeState{}
	c := New(r, s)
	w := headless.New(nil)
	c.SetWindow(w)
	return c, r, s, w
}

// --- Surface events ---

func TestSurfaceChangedNotifiesRendererWhenPowered(t *testing.T) {
	c, r, _, _ := setup()
	s := &window.Surface{Handle: 1, Width: 400, Height: 240}

	c.OnSurfaceChanged(s)
	assert.Same(t, s, c.Surface())
	assert.Equal(t, int64(0), r.changes.Load(), "not powered on")

	r.powered.Store(true)
	c.OnSurfaceChanged(&window.Surface{Handle: 2, Width: 400, Height: 240})
	assert.Equal(t, int64(1), r.changes.Load())

	c.OnSurfaceChanged(&window.Surface{Handle: 2, Width: 400, Height: 240})
	assert.Equal(t, int64(1), r.changes.Load(), "unchanged surface")
}

func TestSurfaceChangedWithoutWindow(t *testing.T) {
	r := &fakeRenderer{}
	r.powered.Store(true)
	c := New(r, &fakeState{})
	s := &window.Surface{Handle: 3}
	c.OnSurfaceChanged(s)
	assert.Same(t, s, c.Surface())
	assert.Equal(t, int64(0), r.changes.Load())
}

func TestNilSurfaceWhilePowered(t *testing.T) {
	c, r, st, w := setup()
	r.powered.Store(true)
	st.running.Store(true)
	c.OnSurfaceChanged(&window.Surface{Handle: 1})

	c.OnSurfaceChanged(nil)
	assert.Nil(t, c.Surface())
	c.PresentFrame()
	assert.Equal(t, int64(0), w.Presents())
	assert.Equal(t, int64(1), w.Dropped())
}

func TestSurfaceDestroyed(t *testing.T) {
	c, _, st, w := setup()
	st.running.Store(true)
	c.OnSurfaceChanged(&window.Surface{Handle: 1})
	c.PresentFrame()
	assert.Equal(t, int64(1), w.Presents())

	c.OnSurfaceDestroyed()
	assert.Nil(t, c.Surface())
	c.PresentFrame()
	assert.Equal(t, int64(1), w.Presents())
	assert.Equal(t, int64(1), w.Dropped())
}

// --- Presentation gating ---

func TestPresentFrameGating(t *testing.T) {
	c, _, st, w := setup()
	c.OnSurfaceChanged(&window.Surface{Handle: 1})

	c.PresentFrame()
	assert.Equal(t, int64(0), w.Presents(), "stopped")

	st.running.Store(true)
	st.paused.Store(true)
	c.PresentFrame()
	assert.Equal(t, int64(0), w.Presents(), "paused")

	st.paused.Store(false)
	c.PresentFrame()
	assert.Equal(t, int64(1), w.Presents())

	c.SetWindow(nil)
	c.PresentFrame()
	assert.Nil(t, c.Window())
}

func TestStopPresenting(t *testing.T) {
	c, _, st, w := setup()
	st.running.Store(true)
	c.OnSurfaceChanged(&window.Surface{Handle: 1})
	c.StopPresenting()
	c.PresentFrame()
	assert.Equal(t, int64(0), w.Presents())
}

func TestConcurrentWindowSwap(t *testing.T) {
	c, _, st, _ := setup()
	st.running.Store(true)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for range 1000 {
			c.PresentFrame()
			c.OnSurfaceChanged(&window.Surface{Handle: 1})
		}
	}()
	go func() {
		defer wg.Done()
		for i := range 1000 {
			if i%2 == 0 {
				c.SetWindow(nil)
			} else {
				c.SetWindow(headless.New(nil))
			}
		}
	}()
	wg.Wait()
}

// --- Layout ---

func TestLayoutForwardedOnlyWhenPowered(t *testing.T) {
	c, r, _, _ := setup()
	c.UpdateFramebufferLayout(true)
	assert.Empty(t, r.layouts)
	assert.True(t, c.Layout().Portrait)

	r.powered.Store(true)
	c.SwapScreens(true, true)
	assert.Equal(t, []engine.Layout{{Portrait: true, Swap: true, Upright: true}}, r.layouts)

	c.SetLayout(engine.Layout{})
	assert.Equal(t, engine.Layout{}, c.Layout())
	assert.Len(t, r.layouts, 1)
}
