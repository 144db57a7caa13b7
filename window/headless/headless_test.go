package headless

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cocoonstack/emuhost/window"
)

func TestWindow_PresentWithoutSurfaceDrops(t *testing.T) {
	w := New(nil)
	w.TryPresenting()
	assert.Equal(t, int64(0), w.Presents())
	assert.Equal(t, int64(1), w.Dropped())

	assert.True(t, w.OnSurfaceChanged(&window.Surface{Handle: 1, Width: 400, Height: 240}))
	w.TryPresenting()
	assert.Equal(t, int64(1), w.Presents())
}

func TestWindow_OnSurfaceChangedReportsChange(t *testing.T) {
	s := &window.Surface{Handle: 7, Width: 400, Height: 480}
	w := New(s)
	assert.False(t, w.OnSurfaceChanged(&window.Surface{Handle: 7, Width: 400, Height: 480}))
	assert.True(t, w.OnSurfaceChanged(&window.Surface{Handle: 7, Width: 800, Height: 480}))
	assert.True(t, w.OnSurfaceChanged(nil))
	assert.False(t, w.OnSurfaceChanged(nil))
}

func TestWindow_StopPresenting(t *testing.T) {
	w := New(&window.Surface{Handle: 1})
	w.StopPresenting()
	w.TryPresenting()
	assert.Equal(t, int64(0), w.Presents())
	assert.Equal(t, int64(0), w.Dropped())
}

func TestWindow_CurrentBinding(t *testing.T) {
	w := New(nil)
	w.MakeCurrent()
	assert.True(t, w.Current())
	w.DoneCurrent()
	assert.False(t, w.Current())
}
