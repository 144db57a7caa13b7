package window_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cocoonstack/emuhost/driver"
	"github.com/cocoonstack/emuhost/types"
	"github.com/cocoonstack/emuhost/window"
	"github.com/cocoonstack/emuhost/window/headless"
)

func TestRegistry_CreateKnownAPI(t *testing.T) {
	r := window.NewRegistry()
	r.Register(types.GraphicsSoftware, headless.Factory)
	r.Register(types.GraphicsVulkan, headless.Factory)

	w, api, err := r.Create(context.Background(), types.GraphicsVulkan, nil, nil)
	require.NoError(t, err)
	assert.NotNil(t, w)
	assert.Equal(t, types.GraphicsVulkan, api)
	assert.Equal(t, []types.GraphicsAPI{types.GraphicsSoftware, types.GraphicsVulkan}, r.APIs())
}

func TestRegistry_FallsBackToFirstRegistered(t *testing.T) {
	r := window.NewRegistry()
	r.Register(types.GraphicsSoftware, headless.Factory)

	_, api, err := r.Create(context.Background(), types.GraphicsOpenGL, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, types.GraphicsSoftware, api)
}

func TestRegistry_Empty(t *testing.T) {
	_, _, err := window.NewRegistry().Create(context.Background(), types.GraphicsVulkan, nil, nil)
	assert.Error(t, err)
}

func TestRegistry_FactoryErrorWrapped(t *testing.T) {
	boom := errors.New("no device")
	r := window.NewRegistry()
	r.Register(types.GraphicsVulkan, func(*window.Surface, *driver.Handle) (window.Window, error) { return nil, boom })
	_, _, err := r.Create(context.Background(), types.GraphicsVulkan, nil, nil)
	assert.ErrorIs(t, err, boom)
}

func TestSurface_Same(t *testing.T) {
	var a, b *window.Surface
	assert.True(t, a.Same(b))
	a = &window.Surface{Handle: 1, Width: 2, Height: 3}
	assert.False(t, a.Same(nil))
	assert.True(t, a.Same(&window.Surface{Handle: 1, Width: 2, Height: 3}))
}
