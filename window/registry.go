package window

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/projecteru2/core/log"

	"github.com/cocoonstack/emuhost/driver"
	"github.com/cocoonstack/emuhost/types"
)

// Factory constructs a window for one session. drv is the process-wide
// graphics driver handle selected by the driver loader, possibly nil.
type Factory func(surface *Surface, drv *driver.Handle) (Window, error)

// Registry maps graphics APIs to backend factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[types.GraphicsAPI]Factory
	fallback  []types.GraphicsAPI
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[types.GraphicsAPI]Factory)}
}

// Register adds a backend. The first registered backend is the fallback for
// unknown or unavailable APIs, then the next, and so on.
func (r *Registry) Register(api types.GraphicsAPI, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.factories[api]; !ok {
		r.fallback = append(r.fallback, api)
	}
	r.factories[api] = f
}

// APIs lists registered backends in sorted order.
func (r *Registry) APIs() []types.GraphicsAPI {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.GraphicsAPI, 0, len(r.factories))
	for api := range r.factories {
		out = append(out, api)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Create builds a window for api, falling back to the default backend when
// api is not registered.
func (r *Registry) Create(ctx context.Context, api types.GraphicsAPI, surface *Surface, drv *driver.Handle) (Window, types.GraphicsAPI, error) {
	r.mu.RLock()
	f, ok := r.factories[api]
	chosen := api
	if !ok && len(r.fallback) > 0 {
		chosen = r.fallback[0]
		f = r.factories[chosen]
	}
	r.mu.RUnlock()

	if f == nil {
		return nil, "", fmt.Errorf("no rendering backend registered")
	}
	if chosen != api {
		log.WithFunc("window.Create").Warnf(ctx, "unknown or unsupported graphics API %q, falling back to %q", api, chosen)
	}
	w, err := f(surface, drv)
	if err != nil {
		return nil, "", fmt.Errorf("create %s window: %w", chosen, err)
	}
	return w, chosen, nil
}
