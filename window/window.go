// Package window defines the presentation boundary between the session
// controller and a rendering backend.
package window

// Surface is a host-owned presentation target. The host creates and destroys
// it; the controller only tracks the current reference.
type Surface struct {
	Handle uintptr
	Width  int
	Height int
}

// Same reports whether a and b refer to the same native surface with the
// same geometry. Two nil surfaces are the same.
func (s *Surface) Same(o *Surface) bool {
	if s == nil || o == nil {
		return s == o
	}
	return *s == *o
}

// Window is the renderer-facing window object. Implementations must tolerate
// a nil surface: draws may be dropped or buffered but never crash.
type Window interface {
	// MakeCurrent binds the rendering context to the calling goroutine's thread.
	MakeCurrent()
	// DoneCurrent releases the binding taken by MakeCurrent.
	DoneCurrent()
	// OnSurfaceChanged swaps the target surface and reports whether it changed.
	OnSurfaceChanged(s *Surface) bool
	// TryPresenting attempts one non-blocking present. A dropped frame is not an error.
	TryPresenting()
	// StopPresenting makes subsequent TryPresenting calls no-ops.
	StopPresenting()
	// PollEvents drains pending window events.
	PollEvents()
}
