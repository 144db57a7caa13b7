// Package engine defines the boundary to the opaque execution core. The
// session controller owns only its start and stop transitions, never its
// internal state.
package engine

import (
	"context"
	"sync/atomic"

	"github.com/cocoonstack/emuhost/config"
	"github.com/cocoonstack/emuhost/input"
	"github.com/cocoonstack/emuhost/types"
	"github.com/cocoonstack/emuhost/window"
)

// Engine is the execution core.
type Engine interface {
	Renderer

	// ApplySettings pushes the latest configuration into the core.
	ApplySettings(conf *config.Config)
	// RegisterCapabilities installs host-provided providers. Called once per session.
	RegisterCapabilities(caps Capabilities)
	// Load boots the title at path, rendering into w.
	Load(ctx context.Context, w window.Window, path string) types.Status
	// LoadDiskResources primes cached resources. It returns early once stop is set.
	LoadDiskResources(stop *atomic.Bool, progress types.ProgressFunc)
	// RunLoop executes one step.
	RunLoop() types.Status
	// StatusDetails describes the last failure.
	StatusDetails() string
	Shutdown()
	IsPoweredOn() bool
	// AppLoader returns the loader of the running title, nil when none.
	AppLoader() AppLoader
	// MovieID is the active input recording id, 0 when not recording or replaying.
	MovieID() uint64
	GetAndResetPerfStats() types.PerfSnapshot
	// SendSignal posts a request consumed at the next safe point of RunLoop.
	SendSignal(sig types.Signal, slot int)
	// SetVolume overrides the audio gain until the next ApplySettings.
	// Callable from any goroutine.
	SetVolume(v float32)
	// SetSpeedLimit caps emulation speed in percent of real time; 100 is
	// normal speed. Callable from any goroutine.
	SetSpeedLimit(percent int)
}

// NormalSpeed is the speed limit of real-time emulation.
const NormalSpeed = 100

// Renderer is the part of the core reachable from presentation events.
type Renderer interface {
	IsPoweredOn() bool
	NotifySurfaceChanged()
	UpdateFramebufferLayout(l Layout)
}

// AppLoader reads metadata of the loaded title.
type AppLoader interface {
	ReadProgramID() (uint64, error)
}

// Layout selects how the two emulated screens are arranged.
type Layout struct {
	Portrait bool `json:"portrait"`
	Swap     bool `json:"swap"`
	Upright  bool `json:"upright"`
}

// Camera is a host camera source.
type Camera interface {
	Close() error
}

// CameraFactory opens a camera by its configuration string.
type CameraFactory func(config string) (Camera, error)

// Applet serves a system UI applet (keyboard, Mii selector) on the host.
type Applet struct {
	Name   string
	Handle func(ctx context.Context, request []byte) ([]byte, error)
}

// Capabilities are the pluggable providers registered at session start.
type Capabilities struct {
	Cameras       map[string]CameraFactory
	Applets       []Applet
	MicPermission func() bool
	// Pad is sampled once per step. Nil means no buttons held.
	Pad input.Pad
}
