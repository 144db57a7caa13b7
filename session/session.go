// Package session owns the single emulation session: the start, pause,
// resume and stop protocol and the run loop driving the engine.
//
// Exactly one Controller should exist per process. Start runs the loop on
// the calling goroutine; Pause, Resume, Stop and the query methods may be
// called from any goroutine and never block on the loop.
package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/projecteru2/core/log"

	"github.com/cocoonstack/emuhost/config"
	"github.com/cocoonstack/emuhost/corerror"
	"github.com/cocoonstack/emuhost/driver"
	"github.com/cocoonstack/emuhost/engine"
	"github.com/cocoonstack/emuhost/input"
	"github.com/cocoonstack/emuhost/lock"
	"github.com/cocoonstack/emuhost/savestate"
	"github.com/cocoonstack/emuhost/surface"
	"github.com/cocoonstack/emuhost/types"
	"github.com/cocoonstack/emuhost/utils"
	"github.com/cocoonstack/emuhost/window"
)

// DefaultTurboSpeed is the turbo speed limit until SetTurboSpeed changes it.
const DefaultTurboSpeed = 200

var (
	// ErrNotRunning is returned by requests that need a live session.
	ErrNotRunning = errors.New("no session running")
	// ErrNoGamepad is returned by SetButton when the input subsystem has no pad.
	ErrNoGamepad = errors.New("input subsystem has no gamepad")
	// ErrInvalidSpeed is returned by SetTurboSpeed for non-positive speeds.
	ErrInvalidSpeed = errors.New("turbo speed must be positive")
)

// Callbacks are the host notifications. All are optional. They run on the
// loop goroutine and may call back into the Controller.
type Callbacks struct {
	// OnDiskCacheProgress reports disk-cache preparation stages.
	OnDiskCacheProgress types.ProgressFunc
	// OnCoreError decides whether to continue after a run-time failure.
	// Without it every failure aborts.
	OnCoreError corerror.DecideFunc
	// OnExit is called when Start returns anything but Success.
	OnExit func(status types.Status)
	// OnStateChange observes lifecycle transitions.
	OnStateChange func(state types.SessionState)
}

// Option configures a Controller.
type Option func(*Controller)

// WithDriverLoader sets the graphics driver loader.
func WithDriverLoader(l *driver.Loader) Option { return func(c *Controller) { c.drivers = l } }

// WithInput sets the input subsystem.
func WithInput(in input.Subsystem) Option { return func(c *Controller) { c.input = in } }

// WithCapabilities sets the providers registered on every Start.
func WithCapabilities(caps engine.Capabilities) Option { return func(c *Controller) { c.caps = caps } }

// WithCallbacks sets the host callbacks.
func WithCallbacks(cb Callbacks) Option { return func(c *Controller) { c.cb = cb } }

// WithLocker sets the single-instance lock. The default only excludes
// within the process.
func WithLocker(l lock.Locker) Option { return func(c *Controller) { c.locker = l } }

// Controller is the session controller.
type Controller struct {
	store   *config.Store
	eng     engine.Engine
	windows *window.Registry
	drivers *driver.Loader
	input   input.Subsystem
	caps    engine.Capabilities
	cb      Callbacks
	bridge  *corerror.Bridge
	locker  lock.Locker
	surface *surface.Coordinator

	// stopRequested and pauseRequested are the only signals between the
	// loop and other goroutines.
	stopRequested  atomic.Bool
	pauseRequested atomic.Bool
	wake           chan struct{}

	state     atomic.Int32
	sessionID atomic.Pointer[string]

	turbo      atomic.Bool
	turboSpeed atomic.Int32

	// startMu orders Stop against the Starting to Running handoff so a Stop
	// issued while the title loads is not lost.
	startMu     sync.Mutex
	stopPending bool
}

// New returns an idle Controller.
func New(store *config.Store, eng engine.Engine, windows *window.Registry, opts ...Option) *Controller {
	c := &Controller{
		store:   store,
		eng:     eng,
		windows: windows,
		wake:    make(chan struct{}, 1),
	}
	for _, o := range opts {
		o(c)
	}
	if c.drivers == nil {
		c.drivers = driver.New()
	}
	if c.input == nil {
		c.input = input.NewManager()
	}
	if c.locker == nil {
		c.locker = lock.NewMutex()
	}
	c.bridge = corerror.New(c.cb.OnCoreError)
	c.surface = surface.New(eng, c)
	c.stopRequested.Store(true)
	c.turboSpeed.Store(DefaultTurboSpeed)
	return c
}

// Start boots the title at path and runs it until stopped, shut down by the
// engine, or aborted after an error. It blocks for the whole session.
func (c *Controller) Start(ctx context.Context, path string) types.Status {
	logger := log.WithFunc("session.Start")
	if path == "" {
		logger.Warnf(ctx, "empty title path")
		return types.StatusErrorLoader
	}

	// Tear down whatever is running; the lock below waits for it to finish.
	c.Stop()
	if err := c.locker.Lock(ctx); err != nil {
		logger.Errorf(ctx, err, "acquire session lock")
		return types.StatusErrorNotInitialized
	}
	defer func() {
		if err := c.locker.Unlock(ctx); err != nil {
			logger.Warnf(ctx, "release session lock: %v", err)
		}
	}()

	status := c.run(ctx, path)
	logger.Infof(ctx, "session %s exited: %s", c.SessionID(), status)
	if status != types.StatusSuccess && c.cb.OnExit != nil {
		c.cb.OnExit(status)
	}
	return status
}

func (c *Controller) run(ctx context.Context, path string) types.Status {
	logger := log.WithFunc("session.run")
	id := utils.NewSessionID()
	c.sessionID.Store(&id)

	c.startMu.Lock()
	c.stopPending = false
	changed := c.swapState(types.SessionStarting)
	c.startMu.Unlock()
	c.notifyState(types.SessionStarting, changed)

	conf, err := c.store.Reload(ctx)
	if err != nil {
		logger.Warnf(ctx, "reload settings: %v, using last known", err)
		conf = c.store.Current()
	}
	logSettings(ctx, id, path, conf)
	c.surface.SetLayout(engine.Layout{
		Portrait: conf.PortraitMode,
		Swap:     conf.SwapScreens,
		Upright:  c.surface.Layout().Upright,
	})

	win, api, err := c.windows.Create(ctx, conf.GraphicsAPI, c.surface.Surface(), c.drivers.Current())
	if err != nil {
		logger.Errorf(ctx, err, "create window")
		c.setState(types.SessionIdle)
		return types.StatusErrorNotInitialized
	}
	logger.Infof(ctx, "session %s using %s renderer", id, api)
	c.surface.SetWindow(win)
	defer c.teardown(ctx, win)

	c.eng.ApplySettings(conf)
	c.applySpeed()
	caps := c.caps
	if pad, ok := c.input.(input.Pad); ok && caps.Pad == nil {
		caps.Pad = pad
	}
	c.eng.RegisterCapabilities(caps)
	if err := c.input.Init(ctx); err != nil {
		logger.Errorf(ctx, err, "init input")
		return types.StatusErrorNotInitialized
	}

	win.MakeCurrent()
	if status := c.eng.Load(ctx, win, path); status != types.StatusSuccess {
		logger.Warnf(ctx, "load %s: %s (%s)", path, status, c.eng.StatusDetails())
		return status
	}

	c.startMu.Lock()
	c.stopRequested.Store(c.stopPending)
	c.pauseRequested.Store(false)
	c.stopPending = false
	changed = c.swapState(types.SessionRunning)
	c.startMu.Unlock()
	c.drainWake()
	c.notifyState(types.SessionRunning, changed)

	c.progress(types.LoadStagePrepare, 0, 0)
	c.eng.LoadDiskResources(&c.stopRequested, c.progress)
	c.progress(types.LoadStageComplete, 0, 0)

	return c.loop(ctx, conf.PausePollInterval())
}

func (c *Controller) loop(ctx context.Context, pollInterval time.Duration) types.Status {
	for !c.stopRequested.Load() {
		if c.pauseRequested.Load() {
			c.waitPaused(pollInterval)
			continue
		}
		status := c.eng.RunLoop()
		switch status {
		case types.StatusSuccess:
			continue
		case types.StatusShutdownRequested:
			return status
		}

		c.input.DisableSensors()
		if !c.bridge.Escalate(ctx, status, c.eng.StatusDetails()) {
			if status == types.StatusErrorArticDisconnected {
				return types.StatusShutdownRequested
			}
			return status
		}
		c.input.EnableSensors()
	}
	return types.StatusSuccess
}

// waitPaused mutes audio and blocks until resumed or stopped, draining
// window events while it waits.
func (c *Controller) waitPaused(pollInterval time.Duration) {
	c.setState(types.SessionPaused)
	c.setVolume(0)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for c.pauseRequested.Load() && !c.stopRequested.Load() {
		select {
		case <-c.wake:
		case <-ticker.C:
			if w := c.surface.Window(); w != nil {
				w.PollEvents()
			}
		}
	}
	// Re-read: ReloadSettings may have changed the volume mid-pause.
	c.setVolume(c.store.Current().Volume)
	if !c.stopRequested.Load() {
		c.setState(types.SessionRunning)
	}
}

// teardown runs once per session on every exit path after the window exists.
func (c *Controller) teardown(ctx context.Context, win window.Window) {
	c.setState(types.SessionShuttingDown)
	c.stopRequested.Store(true)
	c.pauseRequested.Store(false)

	win.DoneCurrent()
	c.eng.Shutdown()
	c.input.Shutdown()
	c.surface.SetWindow(nil)

	c.setState(types.SessionIdle)
	log.WithFunc("session.teardown").Infof(ctx, "session %s torn down", c.SessionID())
}

// Pause suspends the loop. No-op when paused or stopped.
func (c *Controller) Pause() {
	if c.stopRequested.Load() || !c.pauseRequested.CompareAndSwap(false, true) {
		return
	}
	c.input.DisableSensors()
}

// Resume continues a paused loop. No-op when running or stopped.
func (c *Controller) Resume() {
	if c.stopRequested.Load() || !c.pauseRequested.CompareAndSwap(true, false) {
		return
	}
	c.signalWake()
	c.input.EnableSensors()
}

// Stop ends the session at the next step boundary. No-op when stopped.
func (c *Controller) Stop() {
	c.startMu.Lock()
	if types.SessionState(c.state.Load()) == types.SessionStarting {
		c.stopPending = true
		c.startMu.Unlock()
		return
	}
	c.startMu.Unlock()

	if !c.stopRequested.CompareAndSwap(false, true) {
		return
	}
	c.pauseRequested.Store(false)
	c.surface.StopPresenting()
	c.signalWake()
}

// IsRunning reports whether a session is live and not stopped.
func (c *Controller) IsRunning() bool { return !c.stopRequested.Load() }

// IsPaused reports whether a pause is requested.
func (c *Controller) IsPaused() bool { return c.pauseRequested.Load() }

// State returns the lifecycle state.
func (c *Controller) State() types.SessionState { return types.SessionState(c.state.Load()) }

// SessionID identifies the current or last session, empty before the first Start.
func (c *Controller) SessionID() string {
	if id := c.sessionID.Load(); id != nil {
		return *id
	}
	return ""
}

func (c *Controller) setState(s types.SessionState) {
	c.notifyState(s, c.swapState(s))
}

// swapState records s and reports whether it differs from the previous state.
func (c *Controller) swapState(s types.SessionState) bool {
	return types.SessionState(c.state.Swap(int32(s))) != s
}

// notifyState must not be called with startMu held: the callback may Stop.
func (c *Controller) notifyState(s types.SessionState, changed bool) {
	if changed && c.cb.OnStateChange != nil {
		c.cb.OnStateChange(s)
	}
}

func (c *Controller) setVolume(v float32) {
	c.store.SetVolume(v)
	c.eng.SetVolume(v)
}

func (c *Controller) signalWake() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *Controller) drainWake() {
	select {
	case <-c.wake:
	default:
	}
}

func (c *Controller) progress(stage types.LoadStage, progress, total int) {
	if c.cb.OnDiskCacheProgress != nil {
		c.cb.OnDiskCacheProgress(stage, progress, total)
	}
}

// GetPerfStats returns and resets the engine counters, zero when powered off.
func (c *Controller) GetPerfStats() types.PerfSnapshot {
	if !c.eng.IsPoweredOn() {
		return types.PerfSnapshot{}
	}
	return c.eng.GetAndResetPerfStats()
}

// GetRunningTitleID returns the program id of the running title, 0 when none.
func (c *Controller) GetRunningTitleID() uint64 {
	if !c.eng.IsPoweredOn() {
		return 0
	}
	loader := c.eng.AppLoader()
	if loader == nil {
		return 0
	}
	id, err := loader.ReadProgramID()
	if err != nil {
		return 0
	}
	return id
}

// ReloadSettings re-reads the settings store and applies it to the engine
// outside of Start.
func (c *Controller) ReloadSettings(ctx context.Context) error {
	conf, err := c.store.Reload(ctx)
	if err != nil {
		return err
	}
	c.eng.ApplySettings(conf)
	if c.State() == types.SessionPaused {
		c.setVolume(0)
	}
	c.surface.SetLayout(engine.Layout{
		Portrait: conf.PortraitMode,
		Swap:     conf.SwapScreens,
		Upright:  c.surface.Layout().Upright,
	})
	return nil
}

// SetButton forwards a pad button event. It returns ErrNotRunning when no
// session owns the input devices.
func (c *Controller) SetButton(b input.Button, pressed bool) error {
	pad, ok := c.input.(input.Gamepad)
	if !ok {
		return ErrNoGamepad
	}
	if !c.IsRunning() || !pad.SetButton(b, pressed) {
		return ErrNotRunning
	}
	return nil
}

// ToggleTurbo switches between normal speed and the turbo speed limit.
func (c *Controller) ToggleTurbo(enabled bool) {
	c.turbo.Store(enabled)
	c.applySpeed()
}

// TurboEnabled reports whether turbo is on.
func (c *Controller) TurboEnabled() bool { return c.turbo.Load() }

// SetTurboSpeed sets the turbo speed limit in percent of real time. It takes
// effect immediately when turbo is on.
func (c *Controller) SetTurboSpeed(percent int) error {
	if percent <= 0 {
		return ErrInvalidSpeed
	}
	c.turboSpeed.Store(int32(percent)) //nolint:gosec
	c.applySpeed()
	return nil
}

// TurboSpeed returns the turbo speed limit in percent.
func (c *Controller) TurboSpeed() int { return int(c.turboSpeed.Load()) }

func (c *Controller) applySpeed() {
	speed := engine.NormalSpeed
	if c.turbo.Load() {
		speed = c.TurboSpeed()
	}
	c.eng.SetSpeedLimit(speed)
}

// SaveStates lists the save slots of the running title. Empty when nothing
// is powered on or the title id is unknown.
func (c *Controller) SaveStates(ctx context.Context) []types.SaveState {
	if !c.eng.IsPoweredOn() {
		return []types.SaveState{}
	}
	loader := c.eng.AppLoader()
	if loader == nil {
		return []types.SaveState{}
	}
	id, err := loader.ReadProgramID()
	if err != nil {
		log.WithFunc("session.SaveStates").Warnf(ctx, "read program id: %v", err)
		return []types.SaveState{}
	}
	return savestate.List(ctx, c.store.Current().SaveStateDir(), id, c.eng.MovieID())
}

// RequestSave asks the loop to save slot at its next safe point.
func (c *Controller) RequestSave(slot int) error { return c.request(types.SignalSave, slot) }

// RequestLoad asks the loop to load slot at its next safe point.
func (c *Controller) RequestLoad(slot int) error { return c.request(types.SignalLoad, slot) }

func (c *Controller) request(sig types.Signal, slot int) error {
	if slot < savestate.MinSlot || slot > savestate.MaxSlot {
		return savestate.ErrInvalidSlot
	}
	if !c.IsRunning() {
		return ErrNotRunning
	}
	c.eng.SendSignal(sig, slot)
	return nil
}

// LoadDriver selects the graphics driver used by the next session.
func (c *Controller) LoadDriver(ctx context.Context, req driver.Request) *driver.Handle {
	return c.drivers.Load(ctx, req)
}

// SupportsCustomDriverLoading reports whether drivers are swappable here.
func (c *Controller) SupportsCustomDriverLoading() bool { return c.drivers.Supported() }

// Surface returns the frame and surface coordinator.
func (c *Controller) Surface() *surface.Coordinator { return c.surface }

// OnSurfaceChanged forwards a new or resized presentation surface.
func (c *Controller) OnSurfaceChanged(s *window.Surface) { c.surface.OnSurfaceChanged(s) }

// OnSurfaceDestroyed drops the presentation surface.
func (c *Controller) OnSurfaceDestroyed() { c.surface.OnSurfaceDestroyed() }

// PresentFrame presents one frame while running and not paused.
func (c *Controller) PresentFrame() { c.surface.PresentFrame() }

func logSettings(ctx context.Context, id, path string, conf *config.Config) {
	logger := log.WithFunc("session.settings")
	logger.Infof(ctx, "session %s title: %s", id, path)
	logger.Infof(ctx, "graphics_api: %s, renderer_debug: %t", conf.GraphicsAPI, conf.RendererDebug)
	logger.Infof(ctx, "volume: %.2f, portrait_mode: %t, swap_screens: %t", conf.Volume, conf.PortraitMode, conf.SwapScreens)
	if conf.Driver.CustomDriverName != "" {
		logger.Infof(ctx, "custom driver: %s/%s", conf.Driver.CustomDriverDir, conf.Driver.CustomDriverName)
	}
}
