package session

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/cocoonstack/emuhost/config"
	"github.com/cocoonstack/emuhost/driver"
	"github.com/cocoonstack/emuhost/engine"
	"github.com/cocoonstack/emuhost/types"
	"github.com/cocoonstack/emuhost/window"
	"github.com/cocoonstack/emuhost/window/headless"
)

const testProgramID = 0x0004000000030800

type signalCall struct {
	sig  types.Signal
	slot int
}

// fakeEngine is a scripted engine.Engine.
type fakeEngine struct {
	loadStatus types.Status
	// loadHook runs inside Load before it returns.
	loadHook func()
	// step decides the result of RunLoop call n (1-based).
	step func(n int32) types.Status

	powered   atomic.Bool
	active    atomic.Int32
	overlap   atomic.Bool
	loads     atomic.Int32
	runs      atomic.Int32
	shutdowns atomic.Int32
	capsCalls atomic.Int32
	surfaces  atomic.Int32
	speed     atomic.Int32

	mu      sync.Mutex
	conf    *config.Config
	caps    engine.Capabilities
	signals []signalCall
	layouts []engine.Layout
	volumes []float32
}

var _ engine.Engine = (*fakeEngine)(nil)

func (e *fakeEngine) ApplySettings(conf *config.Config) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.conf = conf
	e.volumes = append(e.volumes, conf.Volume)
}

func (e *fakeEngine) appliedConfig() *config.Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.conf
}

func (e *fakeEngine) RegisterCapabilities(caps engine.Capabilities) {
	e.capsCalls.Add(1)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.caps = caps
}

func (e *fakeEngine) registeredCaps() engine.Capabilities {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.caps
}

func (e *fakeEngine) Load(context.Context, window.Window, string) types.Status {
	e.loads.Add(1)
	if e.active.Add(1) > 1 {
		e.overlap.Store(true)
	}
	if e.loadHook != nil {
		e.loadHook()
	}
	if e.loadStatus == types.StatusSuccess {
		e.powered.Store(true)
	}
	return e.loadStatus
}

func (e *fakeEngine) LoadDiskResources(stop *atomic.Bool, progress types.ProgressFunc) {
	for i := 0; i <= 2; i++ {
		if stop.Load() {
			return
		}
		progress(types.LoadStageBuild, i, 2)
	}
}

func (e *fakeEngine) RunLoop() types.Status {
	n := e.runs.Add(1)
	time.Sleep(time.Millisecond)
	if e.step != nil {
		return e.step(n)
	}
	return types.StatusSuccess
}

func (e *fakeEngine) StatusDetails() string { return "fake details" }

func (e *fakeEngine) Shutdown() {
	e.shutdowns.Add(1)
	e.active.Add(-1)
	e.powered.Store(false)
}

func (e *fakeEngine) IsPoweredOn() bool { return e.powered.Load() }

type fakeLoader struct{}

func (fakeLoader) ReadProgramID() (uint64, error) { return testProgramID, nil }

func (e *fakeEngine) AppLoader() engine.AppLoader {
	if !e.powered.Load() {
		return nil
	}
	return fakeLoader{}
}

func (e *fakeEngine) MovieID() uint64 { return 0 }

func (e *fakeEngine) GetAndResetPerfStats() types.PerfSnapshot {
	return types.PerfSnapshot{SystemFPS: 60, GameFPS: 30, FrameTimeMs: 16, EmulationSpeed: 1}
}

func (e *fakeEngine) SendSignal(sig types.Signal, slot int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.signals = append(e.signals, signalCall{sig: sig, slot: slot})
}

func (e *fakeEngine) sentSignals() []signalCall {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]signalCall(nil), e.signals...)
}

func (e *fakeEngine) SetVolume(v float32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.volumes = append(e.volumes, v)
}

// volume returns the last gain the engine saw.
func (e *fakeEngine) volume() float32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.volumes) == 0 {
		return -1
	}
	return e.volumes[len(e.volumes)-1]
}

func (e *fakeEngine) SetSpeedLimit(percent int) { e.speed.Store(int32(percent)) } //nolint:gosec

func (e *fakeEngine) NotifySurfaceChanged() { e.surfaces.Add(1) }

func (e *fakeEngine) UpdateFramebufferLayout(l engine.Layout) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.layouts = append(e.layouts, l)
}

// fakeInput records calls in order.
type fakeInput struct {
	mu    sync.Mutex
	calls []string
}

func (in *fakeInput) record(call string) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.calls = append(in.calls, call)
}

func (in *fakeInput) Init(context.Context) error { in.record("init"); return nil }
func (in *fakeInput) Shutdown() { in.record("shutdown") }
func (in *fakeInput) EnableSensors() { in.record("enable") }
func (in *fakeInput) DisableSensors() { in.record("disable") }

func (in *fakeInput) count(call string) int {
	in.mu.Lock()
	defer in.mu.Unlock()
	n := 0
	for _, c := range in.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (in *fakeInput) snapshot() []string {
	in.mu.Lock()
	defer in.mu.Unlock()
	return append([]string(nil), in.calls...)
}

// windowLog captures every window the registry creates.
type windowLog struct {
	mu      sync.Mutex
	windows []*headless.Window
}

func (l *windowLog) factory(s *window.Surface, _ *driver.Handle) (window.Window, error) {
	w := headless.New(s)
	l.mu.Lock()
	l.windows = append(l.windows, w)
	l.mu.Unlock()
	return w, nil
}

func (l *windowLog) created() []*headless.Window {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*headless.Window(nil), l.windows...)
}

type harness struct {
	c       *Controller
	eng     *fakeEngine
	in      *fakeInput
	store   *config.Store
	v       *viper.Viper
	windows *windowLog
}

func newStore(t *testing.T) (*config.Store, *viper.Viper) {
	t.Helper()
	v := viper.New()
	v.Set("root_dir", t.TempDir())
	v.Set("pause_poll_interval_ms", 5)
	return config.NewStore(v), v
}

func newHarness(t *testing.T, eng *fakeEngine, cb Callbacks) *harness {
	t.Helper()
	store, v := newStore(t)
	wl := &windowLog{}
	reg := window.NewRegistry()
	reg.Register(types.GraphicsVulkan, wl.factory)
	in := &fakeInput{}
	drv := driver.New(driver.WithCapability(func() bool { return false }))
	c := New(store, eng, reg, WithInput(in), WithCallbacks(cb), WithDriverLoader(drv))
	return &harness{c: c, eng: eng, in: in, store: store, v: v, windows: wl}
}

// startAsync runs Start on its own goroutine and returns its result channel.
func (h *harness) startAsync(path string) <-chan types.Status {
	done := make(chan types.Status, 1)
	go func() { done <- h.c.Start(context.Background(), path) }()
	return done
}

func (h *harness) waitRunning(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool {
		return h.c.IsRunning() && h.eng.runs.Load() > 0
	}, 5*time.Second, time.Millisecond)
}

func waitStatus(t *testing.T, done <-chan types.Status) types.Status {
	t.Helper()
	select {
	case s := <-done:
		return s
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return")
		return types.StatusErrorUnknown
	}
}
