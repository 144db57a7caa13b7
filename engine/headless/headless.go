// Package headless is a reference engine that emulates nothing. It paces
// frames at the current speed limit, keeps perf counters, samples the pad,
// walks the shader cache during disk-resource preparation, and services
// save/load signals with real slot files. The CLI host and the session
// tests run on it.
package headless

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/projecteru2/core/log"

	"github.com/cocoonstack/emuhost/config"
	"github.com/cocoonstack/emuhost/engine"
	"github.com/cocoonstack/emuhost/input"
	"github.com/cocoonstack/emuhost/savestate"
	"github.com/cocoonstack/emuhost/title"
	"github.com/cocoonstack/emuhost/types"
	"github.com/cocoonstack/emuhost/version"
	"github.com/cocoonstack/emuhost/window"
)

// TargetFPS is the emulated display refresh rate.
const TargetFPS = 60

var _ engine.Engine = (*Engine)(nil)

type signalReq struct {
	sig  types.Signal
	slot int
}

// Engine is a headless engine.Engine.
type Engine struct {
	frameInterval time.Duration
	frameLimit    uint64
	movieID       uint64
	now           func() time.Time

	poweredOn atomic.Bool
	volume    atomic.Uint32 // math.Float32bits
	speed     atomic.Int32

	mu        sync.Mutex
	conf      *config.Config
	caps      engine.Capabilities
	capsSet   int
	win       window.Window
	programID uint64
	details   string
	layout    engine.Layout
	pending   []signalReq
	frames     uint64
	heldFrames uint64
	lastFrame  time.Time

	statFrames uint64
	statStart  time.Time

	surfaceChanges atomic.Int64
}

// Option configures an Engine.
type Option func(*Engine)

// WithFrameInterval sets the pacing interval. Zero runs unpaced.
func WithFrameInterval(d time.Duration) Option { return func(e *Engine) { e.frameInterval = d } }

// WithFrameLimit requests shutdown after n frames. Zero runs until stopped.
func WithFrameLimit(n uint64) Option { return func(e *Engine) { e.frameLimit = n } }

// WithMovieID scopes save slots to an input recording.
func WithMovieID(id uint64) Option { return func(e *Engine) { e.movieID = id } }

// New returns an Engine paced at TargetFPS.
func New(opts ...Option) *Engine {
	e := &Engine{
		frameInterval: time.Second / TargetFPS,
		now:           time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	e.speed.Store(engine.NormalSpeed)
	e.SetVolume(1)
	return e
}

func (e *Engine) ApplySettings(conf *config.Config) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.conf = conf
	e.layout = engine.Layout{Portrait: conf.PortraitMode, Swap: conf.SwapScreens}
	e.SetVolume(conf.Volume)
}

func (e *Engine) SetVolume(v float32) { e.volume.Store(math.Float32bits(v)) }

// Volume returns the effective audio gain.
func (e *Engine) Volume() float32 { return math.Float32frombits(e.volume.Load()) }

// SetSpeedLimit scales frame pacing. Non-positive values mean normal speed.
func (e *Engine) SetSpeedLimit(percent int) {
	if percent <= 0 {
		percent = engine.NormalSpeed
	}
	e.speed.Store(int32(percent)) //nolint:gosec
}

// SpeedLimit returns the speed limit in percent.
func (e *Engine) SpeedLimit() int { return int(e.speed.Load()) }

func (e *Engine) RegisterCapabilities(caps engine.Capabilities) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.caps = caps
	e.capsSet++
}

// Load validates path and powers on.
func (e *Engine) Load(ctx context.Context, w window.Window, path string) types.Status {
	logger := log.WithFunc("headless.Load")
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.conf == nil {
		e.details = "settings not applied"
		return types.StatusErrorNotInitialized
	}
	if status, details := probe(path); status != types.StatusSuccess {
		e.details = details
		logger.Warnf(ctx, "load %s: %s", path, details)
		return status
	}
	id, err := title.ProgramID(path)
	if err != nil {
		e.details = err.Error()
		return types.StatusErrorGetLoader
	}

	e.win = w
	e.programID = id
	e.details = ""
	e.pending = nil
	e.frames = 0
	e.heldFrames = 0
	e.lastFrame = time.Time{}
	e.resetStatsLocked()
	e.poweredOn.Store(true)
	logger.Infof(ctx, "powered on %s (program %016X)", filepath.Base(path), id)
	return types.StatusSuccess
}

func probe(path string) (types.Status, string) {
	fi, err := os.Stat(path)
	switch {
	case err != nil:
		return types.StatusErrorLoader, err.Error()
	case fi.IsDir(), fi.Size() == 0:
		return types.StatusErrorLoaderInvalidFormat, path + ": not a title image"
	case strings.EqualFold(filepath.Ext(path), ".gba"):
		return types.StatusErrorLoaderGBATitle, path + ": GBA virtual console titles are not supported"
	case !title.IsROM(path):
		return types.StatusErrorLoaderInvalidFormat, path + ": unknown title format"
	}
	return types.StatusSuccess, ""
}

// LoadDiskResources walks the title's shader cache through the Preload,
// Decompile and Build stages.
func (e *Engine) LoadDiskResources(stop *atomic.Bool, progress types.ProgressFunc) {
	e.mu.Lock()
	dir := ""
	if e.conf != nil {
		dir = filepath.Join(e.conf.ShaderCacheDir(), fmt.Sprintf("%016X", e.programID))
	}
	e.mu.Unlock()

	var entries []os.DirEntry
	if dir != "" {
		entries, _ = os.ReadDir(dir)
	}
	total := len(entries)
	for _, stage := range []types.LoadStage{types.LoadStagePreload, types.LoadStageDecompile, types.LoadStageBuild} {
		for i := 0; i <= total; i++ {
			if stop.Load() {
				return
			}
			if progress != nil {
				progress(stage, i, total)
			}
		}
	}
}

// RunLoop paces one frame and services pending signals.
func (e *Engine) RunLoop() types.Status {
	if !e.poweredOn.Load() {
		return types.StatusErrorNotInitialized
	}
	e.pace()

	e.mu.Lock()
	defer e.mu.Unlock()
	pending := e.pending
	e.pending = nil
	for _, req := range pending {
		if err := e.serviceLocked(req); err != nil {
			e.details = err.Error()
			return types.StatusErrorSavestate
		}
	}
	e.frames++
	e.statFrames++
	if e.padHeldLocked() {
		e.heldFrames++
	}
	if e.frameLimit > 0 && e.frames >= e.frameLimit {
		return types.StatusShutdownRequested
	}
	return types.StatusSuccess
}

func (e *Engine) padHeldLocked() bool {
	if e.caps.Pad == nil {
		return false
	}
	for _, b := range input.Buttons() {
		if e.caps.Pad.Pressed(b) {
			return true
		}
	}
	return false
}

// interval is the frame interval at the current speed limit.
func (e *Engine) interval() time.Duration {
	return e.frameInterval * engine.NormalSpeed / time.Duration(e.speed.Load())
}

func (e *Engine) pace() {
	if e.frameInterval <= 0 {
		return
	}
	e.mu.Lock()
	next := e.lastFrame.Add(e.interval())
	e.mu.Unlock()
	if d := time.Until(next); d > 0 {
		time.Sleep(d)
	}
	e.mu.Lock()
	e.lastFrame = e.now()
	e.mu.Unlock()
}

func (e *Engine) serviceLocked(req signalReq) error {
	dir := e.conf.SaveStateDir()
	switch req.sig {
	case types.SignalSave:
		payload := binary.LittleEndian.AppendUint64(nil, e.frames)
		h := savestate.Header{ProgramID: e.programID, Revision: version.Revision(), Time: uint64(e.now().Unix())} //nolint:gosec
		if err := savestate.Write(dir, h, e.movieID, req.slot, payload); err != nil {
			return fmt.Errorf("save slot %d: %w", req.slot, err)
		}
	case types.SignalLoad:
		_, payload, err := savestate.Read(dir, e.programID, e.movieID, req.slot)
		if err != nil {
			return fmt.Errorf("load slot %d: %w", req.slot, err)
		}
		if len(payload) < 8 { //nolint:mnd
			return fmt.Errorf("load slot %d: truncated payload", req.slot)
		}
		e.frames = binary.LittleEndian.Uint64(payload)
	}
	return nil
}

func (e *Engine) StatusDetails() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.details
}

func (e *Engine) Shutdown() {
	e.poweredOn.Store(false)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.win = nil
	e.pending = nil
}

func (e *Engine) IsPoweredOn() bool { return e.poweredOn.Load() }

type appLoader struct{ id uint64 }

func (l appLoader) ReadProgramID() (uint64, error) { return l.id, nil }

func (e *Engine) AppLoader() engine.AppLoader {
	if !e.poweredOn.Load() {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return appLoader{id: e.programID}
}

func (e *Engine) MovieID() uint64 { return e.movieID }

// GetAndResetPerfStats reports rates over the interval since the last call.
func (e *Engine) GetAndResetPerfStats() types.PerfSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	elapsed := e.now().Sub(e.statStart).Seconds()
	var snap types.PerfSnapshot
	if elapsed > 0 && e.statFrames > 0 {
		fps := float64(e.statFrames) / elapsed
		snap = types.PerfSnapshot{
			SystemFPS:      fps,
			GameFPS:        fps,
			FrameTimeMs:    elapsed * 1000 / float64(e.statFrames), //nolint:mnd
			EmulationSpeed: fps / TargetFPS,
		}
	}
	e.resetStatsLocked()
	return snap
}

func (e *Engine) resetStatsLocked() {
	e.statFrames = 0
	e.statStart = e.now()
}

// SendSignal queues sig for the next RunLoop. Signals sent while powered off
// are dropped.
func (e *Engine) SendSignal(sig types.Signal, slot int) {
	if sig == types.SignalNone || !e.poweredOn.Load() {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pending = append(e.pending, signalReq{sig: sig, slot: slot})
}

func (e *Engine) NotifySurfaceChanged() { e.surfaceChanges.Add(1) }

func (e *Engine) UpdateFramebufferLayout(l engine.Layout) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.layout = l
}

// Frames returns the emulated frame counter.
func (e *Engine) Frames() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.frames
}

// HeldFrames counts frames stepped with at least one pad button held.
func (e *Engine) HeldFrames() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.heldFrames
}

// Layout returns the current framebuffer layout.
func (e *Engine) Layout() engine.Layout {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.layout
}

// SurfaceChanges counts NotifySurfaceChanged calls.
func (e *Engine) SurfaceChanges() int64 { return e.surfaceChanges.Load() }

// CapabilityRegistrations counts RegisterCapabilities calls.
func (e *Engine) CapabilityRegistrations() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.capsSet
}
