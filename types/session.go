package types

// SessionState is the lifecycle state of the single emulation session.
type SessionState int32

const (
	SessionIdle SessionState = iota
	SessionStarting
	SessionRunning
	SessionPaused
	SessionShuttingDown
)

func (s SessionState) String() string {
	switch s {
	case SessionIdle:
		return "idle"
	case SessionStarting:
		return "starting"
	case SessionRunning:
		return "running"
	case SessionPaused:
		return "paused"
	case SessionShuttingDown:
		return "shutting-down"
	}
	return "unknown"
}

// LoadStage is a disk-cache preparation stage reported through the progress callback.
type LoadStage int

const (
	LoadStagePrepare LoadStage = iota
	LoadStagePreload
	LoadStageDecompile
	LoadStageBuild
	LoadStageComplete
)

func (s LoadStage) String() string {
	switch s {
	case LoadStagePrepare:
		return "prepare"
	case LoadStagePreload:
		return "preload"
	case LoadStageDecompile:
		return "decompile"
	case LoadStageBuild:
		return "build"
	case LoadStageComplete:
		return "complete"
	}
	return "unknown"
}

// ProgressFunc receives disk-cache preparation progress.
type ProgressFunc func(stage LoadStage, progress, max int)

// Signal is an asynchronous request consumed by the run loop at its next safe point.
type Signal int

const (
	SignalNone Signal = iota
	SignalSave
	SignalLoad
)

func (s Signal) String() string {
	switch s {
	case SignalSave:
		return "save"
	case SignalLoad:
		return "load"
	}
	return "none"
}

// PerfSnapshot is a copy of the engine's performance counters taken at query
// time. It is zero when no session is powered on.
type PerfSnapshot struct {
	SystemFPS      float64 `json:"system_fps"`
	GameFPS        float64 `json:"game_fps"`
	FrameTimeMs    float64 `json:"frame_time_ms"`
	EmulationSpeed float64 `json:"emulation_speed"`
}

// SaveState describes one persisted save slot.
type SaveState struct {
	Slot int `json:"slot"`
	// Time is the creation time in epoch seconds, read from the file header.
	Time uint64 `json:"time"`
}

// GraphicsAPI selects the rendering backend.
type GraphicsAPI string

const (
	GraphicsSoftware GraphicsAPI = "software"
	GraphicsOpenGL   GraphicsAPI = "opengl"
	GraphicsVulkan   GraphicsAPI = "vulkan"
)
