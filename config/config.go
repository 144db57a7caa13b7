package config

import (
	"path/filepath"
	"time"

	coretypes "github.com/projecteru2/core/types"

	"github.com/cocoonstack/emuhost/types"
)

// Config holds global EmuHost configuration. It is the in-memory copy of the
// settings store; session start always re-reads it so edits made by the host
// UI since process start take effect on the next boot.
type Config struct {
	// RootDir is the base directory for persistent data (save states, title cache).
	// Env: EMUHOST_ROOT_DIR. Default: ~/.local/share/emuhost.
	RootDir string `json:"root_dir" mapstructure:"root_dir"`
	// RunDir holds runtime state such as the cross-process session lock.
	// Env: EMUHOST_RUN_DIR. Default: {RootDir}/run.
	RunDir string `json:"run_dir" mapstructure:"run_dir"`
	// LogDir is the base directory for log files.
	// Env: EMUHOST_LOG_DIR. Default: {RootDir}/log.
	LogDir string `json:"log_dir" mapstructure:"log_dir"`

	// GraphicsAPI selects the rendering backend. Unknown values fall back to
	// the first registered backend.
	GraphicsAPI types.GraphicsAPI `json:"graphics_api" mapstructure:"graphics_api"`
	// Volume is the audio output gain in [0, 1].
	Volume float32 `json:"volume" mapstructure:"volume"`
	// RendererDebug enables renderer validation and driver file redirection.
	RendererDebug bool `json:"renderer_debug" mapstructure:"renderer_debug"`
	// PortraitMode and SwapScreens control the framebuffer layout.
	PortraitMode bool `json:"portrait_mode" mapstructure:"portrait_mode"`
	SwapScreens  bool `json:"swap_screens" mapstructure:"swap_screens"`

	// Driver configures the alternate graphics driver loader.
	Driver DriverConfig `json:"driver" mapstructure:"driver"`

	// PausePollIntervalMS is how often a paused run loop drains window events.
	// Default: 100.
	PausePollIntervalMS int `json:"pause_poll_interval_ms" mapstructure:"pause_poll_interval_ms"`

	// Log configuration, uses eru core's ServerLogConfig.
	Log coretypes.ServerLogConfig `json:"log" mapstructure:"log"`
}

// DriverConfig is the persisted part of a driver load request.
type DriverConfig struct {
	HookLibDir       string `json:"hook_lib_dir" mapstructure:"hook_lib_dir"`
	CustomDriverDir  string `json:"custom_driver_dir" mapstructure:"custom_driver_dir"`
	CustomDriverName string `json:"custom_driver_name" mapstructure:"custom_driver_name"`
	// CustomDriverDigest pins the custom driver library ("sha256:..."). A
	// mismatch makes the loader fall back to the system driver.
	CustomDriverDigest string `json:"custom_driver_digest" mapstructure:"custom_driver_digest"`
	FileRedirectDir    string `json:"file_redirect_dir" mapstructure:"file_redirect_dir"`
}

// PausePollInterval returns the paused-loop event drain interval.
func (c *Config) PausePollInterval() time.Duration {
	if c.PausePollIntervalMS <= 0 {
		return defaultPausePollInterval
	}
	return time.Duration(c.PausePollIntervalMS) * time.Millisecond
}

// Derived path helpers.

func (c *Config) SaveStateDir() string  { return filepath.Join(c.RootDir, "states") }
func (c *Config) TitleCacheDir() string { return filepath.Join(c.RootDir, "cache", "titles") }
func (c *Config) ShaderCacheDir() string {
	return filepath.Join(c.RootDir, "cache", "shaders")
}

// SessionLock is the cross-process single-instance lock file.
func (c *Config) SessionLock() string { return filepath.Join(c.RunDir, "session.lock") }
