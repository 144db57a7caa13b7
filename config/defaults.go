package config

import (
	"os"
	"path/filepath"
	"time"

	coretypes "github.com/projecteru2/core/types"

	"github.com/cocoonstack/emuhost/types"
	"github.com/cocoonstack/emuhost/utils"
)

const defaultPausePollInterval = 100 * time.Millisecond

// DefaultConfig returns a Config with built-in defaults.
func DefaultConfig() *Config {
	root := defaultRootDir()
	return &Config{
		RootDir:             root,
		GraphicsAPI:         types.GraphicsVulkan,
		Volume:              1,
		PausePollIntervalMS: int(defaultPausePollInterval / time.Millisecond),
		Log: coretypes.ServerLogConfig{
			Level: "info",
		},
	}
}

// Normalize fills derived defaults after unmarshalling.
func (c *Config) Normalize() {
	if c.RootDir == "" {
		c.RootDir = defaultRootDir()
	}
	if c.RunDir == "" {
		c.RunDir = filepath.Join(c.RootDir, "run")
	}
	if c.LogDir == "" {
		c.LogDir = filepath.Join(c.RootDir, "log")
	}
	if c.GraphicsAPI == "" {
		c.GraphicsAPI = types.GraphicsVulkan
	}
	c.Volume = min(max(c.Volume, 0), 1)
	if c.PausePollIntervalMS <= 0 {
		c.PausePollIntervalMS = int(defaultPausePollInterval / time.Millisecond)
	}
}

// EnsureDirs creates all static directories the host writes into.
func (c *Config) EnsureDirs() error {
	return utils.EnsureDirs(
		c.RunDir,
		c.SaveStateDir(),
		c.TitleCacheDir(),
		c.ShaderCacheDir(),
	)
}

func defaultRootDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "emuhost")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "emuhost")
	}
	return filepath.Join(home, ".local", "share", "emuhost")
}
