package config

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/projecteru2/core/log"
	"github.com/spf13/viper"
)

// EnvPrefix is the environment variable prefix for every setting.
const EnvPrefix = "EMUHOST"

// Store is the settings store. Reload re-reads the config file and the
// environment so the latest values apply even if they changed since process
// start. The effective audio volume is kept separately so the run loop can
// override it (mute while paused) without touching the persisted value.
type Store struct {
	v *viper.Viper

	mu      sync.RWMutex
	current *Config

	volume atomic.Uint32 // math.Float32bits
}

// NewStore wraps v. Callers bind flags and set the config file on v before
// the first Reload.
func NewStore(v *viper.Viper) *Store {
	if v == nil {
		v = viper.New()
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	registerDefaults(v, DefaultConfig())

	s := &Store{v: v}
	def := DefaultConfig()
	def.Normalize()
	s.current = def
	s.SetVolume(def.Volume)
	return s
}

// Reload re-reads the settings and returns the fresh configuration.
func (s *Store) Reload(ctx context.Context) (*Config, error) {
	if s.v.ConfigFileUsed() != "" {
		if err := s.v.ReadInConfig(); err != nil {
			log.WithFunc("config.Reload").Warnf(ctx, "read config %s: %v", s.v.ConfigFileUsed(), err)
		}
	}
	conf := DefaultConfig()
	if err := s.v.Unmarshal(conf); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	conf.Normalize()

	s.mu.Lock()
	s.current = conf
	s.mu.Unlock()
	s.SetVolume(conf.Volume)
	return s.Current(), nil
}

// Current returns a copy of the last loaded configuration.
func (s *Store) Current() *Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := *s.current
	return &c
}

// Volume returns the effective audio volume.
func (s *Store) Volume() float32 {
	return math.Float32frombits(s.volume.Load())
}

// SetVolume overrides the effective audio volume.
func (s *Store) SetVolume(v float32) {
	s.volume.Store(math.Float32bits(v))
}

// registerDefaults makes every key known to viper so AutomaticEnv can
// override it during Unmarshal.
func registerDefaults(v *viper.Viper, c *Config) {
	v.SetDefault("root_dir", c.RootDir)
	v.SetDefault("run_dir", c.RunDir)
	v.SetDefault("log_dir", c.LogDir)
	v.SetDefault("graphics_api", string(c.GraphicsAPI))
	v.SetDefault("volume", c.Volume)
	v.SetDefault("renderer_debug", c.RendererDebug)
	v.SetDefault("portrait_mode", c.PortraitMode)
	v.SetDefault("swap_screens", c.SwapScreens)
	v.SetDefault("pause_poll_interval_ms", c.PausePollIntervalMS)
	v.SetDefault("driver.hook_lib_dir", c.Driver.HookLibDir)
	v.SetDefault("driver.custom_driver_dir", c.Driver.CustomDriverDir)
	v.SetDefault("driver.custom_driver_name", c.Driver.CustomDriverName)
	v.SetDefault("driver.custom_driver_digest", c.Driver.CustomDriverDigest)
	v.SetDefault("driver.file_redirect_dir", c.Driver.FileRedirectDir)
	v.SetDefault("log.level", c.Log.Level)
}
