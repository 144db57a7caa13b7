package driver

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/projecteru2/core/log"
)

// Loader owns the process-wide driver handle. A subsequent Load replaces and
// closes the previous handle.
type Loader struct {
	opener    Opener
	supported func() bool
	system    string

	mu      sync.Mutex
	current *Handle
}

// Option configures a Loader.
type Option func(*Loader)

// WithOpener replaces the platform opener.
func WithOpener(o Opener) Option { return func(l *Loader) { l.opener = o } }

// WithCapability replaces the platform capability probe.
func WithCapability(fn func() bool) Option { return func(l *Loader) { l.supported = fn } }

// WithSystemDriver overrides the system driver library name.
func WithSystemDriver(name string) Option { return func(l *Loader) { l.system = name } }

// New returns a Loader using the platform strategy.
func New(opts ...Option) *Loader {
	l := &Loader{
		opener:    platformOpener(),
		supported: Supported,
		system:    SystemDriver,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Supported reports whether this loader can swap drivers.
func (l *Loader) Supported() bool { return l.supported() }

// Load resolves a driver for req: the custom driver if one is configured and
// opens, otherwise the system driver. Returns nil where swappable drivers are
// unsupported.
func (l *Loader) Load(ctx context.Context, req Request) *Handle {
	logger := log.WithFunc("driver.Load")
	if !l.supported() {
		logger.Debugf(ctx, "custom driver loading unsupported, using platform default")
		return nil
	}

	flags := req.Flags()
	redirect := ""
	if flags.Has(FlagFileRedirect) {
		redirect = req.FileRedirectDir
	}

	var h *Handle
	if req.CustomDriverName != "" {
		h = l.openCustom(ctx, req, flags, redirect)
	}
	if h == nil {
		sysFlags := flags &^ FlagCustom
		lib, err := l.opener.Open(l.system)
		h = &Handle{
			Path:        l.system,
			Flags:       sysFlags,
			HookLibDir:  req.HookLibDir,
			RedirectDir: redirect,
			Lib:         lib,
			Err:         err,
		}
		if err != nil {
			logger.Warnf(ctx, "open system driver %s: %v", l.system, err)
		} else {
			logger.Infof(ctx, "loaded system driver %s (flags %s)", l.system, sysFlags)
		}
	}

	l.replace(ctx, h)
	return h
}

func (l *Loader) openCustom(ctx context.Context, req Request, flags Flags, redirect string) *Handle {
	logger := log.WithFunc("driver.openCustom")
	path := filepath.Join(req.CustomDriverDir, req.CustomDriverName)
	if err := verifyDigest(path, req.CustomDriverDigest); err != nil {
		logger.Warnf(ctx, "custom driver %s rejected: %v, falling back to system driver", path, err)
		return nil
	}
	lib, err := l.opener.Open(path)
	if err != nil {
		logger.Warnf(ctx, "open custom driver %s: %v, falling back to system driver", path, err)
		return nil
	}
	customFlags := flags | FlagCustom
	logger.Infof(ctx, "loaded custom driver %s (flags %s)", path, customFlags)
	return &Handle{
		Path:        path,
		Flags:       customFlags,
		Custom:      true,
		HookLibDir:  req.HookLibDir,
		RedirectDir: redirect,
		Lib:         lib,
	}
}

// Current returns the handle of the last Load, or nil.
func (l *Loader) Current() *Handle {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

func (l *Loader) replace(ctx context.Context, h *Handle) {
	l.mu.Lock()
	prev := l.current
	l.current = h
	l.mu.Unlock()
	if prev.Loaded() && (h == nil || prev.Lib != h.Lib) {
		if err := l.opener.Close(prev.Lib); err != nil {
			log.WithFunc("driver.replace").Warnf(ctx, "close %s: %v", prev.Path, err)
		}
	}
}
