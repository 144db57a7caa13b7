// Package driver resolves and opens an alternate graphics driver library.
//
// Swappable drivers only exist on some platforms. The platform files select
// the strategy at build time: a dlopen-backed opener where custom drivers are
// possible, a no-op everywhere else. A custom driver that cannot be opened is
// never fatal; the loader always falls back to the system driver.
package driver

import (
	_ "crypto/sha256" // register sha256 for digest verification
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/opencontainers/go-digest"

	"github.com/cocoonstack/emuhost/config"
)

var (
	ErrUnsupported    = errors.New("custom driver loading not supported on this platform")
	ErrDigestMismatch = errors.New("driver digest mismatch")
)

// Flags is the feature bitset passed to the opener.
type Flags uint32

const (
	FlagCustom Flags = 1 << iota
	FlagFileRedirect
)

// Has reports whether all bits of x are set.
func (f Flags) Has(x Flags) bool { return f&x == x }

func (f Flags) String() string {
	var parts []string
	if f.Has(FlagCustom) {
		parts = append(parts, "custom")
	}
	if f.Has(FlagFileRedirect) {
		parts = append(parts, "file-redirect")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// Request is one immutable load attempt.
type Request struct {
	HookLibDir       string
	CustomDriverDir  string
	CustomDriverName string
	FileRedirectDir  string
	// FileRedirect enables driver file redirection. It only takes effect when
	// FileRedirectDir is also set.
	FileRedirect bool
	// CustomDriverDigest optionally pins the custom driver file.
	CustomDriverDigest string
}

// RequestFromConfig builds a Request from the settings store. Redirection is
// tied to renderer debugging.
func RequestFromConfig(c *config.Config) Request {
	return Request{
		HookLibDir:         c.Driver.HookLibDir,
		CustomDriverDir:    c.Driver.CustomDriverDir,
		CustomDriverName:   c.Driver.CustomDriverName,
		FileRedirectDir:    c.Driver.FileRedirectDir,
		FileRedirect:       c.RendererDebug,
		CustomDriverDigest: c.Driver.CustomDriverDigest,
	}
}

// Flags computes the base feature flags of r, without FlagCustom.
func (r Request) Flags() Flags {
	var f Flags
	if r.FileRedirect && r.FileRedirectDir != "" {
		f |= FlagFileRedirect
	}
	return f
}

// Handle is the outcome of a load attempt. A failed attempt still yields a
// Handle whose Err is set.
type Handle struct {
	Path   string
	Flags  Flags
	Custom bool
	// HookLibDir and RedirectDir are carried for the renderer backend.
	HookLibDir  string
	RedirectDir string

	Lib uintptr
	Err error
}

// Loaded reports whether h holds an open library.
func (h *Handle) Loaded() bool {
	return h != nil && h.Err == nil && h.Lib != 0
}

// Opener opens and closes native libraries.
type Opener interface {
	Open(path string) (uintptr, error)
	Close(lib uintptr) error
}

// verifyDigest checks path against want when want is set.
func verifyDigest(path, want string) error {
	if want == "" {
		return nil
	}
	expected, err := digest.Parse(want)
	if err != nil {
		return fmt.Errorf("parse digest %q: %w", want, err)
	}
	f, err := os.Open(path) //nolint:gosec // user-configured driver path
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck
	got, err := expected.Algorithm().FromReader(f)
	if err != nil {
		return fmt.Errorf("hash %s: %w", path, err)
	}
	if got != expected {
		return fmt.Errorf("%w: %s is %s, want %s", ErrDigestMismatch, path, got, expected)
	}
	return nil
}
