// Package title prepares a title path for the engine: archives are
// extracted into a cache directory and titles without an embedded program
// id get a stable derived one.
package title

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bodgit/sevenzip"
	"github.com/cespare/xxhash/v2"
	"github.com/docker/go-units"
	"github.com/projecteru2/core/log"

	"github.com/cocoonstack/emuhost/utils"
)

// appTitleSpace is the high half of every application program id.
const appTitleSpace uint64 = 0x00040000_00000000

const readyMarker = ".ready"

var (
	ErrNoTitleInArchive = errors.New("archive contains no title")

	// romExts are the extensions the engine accepts.
	romExts = map[string]struct{}{
		".3ds": {}, ".cci": {}, ".cxi": {}, ".3dsx": {}, ".app": {}, ".elf": {}, ".axf": {},
	}
)

// IsArchive reports whether path needs extraction before loading.
func IsArchive(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".7z")
}

// IsROM reports whether path has an engine-loadable extension.
func IsROM(path string) bool {
	_, ok := romExts[strings.ToLower(filepath.Ext(path))]
	return ok
}

// ProgramID derives a program id from the file content. The same bytes
// always map to the same id.
func ProgramID(path string) (uint64, error) {
	f, err := os.Open(path) //nolint:gosec // user-supplied title
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck
	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return 0, fmt.Errorf("hash %s: %w", path, err)
	}
	return appTitleSpace | h.Sum64()&0xFFFFFFFF, nil
}

// Resolver extracts archived titles into a cache directory.
type Resolver struct {
	cacheDir string
}

// NewResolver returns a Resolver caching under cacheDir.
func NewResolver(cacheDir string) *Resolver {
	return &Resolver{cacheDir: cacheDir}
}

// CacheKey names the extraction directory of an archive. It changes when
// the archive is replaced.
func CacheKey(path string, fi os.FileInfo) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return utils.UUIDv5(fmt.Sprintf("%s:%d:%d", abs, fi.Size(), fi.ModTime().UnixNano()))
}

// Resolve returns a loadable path for path. Non-archives are returned as is.
func (r *Resolver) Resolve(ctx context.Context, path string) (string, error) {
	if !IsArchive(path) {
		return path, nil
	}
	fi, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", path, err)
	}
	dir := filepath.Join(r.cacheDir, CacheKey(path, fi))
	logger := log.WithFunc("title.Resolve")

	if name, err := os.ReadFile(filepath.Join(dir, readyMarker)); err == nil { //nolint:gosec
		logger.Infof(ctx, "using cached extraction of %s", path)
		return filepath.Join(dir, string(name)), nil
	}

	if err := utils.EnsureDirs(r.cacheDir); err != nil {
		return "", err
	}
	tmp, err := os.MkdirTemp(r.cacheDir, ".extract-")
	if err != nil {
		return "", fmt.Errorf("create extraction dir: %w", err)
	}
	defer os.RemoveAll(tmp) //nolint:errcheck

	name, size, err := extract(path, tmp)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(tmp, readyMarker), []byte(name), 0o600); err != nil {
		return "", fmt.Errorf("write marker: %w", err)
	}
	if err := os.Rename(tmp, dir); err != nil {
		// Lost a race with a concurrent Resolve of the same archive.
		if _, statErr := os.Stat(filepath.Join(dir, readyMarker)); statErr != nil {
			return "", fmt.Errorf("publish extraction: %w", err)
		}
	}
	logger.Infof(ctx, "extracted %s from %s (%s)", name, path, units.HumanSize(float64(size)))
	return filepath.Join(dir, name), nil
}

// extract writes the first title in archive into dir and returns its base
// name and size.
func extract(archive, dir string) (string, int64, error) {
	r, err := sevenzip.OpenReader(archive)
	if err != nil {
		return "", 0, fmt.Errorf("open archive %s: %w", archive, err)
	}
	defer r.Close() //nolint:errcheck

	for _, f := range r.File {
		if f.FileInfo().IsDir() || !IsROM(f.Name) {
			continue
		}
		name := filepath.Base(f.Name)
		size, err := copyEntry(f, filepath.Join(dir, name))
		if err != nil {
			return "", 0, err
		}
		return name, size, nil
	}
	return "", 0, fmt.Errorf("%s: %w", archive, ErrNoTitleInArchive)
}

func copyEntry(f *sevenzip.File, dst string) (int64, error) {
	rc, err := f.Open()
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer rc.Close() //nolint:errcheck
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600) //nolint:gosec
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", dst, err)
	}
	n, err := io.Copy(out, rc)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return 0, fmt.Errorf("extract %s: %w", f.Name, err)
	}
	return n, nil
}

// Prune removes cached extractions whose keys are not in keep. It returns
// the removed keys.
func (r *Resolver) Prune(ctx context.Context, keep map[string]struct{}) ([]string, error) {
	logger := log.WithFunc("title.Prune")
	var removed []string
	var errs []error
	for _, key := range utils.FilterUnreferenced(utils.ScanSubdirs(r.cacheDir), keep) {
		if err := os.RemoveAll(filepath.Join(r.cacheDir, key)); err != nil {
			errs = append(errs, fmt.Errorf("remove %s: %w", key, err))
			continue
		}
		logger.Infof(ctx, "removed cached extraction: %s", key)
		removed = append(removed, key)
	}
	return removed, errors.Join(errs...)
}
