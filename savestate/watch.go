package savestate

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/projecteru2/core/log"

	"github.com/cocoonstack/emuhost/utils"
)

// Watch calls fn with the base name of every slot file created or rewritten
// in dir until ctx is done. Slot writes are asynchronous to the caller of
// RequestSave; Watch is how a host learns that one landed.
func Watch(ctx context.Context, dir string, fn func(name string)) error {
	if err := utils.EnsureDirs(dir); err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close() //nolint:errcheck
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	logger := log.WithFunc("savestate.Watch")
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Ext(ev.Name) != fileExt {
				continue
			}
			// Write renames a finished temp file into place.
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			fn(filepath.Base(ev.Name))
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warnf(ctx, "watch %s: %v", dir, err)
		}
	}
}
