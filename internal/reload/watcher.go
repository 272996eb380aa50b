package reload

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"logtrigger/internal/constants"
	"logtrigger/internal/logger"
)

// Watcher reloads rules when the config file changes. Editors often write a
// file in several steps, so events are debounced.
type Watcher struct {
	path     string
	debounce time.Duration
	reloader *Reloader
	logger   logger.Logger
}

func NewWatcher(path string, debounce time.Duration, reloader *Reloader, log logger.Logger) *Watcher {
	return &Watcher{
		path:     filepath.Clean(path),
		debounce: debounce,
		reloader: reloader,
		logger:   log,
	}
}

// Run watches until ctx is done. The directory is watched rather than the
// file so that atomic renames by editors are seen.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return err
	}
	w.logger.Infow("Watching config file for rule changes", "path", w.path)

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			timer.Reset(w.debounce)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warnw("Config watcher error", "path", w.path, "error", err)

		case <-timer.C:
			// the error is logged by the reloader
			_, _ = w.reloader.Reload(ctx, constants.ReloadTriggerFile)
		}
	}
}
