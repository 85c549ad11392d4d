package index

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

const debounce = 200 * time.Millisecond

// WatchFile watches a single file for external modification and calls
// onChange once per burst of events, debounced by 200ms. The parent
// directory is watched so atomic rename-into-place writes are observed.
// Files whose base name starts with ignorePrefix are skipped. It blocks
// until ctx is cancelled.
func WatchFile(ctx context.Context, file, ignorePrefix string, logger *slog.Logger, onChange func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	file = filepath.Clean(file)
	if err := w.Add(filepath.Dir(file)); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("file", file))

	var timer *time.Timer
	var fire <-chan time.Time

	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(debounce)
			fire = timer.C
		} else {
			timer.Reset(debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-fire:
			onChange()

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			name := filepath.Clean(ev.Name)
			if ignorePrefix != "" && strings.HasPrefix(filepath.Base(name), ignorePrefix) {
				continue
			}
			if name != file {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			logger.Debug("watcher: event", slog.String("op", ev.Op.String()))
			schedule()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}
