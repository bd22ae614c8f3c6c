// Package watchloop re-runs a callback whenever any of a set of directories
// changes, backing the `--watch` flag shared by `cai doctor --watch` (S1)
// and `cai ssh cleanup --watch` (S3).
package watchloop

import (
	"context"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Debounce coalesces bursts of filesystem events (e.g. an editor's
// write-then-rename) into a single re-run.
const Debounce = 200 * time.Millisecond

// Run calls fn once immediately, then again every time one of dirs changes,
// until ctx is cancelled. Missing directories are skipped rather than
// failing the whole watch, since `~/.ssh/containai.d` may not exist yet on
// a fresh host.
func Run(ctx context.Context, dirs []string, fn func(context.Context) error, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	for _, dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			logger.Debug("watch: skipping directory", "dir", dir, "err", err)
		}
	}

	if err := fn(ctx); err != nil {
		logger.Warn("watch: initial run failed", "err", err)
	}

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			logger.Debug("watch: fs event", "name", event.Name, "op", event.Op.String())
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(Debounce)
			timerC = timer.C
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch: fsnotify error", "err", err)
		case <-timerC:
			timerC = nil
			if err := fn(ctx); err != nil {
				logger.Warn("watch: run failed", "err", err)
			}
		}
	}
}
