package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/htmllex/analyzer/internal/logger"
)

// watchFiles calls onChange whenever one of paths is written or recreated,
// until ctx is done. Parent directories are watched so editors that replace
// files on save are still seen.
func watchFiles(ctx context.Context, paths []string, log *logger.Logger, onChange func(path string)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() {
		if err := watcher.Close(); err != nil {
			log.Warn("failed to close watcher", logger.Err(err))
		}
	}()

	watched, err := addWatches(watcher, paths)
	if err != nil {
		return err
	}

	log.Warn("watching for changes, press Ctrl+C to stop", logger.Count(len(watched)))
	return runWatchLoop(ctx, watcher.Events, watcher.Errors, watched, log, onChange)
}

func addWatches(watcher *fsnotify.Watcher, paths []string) (map[string]bool, error) {
	watched := make(map[string]bool, len(paths))
	dirs := make(map[string]bool)

	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("invalid file path %s: %w", p, err)
		}
		watched[abs] = true

		dir := filepath.Dir(abs)
		if dirs[dir] {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		dirs[dir] = true
	}

	return watched, nil
}

// runWatchLoop dispatches write and create events for watched paths.
func runWatchLoop(ctx context.Context, events <-chan fsnotify.Event, errs <-chan error, watched map[string]bool, log *logger.Logger, onChange func(path string)) error {
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			name := filepath.Clean(event.Name)
			if !watched[name] {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			log.Debug("file changed", logger.F("path", name), logger.F("op", event.Op.String()))
			onChange(name)

		case err, ok := <-errs:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			log.Warn("watcher error", logger.Err(err))
		}
	}
}
