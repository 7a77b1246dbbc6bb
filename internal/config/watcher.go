package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDebounce coalesces the burst of fsnotify events editors emit for a
// single save into one reload.
const reloadDebounce = 500 * time.Millisecond

// WatchResources watches the resource file's directory and calls
// source.Reload on changes until the context is canceled. Watching the
// directory rather than the file survives the rename-over-save pattern most
// editors use. Blocks; run it in its own goroutine (the daemon uses an
// errgroup).
func WatchResources(ctx context.Context, source *FileResourceSource, logger *slog.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: creating file watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(source.Path())
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("config: watching %s: %w", dir, err)
	}

	logger.Debug("watching resource file", slog.String("path", source.Path()))

	target := filepath.Clean(source.Path())

	var debounce *time.Timer

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if filepath.Clean(event.Name) != target {
				continue
			}

			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}

			if debounce != nil {
				debounce.Stop()
			}

			debounce = time.AfterFunc(reloadDebounce, func() {
				if err := source.Reload(); err != nil {
					logger.Error("watch list reload failed, keeping previous list",
						slog.String("error", err.Error()),
					)
				}
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			logger.Warn("file watcher error", slog.String("error", err.Error()))
		}
	}
}
