package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ReloadDebounce is how long Watch waits after the last change to the file
// before reloading it.
const ReloadDebounce = 250 * time.Millisecond

// Watch reloads the config at path whenever it changes and passes the new
// Config to onChange. Bursts of events (an editor's truncate+write, or the
// write+rename of an atomic save) collapse into one reload once the file
// has been quiet for ReloadDebounce. It runs until ctx is cancelled.
//
// A reload that fails validation is logged and skipped; the running config
// stays in effect.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	return watch(ctx, path, ReloadDebounce, onChange)
}

func watch(ctx context.Context, path string, debounce time.Duration, onChange func(*Config)) error {
	target, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("config: resolve %q: %w", path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: new watcher: %w", err)
	}
	defer watcher.Close()

	// The directory is watched so a file replaced by rename keeps reporting.
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("config: watch %q: %w", path, err)
	}
	slog.Info("config: watching for changes", "path", target, "debounce", debounce)

	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || !(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
				continue
			}
			timer.Reset(debounce)

		case <-timer.C:
			cfg, err := Load(target)
			if err != nil {
				slog.Error("config: reload failed, keeping previous config", "path", target, "err", err)
				continue
			}
			slog.Info("config: reloaded", "path", target)
			onChange(cfg)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("config: watcher error", "err", err)
		}
	}
}
