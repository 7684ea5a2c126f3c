// internal/config/watch.go
package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/erilali/wshub/internal/logger"
	"github.com/fsnotify/fsnotify"
)

// Watch calls onChange with the reloaded Config whenever the file at path is
// written or replaced, until ctx is cancelled. A reload that fails to parse
// or validate is logged and skipped.
//
// The parent directory is watched rather than the file, so saves that
// rename a new file over path keep being seen.
func Watch(ctx context.Context, path string, log *logger.Logger, onChange func(*Config)) error {
	target, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("config: resolving %s: %w", path, err)
	}
	if _, err := os.Stat(target); err != nil {
		return fmt.Errorf("config: watching %s: %w", path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: creating watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(target)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("config: watching %s: %w", dir, err)
	}
	log.Infof("Watching %s for changes", target)

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
			switch {
			case event.Has(fsnotify.Write), event.Has(fsnotify.Create):
			case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
				log.Warnf("Config file %s moved or removed, waiting for it to reappear", target)
				continue
			default:
				continue
			}

			cfg, err := Load(target)
			if err != nil {
				log.Errorf("Config reload failed, keeping previous config: %v", err)
				continue
			}
			log.Infof("Config reloaded from %s", target)
			onChange(cfg)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warnf("Config watcher error: %v", err)
		}
	}
}
