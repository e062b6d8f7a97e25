package policy

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/labstack/gommon/log"
)

// reloadDebounce lets editors finish writing before the file is re-read.
const reloadDebounce = 100 * time.Millisecond

// WatchFile reloads e whenever the policy file at path is written or
// replaced. The directory is watched so that atomic renames are seen. A
// policy that fails to compile is logged and the previous one stays active.
// WatchFile blocks until ctx is done.
func WatchFile(ctx context.Context, e *Engine, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve policy path: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch policy directory: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			time.Sleep(reloadDebounce)
			reloadFrom(ctx, e, abs)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warnf("policy watcher: %v", err)
		}
	}
}

func reloadFrom(ctx context.Context, e *Engine, path string) {
	raw, err := os.ReadFile(path)
	if err != nil {
		log.Warnf("Failed to read policy file %s: %v", path, err)
		return
	}
	if err := e.Reload(ctx, string(raw)); err != nil {
		log.Errorf("Rejected policy file %s, keeping previous policy: %v", path, err)
		return
	}
	log.Infof("Reloaded replay policy from %s", path)
}
