package static

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const watchDebounce = 200 * time.Millisecond

// StartWatcher watches the build root for rebuilds and calls onChange once
// per burst of file events. The root's parent is watched as well, because
// the bundler deletes and recreates the root on every build.
func StartWatcher(ctx context.Context, root string, onChange func()) error {
	root = filepath.Clean(root)
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	if err := watcher.Add(filepath.Dir(root)); err != nil {
		watcher.Close()
		return err
	}
	addTree(watcher, root)

	go runWatcher(ctx, watcher, root, onChange)

	slog.Info("build output watcher started", "dir", root)
	return nil
}

// addTree watches dir and every directory below it. Missing directories are
// skipped; they are picked up when created.
func addTree(watcher *fsnotify.Watcher, dir string) {
	filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if err := watcher.Add(p); err != nil {
				slog.Warn("build watcher: add dir", "err", err, "dir", p)
			}
		}
		return nil
	})
}

func runWatcher(ctx context.Context, watcher *fsnotify.Watcher, root string, onChange func()) {
	defer watcher.Close()

	var mu sync.Mutex
	var timer *time.Timer

	trigger := func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(watchDebounce, func() {
			slog.Debug("build output changed", "dir", root)
			if onChange != nil {
				onChange()
			}
		})
	}

	parent := filepath.Dir(root)

	for {
		select {
		case <-ctx.Done():
			mu.Lock()
			if timer != nil {
				timer.Stop()
			}
			mu.Unlock()
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}

			// Siblings of the build root in the parent directory are not ours.
			if filepath.Dir(event.Name) == parent && event.Name != root {
				continue
			}

			if event.Op&(fsnotify.Create|fsnotify.Rename) != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					addTree(watcher, event.Name)
				}
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				trigger()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("build watcher error", "err", err)
		}
	}
}
