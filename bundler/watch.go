package bundler

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/lokascript/hyperfixi/core/config"
)

// watchDebounce coalesces editor write bursts into one rebuild.
const watchDebounce = 250 * time.Millisecond

// Watch builds once, then rebuilds on every template change under the
// configured roots until ctx is done. Outputs are written after each
// build; onBuild, when non-nil, observes every result including
// failures, since watch mode must outlive broken builds.
func Watch(ctx context.Context, cfg *config.Config, noCache bool, onBuild func(*BuildResult, error)) error {
	if cfg == nil {
		cfg = config.Default()
	}
	scanner := NewScanner(cfg.Extensions, cfg.Exclude)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// fsnotify is not recursive; every directory gets its own watch.
	for _, root := range cfg.Roots {
		if err := addRecursive(watcher, scanner, root); err != nil {
			return err
		}
	}

	rebuild := func() {
		result, err := Build(cfg, noCache)
		if err == nil {
			err = result.WriteOutputs(cfg)
		}
		if onBuild != nil {
			onBuild(result, err)
		}
	}
	rebuild()

	timer := time.NewTimer(watchDebounce)
	timer.Stop()
	pending := false

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if ev.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := addRecursive(watcher, scanner, ev.Name); err != nil {
						slog.Warn("watch add failed", "path", ev.Name, "error", err)
					}
				}
			}
			if !scanner.ShouldScan(ev.Name) && !isDirEvent(ev) {
				continue
			}
			timer.Reset(watchDebounce)
			pending = true
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watch error", "error", err)
		case <-timer.C:
			if pending {
				pending = false
				rebuild()
			}
		}
	}
}

// isDirEvent reports whether the event plausibly concerns a directory:
// removals and renames of watched directories still need a rescan even
// though the path no longer stats.
func isDirEvent(ev fsnotify.Event) bool {
	if ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
		return filepath.Ext(ev.Name) == ""
	}
	if ev.Op&fsnotify.Create != 0 {
		info, err := os.Stat(ev.Name)
		return err == nil && info.IsDir()
	}
	return false
}

// addRecursive watches root and every non-excluded directory below it.
// Missing roots are skipped so a watch can start before its templates
// exist.
func addRecursive(watcher *fsnotify.Watcher, scanner *Scanner, root string) error {
	info, err := os.Stat(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	if !info.IsDir() {
		return watcher.Add(filepath.Dir(root))
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if scanner.Excluded(path) {
				return filepath.SkipDir
			}
			return watcher.Add(path)
		}
		return nil
	})
}
