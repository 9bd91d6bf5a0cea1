package feed

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/glorpus-work/pkgfeed/pkg/feedlayout"
	"github.com/glorpus-work/pkgfeed/pkg/vfs"
)

// watchDebounce coalesces bursts of filesystem events (an editor or upload
// writing then renaming a temp file) into one callback invocation.
const watchDebounce = 500 * time.Millisecond

// watcher is a thin fsnotify wrapper, grounded on the debounced-callback
// event loop of the invowk-invowk example's internal/watch package: a
// pending-path set guarded by a mutex, flushed by a single time.AfterFunc
// timer reset on every new event. Unlike that package this one has no glob
// pattern/ignore-list layer (the engine itself decides what an event means
// via feedlayout.IsKnownPath) and carries no doublestar dependency, which
// this module does not otherwise need.
//
// The watcher is a child owned exclusively by the engine: it is
// constructed with a bound callback closure rather than holding a
// reference back to the Engine, so there is no reference cycle to reason
// about.
type watcher struct {
	fsw     *fsnotify.Watcher
	log     *slog.Logger
	root    string
	onEvent func(relPath string)

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// newWatcher starts watching fs's root recursively. fs must be backed by a
// real directory (vfs.OS) since fsnotify needs real paths; callers
// constructing an Engine over an in-memory filesystem must leave
// EnableFileSystemMonitoring false.
func newWatcher(fsys vfs.FileSystem, log *slog.Logger, onEvent func(relPath string)) (*watcher, error) {
	root, err := fsys.AbsPath(".")
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &watcher{fsw: fsw, log: log, root: root, onEvent: onEvent, stopCh: make(chan struct{})}
	if err := w.addDirectories(); err != nil {
		_ = fsw.Close()
		return nil, err
	}

	w.wg.Add(1)
	go w.run()
	return w, nil
}

func (w *watcher) addDirectories() error {
	return filepath.WalkDir(w.root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			w.log.Warn("feed: watcher skip inaccessible path", "path", path, "error", walkErr)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		return w.fsw.Add(path)
	})
}

func (w *watcher) run() {
	defer w.wg.Done()

	var mu sync.Mutex
	pending := make(map[string]struct{})
	var timer *time.Timer

	fire := func() {
		mu.Lock()
		if len(pending) == 0 {
			mu.Unlock()
			return
		}
		changed := make([]string, 0, len(pending))
		for p := range pending {
			changed = append(changed, p)
		}
		for p := range pending {
			delete(pending, p)
		}
		mu.Unlock()

		for _, p := range changed {
			w.onEvent(p)
		}
	}

	for {
		select {
		case <-w.stopCh:
			return

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			rel, err := filepath.Rel(w.root, evt.Name)
			if err != nil {
				rel = evt.Name
			}
			rel = filepath.ToSlash(rel)

			if evt.Has(fsnotify.Create) {
				if info, err := os.Stat(evt.Name); err == nil && info.IsDir() {
					_ = w.fsw.Add(evt.Name)
				}
			}

			mu.Lock()
			pending[rel] = struct{}{}
			if timer == nil {
				timer = time.AfterFunc(watchDebounce, fire)
			} else {
				timer.Reset(watchDebounce)
			}
			mu.Unlock()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("feed: watcher error", "error", err)
		}
	}
}

func (w *watcher) Close() {
	close(w.stopCh)
	w.wg.Wait()
	_ = w.fsw.Close()
}

// onWatchEvent is the engine's fsnotify callback. Events are ignored
// outright while the writer lock is held (the suppression flag), then
// filtered per §5: a known layout path for a record already in the cache,
// touched within the last minute, is treated as self-induced; a *.ext
// file dropped directly in root schedules a drop-folder ingest; anything
// else marks the cache as needing a rebuild.
func (e *Engine) onWatchEvent(relPath string) {
	if e.watcherSuppressed.Load() {
		return
	}

	if feedlayout.IsKnownPath(relPath) {
		if parts := strings.Split(relPath, "/"); len(parts) == 3 && e.cache.Exists(parts[0], parts[1]) {
			if info, err := e.fs.Stat(relPath); err == nil {
				if time.Since(info.ModTime) < time.Minute {
					return
				}
			}
		}
	}

	if isRootLevelArchive(relPath) {
		go func() {
			if err := e.AddPackagesFromDropFolder(context.Background()); err != nil {
				e.log.Warn("feed: drop-folder ingest from watcher event failed", "error", err)
			}
		}()
		return
	}

	e.needsRebuild.Store(true)
}

// isRootLevelArchive reports whether relPath is a loose archive dropped
// directly under root, as opposed to one already filed under the canonical
// <id>/<version>/ layout.
func isRootLevelArchive(relPath string) bool {
	return !strings.Contains(relPath, "/") && strings.HasSuffix(relPath, feedlayout.Extension)
}
