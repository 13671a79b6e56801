// internal/watch/watcher.go
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const DefaultDebounce = 200 * time.Millisecond

// Options configures a Watcher. Ignored receives slash separated paths
// relative to Root.
type Options struct {
	Root     string
	Ignored  func(rel string, isDir bool) bool
	Debounce time.Duration
	Logger   *zap.Logger
}

// Watcher reports changes under a working directory. Every visible
// directory is watched; new directories are picked up as they appear.
type Watcher struct {
	root     string
	ignored  func(string, bool) bool
	debounce time.Duration
	watcher  *fsnotify.Watcher
	logger   *zap.Logger
}

func New(opts Options) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}

	w := &Watcher{
		root:     opts.Root,
		ignored:  opts.Ignored,
		debounce: opts.Debounce,
		watcher:  watcher,
		logger:   opts.Logger,
	}
	if w.ignored == nil {
		w.ignored = func(string, bool) bool { return false }
	}
	if w.debounce <= 0 {
		w.debounce = DefaultDebounce
	}
	if w.logger == nil {
		w.logger = zap.NewNop()
	}

	if err := w.addTree(opts.Root); err != nil {
		watcher.Close()
		return nil, err
	}
	return w, nil
}

// addTree watches dir and every visible directory beneath it.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if rel := w.rel(path); rel != "" && w.ignored(rel, true) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("adding directory to watcher: %w", err)
		}
		return nil
	})
}

func (w *Watcher) rel(path string) string {
	rel, err := filepath.Rel(w.root, path)
	if err != nil || rel == "." {
		return ""
	}
	return filepath.ToSlash(rel)
}

// Run delivers batches of changed paths to onChange until ctx is done.
// Events arriving within the debounce window are merged into one batch.
func (w *Watcher) Run(ctx context.Context, onChange func(paths []string)) error {
	pending := map[string]bool{}
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if rel, ok := w.handle(event); ok {
				pending[rel] = true
				timer.Reset(w.debounce)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher error", zap.Error(err))

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			sort.Strings(paths)
			pending = map[string]bool{}
			onChange(paths)
		}
	}
}

// handle filters one event and starts watching directories it creates.
func (w *Watcher) handle(event fsnotify.Event) (string, bool) {
	rel := w.rel(event.Name)
	if rel == "" {
		return "", false
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Lstat(event.Name); err == nil && info.IsDir() {
			if w.ignored(rel, true) {
				return "", false
			}
			if err := w.addTree(event.Name); err != nil {
				w.logger.Error("adding new directory to watcher", zap.String("path", rel), zap.Error(err))
			}
			return rel, true
		}
	}

	if w.ignored(rel, false) {
		return "", false
	}
	if event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write) {
		return "", false
	}
	w.logger.Debug("working tree event", zap.String("path", rel), zap.Stringer("op", event.Op))
	return rel, true
}

// Watched lists the directories currently watched, relative to the root.
func (w *Watcher) Watched() []string {
	var out []string
	for _, p := range w.watcher.WatchList() {
		out = append(out, w.rel(p))
	}
	sort.Strings(out)
	return out
}

func (w *Watcher) Close() error {
	return w.watcher.Close()
}
