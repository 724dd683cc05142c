// Package watch reports changes to scenario files so a run can be repeated.
package watch

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"approbe/internal/discovery"
	"approbe/internal/logging"
)

// DefaultDebounce batches the burst of events an editor save produces.
const DefaultDebounce = 300 * time.Millisecond

// Watcher watches a directory tree for scenario file changes.
type Watcher struct {
	root     string
	skipDirs map[string]bool
	debounce time.Duration
	watcher  *fsnotify.Watcher
}

// New starts watching root and every directory below it, except hidden
// ones and skipDirs.
func New(root string, skipDirs []string, debounce time.Duration) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		root:     filepath.Clean(root),
		skipDirs: make(map[string]bool),
		debounce: debounce,
		watcher:  fw,
	}
	for _, dir := range skipDirs {
		w.skipDirs[dir] = true
	}
	if err := w.addTree(w.root); err != nil {
		fw.Close()
		return nil, err
	}
	return w, nil
}

func (w *Watcher) skip(path string, name string) bool {
	return path != w.root && (strings.HasPrefix(name, ".") || w.skipDirs[name])
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Directories can vanish between the event and the walk.
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if w.skip(path, d.Name()) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return err
		}
		logging.Logger.Debug("watching directory", zap.String("dir", path))
		return nil
	})
}

// Run calls onChange with the sorted, distinct scenario files changed in
// each burst of events, until ctx is done. onChange runs on Run's
// goroutine; events arriving meanwhile are batched into the next call.
func (w *Watcher) Run(ctx context.Context, onChange func(paths []string)) error {
	pending := make(map[string]bool)
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
			if w.handle(event, pending) {
				timer.Reset(w.debounce)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			logging.Logger.Warn("watch error", zap.Error(err))

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			sort.Strings(paths)
			clear(pending)
			onChange(paths)
		}
	}
}

// handle records a relevant event and reports whether it was one.
func (w *Watcher) handle(event fsnotify.Event, pending map[string]bool) bool {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if !w.skip(event.Name, info.Name()) {
				if err := w.addTree(event.Name); err != nil {
					logging.Logger.Warn("watch new directory", zap.String("dir", event.Name), zap.Error(err))
				}
			}
			return false
		}
	}
	if !discovery.IsScenarioFile(filepath.Base(event.Name)) {
		return false
	}
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
		return false
	}
	logging.Logger.Debug("scenario file changed", zap.String("path", event.Name), zap.String("op", event.Op.String()))
	pending[event.Name] = true
	return true
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
