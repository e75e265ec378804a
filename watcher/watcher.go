// Package watcher reports filesystem changes under a set of roots, coalesced
// through a debounced handler.
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/vcnkl/coalesce/debounce"
	"github.com/vcnkl/coalesce/logger"
)

var skipDirs = map[string]struct{}{
	".git":         {},
	"node_modules": {},
	".venv":        {},
	"__pycache__":  {},
}

type Options struct {
	Paths    []string
	Ignore   []string
	Debounce debounce.Options
	Logger   logger.Logger
}

type Watcher struct {
	paths   []string
	ignore  []string
	log     logger.Logger
	fsw     *fsnotify.Watcher
	changes *debounce.Func[string]
}

func New(opts Options) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}

	return &Watcher{
		paths:   opts.Paths,
		ignore:  opts.Ignore,
		log:     opts.Logger.WithPrefix("watcher"),
		fsw:     fsw,
		changes: debounce.New[string](nil, opts.Debounce),
	}, nil
}

// OnChange sets the handler. It receives the most recent changed path of
// each burst.
func (w *Watcher) OnChange(fn func(path string)) {
	w.changes.SetFunc(fn)
}

// Pause drops change events until Resume. A burst that is already pending
// still fires.
func (w *Watcher) Pause() {
	w.changes.Disable()
}

func (w *Watcher) Resume() {
	w.changes.Enable()
}

func (w *Watcher) Paused() bool {
	return w.changes.IsDisabled()
}

// Start watches the configured paths and blocks until ctx is done or the
// watcher is stopped. On return no change handler is running and none is
// pending.
func (w *Watcher) Start(ctx context.Context) error {
	for _, path := range w.paths {
		if err := w.addRecursive(path); err != nil {
			return fmt.Errorf("failed to watch path %s: %w", path, err)
		}
	}
	defer func() {
		w.changes.Cancel()
		w.changes.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("file watcher error", logger.Err(err))
		}
	}
}

func (w *Watcher) Stop() {
	w.changes.Cancel()
	w.fsw.Close()
}

func (w *Watcher) handle(event fsnotify.Event) {
	if w.shouldIgnore(event.Name) {
		return
	}

	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
		w.log.Debug("change detected", logger.String("path", event.Name), logger.String("op", event.Op.String()))
		w.changes.Call(event.Name)
	}

	if event.Op&fsnotify.Create != 0 {
		info, err := os.Stat(event.Name)
		if err == nil && info.IsDir() {
			if err = w.addRecursive(event.Name); err != nil {
				w.log.Warn("failed to watch new directory", logger.String("path", event.Name), logger.Err(err))
			}
		}
	}
}

func (w *Watcher) addRecursive(root string) error {
	if _, err := os.Stat(root); err != nil {
		return err
	}

	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || !info.IsDir() {
			return nil
		}

		if _, skip := skipDirs[filepath.Base(path)]; skip && path != root {
			return filepath.SkipDir
		}
		if path != root && w.shouldIgnore(path) {
			return filepath.SkipDir
		}

		if err = w.fsw.Add(path); err != nil {
			w.log.Warn("failed to watch directory", logger.String("path", path), logger.Err(err))
		}
		return nil
	})
}

// shouldIgnore matches each pattern against the base name and the whole
// path. Patterns without glob characters also match any path segment.
func (w *Watcher) shouldIgnore(path string) bool {
	clean := filepath.ToSlash(filepath.Clean(path))
	base := filepath.Base(path)

	for _, pattern := range w.ignore {
		pattern = strings.TrimPrefix(pattern, "./")
		pattern = strings.TrimSuffix(pattern, "/")
		pattern = strings.ReplaceAll(pattern, "**", "*")
		if pattern == "" {
			continue
		}

		if ok, _ := filepath.Match(pattern, base); ok {
			return true
		}
		if ok, _ := filepath.Match(pattern, clean); ok {
			return true
		}
		if !strings.ContainsAny(pattern, "*?[") {
			for _, segment := range strings.Split(clean, "/") {
				if segment == pattern {
					return true
				}
			}
		}
	}

	return false
}
