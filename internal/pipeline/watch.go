package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/robert-at-pretension-io/sv-lint/internal/config"
	"github.com/robert-at-pretension-io/sv-lint/internal/diag"
	"github.com/robert-at-pretension-io/sv-lint/internal/metrics"
)

// DefaultDebounce is the quiet period before changed files are re-linted.
const DefaultDebounce = 200 * time.Millisecond

// Watcher reports batches of changed source files. Directories are watched
// recursively and filtered by the include and exclude globs of the config;
// files given directly are always reported.
type Watcher struct {
	fs       *fsnotify.Watcher
	include  *config.Matcher
	exclude  *config.Matcher
	debounce time.Duration
	onChange func([]string)
	events   *diag.Events
	metrics  *metrics.Recorder

	dirRoots []string
	explicit map[string]bool

	callbackMu sync.Mutex
	pendingMu  sync.Mutex
	pending    map[string]struct{}
	timer      *time.Timer
}

// WatchOptions configures NewWatcher.
type WatchOptions struct {
	Debounce time.Duration
	Events   *diag.Events
	Metrics  *metrics.Recorder
}

func NewWatcher(cfg *config.Config, opts WatchOptions, onChange func([]string)) (*Watcher, error) {
	if onChange == nil {
		return nil, os.ErrInvalid
	}
	include, err := config.NewMatcher(cfg.Defaults.Include)
	if err != nil {
		return nil, err
	}
	exclude, err := config.NewMatcher(cfg.Defaults.Exclude)
	if err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	w := &Watcher{
		fs:       fsw,
		include:  include,
		exclude:  exclude,
		debounce: opts.Debounce,
		onChange: onChange,
		events:   opts.Events,
		metrics:  opts.Metrics,
		explicit: make(map[string]bool),
		pending:  make(map[string]struct{}),
	}
	if w.debounce <= 0 {
		w.debounce = DefaultDebounce
	}
	if w.events == nil {
		w.events = diag.Discard()
	}
	return w, nil
}

// Add starts watching inputs: directories recursively, files through their
// parent directory.
func (w *Watcher) Add(inputs []string) error {
	for _, in := range inputs {
		abs, err := filepath.Abs(in)
		if err != nil {
			return err
		}
		info, err := os.Stat(abs)
		if err != nil {
			return fmt.Errorf("watch %s: %w", in, err)
		}
		if !info.IsDir() {
			w.explicit[abs] = true
			if err := w.fs.Add(filepath.Dir(abs)); err != nil {
				return fmt.Errorf("watch %s: %w", in, err)
			}
			continue
		}
		w.dirRoots = append(w.dirRoots, abs)
		if err := w.addTree(abs); err != nil {
			return err
		}
	}
	return nil
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && w.skipDir(path) {
			return filepath.SkipDir
		}
		return w.fs.Add(path)
	})
}

// rel returns path relative to the directory root containing it.
func (w *Watcher) rel(path string) (string, bool) {
	for _, root := range w.dirRoots {
		r, err := filepath.Rel(root, path)
		if err == nil && r != "." && !strings.HasPrefix(r, "..") {
			return r, true
		}
	}
	return "", false
}

func (w *Watcher) skipDir(path string) bool {
	if strings.HasPrefix(filepath.Base(path), ".") {
		return true
	}
	rel, ok := w.rel(path)
	return ok && (w.exclude.Match(rel) || w.exclude.Match(rel+"/"))
}

// wanted reports whether a change to path should trigger a lint.
func (w *Watcher) wanted(path string) bool {
	if w.explicit[path] {
		return true
	}
	rel, ok := w.rel(path)
	return ok && w.include.Match(rel) && !w.exclude.Match(rel)
}

// Run delivers events until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			w.handle(ev)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.events.Logger().Error("watcher error", "error", err)
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if ev.Op&fsnotify.Create == fsnotify.Create {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if _, ok := w.rel(ev.Name); ok && !w.skipDir(ev.Name) {
				if err := w.addTree(ev.Name); err != nil {
					w.events.Logger().Warn("failed to watch new directory", "path", ev.Name, "error", err)
				}
			}
			return
		}
	}
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
		return
	}
	if !w.wanted(ev.Name) {
		return
	}
	if w.metrics != nil {
		w.metrics.WatcherEvents.Inc()
	}
	w.schedule(ev.Name)
}

func (w *Watcher) schedule(path string) {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()
	w.pending[path] = struct{}{}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.flush)
}

// flush hands over the pending files that still exist, sorted.
func (w *Watcher) flush() {
	w.pendingMu.Lock()
	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		if _, err := os.Stat(p); err == nil {
			paths = append(paths, p)
		}
	}
	w.pending = make(map[string]struct{})
	w.pendingMu.Unlock()

	if len(paths) == 0 {
		return
	}
	sort.Strings(paths)
	w.callbackMu.Lock()
	defer w.callbackMu.Unlock()
	w.onChange(paths)
}

func (w *Watcher) Close() error {
	w.pendingMu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.pendingMu.Unlock()
	if err := w.fs.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		return err
	}
	return nil
}
