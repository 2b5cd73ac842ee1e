package engine

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/getmockd/stubd/pkg/logging"
	"github.com/getmockd/stubd/pkg/registry"
)

// DefaultDebounce is how long the watcher waits for writes to settle.
const DefaultDebounce = 200 * time.Millisecond

// Loader builds a fresh registry and returns the files it was read from.
type Loader func() (*registry.Registry, []string, error)

// Watcher rebuilds the registry of a Handler when its configuration files
// change. A failed reload keeps the previous registry serving.
type Watcher struct {
	target   *Handler
	load     Loader
	debounce time.Duration
	log      *slog.Logger

	mu    sync.Mutex
	files map[string]struct{}
	dirs  map[string]struct{}
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithWatcherLogger sets the reload logger.
func WithWatcherLogger(log *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		if log != nil {
			w.log = log
		}
	}
}

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// NewWatcher watches files (as returned by the initial load) and reloads
// target through load.
func NewWatcher(target *Handler, load Loader, files []string, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		target:   target,
		load:     load,
		debounce: DefaultDebounce,
		log:      logging.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.setFiles(files)
	return w
}

// Reload runs the loader once and swaps the registry on success.
func (w *Watcher) Reload() error {
	reg, files, err := w.load()
	if m := w.target.metrics; m != nil {
		m.Reloaded(err)
	}
	if err != nil {
		return err
	}
	w.target.SetRegistry(reg)
	w.setFiles(files)
	return nil
}

// Run watches until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	defer fw.Close()

	if err := w.addDirs(fw); err != nil {
		return err
	}
	w.log.Info("watching configuration", "files", len(w.snapshotFiles()), "debounce", w.debounce)

	var (
		timer  *time.Timer
		timerC <-chan time.Time
	)
	resetTimer := func() {
		if timer == nil {
			timer = time.NewTimer(w.debounce)
			timerC = timer.C
			return
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(w.debounce)
		timerC = timer.C
	}
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timerC:
			timerC = nil
			if err := w.Reload(); err != nil {
				w.log.Error("reload failed, keeping previous rules", "error", err)
				continue
			}
			w.log.Info("configuration reloaded", "rules", w.target.Registry().Len())
			if err := w.addDirs(fw); err != nil {
				w.log.Warn("watching new include directory failed", "error", err)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("file watcher error", "error", err)
		case evt, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if w.shouldTrigger(evt) {
				resetTimer()
			}
		}
	}
}

// shouldTrigger accepts changes to a loaded file and to any YAML file next
// to one, which a glob include may pick up. Dotfiles (editor swap files)
// are ignored.
func (w *Watcher) shouldTrigger(evt fsnotify.Event) bool {
	if strings.TrimSpace(evt.Name) == "" {
		return false
	}
	if evt.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	base := filepath.Base(evt.Name)
	if strings.HasPrefix(base, ".") {
		return false
	}

	w.mu.Lock()
	_, known := w.files[filepath.Clean(evt.Name)]
	w.mu.Unlock()
	if known {
		return true
	}
	switch strings.ToLower(filepath.Ext(base)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

func (w *Watcher) setFiles(files []string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.files = make(map[string]struct{}, len(files))
	for _, f := range files {
		w.files[filepath.Clean(f)] = struct{}{}
	}
}

func (w *Watcher) snapshotFiles() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(w.files))
	for f := range w.files {
		out = append(out, f)
	}
	return out
}

// addDirs watches the directory of every loaded file. Directories rather
// than files are watched so rename-on-save editors keep triggering.
func (w *Watcher) addDirs(fw *fsnotify.Watcher) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.dirs == nil {
		w.dirs = make(map[string]struct{})
	}
	for f := range w.files {
		dir := filepath.Dir(f)
		if _, ok := w.dirs[dir]; ok {
			continue
		}
		if err := fw.Add(dir); err != nil {
			return fmt.Errorf("watching %s: %w", dir, err)
		}
		w.dirs[dir] = struct{}{}
	}
	return nil
}
