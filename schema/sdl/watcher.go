package sdl

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/c360/semquery/errors"
	"github.com/c360/semquery/schema"
)

// Watcher serves the schema parsed from a set of SDL files and reloads it when
// any of them changes. It implements schema.Provider. A reload that fails to
// parse is logged and the previous schema stays current.
type Watcher struct {
	paths    []string
	debounce time.Duration
	logger   *slog.Logger
	provider *schema.StaticProvider
	watcher  *fsnotify.Watcher

	stopOnce sync.Once
	done     chan struct{}
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce sets the quiet period before a reload.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// NewWatcher loads the files once and prepares to watch them.
func NewWatcher(paths []string, opts ...WatcherOption) (*Watcher, error) {
	initial, err := LoadFiles(paths...)
	if err != nil {
		return nil, err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.WrapTransient(err, "Watcher", "NewWatcher", "create fsnotify watcher")
	}

	// Directories are watched so that editors replacing files atomically are seen.
	dirs := make(map[string]bool)
	for _, p := range paths {
		dirs[filepath.Dir(p)] = true
	}
	for dir := range dirs {
		if err := fw.Add(dir); err != nil {
			_ = fw.Close()
			return nil, errors.WrapInvalid(err, "Watcher", "NewWatcher", "watch "+dir)
		}
	}

	w := &Watcher{
		paths:    paths,
		debounce: 200 * time.Millisecond,
		logger:   slog.Default(),
		provider: schema.NewStaticProvider(initial),
		watcher:  fw,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Schema returns the current schema.
func (w *Watcher) Schema() *schema.Schema { return w.provider.Schema() }

// OnChange registers a listener for successful reloads.
func (w *Watcher) OnChange(fn func(*schema.Schema)) { w.provider.OnChange(fn) }

// Run processes file events until ctx is done or Stop is called.
func (w *Watcher) Run(ctx context.Context) {
	watched := make(map[string]bool, len(w.paths))
	for _, p := range w.paths {
		abs, err := filepath.Abs(p)
		if err == nil {
			watched[abs] = true
		}
		watched[filepath.Clean(p)] = true
	}

	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !relevant(event, watched) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("schema watcher error", "error", err)
		case <-fire:
			fire = nil
			w.reload()
		}
	}
}

func relevant(event fsnotify.Event, watched map[string]bool) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return false
	}
	if watched[filepath.Clean(event.Name)] {
		return true
	}
	abs, err := filepath.Abs(event.Name)
	return err == nil && watched[abs]
}

func (w *Watcher) reload() {
	next, err := LoadFiles(w.paths...)
	if err != nil {
		w.logger.Error("schema reload failed, keeping previous version",
			"version", w.provider.Schema().Version(), "error", err)
		return
	}
	if next.Version() == w.provider.Schema().Version() {
		return
	}
	w.logger.Info("schema reloaded", "version", next.Version())
	w.provider.Set(next)
}

// Stop stops watching. It is safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		_ = w.watcher.Close()
	})
}
