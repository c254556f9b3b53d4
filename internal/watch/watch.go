// Package watch rebuilds the site when notes or images change.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-co-op/gocron/v2"

	"github.com/xianyu564/tobacco-notes/internal/logfields"
)

// BuildFunc runs one build. full requests a rebuild of everything.
type BuildFunc func(ctx context.Context, full bool) error

// Options configures a Watcher.
type Options struct {
	Roots    []string
	Debounce time.Duration
	// FullRebuildInterval schedules periodic full rebuilds when > 0.
	FullRebuildInterval time.Duration
	// Relevant filters change events; nil accepts every non-hidden file.
	Relevant func(path string) bool
	Logger   *slog.Logger
}

// Watcher coalesces filesystem events into builds. At most one build runs at
// a time; requests arriving meanwhile collapse into a single follow-up build.
type Watcher struct {
	opts  Options
	build BuildFunc

	mu      sync.Mutex
	queued  bool
	full    bool
	wake    chan struct{}
	builds  int
	lastErr error
}

// New creates a watcher.
func New(build BuildFunc, opts Options) *Watcher {
	if opts.Debounce <= 0 {
		opts.Debounce = 300 * time.Millisecond
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Watcher{opts: opts, build: build, wake: make(chan struct{}, 1)}
}

// Trigger requests a build. Safe from any goroutine.
func (w *Watcher) Trigger(full bool) {
	w.mu.Lock()
	w.queued = true
	w.full = w.full || full
	w.mu.Unlock()
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *Watcher) take() (full, ok bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.queued {
		return false, false
	}
	full = w.full
	w.queued, w.full = false, false
	return full, true
}

// Builds returns how many builds have completed.
func (w *Watcher) Builds() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.builds
}

// Run watches until ctx is canceled. A running build is waited for before returning.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("fsnotify: %w", err)
	}
	defer fw.Close()
	for _, root := range w.opts.Roots {
		if _, err := os.Stat(root); err != nil {
			w.opts.Logger.Warn("Watch root missing", logfields.Path(root))
			continue
		}
		w.addDirsRecursive(fw, root)
	}

	if w.opts.FullRebuildInterval > 0 {
		sched, err := gocron.NewScheduler()
		if err != nil {
			return err
		}
		if _, err := sched.NewJob(
			gocron.DurationJob(w.opts.FullRebuildInterval),
			gocron.NewTask(func() { w.Trigger(true) }),
			gocron.WithName("full-rebuild"),
		); err != nil {
			_ = sched.Shutdown()
			return err
		}
		sched.Start()
		defer func() { _ = sched.Shutdown() }()
	}

	debounce := time.NewTimer(w.opts.Debounce)
	debounce.Stop()
	defer debounce.Stop()

	running := false
	pendingFull := false
	done := make(chan error, 1)
	startNext := func() {
		full, ok := w.take()
		if !ok {
			return
		}
		running = true
		w.opts.Logger.Info("Change detected; rebuilding", slog.Bool("full", full))
		go func() { done <- w.build(ctx, full) }()
	}

	w.opts.Logger.Info("Watching for changes", logfields.Count(len(w.opts.Roots)),
		logfields.Elapsed(w.opts.Debounce))
	for {
		select {
		case <-ctx.Done():
			if running {
				<-done
			}
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if rebuild, full := w.handleEvent(fw, ev); rebuild {
				pendingFull = pendingFull || full
				debounce.Reset(w.opts.Debounce)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.opts.Logger.Warn("Watcher error", logfields.Error(err))
		case <-debounce.C:
			w.Trigger(pendingFull)
			pendingFull = false
		case <-w.wake:
			if !running {
				startNext()
			}
		case err := <-done:
			running = false
			w.mu.Lock()
			w.builds++
			w.lastErr = err
			w.mu.Unlock()
			if err != nil {
				w.opts.Logger.Warn("Rebuild failed", logfields.Error(err))
			}
			startNext()
		}
	}
}

// handleEvent reports whether ev should schedule a rebuild. A directory moved
// in with relevant files asks for a full rebuild: mv keeps mtimes, so the
// incremental tracker would not see those files as changed.
func (w *Watcher) handleEvent(fw *fsnotify.Watcher, ev fsnotify.Event) (rebuild, full bool) {
	if ignored(ev.Name) {
		return false, false
	}
	if ev.Op.Has(fsnotify.Create) {
		if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
			if w.addDirsRecursive(fw, ev.Name) {
				w.opts.Logger.Debug("Directory with notes added", logfields.Path(ev.Name))
				return true, true
			}
			return false, false
		}
	}
	if !w.relevant(ev.Name) {
		return false, false
	}
	w.opts.Logger.Debug("File change detected", logfields.Path(ev.Name), slog.String("op", ev.Op.String()))
	return true, false
}

func (w *Watcher) relevant(path string) bool {
	return w.opts.Relevant == nil || w.opts.Relevant(path)
}

// addDirsRecursive watches root and its non-hidden subdirectories and reports
// whether any relevant file was found below root.
func (w *Watcher) addDirsRecursive(fw *fsnotify.Watcher, root string) bool {
	found := false
	_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			if !found && !ignored(path) && w.relevant(path) {
				found = true
			}
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := fw.Add(path); err != nil {
			w.opts.Logger.Warn("Watch add failed", logfields.Path(path), logfields.Error(err))
		}
		return nil
	})
	return found
}

// ignored skips hidden, swap and temporary files.
func ignored(path string) bool {
	base := filepath.Base(path)
	switch {
	case strings.HasPrefix(base, "."),
		strings.HasSuffix(base, "~"),
		strings.HasSuffix(base, ".swp"),
		strings.HasSuffix(base, ".tmp"):
		return true
	}
	return false
}
