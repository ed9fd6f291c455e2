// Package watcher turns filesystem events on the input directory into
// debounced full-index rebuilds.
//
// The watcher is a three-state machine. Qualifying events move Idle to
// PendingRebuild and arm a trailing debounce timer; further events
// re-arm it. When the timer fires the watcher runs exactly one rebuild
// and returns to Idle. Events arriving mid-rebuild are dropped: the
// rebuild snapshots the whole directory anyway, and the next quiet
// period gets its own rebuild.
package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/indexchat/indexchat/internal/classify"
	ierr "github.com/indexchat/indexchat/internal/errors"
)

// State is the watcher lifecycle state.
type State int

const (
	// StateIdle means no rebuild is pending or running.
	StateIdle State = iota
	// StatePendingRebuild means the debounce timer is armed.
	StatePendingRebuild
	// StateRebuilding means a rebuild is in flight.
	StateRebuilding
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePendingRebuild:
		return "pending_rebuild"
	case StateRebuilding:
		return "rebuilding"
	default:
		return "unknown"
	}
}

// DefaultDebounce is the trailing quiet period before a rebuild.
const DefaultDebounce = 2 * time.Second

// RebuildFunc performs one full index rebuild.
type RebuildFunc func(ctx context.Context) error

// Watcher owns the fsnotify subscription and the debounce state
// machine for one input directory.
type Watcher struct {
	dir     string
	window  time.Duration
	rebuild RebuildFunc

	mu      sync.Mutex
	state   State
	timer   *time.Timer
	stopped bool

	fsw    *fsnotify.Watcher
	runCtx context.Context
	stopCh chan struct{}
}

// New creates a watcher for the given directory. window <= 0 uses
// DefaultDebounce.
func New(dir string, window time.Duration, rebuild RebuildFunc) (*Watcher, error) {
	if dir == "" {
		return nil, ierr.New(ierr.ErrCodeInvalidInput, "watch directory is required", nil)
	}
	if rebuild == nil {
		return nil, ierr.New(ierr.ErrCodeInvalidInput, "rebuild function is required", nil)
	}
	if window <= 0 {
		window = DefaultDebounce
	}
	return &Watcher{
		dir:     dir,
		window:  window,
		rebuild: rebuild,
		stopCh:  make(chan struct{}),
	}, nil
}

// Run subscribes to filesystem events and blocks until the context is
// cancelled or Stop is called. The input directory must exist.
func (w *Watcher) Run(ctx context.Context) error {
	info, err := os.Stat(w.dir)
	if err != nil || !info.IsDir() {
		return ierr.New(ierr.ErrCodeInputDirMissing, "watch directory does not exist", err).
			WithDetail("dir", w.dir)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return ierr.New(ierr.ErrCodeIndexingFailed, "failed to create filesystem watcher", err)
	}
	if err := fsw.Add(w.dir); err != nil {
		_ = fsw.Close()
		return ierr.New(ierr.ErrCodeIndexingFailed, "failed to watch directory", err).
			WithDetail("dir", w.dir)
	}

	w.mu.Lock()
	w.fsw = fsw
	w.runCtx = ctx
	w.mu.Unlock()

	slog.Info("watching for changes",
		"dir", w.dir,
		"debounce", w.window.String())

	defer func() {
		_ = fsw.Close()
		w.mu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watcher error, continuing", "error", err)
		}
	}
}

// Stop terminates Run. Safe to call multiple times.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	w.stopped = true
	if w.timer != nil {
		w.timer.Stop()
	}
	close(w.stopCh)
}

// State returns the current lifecycle state.
func (w *Watcher) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// handleEvent filters one filesystem event and advances the state
// machine for qualifying ones.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	name := filepath.Base(event.Name)
	if !classify.IsWatched(name) {
		slog.Debug("ignoring event for unwatched file", "file", name)
		return
	}
	// Directories never qualify, whatever their name looks like.
	if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}

	switch w.state {
	case StateRebuilding:
		// The running rebuild reads the directory as it is now; the
		// change after this event gets picked up by the next cycle the
		// user triggers.
		slog.Warn("change during rebuild dropped",
			"file", name,
			"op", event.Op.String())
	case StatePendingRebuild:
		w.timer.Stop()
		w.timer = time.AfterFunc(w.window, w.fire)
		slog.Debug("debounce re-armed", "file", name)
	case StateIdle:
		w.state = StatePendingRebuild
		w.timer = time.AfterFunc(w.window, w.fire)
		slog.Info("change detected, rebuild pending",
			"file", name,
			"op", event.Op.String())
	}
}

// fire runs after a full quiet window with no re-arm.
func (w *Watcher) fire() {
	w.mu.Lock()
	if w.stopped || w.state != StatePendingRebuild {
		w.mu.Unlock()
		return
	}
	w.state = StateRebuilding
	ctx := w.runCtx
	w.mu.Unlock()

	if ctx == nil {
		ctx = context.Background()
	}
	if err := w.rebuild(ctx); err != nil {
		slog.Error("rebuild failed", "error", err)
	}

	w.mu.Lock()
	w.state = StateIdle
	w.mu.Unlock()
}
