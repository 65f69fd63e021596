package events

import (
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
)

// AbortFileName is the well-known file whose mere presence tells the
// scheduler and every worker's chat client to stop.
const AbortFileName = ".abort"

// CompletionMarkerName is the well-known file written once a run has ended,
// by any termination path (normal completion or abort).
const CompletionMarkerName = ".hive_complete"

// AbortPath returns the abort-signal path for a drone directory.
func AbortPath(droneDir string) string { return filepath.Join(droneDir, AbortFileName) }

// CompletionMarkerPath returns the completion-marker path for a drone
// directory.
func CompletionMarkerPath(droneDir string) string {
	return filepath.Join(droneDir, CompletionMarkerName)
}

// IsAborted reports whether the abort file is currently present.
func IsAborted(droneDir string) bool {
	_, err := os.Stat(AbortPath(droneDir))
	return err == nil
}

// WriteCompletionMarker creates the completion marker, truncating it if it
// somehow already exists (e.g. a --resume rerun of an already-finished
// drone directory).
func WriteCompletionMarker(droneDir string) error {
	if err := os.MkdirAll(droneDir, 0o755); err != nil {
		return err
	}
	f, err := os.Create(CompletionMarkerPath(droneDir))
	if err != nil {
		return err
	}
	return f.Close()
}

// AbortFlag is the process-wide atomic flag the scheduler's tick loop and
// every worker's chat client observe. Setting it is idempotent:
// an already-aborted run accepts further abort signals as no-ops.
type AbortFlag struct {
	set atomic.Bool
}

// NewAbortFlag returns an unset flag.
func NewAbortFlag() *AbortFlag { return &AbortFlag{} }

// Set raises the flag. Safe to call more than once.
func (a *AbortFlag) Set() { a.set.Store(true) }

// IsSet reports whether the flag has been raised.
func (a *AbortFlag) IsSet() bool { return a.set.Load() }

// WatchAbort starts a best-effort fsnotify watch on droneDir that raises
// flag as soon as the abort file is created, instead of waiting for the
// scheduler's own 100ms tick-driven poll to notice it. The poll is the
// contract; this just shaves latency off of it. If the watcher
// can't be established (platform without inotify, permission error), it is
// silently skipped — the tick-driven poll alone still satisfies the
// contract. The returned stop function releases the watcher; it is safe to
// call more than once.
func WatchAbort(droneDir string, flag *AbortFlag) (stop func()) {
	if IsAborted(droneDir) {
		flag.Set()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return func() {}
	}
	if err := watcher.Add(droneDir); err != nil {
		watcher.Close()
		return func() {}
	}

	done := make(chan struct{})
	go func() {
		defer watcher.Close()
		abortPath := AbortPath(droneDir)
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Name == abortPath && (ev.Op&(fsnotify.Create|fsnotify.Write) != 0) {
					flag.Set()
				}
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			case <-done:
				return
			}
		}
	}()

	var closed atomic.Bool
	return func() {
		if closed.CompareAndSwap(false, true) {
			close(done)
		}
	}
}
