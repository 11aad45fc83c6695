package harness

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Wait outcomes recorded in run.json.
const (
	WaitSettled = "settled"
	WaitTimeout = "timeout"
)

// WaitForSettle blocks until the capture file stops growing (no size change
// for settle) or until timeout. The sensor flushes asynchronously after the
// app exits, so the harness cannot validate the instant the app is done.
func WaitForSettle(ctx context.Context, path string, settle, timeout time.Duration) (string, int64) {
	start := time.Now()
	if settle <= 0 {
		return WaitSettled, 0
	}
	path = filepath.Clean(path)

	// Inotify gives low-latency change resets; the ticker is the backstop
	// for filesystems where watches are unreliable.
	var events chan fsnotify.Event
	if watcher, err := fsnotify.NewWatcher(); err == nil {
		defer watcher.Close()
		if err := watcher.Add(filepath.Dir(path)); err == nil {
			events = watcher.Events
		}
	}

	tick := time.NewTicker(pollInterval(settle))
	defer tick.Stop()
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	lastSize := fileSize(path)
	lastChange := time.Now()

	for {
		select {
		case <-ctx.Done():
			return WaitTimeout, time.Since(start).Milliseconds()
		case <-deadline.C:
			return WaitTimeout, time.Since(start).Milliseconds()
		case ev := <-events:
			if ev.Name != path || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if size := fileSize(path); size != lastSize {
				lastSize, lastChange = size, time.Now()
			}
		case <-tick.C:
			if size := fileSize(path); size != lastSize {
				lastSize, lastChange = size, time.Now()
				continue
			}
			if time.Since(lastChange) >= settle {
				return WaitSettled, time.Since(start).Milliseconds()
			}
		}
	}
}

func pollInterval(settle time.Duration) time.Duration {
	iv := settle / 4
	if iv > 200*time.Millisecond {
		iv = 200 * time.Millisecond
	}
	if iv < 10*time.Millisecond {
		iv = 10 * time.Millisecond
	}
	return iv
}

// fileSize returns -1 for a missing file, so creation counts as a change.
func fileSize(path string) int64 {
	fi, err := os.Stat(path)
	if err != nil {
		return -1
	}
	return fi.Size()
}
