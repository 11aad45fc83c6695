package store

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"
)

// Lock directories serialize writers that share one output root. The lock
// is a plain mkdir so it works on any filesystem; holder metadata lets a
// later process reclaim locks whose owner died.

const (
	lockStaleAfter = 2 * time.Minute
	lockHolderFile = "holder.json"
	lockRetryFloor = 10 * time.Millisecond
	lockRetryCeil  = 80 * time.Millisecond
)

// LockTimeoutError reports that the lock stayed held for the whole wait
// budget. Callers map it to SLAB_E_LOCK_TIMEOUT.
type LockTimeoutError struct {
	Dir string
}

func (e *LockTimeoutError) Error() string { return "timeout acquiring lock: " + e.Dir }

func IsLockTimeout(err error) bool {
	var e *LockTimeoutError
	return errors.As(err, &e)
}

// WithDirLock runs fn while holding the mkdir lock at lockDir, waiting up
// to wait for another holder to release it.
func WithDirLock(lockDir string, wait time.Duration, fn func() error) error {
	if err := acquireLock(lockDir, wait); err != nil {
		return err
	}
	defer func() { _ = os.RemoveAll(lockDir) }()
	return fn()
}

type lockHolder struct {
	PID        int    `json:"pid"`
	AcquiredAt string `json:"acquiredAt"`
}

func acquireLock(lockDir string, wait time.Duration) error {
	deadline := time.Now().Add(wait)
	delay := lockRetryFloor
	for {
		err := os.Mkdir(lockDir, 0o755)
		if err == nil {
			writeHolder(lockDir)
			return nil
		}
		if !os.IsExist(err) {
			return err
		}
		if reclaimAbandoned(lockDir, time.Now()) {
			continue
		}
		if time.Now().After(deadline) {
			return &LockTimeoutError{Dir: lockDir}
		}
		time.Sleep(delay)
		if delay < lockRetryCeil {
			delay *= 2
		}
	}
}

// writeHolder records who took the lock. Best effort: reclamation falls
// back to age alone when the file is missing or unreadable.
func writeHolder(lockDir string) {
	h := lockHolder{PID: os.Getpid(), AcquiredAt: time.Now().UTC().Format(time.RFC3339Nano)}
	if b, err := json.Marshal(h); err == nil {
		_ = os.WriteFile(filepath.Join(lockDir, lockHolderFile), b, 0o644)
	}
}

func readHolder(lockDir string) (lockHolder, bool) {
	raw, err := os.ReadFile(filepath.Join(lockDir, lockHolderFile))
	if err != nil {
		return lockHolder{}, false
	}
	var h lockHolder
	if err := json.Unmarshal(raw, &h); err != nil || h.PID <= 0 {
		return lockHolder{}, false
	}
	return h, true
}

// reclaimAbandoned removes the lock when it is old enough and its recorded
// holder is no longer running. Returns true when the caller should retry
// the acquire immediately.
func reclaimAbandoned(lockDir string, now time.Time) bool {
	info, err := os.Stat(lockDir)
	if err != nil || now.Sub(info.ModTime()) <= lockStaleAfter {
		return false
	}
	if h, ok := readHolder(lockDir); ok && processAlive(h.PID) {
		return false
	}
	return os.RemoveAll(lockDir) == nil
}
