// Package lockfile keeps two Lumi processes from sharing one state directory.
// Without it both would run the follow-up sweep and message users twice.
//
// The lock is an flock on a file in the state directory, so the kernel drops it
// when the process exits, even on a crash.
package lockfile

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// LockFileName is created inside the state directory.
const LockFileName = "lumi.lock"

// ErrLocked is wrapped by LockError when another process holds the lock.
var ErrLocked = errors.New("state directory is locked by another Lumi instance")

// Lock is an acquired state directory lock.
type Lock struct {
	file *os.File
	path string
}

// holder describes the process recorded in a lock file.
type holder struct {
	PID     int
	Started string
}

func (h holder) String() string {
	if h.PID == 0 {
		return "unknown process"
	}
	state := "running"
	if !isProcessRunning(h.PID) {
		state = "not running, stale lock"
	}
	if h.Started != "" {
		return fmt.Sprintf("PID %d (%s, started %s)", h.PID, state, h.Started)
	}
	return fmt.Sprintf("PID %d (%s)", h.PID, state)
}

// AcquireLock takes an exclusive, non-blocking lock on stateDir, creating the
// directory if needed.
func AcquireLock(stateDir string) (*Lock, error) {
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create state directory %s: %w", stateDir, err)
	}
	lockPath := filepath.Join(stateDir, LockFileName)

	// O_TRUNC would wipe the holder's info before we know we own the lock.
	file, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file %s: %w", lockPath, err)
	}

	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		file.Close()
		h := readHolder(lockPath)
		slog.Error("Lockfile.AcquireLock: state directory already locked", "lock_path", lockPath, "holder", h.String())
		return nil, &LockError{LockPath: lockPath, Holder: h.String(), Cause: err}
	}

	if err := writeHolder(file, holder{PID: os.Getpid(), Started: time.Now().UTC().Format(time.RFC3339)}); err != nil {
		syscall.Flock(int(file.Fd()), syscall.LOCK_UN)
		file.Close()
		return nil, fmt.Errorf("failed to write lock information to %s: %w", lockPath, err)
	}

	slog.Info("Lockfile.AcquireLock: acquired", "lock_path", lockPath, "pid", os.Getpid())
	return &Lock{file: file, path: lockPath}, nil
}

// Release unlocks and removes the lock file. It is safe to call more than once.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	if err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN); err != nil {
		slog.Warn("Lockfile.Release: failed to unlock", "lock_path", l.path, "error", err)
	}
	if err := l.file.Close(); err != nil {
		slog.Warn("Lockfile.Release: failed to close", "lock_path", l.path, "error", err)
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		slog.Warn("Lockfile.Release: failed to remove", "lock_path", l.path, "error", err)
	}
	l.file = nil
	slog.Info("Lockfile.Release: released", "lock_path", l.path)
	return nil
}

// LockError reports a lock held by another process.
type LockError struct {
	LockPath string
	Holder   string
	Cause    error
}

func (e *LockError) Error() string {
	return fmt.Sprintf("another Lumi instance is already running with this state directory (lock file %s, held by %s); "+
		"if that process is gone, remove the lock file and retry", e.LockPath, e.Holder)
}

func (e *LockError) Unwrap() []error {
	return []error{ErrLocked, e.Cause}
}

func writeHolder(f *os.File, h holder) error {
	if err := f.Truncate(0); err != nil {
		return err
	}
	if _, err := f.Seek(0, 0); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(f, "pid=%d\nstarted=%s\n", h.PID, h.Started); err != nil {
		return err
	}
	return f.Sync()
}

func readHolder(lockPath string) holder {
	f, err := os.Open(lockPath)
	if err != nil {
		return holder{}
	}
	defer f.Close()
	return parseHolder(bufio.NewScanner(f))
}

func parseHolder(sc *bufio.Scanner) holder {
	var h holder
	for sc.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(sc.Text()), "=")
		if !ok {
			continue
		}
		switch key {
		case "pid":
			if pid, err := strconv.Atoi(value); err == nil && pid > 0 {
				h.PID = pid
			}
		case "started":
			h.Started = value
		}
	}
	return h
}

// isProcessRunning sends signal 0, which checks existence without delivering anything.
func isProcessRunning(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
