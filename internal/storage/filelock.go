package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

var (
	// ErrLockTimeout indicates the lock acquisition timed out
	ErrLockTimeout = errors.New("lock acquisition timed out")
)

// LockOwner describes the process that last acquired a lock file.
type LockOwner struct {
	PID        int
	AcquiredAt time.Time
}

// FileLock provides exclusive file locking using flock(2).
// The lock is released by the kernel when the process exits or crashes. On
// acquisition the owner's pid and time are written into the file; a clean
// Unlock truncates it. A non-empty lock file whose flock is free therefore
// belongs to a writer that died while holding it.
type FileLock struct {
	path string
	file *os.File
	// stale is the owner found in the file when the lock was acquired, if any.
	stale *LockOwner
}

// NewFileLock creates a new file lock at the given path.
// The lock file and its parent directories will be created if they don't exist.
func NewFileLock(path string) *FileLock {
	return &FileLock{
		path: path,
	}
}

// TryLock attempts to acquire the exclusive lock without blocking.
// Returns true if the lock was acquired, false if it would block.
// An error is returned only for unexpected failures (not for lock contention).
func (l *FileLock) TryLock() (bool, error) {
	if err := l.ensureFileExists(); err != nil {
		return false, err
	}

	err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
	if err != nil {
		_ = l.file.Close()
		l.file = nil
		if errors.Is(err, syscall.EWOULDBLOCK) {
			return false, nil
		}
		return false, fmt.Errorf("flock failed: %w", err)
	}

	if err := l.claim(); err != nil {
		_ = l.Unlock()
		return false, err
	}
	return true, nil
}

// Lock acquires the exclusive lock, blocking until it is available, the
// timeout expires or the context is canceled.
// Returns ErrLockTimeout if the timeout expires before the lock is acquired.
func (l *FileLock) Lock(ctx context.Context, timeout time.Duration) error {
	if err := l.ensureFileExists(); err != nil {
		return err
	}

	deadline := time.Now().Add(timeout)

	// Poll interval - start small and increase
	pollInterval := 10 * time.Millisecond
	maxPollInterval := 500 * time.Millisecond

	for {
		err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
		if err == nil {
			if err := l.claim(); err != nil {
				_ = l.Unlock()
				return err
			}
			return nil
		}

		if !errors.Is(err, syscall.EWOULDBLOCK) {
			l.abandon()
			return fmt.Errorf("flock failed: %w", err)
		}

		if time.Now().After(deadline) {
			l.abandon()
			return ErrLockTimeout
		}

		select {
		case <-ctx.Done():
			l.abandon()
			return ctx.Err()
		case <-time.After(pollInterval):
			pollInterval = min(pollInterval*2, maxPollInterval)
		}
	}
}

// Unlock releases the lock.
// It is safe to call Unlock on an unlocked FileLock (no-op).
func (l *FileLock) Unlock() error {
	if l.file == nil {
		return nil
	}

	truncErr := l.file.Truncate(0)
	err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)
	closeErr := l.file.Close()
	l.file = nil

	if err != nil {
		return fmt.Errorf("flock unlock failed: %w", err)
	}
	if truncErr != nil {
		return fmt.Errorf("truncate failed: %w", truncErr)
	}
	if closeErr != nil {
		return fmt.Errorf("close failed: %w", closeErr)
	}

	return nil
}

// IsLocked returns true if the lock is currently held by this instance.
func (l *FileLock) IsLocked() bool {
	return l.file != nil
}

// Path returns the path to the lock file.
func (l *FileLock) Path() string {
	return l.path
}

// StaleOwner returns the owner left behind by a previous holder that never
// unlocked, or nil if the lock file was clean when acquired.
func (l *FileLock) StaleOwner() *LockOwner {
	return l.stale
}

// ReadLockOwner reads the owner recorded in a lock file.
// It returns nil when the file is missing, empty or unreadable.
func ReadLockOwner(path string) *LockOwner {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	return parseLockOwner(string(data))
}

func parseLockOwner(content string) *LockOwner {
	lines := strings.Split(strings.TrimSpace(content), "\n")
	if len(lines) < 2 {
		return nil
	}
	pid, err := strconv.Atoi(strings.TrimSpace(lines[0]))
	if err != nil {
		return nil
	}
	acquired, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(lines[1]))
	if err != nil {
		return nil
	}
	return &LockOwner{PID: pid, AcquiredAt: acquired}
}

// claim records this process as the owner, remembering any previous owner
// that did not unlock cleanly.
func (l *FileLock) claim() error {
	l.stale = ReadLockOwner(l.path)

	if err := l.file.Truncate(0); err != nil {
		return fmt.Errorf("failed to reset lock file: %w", err)
	}
	owner := fmt.Sprintf("%d\n%s\n", os.Getpid(), time.Now().UTC().Format(time.RFC3339Nano))
	if _, err := l.file.WriteAt([]byte(owner), 0); err != nil {
		return fmt.Errorf("failed to write lock owner: %w", err)
	}
	return nil
}

func (l *FileLock) abandon() {
	_ = l.file.Close()
	l.file = nil
}

// ensureFileExists creates the lock file and its parent directories if needed.
func (l *FileLock) ensureFileExists() error {
	if l.file != nil {
		return nil // Already open
	}

	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}

	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return fmt.Errorf("failed to open lock file: %w", err)
	}

	l.file = file
	return nil
}
