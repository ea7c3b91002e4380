package supervisor

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	bberrors "github.com/Milkshiift/BigBrother-bot/internal/errors"
	"github.com/Milkshiift/BigBrother-bot/internal/model"
)

// Lockfile guards a data directory against concurrent instances.
type Lockfile struct {
	path string
}

// AcquireLockfile creates dataPath's lockfile exclusively, writing this
// process's PID into it. If the file already exists, it reports the
// owning PID and a best-effort liveness check of that PID — the lock's
// authority is exclusivity of creation, not liveness, so a live-looking
// PID does not get the lock stolen out from under it.
func AcquireLockfile(dataPath string) (*Lockfile, error) {
	path := model.LockfilePath(dataPath)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil, describeHeldLock(path)
		}
		return nil, fmt.Errorf("create lockfile: %w", err)
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "%d\n", os.Getpid()); err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("write lockfile: %w", err)
	}
	return &Lockfile{path: path}, nil
}

func describeHeldLock(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: lockfile %s already exists and could not be read: %v", bberrors.ErrLockHeld, path, err)
	}
	pidStr := strings.TrimSpace(string(data))
	pid, err := strconv.Atoi(pidStr)
	if err != nil {
		return fmt.Errorf("%w: lockfile %s already exists with unreadable contents %q", bberrors.ErrLockHeld, path, pidStr)
	}
	if processAlive(pid) {
		return fmt.Errorf("%w: lockfile %s is held by running process %d", bberrors.ErrLockHeld, path, pid)
	}
	return fmt.Errorf("%w: lockfile %s is held by pid %d, which does not appear to be running; remove it manually if you are sure no other instance is active", bberrors.ErrLockHeld, path, pid)
}

// processAlive makes a best-effort liveness check. On POSIX systems,
// FindProcess always succeeds, so a zero-signal is sent to distinguish a
// live PID from a stale one.
func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

// Release removes the lockfile. Safe to call once, at shutdown.
func (l *Lockfile) Release() error {
	return os.Remove(l.path)
}
