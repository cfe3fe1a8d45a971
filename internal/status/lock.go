package status

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// LockFileName is the single-slot job lock inside the state dir.
const LockFileName = "job.lock"

// BusyError indicates another flash job currently holds the slot.
type BusyError struct {
	Pid int
}

func (e *BusyError) Error() string {
	return fmt.Sprintf("another flash job is active (pid %d)", e.Pid)
}

// Lock is the held single-slot job lock. Only one job may be in flight
// at a time; the serial port cannot be shared.
type Lock struct {
	Path string
}

// AcquireLock takes the job slot, stealing it from a dead holder. The
// lock file records the holder's pid so staleness is detectable after
// a crash or hard kill.
func AcquireLock(stateDir string) (*Lock, error) {
	path := filepath.Join(stateDir, LockFileName)

	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			_, werr := fmt.Fprintf(f, "%d\n", os.Getpid())
			if cerr := f.Close(); werr == nil && cerr != nil {
				werr = cerr
			}
			if werr != nil {
				os.Remove(path)
				return nil, werr
			}
			return &Lock{Path: path}, nil
		}
		if !os.IsExist(err) {
			return nil, err
		}

		pid, rerr := readLockPid(path)
		if rerr == nil && pidAlive(pid) {
			return nil, &BusyError{Pid: pid}
		}
		// Stale or unreadable lock: remove and retry once.
		os.Remove(path)
	}

	return nil, fmt.Errorf("could not acquire job lock at %s", path)
}

// Release frees the slot.
func (l *Lock) Release() error {
	err := os.Remove(l.Path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func readLockPid(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

// pidAlive probes the process with a null signal.
func pidAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
