//go:build !windows

package launch

import (
	"os"
	"syscall"
)

// detachedSysProcAttr requests a new session: the child gets its own
// process group and loses the controlling terminal.
func detachedSysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setsid: true}
}

// killSession kills the whole process group. Setsid made the session
// leader's pid the group id, so the negative pid reaches every process
// the job spawned, including a wedged programmer subprocess.
func killSession(pid int) error {
	err := syscall.Kill(-pid, syscall.SIGKILL)
	if err == syscall.ESRCH {
		return nil // already gone
	}
	if err != nil {
		// Fall back to the single process if the group is unreachable.
		if proc, ferr := os.FindProcess(pid); ferr == nil {
			return proc.Kill()
		}
	}
	return err
}
