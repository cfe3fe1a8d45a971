// Package launch starts the job runner in an OS-native isolated
// session: no shared descriptors, no controlling terminal, no
// parent/child wait relationship the caller depends on. External
// flashing tools misbehave when their stdio or process group is tied to
// an interactive shell; total isolation keeps that misbehavior from
// propagating back to the caller.
package launch

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
)

// Host identifies the detected host OS for session-strategy selection.
type Host int

const (
	HostUnknown Host = iota
	HostLinux
	HostDarwin
	HostWindows
)

func (h Host) String() string {
	switch h {
	case HostLinux:
		return "linux"
	case HostDarwin:
		return "darwin"
	case HostWindows:
		return "windows"
	default:
		return "unknown"
	}
}

// DetectHost maps the runtime OS to a Host.
func DetectHost() Host {
	switch runtime.GOOS {
	case "linux":
		return HostLinux
	case "darwin":
		return HostDarwin
	case "windows":
		return HostWindows
	default:
		return HostUnknown
	}
}

// Session is a handle to a launched detached session. The only control
// the caller retains is a forceful kill of the whole session.
type Session struct {
	Pid int
}

// Kill forcefully terminates the entire session's process tree.
func (s *Session) Kill() error {
	return killSession(s.Pid)
}

// Launcher starts a command in a detached session and returns as soon
// as the session is confirmed started, never when the job finishes.
type Launcher interface {
	Launch(bin string, args []string, logPath string) (*Session, error)
}

// ForHost selects the session strategy for the host.
func ForHost(h Host) (Launcher, error) {
	switch h {
	case HostLinux, HostDarwin, HostWindows:
		return sessionLauncher{}, nil
	default:
		return nil, fmt.Errorf("no session launcher for host %q", h)
	}
}

// sessionLauncher detaches via platform process attributes: a new
// session without a controlling terminal on unix hosts, a detached
// process group on windows.
type sessionLauncher struct{}

// Launch starts bin with args in a new session. Stdout and stderr go to
// the job log file; stdin is the null device. The caller's copy of the
// log descriptor is closed once the child holds its own.
func (sessionLauncher) Launch(bin string, args []string, logPath string) (*Session, error) {
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open job log: %w", err)
	}

	cmd := exec.Command(bin, args...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.SysProcAttr = detachedSysProcAttr()

	if err := cmd.Start(); err != nil {
		logFile.Close()
		return nil, fmt.Errorf("start detached session: %w", err)
	}

	pid := cmd.Process.Pid
	logFile.Close()

	// Drop the wait relationship; completion is observed through the
	// status channel, never through process wait.
	cmd.Process.Release()

	return &Session{Pid: pid}, nil
}
