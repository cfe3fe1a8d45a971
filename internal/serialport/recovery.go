package serialport

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.bug.st/serial"

	"github.com/ossidata/avrflash/internal/logx"
	"github.com/ossidata/avrflash/internal/toolchain"
)

// RecoveryError indicates the port stayed busy after escalation.
type RecoveryError struct {
	Port    string
	Holders []int
}

func (e *RecoveryError) Error() string {
	return fmt.Sprintf("port %s still held by pids %v after kill escalation", e.Port, e.Holders)
}

// Guard frees a serial port from stale holders. It runs before the
// first flash attempt (defensive) and after every attempt (corrective):
// closing the programmer's descriptor is not always enough to make the
// device usable by the next caller.
type Guard struct {
	Runner   toolchain.Runner
	BaudRate int // working baud rate for the post-release bounce
	Log      *logx.Logger

	// WaitInterval and Rechecks bound the wait between the graceful
	// terminate and the forceful kill. Zero values get defaults.
	WaitInterval time.Duration
	Rechecks     int

	// signal is injectable for tests; nil means real process signals.
	signal func(pid int, sig os.Signal) error
}

func (g *Guard) waitInterval() time.Duration {
	if g.WaitInterval > 0 {
		return g.WaitInterval
	}
	return 500 * time.Millisecond
}

func (g *Guard) rechecks() int {
	if g.Rechecks > 0 {
		return g.Rechecks
	}
	return 4
}

func (g *Guard) sendSignal(pid int, sig os.Signal) error {
	if g.signal != nil {
		return g.signal(pid, sig)
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return proc.Signal(sig)
}

// EnsureFree terminates any process holding the port, escalating from
// a graceful terminate to a forceful kill. It fails only if the port
// remains held after escalation.
func (g *Guard) EnsureFree(port string) error {
	holders := g.holders(port)
	if len(holders) == 0 {
		return nil
	}

	g.Log.Warn("port held by other processes", map[string]any{
		"port": port,
		"pids": holders,
	})

	for _, pid := range holders {
		if err := g.sendSignal(pid, syscall.SIGTERM); err != nil {
			g.Log.Debug("terminate signal failed", map[string]any{"pid": pid, "error": err.Error()})
		}
	}

	for i := 0; i < g.rechecks(); i++ {
		time.Sleep(g.waitInterval())
		if holders = g.holders(port); len(holders) == 0 {
			return nil
		}
	}

	g.Log.Warn("escalating to forceful kill", map[string]any{"port": port, "pids": holders})
	for _, pid := range holders {
		if err := g.sendSignal(pid, syscall.SIGKILL); err != nil {
			g.Log.Debug("kill signal failed", map[string]any{"pid": pid, "error": err.Error()})
		}
	}

	time.Sleep(g.waitInterval())
	if holders = g.holders(port); len(holders) > 0 {
		return &RecoveryError{Port: port, Holders: holders}
	}
	return nil
}

// ForceRelease toggles the serial line's control state to coerce the
// kernel into dropping serial state that can persist after the
// programmer exits: open with modem lines dropped at a throwaway baud
// rate, close, then bounce back at the working rate. Best effort.
func (g *Guard) ForceRelease(port string) {
	mode := &serial.Mode{BaudRate: 1200}
	p, err := serial.Open(port, mode)
	if err != nil {
		g.Log.Debug("force release open failed", map[string]any{"port": port, "error": err.Error()})
		return
	}
	p.SetDTR(false)
	p.SetRTS(false)
	time.Sleep(250 * time.Millisecond)
	p.Close()

	if g.BaudRate > 0 {
		if p, err := serial.Open(port, &serial.Mode{BaudRate: g.BaudRate}); err == nil {
			p.ResetInputBuffer()
			p.Close()
		}
	}

	g.Log.Info("port line state bounced", map[string]any{"port": port})
}

// holders enumerates pids with the port's file handle open, excluding
// this process. Enumeration shells out to lsof, falling back to fuser;
// both absent means no holders can be found and none are reported.
func (g *Guard) holders(port string) []int {
	res := g.Runner.Run("lsof", "-t", port)
	if res.ExitCode == -1 {
		res = g.Runner.Run("fuser", port)
	}
	// Both tools exit non-zero when nothing holds the file.
	if res.ExitCode != 0 {
		return nil
	}

	self := os.Getpid()
	var pids []int
	for _, field := range strings.Fields(res.Output) {
		// fuser suffixes access modes, e.g. "1234c".
		field = strings.TrimRight(field, "cefFrm")
		pid, err := strconv.Atoi(field)
		if err != nil || pid == self {
			continue
		}
		pids = append(pids, pid)
	}
	return pids
}
