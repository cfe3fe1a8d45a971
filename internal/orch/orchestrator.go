// Package orch is the caller-side half of the flash pipeline: it
// validates the environment, launches the detached job, and polls the
// status channel under a hard deadline. It never waits on the job
// process itself — the two process trees are disjoint by design — and
// it never hangs: the poll loop's deadline is enforced independently of
// whatever the session does.
package orch

import (
	"errors"
	"fmt"
	"time"

	"github.com/ossidata/avrflash/internal/launch"
	"github.com/ossidata/avrflash/internal/logx"
	"github.com/ossidata/avrflash/internal/serialport"
	"github.com/ossidata/avrflash/internal/status"
	"github.com/ossidata/avrflash/internal/store"
)

// ErrPortUnavailable indicates the device path is missing before any
// subprocess was spawned.
var ErrPortUnavailable = errors.New("serial port not found")

// FlashRequest describes one flash invocation. Immutable once the job
// starts.
type FlashRequest struct {
	Port     string
	Artifact string
	Timeout  time.Duration
}

// Outcome is the terminal result of an invocation.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeFailure
	OutcomeTimeout
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailure:
		return "failure"
	case OutcomeTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// ExitCode maps the outcome to the process exit code.
func (o Outcome) ExitCode() int {
	switch o {
	case OutcomeSuccess:
		return 0
	case OutcomeFailure:
		return 1
	default:
		return 2
	}
}

// Result is what the orchestrator hands back to the CLI.
type Result struct {
	Outcome Outcome
	Record  *status.Record // nil on timeout
	LogPath string
}

// Orchestrator runs the caller side of a flash job.
type Orchestrator struct {
	Channel      *status.Channel
	Launcher     launch.Launcher
	Store        *store.Store
	StateDir     string
	PollInterval time.Duration
	Log          *logx.SugaredLogger

	// JobCommand renders the detached job invocation for a request.
	// The default re-execs this binary's hidden job subcommand.
	JobCommand func(req FlashRequest, jobID string) (bin string, args []string)

	// PortExists is injectable for tests; nil means the real device
	// check.
	PortExists func(port string) bool
}

func (o *Orchestrator) portExists(port string) bool {
	if o.PortExists != nil {
		return o.PortExists(port)
	}
	return serialport.Exists(port)
}

func (o *Orchestrator) pollInterval() time.Duration {
	if o.PollInterval > 0 {
		return o.PollInterval
	}
	return 250 * time.Millisecond
}

// Run executes one flash invocation end to end. It returns an error
// only for environment problems detected before launch; once the
// session starts, every path ends in a definitive Result.
func (o *Orchestrator) Run(req FlashRequest, jobID string) (Result, error) {
	if !o.portExists(req.Port) {
		return Result{}, fmt.Errorf("%w: %s", ErrPortUnavailable, req.Port)
	}

	lock, err := status.AcquireLock(o.StateDir)
	if err != nil {
		return Result{}, err
	}

	// Stale reads from a previous job must be impossible before the
	// new session starts.
	if err := o.Channel.Clear(); err != nil {
		lock.Release()
		return Result{}, fmt.Errorf("clear status channel: %w", err)
	}

	logPath, err := o.Store.JobLogPath(jobID)
	if err != nil {
		lock.Release()
		return Result{}, fmt.Errorf("create job log: %w", err)
	}

	bin, args := o.JobCommand(req, jobID)
	session, err := o.Launcher.Launch(bin, args, logPath)
	if err != nil {
		lock.Release()
		return Result{}, fmt.Errorf("launch job session: %w", err)
	}
	o.Log.Infof("flash job %s started in detached session (pid %d)", jobID, session.Pid)

	deadline := time.Now().Add(req.Timeout)
	for {
		record, err := o.Channel.Poll()
		if err != nil {
			// A malformed status file cannot become terminal; treat
			// it as a failed job rather than spinning to the deadline.
			o.Log.Errorf("status channel unreadable: %v", err)
			session.Kill()
			o.consume(lock)
			return Result{Outcome: OutcomeFailure, LogPath: logPath}, nil
		}
		if record != nil {
			o.consume(lock)
			outcome := OutcomeFailure
			if record.Succeeded {
				outcome = OutcomeSuccess
			}
			return Result{Outcome: outcome, Record: record, LogPath: logPath}, nil
		}

		if time.Now().After(deadline) {
			o.Log.Warnf("flash job %s exceeded %s; killing session", jobID, req.Timeout)
			if err := session.Kill(); err != nil {
				o.Log.Errorf("session kill failed: %v", err)
			}
			o.consume(lock)
			return Result{Outcome: OutcomeTimeout, LogPath: logPath}, nil
		}

		time.Sleep(o.pollInterval())
	}
}

// consume deletes the status file and frees the job slot, leaving the
// system ready for the next invocation without manual intervention.
func (o *Orchestrator) consume(lock *status.Lock) {
	if err := o.Channel.Clear(); err != nil {
		o.Log.Warnf("status channel cleanup failed: %v", err)
	}
	if err := lock.Release(); err != nil {
		o.Log.Warnf("job lock release failed: %v", err)
	}
}
