package orch

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/ossidata/avrflash/internal/launch"
	"github.com/ossidata/avrflash/internal/logx"
	"github.com/ossidata/avrflash/internal/status"
	"github.com/ossidata/avrflash/internal/store"
)

// fakeLauncher stands in for the detached session: onLaunch simulates
// whatever the job runner would have done from the other process tree.
type fakeLauncher struct {
	onLaunch func()
	launched bool
}

func (f *fakeLauncher) Launch(bin string, args []string, logPath string) (*launch.Session, error) {
	f.launched = true
	if f.onLaunch != nil {
		go f.onLaunch()
	}
	// A pid far beyond pid_max: killing it is a harmless no-op.
	return &launch.Session{Pid: 99999999}, nil
}

func newOrchestrator(t *testing.T, launcher launch.Launcher) *Orchestrator {
	t.Helper()
	dir := t.TempDir()
	return &Orchestrator{
		Channel:      status.NewChannel(dir),
		Launcher:     launcher,
		Store:        store.New(dir),
		StateDir:     dir,
		PollInterval: 2 * time.Millisecond,
		Log:          logx.Nop().Sugar(),
		JobCommand: func(req FlashRequest, jobID string) (string, []string) {
			return "avrflash", []string{"run-job"}
		},
		PortExists: func(port string) bool { return true },
	}
}

func request(timeout time.Duration) FlashRequest {
	return FlashRequest{Port: "/dev/fake0", Artifact: "blink", Timeout: timeout}
}

func TestRunSuccess(t *testing.T) {
	launcher := &fakeLauncher{}
	o := newOrchestrator(t, launcher)
	launcher.onLaunch = func() {
		time.Sleep(5 * time.Millisecond)
		o.Channel.WriteOutcome(true, "blink")
		o.Channel.WriteDone()
	}

	result, err := o.Run(request(2*time.Second), "job1")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Outcome != OutcomeSuccess {
		t.Fatalf("expected success, got %s", result.Outcome)
	}
	if result.Outcome.ExitCode() != 0 {
		t.Errorf("expected exit code 0, got %d", result.Outcome.ExitCode())
	}
	if result.Record == nil || result.Record.Artifact != "blink" {
		t.Errorf("expected consumed record for blink, got %+v", result.Record)
	}
	if result.LogPath == "" {
		t.Error("expected a job log path")
	}

	// The consumed status file must be gone: no re-reads.
	if _, err := os.Stat(o.Channel.Path); !os.IsNotExist(err) {
		t.Error("status file should be deleted after consumption")
	}
}

func TestRunFailure(t *testing.T) {
	launcher := &fakeLauncher{}
	o := newOrchestrator(t, launcher)
	launcher.onLaunch = func() {
		o.Channel.WriteOutcome(false, "blink")
		o.Channel.WriteDone()
	}

	result, err := o.Run(request(2*time.Second), "job1")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Outcome != OutcomeFailure {
		t.Fatalf("expected failure, got %s", result.Outcome)
	}
	if result.Outcome.ExitCode() != 1 {
		t.Errorf("expected exit code 1, got %d", result.Outcome.ExitCode())
	}
}

func TestRunTimeout(t *testing.T) {
	// The job never reports: a stub programmer sleeping past the
	// deadline looks exactly like this from the caller's side.
	o := newOrchestrator(t, &fakeLauncher{})

	result, err := o.Run(request(30*time.Millisecond), "job1")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Outcome != OutcomeTimeout {
		t.Fatalf("expected timeout, got %s", result.Outcome)
	}
	if result.Outcome.ExitCode() != 2 {
		t.Errorf("expected exit code 2, got %d", result.Outcome.ExitCode())
	}
	if _, err := os.Stat(o.Channel.Path); !os.IsNotExist(err) {
		t.Error("status file should be removed after timeout")
	}

	// The slot must be reusable without manual intervention.
	lock, lerr := status.AcquireLock(o.StateDir)
	if lerr != nil {
		t.Fatalf("job slot not released after timeout: %v", lerr)
	}
	lock.Release()
}

func TestRunOutcomeWithoutMarkerIsNotTerminal(t *testing.T) {
	launcher := &fakeLauncher{}
	o := newOrchestrator(t, launcher)
	launcher.onLaunch = func() {
		// Crash mid-cleanup: outcome written, marker never follows.
		o.Channel.WriteOutcome(true, "blink")
	}

	result, err := o.Run(request(40*time.Millisecond), "job1")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Outcome != OutcomeTimeout {
		t.Fatalf("unterminated outcome must poll as still-running, got %s", result.Outcome)
	}
}

func TestRunClearsStaleStatusBeforeLaunch(t *testing.T) {
	o := newOrchestrator(t, &fakeLauncher{})

	// Leftover terminal record from a previous job.
	o.Channel.WriteOutcome(true, "old-artifact")
	o.Channel.WriteDone()

	result, err := o.Run(request(30*time.Millisecond), "job2")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Outcome == OutcomeSuccess {
		t.Fatal("stale terminal record observed by a new invocation")
	}
}

func TestRunPortUnavailable(t *testing.T) {
	o := newOrchestrator(t, &fakeLauncher{})
	o.PortExists = func(port string) bool { return false }

	_, err := o.Run(request(time.Second), "job1")
	if !errors.Is(err, ErrPortUnavailable) {
		t.Fatalf("expected ErrPortUnavailable, got %v", err)
	}
}

func TestRunBusySlot(t *testing.T) {
	o := newOrchestrator(t, &fakeLauncher{})

	lock, err := status.AcquireLock(o.StateDir)
	if err != nil {
		t.Fatalf("AcquireLock failed: %v", err)
	}
	defer lock.Release()

	_, err = o.Run(request(time.Second), "job1")
	var busy *status.BusyError
	if !errors.As(err, &busy) {
		t.Fatalf("expected BusyError while slot is held, got %v", err)
	}
}

func TestRunTornOutcomePollsToDeadline(t *testing.T) {
	// A partial outcome line with no DONE marker may be an append in
	// flight; the orchestrator must keep polling to the deadline
	// instead of killing the session over it.
	launcher := &fakeLauncher{}
	o := newOrchestrator(t, launcher)
	launcher.onLaunch = func() {
		os.WriteFile(o.Channel.Path, []byte("SUCCESS|bl"), 0o644)
	}

	result, err := o.Run(request(60*time.Millisecond), "job1")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Outcome != OutcomeTimeout {
		t.Fatalf("torn outcome without DONE must never be terminal, got %s", result.Outcome)
	}
}

func TestRunMalformedStatusFails(t *testing.T) {
	launcher := &fakeLauncher{}
	o := newOrchestrator(t, launcher)
	launcher.onLaunch = func() {
		os.WriteFile(o.Channel.Path, []byte("SUCCESS|broken\nDONE\n"), 0o644)
	}

	result, err := o.Run(request(2*time.Second), "job1")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Outcome != OutcomeFailure {
		t.Fatalf("expected failure on malformed status, got %s", result.Outcome)
	}
}
