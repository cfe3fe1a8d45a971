// Package job runs one flash job inside the detached session: build,
// convert, flash with strategy fallback, recover, report.
//
// The runner never blocks on the orchestrator. Every internal error is
// captured, logged, and reduced to a single status outcome; the only
// things that cross the process boundary are the status file and the
// job log.
package job

import (
	"os"
	"time"

	"github.com/ossidata/avrflash/internal/logx"
	"github.com/ossidata/avrflash/internal/programmer"
	"github.com/ossidata/avrflash/internal/status"
	"github.com/ossidata/avrflash/internal/store"
	"github.com/ossidata/avrflash/internal/toolchain"
)

// Request describes one flash job. Immutable once the job starts.
type Request struct {
	JobID    string
	Port     string
	Artifact string
}

// Builder produces the flashable artifact.
type Builder interface {
	Compile(name string) (string, error)
	Convert(name string) (*toolchain.Artifact, error)
}

// Flasher executes one programmer strategy.
type Flasher interface {
	Flash(s programmer.Strategy, hexPath, port string) programmer.Attempt
}

// PortGuard frees the serial port before and after attempts.
type PortGuard interface {
	EnsureFree(port string) error
	ForceRelease(port string)
}

// Runner owns the job state machine. It exclusively owns the build
// artifact and the attempt sequence for the job's lifetime.
type Runner struct {
	Builder    Builder
	Flasher    Flasher
	Guard      PortGuard
	Strategies []programmer.Strategy
	Channel    *status.Channel
	Store      *store.Store
	Log        *logx.Logger

	state State
}

// State returns the runner's current state.
func (r *Runner) State() State {
	return r.state
}

func (r *Runner) transition(to State) {
	r.Log.Info("state transition", map[string]any{
		"from": r.state.String(),
		"to":   to.String(),
	})
	r.state = to
}

// Run executes the job to a terminal state and reports it through the
// status channel. The write order on completion is fixed: outcome line,
// then best-effort cleanup, then the DONE marker — never reversed, so a
// crash mid-cleanup leaves a readable outcome without the marker.
func (r *Runner) Run(req Request) {
	start := time.Now()
	r.state = StatePending

	artifact, attempts, succeeded := r.execute(req, start)

	if succeeded {
		r.transition(StateSucceeded)
	} else {
		r.transition(StateFailed)
	}

	if err := r.Channel.WriteOutcome(succeeded, req.Artifact); err != nil {
		r.Log.Error("status outcome write failed", map[string]any{"error": err.Error()})
	}

	r.cleanup(req, artifact)
	r.record(req, attempts, succeeded, time.Since(start))

	if err := r.Channel.WriteDone(); err != nil {
		r.Log.Error("status marker write failed", map[string]any{"error": err.Error()})
	}

	r.Log.Info("job finished", map[string]any{
		"succeeded": succeeded,
		"attempts":  len(attempts),
		"duration":  time.Since(start).String(),
	})
}

// execute drives the state machine up to success or exhaustion and
// returns the artifact (if built), the ordered attempts, and the result.
func (r *Runner) execute(req Request, start time.Time) (*toolchain.Artifact, []programmer.Attempt, bool) {
	r.transition(StateBuilding)
	if _, err := r.Builder.Compile(req.Artifact); err != nil {
		r.Log.Error("build failed", map[string]any{"error": err.Error()})
		r.recordBuild(req, nil, false, time.Since(start))
		return nil, nil, false
	}

	r.transition(StateConverting)
	artifact, err := r.Builder.Convert(req.Artifact)
	if err != nil {
		r.Log.Error("conversion failed", map[string]any{"error": err.Error()})
		r.recordBuild(req, nil, false, time.Since(start))
		return nil, nil, false
	}
	r.recordBuild(req, artifact, true, time.Since(start))

	var attempts []programmer.Attempt
	for i, strategy := range r.Strategies {
		r.transition(StateRecovering)
		if err := r.Guard.EnsureFree(req.Port); err != nil {
			// Port could not be freed even after escalation; further
			// attempts would only time out against a busy device.
			r.Log.Error("port recovery failed", map[string]any{"error": err.Error()})
			return artifact, attempts, false
		}
		// The line bounce precedes every attempt: a port left in a
		// wedged mode by the previous attempt would otherwise block
		// the fallback strategy too.
		r.Guard.ForceRelease(req.Port)

		r.transition(StateFlashing)
		r.Log.Info("flash attempt", map[string]any{
			"attempt":  i + 1,
			"strategy": strategy.Name,
		})
		attempt := r.Flasher.Flash(strategy, artifact.HexPath, req.Port)
		attempts = append(attempts, attempt)

		if attempt.Succeeded {
			return artifact, attempts, true
		}
		r.Log.Warn("flash attempt failed", map[string]any{
			"attempt":   i + 1,
			"strategy":  strategy.Name,
			"exit_code": attempt.ExitCode,
		})
	}

	return artifact, attempts, false
}

// cleanup runs the corrective port release and discards the build
// artifact. All best effort: the job outcome is already decided.
func (r *Runner) cleanup(req Request, artifact *toolchain.Artifact) {
	if err := r.Guard.EnsureFree(req.Port); err != nil {
		r.Log.Warn("post-job port recovery failed", map[string]any{"error": err.Error()})
	}
	r.Guard.ForceRelease(req.Port)

	if artifact != nil {
		for _, path := range []string{artifact.HexPath, artifact.BinaryPath} {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				r.Log.Warn("artifact removal failed", map[string]any{"path": path, "error": err.Error()})
			}
		}
	}
}

func (r *Runner) recordBuild(req Request, artifact *toolchain.Artifact, success bool, elapsed time.Duration) {
	rec := store.BuildRecord{
		JobID:     req.JobID,
		Artifact:  req.Artifact,
		Timestamp: time.Now(),
		Success:   success,
		Duration:  elapsed.String(),
	}
	if artifact != nil {
		rec.SizeBytes = artifact.SizeBytes
	}
	if err := r.Store.AddBuild(rec); err != nil {
		r.Log.Warn("build record write failed", map[string]any{"error": err.Error()})
	}
}

func (r *Runner) record(req Request, attempts []programmer.Attempt, succeeded bool, elapsed time.Duration) {
	rec := store.FlashRecord{
		JobID:     req.JobID,
		Port:      req.Port,
		Artifact:  req.Artifact,
		Timestamp: time.Now(),
		Success:   succeeded,
		Attempts:  len(attempts),
		Duration:  elapsed.String(),
	}
	if succeeded && len(attempts) > 0 {
		rec.Strategy = attempts[len(attempts)-1].StrategyName
	}
	if err := r.Store.AddFlash(rec); err != nil {
		r.Log.Warn("flash record write failed", map[string]any{"error": err.Error()})
	}
}
