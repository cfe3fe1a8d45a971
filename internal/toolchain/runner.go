package toolchain

import (
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Result bundles the output of a finished external tool invocation.
// ExitCode is -1 when the tool could not be started at all.
type Result struct {
	Output   string
	ExitCode int
	Duration time.Duration
}

// Ok reports whether the tool ran and exited zero.
func (r Result) Ok() bool { return r.ExitCode == 0 }

// Runner executes external tools. The concrete implementation shells out;
// tests substitute a fake to script tool behavior.
type Runner interface {
	// Run executes name with args and returns the combined output.
	Run(name string, args ...string) Result
	// LookPath reports where name resolves on PATH, or an error if it
	// is not installed.
	LookPath(name string) (string, error)
}

// ExecRunner runs tools as real subprocesses with stderr merged into
// stdout, so diagnostic output from failing tools is never lost.
type ExecRunner struct {
	// Dir is the working directory for every invocation. Empty means
	// the current directory.
	Dir string
	// Env overrides the subprocess environment when non-nil.
	Env []string
}

// Run executes the tool and captures combined output. All tool
// invocations are fully non-interactive: stdin is never connected.
func (e ExecRunner) Run(name string, args ...string) Result {
	start := time.Now()
	cmd := exec.Command(name, args...)
	cmd.Dir = e.Dir
	if e.Env != nil {
		cmd.Env = e.Env
	}

	output, err := cmd.CombinedOutput()
	duration := time.Since(start)

	exitCode := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			// Tool missing or not executable; surface the reason in
			// the output so callers have something to log.
			return Result{
				Output:   string(output) + fmt.Sprintf("%s: %v\n", name, err),
				ExitCode: -1,
				Duration: duration,
			}
		}
	}

	return Result{
		Output:   string(output),
		ExitCode: exitCode,
		Duration: duration,
	}
}

// LookPath resolves name on PATH.
func (e ExecRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

// CommandLine renders a tool invocation for logging.
func CommandLine(name string, args ...string) string {
	return name + " " + strings.Join(args, " ")
}
