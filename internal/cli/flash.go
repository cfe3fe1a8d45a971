// Package cli wires the avrflash commands.
package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap/zapcore"

	"github.com/ossidata/avrflash/internal/config"
	"github.com/ossidata/avrflash/internal/launch"
	"github.com/ossidata/avrflash/internal/logx"
	"github.com/ossidata/avrflash/internal/orch"
	"github.com/ossidata/avrflash/internal/programmer"
	"github.com/ossidata/avrflash/internal/render"
	"github.com/ossidata/avrflash/internal/serialport"
	"github.com/ossidata/avrflash/internal/status"
	"github.com/ossidata/avrflash/internal/store"
	"github.com/ossidata/avrflash/internal/toolchain"
)

// Exit codes.
const (
	ExitSuccess = 0
	ExitFailure = 1
	ExitTimeout = 2
	ExitUsage   = 3
)

// FlashCommand returns the flash command, the only execution entrypoint.
func FlashCommand() *cli.Command {
	return &cli.Command{
		Name:      "flash",
		Usage:     "Build the artifact and flash it to the board",
		ArgsUsage: "[port] [artifact]",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Hard deadline for the whole job (overrides config)",
			},
			&cli.StringFlag{
				Name:  "order",
				Usage: "Comma-separated programmer strategy order (overrides config)",
			},
		},
		Action: flashAction,
	}
}

func flashAction(c *cli.Context) error {
	project := detectProject()
	cfg := config.Load(project.Root)

	port := c.Args().Get(0)
	if port == "" {
		port = cfg.Port
	}
	if port == "" {
		found, err := serialport.DefaultPort()
		if err != nil {
			return cli.Exit(err.Error(), ExitUsage)
		}
		port = found
	}

	artifact := c.Args().Get(1)
	if artifact == "" {
		artifact = cfg.Artifact
	}
	if artifact == "" {
		return cli.Exit("artifact name required: pass it as the second argument or set `artifact` in avrflash.yaml", ExitUsage)
	}

	timeout := effectiveTimeout(cfg.Timeout.Duration)
	if c.Duration("timeout") > 0 {
		timeout = c.Duration("timeout")
	}

	order := cfg.Programmer.Order
	if raw := c.String("order"); raw != "" {
		order = strings.Split(raw, ",")
	}
	if _, err := programmer.Resolve(order); err != nil {
		return cli.Exit(err.Error(), ExitUsage)
	}

	// Preflight: a missing external tool fails before anything spawns.
	runner := toolchain.ExecRunner{}
	for _, tool := range []string{cfg.Tools.Compiler, cfg.Tools.Converter, cfg.Tools.Flasher} {
		if _, err := runner.LookPath(tool); err != nil {
			return cli.Exit(fmt.Sprintf("required tool %q not found on PATH", tool), ExitUsage)
		}
	}

	stateDir, err := cfg.ResolveStateDir()
	if err != nil {
		return cli.Exit(fmt.Sprintf("state dir: %v", err), ExitUsage)
	}

	launcher, err := launch.ForHost(launch.DetectHost())
	if err != nil {
		return cli.Exit(err.Error(), ExitUsage)
	}

	exe, err := os.Executable()
	if err != nil {
		return cli.Exit(fmt.Sprintf("resolve own binary: %v", err), ExitUsage)
	}

	jobID := uuid.NewString()[:8]
	o := &orch.Orchestrator{
		Channel:      status.NewChannel(stateDir),
		Launcher:     launcher,
		Store:        store.New(stateDir),
		StateDir:     stateDir,
		PollInterval: cfg.PollInterval.Duration,
		Log:          logx.New(os.Stderr, zapcore.WarnLevel, jobID, port, artifact).Sugar(),
		JobCommand: func(req orch.FlashRequest, id string) (string, []string) {
			return exe, jobArgs(req, id, project.Root, stateDir, c.String("order"))
		},
	}

	req := orch.FlashRequest{Port: port, Artifact: artifact, Timeout: timeout}
	result, err := o.Run(req, jobID)
	if err != nil {
		return cli.Exit(err.Error(), ExitUsage)
	}

	switch result.Outcome {
	case orch.OutcomeSuccess:
		fmt.Print(render.Success(artifact, result.LogPath))
		return nil
	case orch.OutcomeTimeout:
		fmt.Print(render.Timeout(artifact, result.LogPath))
		return cli.Exit("", ExitTimeout)
	default:
		fmt.Print(render.Failure(artifact, result.LogPath))
		return cli.Exit("", ExitFailure)
	}
}

// jobArgs renders the detached job invocation. The state dir resolved
// here is handed down so the job can reach the status file even when
// its own config resolution would fail.
func jobArgs(req orch.FlashRequest, jobID, projectRoot, stateDir, order string) []string {
	args := []string{"run-job",
		"--job-id", jobID,
		"--port", req.Port,
		"--artifact", req.Artifact,
		"--project", projectRoot,
		"--state-dir", stateDir,
	}
	if order != "" {
		args = append(args, "--order", order)
	}
	return args
}

// detectProject walks up from the working directory, falling back to
// the working directory itself.
func detectProject() *toolchain.Project {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	if p := toolchain.DetectProject(cwd); p != nil {
		return p
	}
	return toolchain.FallbackProject(cwd)
}

// effectiveTimeout guards against a zero timeout sneaking through config.
func effectiveTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return config.DefaultTimeout
	}
	return d
}
