package cli

import (
	"os"
	"strings"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap/zapcore"

	"github.com/ossidata/avrflash/internal/config"
	"github.com/ossidata/avrflash/internal/job"
	"github.com/ossidata/avrflash/internal/logx"
	"github.com/ossidata/avrflash/internal/programmer"
	"github.com/ossidata/avrflash/internal/serialport"
	"github.com/ossidata/avrflash/internal/status"
	"github.com/ossidata/avrflash/internal/store"
	"github.com/ossidata/avrflash/internal/toolchain"
)

// RunJobCommand returns the hidden job-runner entrypoint. The flash
// command re-execs this binary with it inside the detached session;
// stdout and stderr are already redirected into the job log file.
func RunJobCommand() *cli.Command {
	return &cli.Command{
		Name:   "run-job",
		Hidden: true,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "job-id", Required: true},
			&cli.StringFlag{Name: "port", Required: true},
			&cli.StringFlag{Name: "artifact", Required: true},
			&cli.StringFlag{Name: "project", Required: true},
			&cli.StringFlag{Name: "state-dir"},
			&cli.StringFlag{Name: "order"},
		},
		Action: runJobAction,
	}
}

func runJobAction(c *cli.Context) error {
	projectRoot := c.String("project")
	cfg := config.Load(projectRoot)

	req := job.Request{
		JobID:    c.String("job-id"),
		Port:     c.String("port"),
		Artifact: c.String("artifact"),
	}

	log := logx.New(os.Stdout, zapcore.DebugLevel, req.JobID, req.Port, req.Artifact)
	defer log.Sync()

	order := cfg.Programmer.Order
	if raw := c.String("order"); raw != "" {
		order = strings.Split(raw, ",")
	}
	strategies, err := programmer.Resolve(order)
	if err != nil {
		// The orchestrator validated this before launch; a mismatch
		// here still must end in a terminal status, not a silent exit.
		log.Error("strategy resolution failed", map[string]any{"error": err.Error()})
		strategies = nil
	}

	// The orchestrator resolves the state dir and passes it down; the
	// status file must stay reachable even when this side's config
	// resolution would fail.
	stateDir := c.String("state-dir")
	if stateDir == "" {
		resolved, err := cfg.ResolveStateDir()
		if err != nil {
			log.Error("state dir unavailable", map[string]any{"error": err.Error()})
			return nil
		}
		stateDir = resolved
	}

	runner := toolchain.ExecRunner{Dir: projectRoot}
	project := toolchain.FallbackProject(projectRoot)

	r := &job.Runner{
		Builder: &toolchain.Builder{
			Runner:    runner,
			Compiler:  cfg.Tools.Compiler,
			Converter: cfg.Tools.Converter,
			BuildDir:  project.BuildDir,
			Log:       log,
		},
		Flasher: &programmer.Adapter{
			Runner:  runner,
			Flasher: cfg.Tools.Flasher,
			Part:    cfg.Programmer.Part,
			Log:     log,
		},
		Guard: &serialport.Guard{
			Runner:   runner,
			BaudRate: cfg.BaudRate,
			Log:      log,
		},
		Strategies: strategies,
		Channel:    status.NewChannel(stateDir),
		Store:      store.New(stateDir),
		Log:        log,
	}

	r.Run(req)

	// The exit code is unobservable by design; the outcome already
	// crossed the boundary through the status channel.
	return nil
}
