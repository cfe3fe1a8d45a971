// Package main provides the avrflash CLI entrypoint.
//
// Usage:
//
//	avrflash flash [port] [artifact]
//
// Exit codes for `flash`:
//   - 0: firmware flashed and verified
//   - 1: build or flash failure (see the job log)
//   - 2: timeout (the detached session was killed)
//   - 3: usage or environment error (missing tool, no port)
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	avrcli "github.com/ossidata/avrflash/internal/cli"
)

// version and commit are set via ldflags at build time.
var (
	version = "dev"
	commit  = ""
)

func main() {
	app := &cli.App{
		Name:           "avrflash",
		Usage:          "Detached firmware flashing for serial-connected boards",
		Version:        version,
		ExitErrHandler: exitErrHandler,
		Commands: []*cli.Command{
			avrcli.FlashCommand(),
			avrcli.RunJobCommand(),
			avrcli.InitCommand(),
			avrcli.PortsCommand(),
			avrcli.HistoryCommand(),
			avrcli.VersionCommand(version, commit),
		},
	}

	if err := app.Run(os.Args); err != nil {
		// ExitErrHandler already handled cli.ExitCoder errors; this
		// branch covers unexpected ones that were not wrapped.
		os.Exit(1)
	}
}

// exitErrHandler preserves exit codes from cli.Exit() so the flash
// command's 0/1/2/3 contract survives urfave's default handling.
func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}

	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()

		// cli.Exit("", N).Error() returns "exit status N"; skip those.
		if msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			fmt.Fprintln(os.Stderr, msg)
		}
		os.Exit(code)
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
