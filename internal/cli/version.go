package cli

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

// VersionCommand returns the version command. It reports the build
// version without touching the project, config, or state dir.
func VersionCommand(version, commit string) *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show version information",
		Action: func(c *cli.Context) error {
			if commit != "" {
				fmt.Fprintf(c.App.Writer, "avrflash %s (%s)\n", version, commit)
			} else {
				fmt.Fprintf(c.App.Writer, "avrflash %s\n", version)
			}
			return nil
		},
	}
}
