package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/ossidata/avrflash/internal/config"
)

// InitCommand returns the command that writes a default avrflash.yaml
// so a new project starts from an editable config instead of implicit
// defaults.
func InitCommand() *cli.Command {
	return &cli.Command{
		Name:      "init",
		Usage:     "Write a default avrflash.yaml",
		ArgsUsage: "[dir]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "global",
				Usage: "Write the user-level config instead of the project one",
			},
		},
		Action: func(c *cli.Context) error {
			dir := c.Args().Get(0)
			if dir == "" {
				cwd, err := os.Getwd()
				if err != nil {
					return cli.Exit(err.Error(), ExitUsage)
				}
				dir = cwd
			}

			if !c.Bool("global") {
				path := filepath.Join(dir, "avrflash.yaml")
				if _, err := os.Stat(path); err == nil {
					return cli.Exit(fmt.Sprintf("%s already exists", path), ExitUsage)
				}
			}

			if err := config.Save(config.Defaults(), dir, c.Bool("global")); err != nil {
				return cli.Exit(fmt.Sprintf("write config: %v", err), ExitUsage)
			}
			return nil
		},
	}
}
