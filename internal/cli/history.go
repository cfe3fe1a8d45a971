package cli

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/ossidata/avrflash/internal/config"
	"github.com/ossidata/avrflash/internal/render"
	"github.com/ossidata/avrflash/internal/store"
)

// HistoryCommand returns the read-only flash history command.
func HistoryCommand() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Show past flash jobs",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "builds",
				Usage: "Show build history instead of flash history",
			},
		},
		Action: func(c *cli.Context) error {
			project := detectProject()
			cfg := config.Load(project.Root)

			stateDir, err := cfg.ResolveStateDir()
			if err != nil {
				return cli.Exit(fmt.Sprintf("state dir: %v", err), ExitUsage)
			}

			st := store.New(stateDir)
			if c.Bool("builds") {
				records, err := st.Builds()
				if err != nil {
					return cli.Exit(fmt.Sprintf("history unreadable: %v", err), ExitUsage)
				}
				fmt.Print(render.Builds(records))
				return nil
			}

			records, err := st.Flashes()
			if err != nil {
				return cli.Exit(fmt.Sprintf("history unreadable: %v", err), ExitUsage)
			}

			fmt.Print(render.Flashes(records))
			if latest := st.LatestLogPath(); latest != "" {
				fmt.Printf("latest log: %s\n", latest)
			}
			return nil
		},
	}
}
