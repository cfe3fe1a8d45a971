package cli

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/ossidata/avrflash/internal/render"
	"github.com/ossidata/avrflash/internal/serialport"
)

// PortsCommand returns the read-only port listing command.
func PortsCommand() *cli.Command {
	return &cli.Command{
		Name:  "ports",
		Usage: "List candidate serial ports",
		Action: func(c *cli.Context) error {
			ports, err := serialport.ListPorts()
			if err != nil {
				return cli.Exit(fmt.Sprintf("port enumeration failed: %v", err), ExitUsage)
			}
			fmt.Print(render.Ports(ports))
			return nil
		},
	}
}
