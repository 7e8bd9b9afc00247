// lunatix is the command-line interface to the capability-kernel
// simulator.
package main

import (
	"context"
	"os"

	"github.com/lunatix-kernel/lunatix/internal/cli"
	"github.com/lunatix-kernel/lunatix/internal/cli/cmd"
)

var (
	commands = []cli.Command{
		cmd.Boot(),
	}
)

// Entry point.
func main() {
	result :=
		cli.New(context.Background()).
			WithLogger(os.Stderr).
			WithCommands(commands).
			WithHelp(cmd.Help(commands)).
			Execute(os.Args[1:])

	os.Exit(result)
}
