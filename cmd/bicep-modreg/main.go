// Command bicep-modreg is a thin CLI wrapper around the module restore
// engine, intended for manual and integration exercise of the pull and
// push paths outside of a language-server session.
//
// A mitchellh/cli.CLI dispatching to named subcommands, with a cli.Ui
// wrapping stdout/stderr.
package main

import (
	"fmt"
	"os"

	"github.com/mitchellh/cli"
)

func main() {
	os.Exit(realMain())
}

func realMain() int {
	ui := newBasicUI()

	c := &cli.CLI{
		Name:     "bicep-modreg",
		Args:     os.Args[1:],
		Commands: commands(ui),
		HelpFunc: cli.BasicHelpFunc("bicep-modreg"),
	}

	exitCode, err := c.Run()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return exitCode
}

func commands(ui cli.Ui) map[string]cli.CommandFactory {
	return map[string]cli.CommandFactory{
		"restore": func() (cli.Command, error) { return &RestoreCommand{UI: ui}, nil },
		"publish": func() (cli.Command, error) { return &PublishCommand{UI: ui}, nil },
	}
}
