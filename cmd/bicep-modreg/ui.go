package main

import (
	"os"

	"github.com/mitchellh/cli"
	"github.com/mitchellh/colorstring"
)

// colorizeUi colors a wrapped cli.Ui's output: errors in red, warnings in
// yellow, and everything else passed through uncolored.
type colorizeUi struct {
	colorize *colorstring.Colorize
	ui       cli.Ui
}

func (u *colorizeUi) Ask(query string) (string, error)       { return u.ui.Ask(query) }
func (u *colorizeUi) AskSecret(query string) (string, error) { return u.ui.AskSecret(query) }
func (u *colorizeUi) Output(message string)                  { u.ui.Output(message) }
func (u *colorizeUi) Info(message string)                    { u.ui.Info(message) }

func (u *colorizeUi) Error(message string) {
	u.ui.Error(u.colorize.Color("[red]" + message + "[reset]"))
}

func (u *colorizeUi) Warn(message string) {
	u.ui.Output(u.colorize.Color("[yellow]" + message + "[reset]"))
}

// newBasicUI returns the CLI's root Ui, wired to stdout/stderr/stdin.
func newBasicUI() cli.Ui {
	return &colorizeUi{
		colorize: &colorstring.Colorize{Colors: colorstring.DefaultColors, Reset: true},
		ui: &cli.BasicUi{
			Writer:      os.Stdout,
			ErrorWriter: os.Stderr,
			Reader:      os.Stdin,
		},
	}
}
