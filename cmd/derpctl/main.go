// Package main provides the derpctl CLI entrypoint.
//
// derpctl is the only client of a running derpd root rank's control
// socket (spec.md §6 "Client -> root"). Every command but start and
// kill is read-only; start and kill are the only ones that mutate job
// state.
//
// Usage:
//
//	derpctl <command> [options]
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/derp/cli/cmd"
	"github.com/pithecene-io/derp/types"
)

// commit is set via ldflags at build time.
var commit = "unknown"

func main() {
	app := &cli.App{
		Name:           "derpctl",
		Usage:          "control client for a running derpd tree",
		Version:        fmt.Sprintf("%s (commit: %s)", types.Version, commit),
		ExitErrHandler: exitErrHandler,
		Commands: []*cli.Command{
			cmd.StartCommand(),
			cmd.KillCommand(),
			cmd.PingCommand(),
			cmd.TopologyCommand(),
			cmd.VersionCommand("", commit),
		},
	}

	if err := app.Run(os.Args); err != nil {
		os.Exit(1)
	}
}

// exitErrHandler preserves exit codes from cli.Exit() rather than
// collapsing every error to 1.
func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}

	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()
		if msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			fmt.Fprintln(os.Stderr, msg)
		}
		os.Exit(code)
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
