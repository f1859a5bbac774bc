// Package main provides the ng CLI entrypoint: a Nailgun protocol
// client for running commands inside a long-lived server process.
//
// Usage:
//
//	ng <command> [options] [args]
//
// The run command exits with the server-reported exit code of the
// executed command; protocol and connection failures exit 1 with a
// message on stderr.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/mihaip/nailgun/cli/cmd"
	"github.com/mihaip/nailgun/nailgun"
)

// Commit is set via ldflags at build time.
var commit = "unknown"

func main() {
	app := &cli.App{
		Name:           "ng",
		Usage:          "Nailgun protocol client",
		Version:        fmt.Sprintf("%s (commit: %s)", nailgun.Version, commit),
		ExitErrHandler: exitErrHandler,
		Commands: []*cli.Command{
			cmd.RunCommand(),
			cmd.BenchCommand(),
			cmd.VersionCommand(commit),
		},
	}

	if err := app.Run(os.Args); err != nil {
		// ExitErrHandler already handled the exit for cli.ExitCoder
		// errors; this branch covers unexpected unwrapped ones.
		os.Exit(1)
	}
}

// exitErrHandler preserves exit codes from cli.Exit() so the run
// command can pass the server-reported code through verbatim.
func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}

	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()

		// cli.Exit("", N).Error() returns "exit status N"; don't echo
		// those synthetic messages.
		if msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			fmt.Fprintln(os.Stderr, msg)
		}
		os.Exit(code)
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
