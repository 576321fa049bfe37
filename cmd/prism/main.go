// Package main provides the prism CLI entrypoint.
//
// Usage:
//
//	prism <command> [options]
//
// Exit codes for `receive`:
//   - 0: transfer complete, file restored
//   - 1: stalled, draft and manifest persisted
//   - 2: interrupted
//   - 3: nothing received or hard failure
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/prism/cli/cmd"
)

// Commit is set via ldflags at build time.
var commit = "unknown"

func main() {
	app := &cli.App{
		Name:           "prism",
		Usage:          "Air-gapped file transfer over visual symbols",
		Version:        fmt.Sprintf("%s (commit: %s)", cmd.Version, commit),
		ExitErrHandler: exitErrHandler,
		Commands: []*cli.Command{
			cmd.SendCommand(),
			cmd.ReceiveCommand(),
			cmd.InspectCommand(),
			cmd.VersionCommand(commit),
		},
	}

	if err := app.Run(os.Args); err != nil {
		// ExitErrHandler already handled cli.ExitCoder errors; this branch
		// covers unexpected errors that weren't wrapped.
		os.Exit(1)
	}
}

// exitErrHandler preserves exit codes from cli.Exit so receive outcomes
// propagate to the shell.
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
