package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/prism/cli/render"
	"github.com/pithecene-io/prism/cli/view"
)

// Version is the canonical project version.
const Version = "0.1.0"

// VersionCommand returns the version command.
func VersionCommand(commit string) *cli.Command {
	return &cli.Command{
		Name:   "version",
		Usage:  "Show version information",
		Flags:  ReadOnlyFlags(),
		Action: versionAction(commit),
	}
}

func versionAction(commit string) cli.ActionFunc {
	return func(c *cli.Context) error {
		if c.Bool("tui") {
			return cli.Exit("--tui is not supported for version", 1)
		}
		r, err := render.NewRenderer(c)
		if err != nil {
			return err
		}
		return r.Render(&view.VersionResponse{Version: Version, Commit: commit})
	}
}
