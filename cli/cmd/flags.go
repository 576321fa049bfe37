// Package cmd provides CLI commands for the prism binary.
package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/prism/config"
)

// Shared flags.
var (
	// ConfigFlag points at a prism.yaml file. CLI flags override its values.
	ConfigFlag = &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to prism.yaml configuration file",
	}

	// FormatFlag selects output format: json, table, yaml.
	FormatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: json, table, yaml",
	}

	// NoColorFlag disables colored output.
	NoColorFlag = &cli.BoolFlag{
		Name:  "no-color",
		Usage: "Disable colored output",
	}

	// TUIFlag enables Bubble Tea interactive mode. Only the inspect command
	// supports it; the flag exists everywhere so unsupported commands can
	// reject it with a clear message instead of "flag not defined".
	TUIFlag = &cli.BoolFlag{
		Name:  "tui",
		Usage: "Enable interactive TUI mode (inspect only)",
	}

	// KeepAwakeFlag enables the idle-prevention loop during a transfer.
	KeepAwakeFlag = &cli.BoolFlag{
		Name:  "keep-awake",
		Usage: "Click periodically to keep the machine from locking",
	}
)

// ReadOnlyFlags returns the shared flags for read-only commands.
func ReadOnlyFlags() []cli.Flag {
	return []cli.Flag{
		FormatFlag,
		NoColorFlag,
		TUIFlag,
	}
}

// loadConfig resolves the effective configuration: built-in defaults,
// overlaid by the --config file when given.
func loadConfig(c *cli.Context) (*config.Config, error) {
	return config.LoadOrDefault(c.String("config"))
}
