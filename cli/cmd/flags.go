// Package cmd provides CLI commands for the ng binary.
package cmd

import "github.com/urfave/cli/v2"

// Shared flags across commands.
var (
	// FormatFlag selects output format: json, table, yaml.
	FormatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: json, table, yaml",
	}

	// ConfigFlag points at an ng.yaml file whose values act as flag
	// defaults. Flags always win over config values.
	ConfigFlag = &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to ng.yaml config file",
	}

	// AddressFlag is the server address, "local:PATH" or "HOST:PORT".
	AddressFlag = &cli.StringFlag{
		Name:    "address",
		Aliases: []string{"a"},
		Usage:   "Server address (local:PATH or HOST:PORT)",
	}

	// VerboseFlag enables structured session diagnostics on stderr.
	VerboseFlag = &cli.BoolFlag{
		Name:    "verbose",
		Aliases: []string{"v"},
		Usage:   "Log session diagnostics to stderr",
	}
)
