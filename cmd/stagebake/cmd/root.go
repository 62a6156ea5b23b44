package cmd

import (
	"context"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/wharflab/stagebake/internal/version"
)

// NewApp creates the CLI application.
func NewApp() *cli.Command {
	return &cli.Command{
		Name:    "stagebake",
		Usage:   "Generate a bake configuration from a tree of multi-stage build files",
		Version: version.Version(),
		Description: `stagebake walks a directory tree, resolves the cross-file stage
dependency graph across every build file it finds, and emits a bake
configuration that builds every stage in the right order.

Examples:
  stagebake generate .
  stagebake generate --exclude "vendor/**" --output bake.hcl .
  stagebake generate --verify-external services/`,
		Commands: []*cli.Command{
			generateCommand(),
			versionCommand(),
		},
	}
}

// Execute runs the CLI application.
func Execute() error {
	return NewApp().Run(context.Background(), os.Args)
}
