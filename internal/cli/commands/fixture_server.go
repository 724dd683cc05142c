package commands

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"approbe/internal/fixtureserver"

	"github.com/spf13/cobra"
)

// FixtureServerCommand serves a fixture with the built-in stand-in server
type FixtureServerCommand struct{}

// NewFixtureServerCommand creates a new FixtureServerCommand
func NewFixtureServerCommand() *FixtureServerCommand {
	return &FixtureServerCommand{}
}

// Execute serves dir on port until the command's context is cancelled
func (fc *FixtureServerCommand) Execute(cmd *cobra.Command, dir string, port int, configFile string) error {
	if port == 0 {
		p, err := strconv.Atoi(os.Getenv("PORT"))
		if err != nil {
			return fmt.Errorf("no --port given and PORT is not a number: %w", err)
		}
		port = p
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return fixtureserver.Run(ctx, fixtureserver.Options{
		Dir:        dir,
		Port:       port,
		ConfigFile: configFile,
		Stdout:     cmd.OutOrStdout(),
		Stderr:     cmd.ErrOrStderr(),
	})
}
