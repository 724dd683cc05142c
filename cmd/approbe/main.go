package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"approbe/internal/cli"
	"approbe/internal/cli/commands"
	"approbe/internal/config"
	"approbe/internal/logging"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	// Create initial config with defaults
	cfg := config.New()

	// Create flags struct (will be populated by command flags)
	var flags cli.Flags

	rootCmd := &cobra.Command{
		Use:   "approbe",
		Short: "Black-box probe harness for web app dev servers",
		Long: `Launch a web application's dev server against fixture directories, ` +
			`rewrite its config per scenario and assert on its output and HTTP responses. ` +
			`Scenarios run in parallel, one port per launch.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.ApplyEnv(); err != nil {
				return err
			}
			cfg.ApplyFlags(flags.ToConfigFlags())
			_, err := logging.Initialize(cfg.Debug, cfg.DebugFile, filepath.Join(cfg.ProjectPath, cfg.OutputJSONDir, "logs"))
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logging.Sync()
		},
	}
	rootCmd.PersistentFlags().BoolVar(&flags.Debug, "debug", false, "Write a debug log under .approbe/logs")

	// Create commands with dependencies
	cmds := commands.NewCommands(cfg)

	// Register all commands
	cmds.Register(rootCmd, &flags, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	logging.Sync()
	if err != nil {
		var failed *commands.FailedError
		if !errors.As(err, &failed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}
