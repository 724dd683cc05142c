package commands

import (
	"approbe/internal/cli"
	"approbe/internal/config"
	"approbe/internal/discovery"
	"approbe/internal/parser"
	"approbe/internal/storage"
	"approbe/internal/ui"

	"github.com/spf13/cobra"
)

// Commands holds all CLI commands
type Commands struct {
	Run           *RunCommand
	List          *ListCommand
	Failures      *FailuresCommand
	History       *HistoryCommand
	Restore       *RestoreCommand
	FixtureServer *FixtureServerCommand
}

// NewCommands creates all commands with dependencies
func NewCommands(cfg *config.Config) *Commands {
	scanner := discovery.NewScanner(cfg.PathsToIgnore)
	filter := discovery.NewFilter()
	scenarioParser := discovery.NewParser()
	outputParser := parser.NewOutputParser()
	jsonStorage := storage.NewJSONStorage(cfg)
	formatter := ui.NewFormatter(cfg, scenarioParser)
	failureViewer := ui.NewFailureViewer(jsonStorage)

	return &Commands{
		Run:           NewRunCommand(cfg, scanner, filter, scenarioParser, outputParser, jsonStorage, formatter, failureViewer),
		List:          NewListCommand(cfg, scanner, filter, formatter, jsonStorage),
		Failures:      NewFailuresCommand(cfg, jsonStorage, failureViewer),
		History:       NewHistoryCommand(cfg, formatter),
		Restore:       NewRestoreCommand(cfg),
		FixtureServer: NewFixtureServerCommand(),
	}
}

// Register registers all commands with cobra
func (c *Commands) Register(rootCmd *cobra.Command, flags *cli.Flags, cfg *config.Config) {
	// Run command
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run app scenarios in parallel",
		Long:  "Discover scenario files, launch the app for each scenario on its own port and check its output and HTTP responses",
		RunE:  c.Run.Execute,
	}
	runCmd.Flags().IntVarP(&flags.Processors, "processors", "p", 0, "Number of fixtures to run concurrently (default 4)")
	runCmd.Flags().StringVarP(&flags.TestPath, "test-path", "t", "", "Path to the folder where scenario detection should start")
	runCmd.Flags().StringVarP(&flags.NameFilter, "filter", "f", "", "Filter scenarios by name or file name (supports wildcards, e.g. '*export*')")
	runCmd.Flags().BoolVar(&flags.FailFast, "fail-fast", false, "Stop starting scenarios after the first failure")
	runCmd.Flags().BoolVar(&flags.OnlyFailed, "failed", false, "Run only scenarios that failed in the last run")
	runCmd.Flags().BoolVarP(&flags.Watch, "watch", "w", false, "Re-run whenever a scenario file changes")
	runCmd.Flags().BoolVar(&flags.OpenFailures, "open-failures", false, "Open the failures viewer when the run finishes with failures")
	rootCmd.AddCommand(runCmd)

	// List command
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List discovered scenarios",
		Long:  "Scan and list scenario files without running them",
		RunE:  c.List.Execute,
	}
	listCmd.Flags().StringVarP(&flags.NameFilter, "filter", "f", "", "Filter files by name pattern (supports wildcards, e.g. '*export*')")
	listCmd.Flags().StringVarP(&flags.TestPath, "test-path", "t", "", "Path to the folder where scenario detection should start")
	listCmd.Flags().BoolVarP(&flags.Scenarios, "scenarios", "s", false, "List the scenarios of each file")
	rootCmd.AddCommand(listCmd)

	// Failures command
	failuresCmd := &cobra.Command{
		Use:   "failures",
		Short: "View scenario failures interactively",
		Long:  "Display the failures of the last run in an interactive viewer",
		RunE:  c.Failures.Execute,
	}
	rootCmd.AddCommand(failuresCmd)

	// History command
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent runs",
		RunE:  c.History.Execute,
	}
	historyCmd.Flags().IntVarP(&flags.HistoryLimit, "limit", "n", 10, "Number of runs to show")
	historyCmd.Flags().StringVar(&flags.HistoryRun, "run", "", "Show the scenarios of one run (id or id prefix)")
	rootCmd.AddCommand(historyCmd)

	// Restore command
	restoreCmd := &cobra.Command{
		Use:   "restore",
		Short: "Restore fixture config files left modified by an interrupted run",
		RunE:  c.Restore.Execute,
	}
	rootCmd.AddCommand(restoreCmd)

	// Fixture server, used by the harness's own tests
	fixtureCmd := &cobra.Command{
		Use:    "fixture-server",
		Short:  "Serve a fixture directory like a dev server",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.FixtureServer.Execute(cmd, flags.FixtureDir, flags.FixturePort, flags.FixtureConfig)
		},
	}
	fixtureCmd.Flags().StringVar(&flags.FixtureDir, "dir", ".", "Fixture directory")
	fixtureCmd.Flags().IntVar(&flags.FixturePort, "port", 0, "Port to listen on (default $PORT)")
	fixtureCmd.Flags().StringVar(&flags.FixtureConfig, "config-file", "", "Config file name inside the fixture")
	rootCmd.AddCommand(fixtureCmd)
}
