package commands

import (
	"approbe/internal/config"
	"approbe/internal/discovery"
	"approbe/internal/storage"
	"approbe/internal/ui"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// ListCommand handles the list command
type ListCommand struct {
	config    *config.Config
	scanner   *discovery.Scanner
	filter    *discovery.Filter
	formatter *ui.Formatter
	storage   storage.Storage
}

// NewListCommand creates a new ListCommand
func NewListCommand(
	cfg *config.Config,
	scanner *discovery.Scanner,
	filter *discovery.Filter,
	formatter *ui.Formatter,
	st storage.Storage,
) *ListCommand {
	return &ListCommand{
		config:    cfg,
		scanner:   scanner,
		filter:    filter,
		formatter: formatter,
		storage:   st,
	}
}

// Execute runs the command
func (lc *ListCommand) Execute(cmd *cobra.Command, args []string) error {
	files, err := lc.scanner.Scan(lc.config.GetTestPath())
	if err != nil {
		return err
	}

	files = lc.filter.FilterByName(files, lc.config.Flags.NameFilter)

	if len(files) == 0 {
		color.Yellow("No scenario files found")
		return nil
	}

	// Mark files that failed last time; a missing results file just means
	// nothing has run yet.
	failed := make(map[string]bool)
	if previous, err := lc.storage.Load(); err == nil {
		for _, f := range previous.FailedFiles() {
			failed[absPath(f)] = true
		}
	}

	lc.formatter.PrintScenarioList(files, lc.config.Flags.Scenarios, failed)
	return nil
}
