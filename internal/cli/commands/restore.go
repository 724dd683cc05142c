package commands

import (
	"fmt"

	"approbe/internal/config"
	"approbe/internal/configfile"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// RestoreCommand handles the restore command
type RestoreCommand struct {
	config *config.Config
}

// NewRestoreCommand creates a new RestoreCommand
func NewRestoreCommand(cfg *config.Config) *RestoreCommand {
	return &RestoreCommand{config: cfg}
}

// Execute restores every config file recorded in the journal
func (rc *RestoreCommand) Execute(cmd *cobra.Command, args []string) error {
	journal := configfile.NewJournal(rc.config.GetJournalDir())
	restored, err := journal.RecoverAll()
	for _, path := range restored {
		color.Green("restored %s", path)
	}
	if err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	if len(restored) == 0 {
		color.Green("Nothing to restore")
	}
	return nil
}
