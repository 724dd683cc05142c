package commands

import (
	"approbe/internal/config"
	"approbe/internal/storage"
	"approbe/internal/ui"

	"github.com/spf13/cobra"
)

// HistoryCommand handles the history command
type HistoryCommand struct {
	config    *config.Config
	formatter *ui.Formatter
}

// NewHistoryCommand creates a new HistoryCommand
func NewHistoryCommand(cfg *config.Config, formatter *ui.Formatter) *HistoryCommand {
	return &HistoryCommand{
		config:    cfg,
		formatter: formatter,
	}
}

// Execute runs the command
func (hc *HistoryCommand) Execute(cmd *cobra.Command, args []string) error {
	h, err := storage.OpenHistory(hc.config.GetHistoryPath())
	if err != nil {
		return err
	}
	defer h.Close()

	if id := hc.config.Flags.HistoryRun; id != "" {
		run, err := h.FindRun(id)
		if err != nil {
			return err
		}
		scenarios, err := h.Scenarios(run.ID)
		if err != nil {
			return err
		}
		hc.formatter.PrintRunDetail(run, scenarios)
		return nil
	}

	limit := hc.config.Flags.HistoryLimit
	if limit <= 0 {
		limit = 10
	}
	runs, err := h.Recent(limit)
	if err != nil {
		return err
	}
	hc.formatter.PrintHistory(runs)
	return nil
}
