package execution

import (
	"fmt"
	"regexp"

	"approbe/internal/config"
	"approbe/internal/configfile"
	"approbe/internal/scenario"
)

// NewRunner builds the scenario runner from the loaded configuration. The
// journal lets `approbe restore` undo config edits of a crashed run.
func NewRunner(cfg *config.Config) (*scenario.Runner, error) {
	var ready *regexp.Regexp
	if cfg.ReadyPattern != "" {
		re, err := regexp.Compile(cfg.ReadyPattern)
		if err != nil {
			return nil, fmt.Errorf("invalid ready pattern %q: %w", cfg.ReadyPattern, err)
		}
		ready = re
	}

	return &scenario.Runner{
		Command:        append([]string(nil), cfg.Command...),
		ConfigFile:     cfg.ConfigFile,
		ReadyPattern:   ready,
		StartupTimeout: cfg.StartupTimeout,
		KillTimeout:    cfg.KillTimeout,
		ProbeTimeout:   cfg.ProbeTimeout,
		Journal:        configfile.NewJournal(cfg.GetJournalDir()),
	}, nil
}
