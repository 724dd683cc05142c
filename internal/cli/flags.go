package cli

import "approbe/internal/config"

// Flags holds command-line flags
type Flags struct {
	Processors   int
	TestPath     string
	NameFilter   string
	Scenarios    bool
	FailFast     bool
	OnlyFailed   bool
	Watch        bool
	OpenFailures bool
	HistoryLimit int
	HistoryRun   string
	Debug        bool

	// fixture-server
	FixtureDir    string
	FixturePort   int
	FixtureConfig string
}

// ToConfigFlags converts CLI flags to config flags
func (f *Flags) ToConfigFlags() config.Flags {
	return config.Flags{
		Processors:   f.Processors,
		TestPath:     f.TestPath,
		NameFilter:   f.NameFilter,
		Scenarios:    f.Scenarios,
		FailFast:     f.FailFast,
		OnlyFailed:   f.OnlyFailed,
		Watch:        f.Watch,
		OpenFailures: f.OpenFailures,
		HistoryLimit: f.HistoryLimit,
		HistoryRun:   f.HistoryRun,
		Debug:        f.Debug,
	}
}
