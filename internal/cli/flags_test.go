package cli

import (
	"testing"

	"approbe/internal/config"
)

func TestToConfigFlags(t *testing.T) {
	f := Flags{
		Processors:   8,
		TestPath:     "e2e",
		NameFilter:   "*export*",
		Scenarios:    true,
		FailFast:     true,
		OnlyFailed:   true,
		Watch:        true,
		OpenFailures: true,
		HistoryLimit: 5,
		HistoryRun:   "abc",
		Debug:        true,
		FixturePort:  3000,
	}
	want := config.Flags{
		Processors:   8,
		TestPath:     "e2e",
		NameFilter:   "*export*",
		Scenarios:    true,
		FailFast:     true,
		OnlyFailed:   true,
		Watch:        true,
		OpenFailures: true,
		HistoryLimit: 5,
		HistoryRun:   "abc",
		Debug:        true,
	}
	if got := f.ToConfigFlags(); got != want {
		t.Errorf("ToConfigFlags() = %+v, want %+v", got, want)
	}
}
