package ui

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fatih/color"

	"approbe/internal/config"
	"approbe/internal/discovery"
	"approbe/internal/domain"
	"approbe/internal/storage"
)

var (
	cyan   = color.New(color.FgCyan)
	green  = color.New(color.FgGreen)
	red    = color.New(color.FgRed)
	yellow = color.New(color.FgYellow)
	white  = color.New(color.FgWhite)
)

// Formatter formats and displays output
type Formatter struct {
	config *config.Config
	parser *discovery.Parser
	out    io.Writer
}

// NewFormatter creates a new Formatter writing to stdout
func NewFormatter(cfg *config.Config, parser *discovery.Parser) *Formatter {
	return &Formatter{
		config: cfg,
		parser: parser,
		out:    color.Output,
	}
}

// SetOutput redirects the formatter, e.g. to a buffer in tests.
func (f *Formatter) SetOutput(w io.Writer) {
	f.out = w
}

const (
	tableTop = "┌─────────────────────────────────┬─────────────────────────────┐"
	tableSep = "├─────────────────────────────────┼─────────────────────────────┤"
	tableEnd = "└─────────────────────────────────┴─────────────────────────────┘"
)

func (f *Formatter) row(label string, c *color.Color, value any) {
	fmt.Fprintf(f.out, "│ %-31s │ ", label)
	c.Fprintf(f.out, "%-27v", value)
	fmt.Fprintln(f.out, " │")
}

// PrintMetaStats displays the statistics of a finished run
func (f *Formatter) PrintMetaStats(output *domain.ResultsOutput) {
	meta := output.Meta

	fmt.Fprintln(f.out)
	cyan.Fprintln(f.out, "╔═══════════════════════════════════════════════════════════════╗")
	cyan.Fprintln(f.out, "║                  Scenario Execution Statistics                ║")
	cyan.Fprintln(f.out, "╚═══════════════════════════════════════════════════════════════╝")
	fmt.Fprintln(f.out)

	fmt.Fprintln(f.out, tableTop)
	f.row("Total Scenarios", white, meta.TotalScenarios)
	fmt.Fprintln(f.out, tableSep)
	f.row("Passed Scenarios", green, meta.PassedScenarios)
	fmt.Fprintln(f.out, tableSep)
	f.row("Failed Scenarios", red, meta.FailedScenarios)
	fmt.Fprintln(f.out, tableSep)
	f.row("Failed Expectations", red, meta.FailedExpectations)
	fmt.Fprintln(f.out, tableSep)
	f.row("Duration", white, fmt.Sprintf("%.2fs", meta.DurationSeconds))
	fmt.Fprintln(f.out, tableSep)
	f.row("Workers", white, meta.Workers)
	fmt.Fprintln(f.out, tableSep)
	f.row("Timestamp", white, meta.Timestamp)
	fmt.Fprintln(f.out, tableEnd)

	fmt.Fprintln(f.out)
	if meta.FailedScenarios == 0 {
		green.Fprintln(f.out, "✓ All scenarios passed!")
		return
	}
	red.Fprintf(f.out, "✗ %d scenario(s) failed with %d failed expectation(s)\n", meta.FailedScenarios, meta.FailedExpectations)
	fmt.Fprintln(f.out)
	f.printFailureTree(output.Details)
}

// printFailureTree prints scenario files, their failed scenarios and the
// expectations each one missed.
func (f *Formatter) printFailureTree(failures []domain.ScenarioFailure) {
	byFile := make(map[string]map[string][]domain.ScenarioFailure)
	for _, failure := range failures {
		file := f.relPath(failure.FilePath)
		if byFile[file] == nil {
			byFile[file] = make(map[string][]domain.ScenarioFailure)
		}
		byFile[file][failure.Scenario] = append(byFile[file][failure.Scenario], failure)
	}

	files := sortedKeys(byFile)
	for i, file := range files {
		lastFile := i == len(files)-1
		yellow.Fprintf(f.out, "%s%s\n", branch(lastFile), file)

		scenarios := sortedKeys(byFile[file])
		for j, name := range scenarios {
			lastScenario := j == len(scenarios)-1
			indent := stem(lastFile)
			red.Fprintf(f.out, "%s%s%s\n", indent, branch(lastScenario), name)

			for k, failure := range byFile[file][name] {
				lastFailure := k == len(byFile[file][name])-1
				fmt.Fprintf(f.out, "%s%s%s%s\n", indent, stem(lastScenario), branch(lastFailure), failure.Message)
			}
		}
	}
}

func branch(last bool) string {
	if last {
		return "└── "
	}
	return "├── "
}

func stem(last bool) string {
	if last {
		return "    "
	}
	return "│   "
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (f *Formatter) relPath(path string) string {
	if path == "" {
		return "(unknown file)"
	}
	if f.config.ProjectPath != "" {
		if base, err := filepath.Abs(f.config.ProjectPath); err == nil {
			if rel, err := filepath.Rel(base, path); err == nil && !strings.HasPrefix(rel, "..") {
				return filepath.ToSlash(rel)
			}
		}
	}
	return filepath.ToSlash(path)
}

// CountScenarios returns the number of scenarios across the given files.
func (f *Formatter) CountScenarios(files []string) (int, error) {
	var total int
	for _, file := range files {
		names, err := f.parser.FindScenarios(file)
		if err != nil {
			return 0, err
		}
		total += len(names)
	}
	return total, nil
}

// PrintScenarioList prints scenario files, optionally with their
// scenarios. Files in failed (keyed by absolute path) are marked [F].
func (f *Formatter) PrintScenarioList(files []string, showScenarios bool, failed map[string]bool) {
	if showScenarios {
		green.Fprintf(f.out, "Found %d scenario file(s) with scenarios:\n\n", len(files))
	} else {
		green.Fprintf(f.out, "Found %d scenario file(s):\n\n", len(files))
	}

	for i, file := range files {
		lastFile := i == len(files)-1
		marker := ""
		if abs, err := filepath.Abs(file); err == nil && failed[abs] {
			marker = " " + red.Sprint("[F]")
		}
		cyan.Fprintf(f.out, "%s%s%s\n", branch(lastFile), f.relPath(absOr(file)), marker)

		if !showScenarios {
			continue
		}
		names, err := f.parser.FindScenarios(file)
		if err != nil {
			fmt.Fprintf(f.out, "%s%s%s\n", stem(lastFile), branch(true), red.Sprintf("(invalid: %v)", err))
		} else if len(names) == 0 {
			fmt.Fprintf(f.out, "%s%s%s\n", stem(lastFile), branch(true), red.Sprint("(no scenarios found)"))
		}
		for j, name := range names {
			fmt.Fprintf(f.out, "%s%s%s\n", stem(lastFile), branch(j == len(names)-1), yellow.Sprint(name))
		}
		if !lastFile {
			fmt.Fprintln(f.out)
		}
	}
}

// PrintHistory prints recent runs, newest first.
func (f *Formatter) PrintHistory(runs []storage.RunModel) {
	if len(runs) == 0 {
		yellow.Fprintln(f.out, "No runs recorded yet")
		return
	}
	fmt.Fprintf(f.out, "%-20s  %-8s  %6s  %6s  %6s  %9s\n", "STARTED", "RUN", "TOTAL", "PASSED", "FAILED", "DURATION")
	for _, run := range runs {
		id := run.ID
		if len(id) > 8 {
			id = id[:8]
		}
		status := green
		if run.Failed > 0 {
			status = red
		}
		status.Fprintf(f.out, "%-20s  %-8s  %6d  %6d  %6d  %8.2fs\n",
			run.StartedAt.Local().Format("2006-01-02 15:04:05"), id, run.Total, run.Passed, run.Failed, run.DurationSeconds)
	}
}

// PrintRunDetail prints one run and the outcome of each of its scenarios.
func (f *Formatter) PrintRunDetail(run *storage.RunModel, scenarios []storage.ScenarioRunModel) {
	cyan.Fprintf(f.out, "Run %s  %s\n", run.ID, run.StartedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(f.out, "%d scenario(s): ", run.Total)
	green.Fprintf(f.out, "%d passed", run.Passed)
	fmt.Fprint(f.out, ", ")
	red.Fprintf(f.out, "%d failed", run.Failed)
	fmt.Fprintf(f.out, " in %.2fs\n\n", run.DurationSeconds)

	for i, sc := range scenarios {
		status, mark := green, "PASS"
		if !sc.Success {
			status, mark = red, "FAIL"
		}
		last := i == len(scenarios)-1
		fmt.Fprintf(f.out, "%s%s %s %s\n", branch(last), status.Sprint(mark), sc.Name,
			white.Sprintf("(%s, port %d, %dms)", f.relPath(sc.FilePath), sc.Port, sc.DurationMS))
		if sc.Failures > 0 {
			fmt.Fprintf(f.out, "%s%s\n", stem(last), yellow.Sprintf("%d failed expectation(s)", sc.Failures))
		}
		if sc.Error != "" {
			fmt.Fprintf(f.out, "%s%s\n", stem(last), red.Sprint(sc.Error))
		}
	}
}

func absOr(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}
