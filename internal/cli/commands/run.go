package commands

import (
	"context"
	"fmt"
	"path/filepath"

	"approbe/internal/config"
	"approbe/internal/discovery"
	"approbe/internal/domain"
	"approbe/internal/execution"
	"approbe/internal/logging"
	"approbe/internal/parser"
	"approbe/internal/scenario"
	"approbe/internal/storage"
	"approbe/internal/ui"
	"approbe/internal/watch"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// FailedError is returned by run when scenarios failed.
type FailedError struct {
	Failed int
	Total  int
}

func (e *FailedError) Error() string {
	return fmt.Sprintf("%d of %d scenario(s) failed", e.Failed, e.Total)
}

// RunCommand handles the run command
type RunCommand struct {
	config    *config.Config
	scanner   *discovery.Scanner
	filter    *discovery.Filter
	loader    *discovery.Parser
	parser    parser.Parser
	storage   storage.Storage
	formatter *ui.Formatter
	viewer    ui.Viewer
}

// NewRunCommand creates a new RunCommand
func NewRunCommand(
	cfg *config.Config,
	scanner *discovery.Scanner,
	filter *discovery.Filter,
	loader *discovery.Parser,
	parser parser.Parser,
	st storage.Storage,
	formatter *ui.Formatter,
	viewer ui.Viewer,
) *RunCommand {
	return &RunCommand{
		config:    cfg,
		scanner:   scanner,
		filter:    filter,
		loader:    loader,
		parser:    parser,
		storage:   st,
		formatter: formatter,
		viewer:    viewer,
	}
}

// Execute runs the command
func (rc *RunCommand) Execute(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	output, err := rc.runOnce(ctx)
	if !rc.config.Flags.Watch {
		if err != nil {
			return err
		}
		return rc.finish(output)
	}
	if err != nil {
		color.Red("Error: %v", err)
	}
	return rc.watch(ctx)
}

// finish opens the viewer if asked and turns failures into an error.
func (rc *RunCommand) finish(output *domain.ResultsOutput) error {
	if output == nil || output.Meta.FailedScenarios == 0 {
		return nil
	}
	if rc.config.Flags.OpenFailures && len(output.Details) > 0 {
		if err := rc.viewer.View(output); err != nil {
			return err
		}
	}
	return &FailedError{Failed: output.Meta.FailedScenarios, Total: output.Meta.TotalScenarios}
}

func (rc *RunCommand) watch(ctx context.Context) error {
	root := rc.config.GetTestPath()
	w, err := watch.New(root, rc.config.PathsToIgnore, watch.DefaultDebounce)
	if err != nil {
		return fmt.Errorf("watch %s: %w", root, err)
	}
	defer w.Close()

	color.Cyan("\nWatching %s for scenario changes (Ctrl+C to stop)", root)
	return w.Run(ctx, func(paths []string) {
		for _, p := range paths {
			if rel, err := filepath.Rel(root, p); err == nil {
				p = rel
			}
			color.Cyan("changed: %s", p)
		}
		if _, err := rc.runOnce(ctx); err != nil && ctx.Err() == nil {
			color.Red("Error: %v", err)
		}
	})
}

// runOnce discovers, runs, stores and prints one batch of scenarios. It
// returns nil output when there was nothing to run.
func (rc *RunCommand) runOnce(ctx context.Context) (*domain.ResultsOutput, error) {
	scenarios, err := rc.selectScenarios()
	if err != nil {
		return nil, err
	}
	if len(scenarios) == 0 {
		color.Yellow("No scenarios to execute")
		return nil, nil
	}

	runner, err := execution.NewRunner(rc.config)
	if err != nil {
		return nil, err
	}
	pool := execution.NewWorkerPool(rc.config.Processors, runner, execution.NewFixtureScheduler())
	pool.SetProgress(ui.NewProgressBar(len(scenarios)))

	results, duration, err := pool.Execute(ctx, scenarios, rc.config.Flags.FailFast)
	if err != nil {
		return nil, err
	}

	var failures []domain.ScenarioFailure
	for _, result := range results {
		if !result.Success {
			failures = append(failures, rc.parser.ParseFailure(result)...)
		}
	}

	output, err := rc.storage.Save(results, failures, duration, pool.Workers())
	if err != nil {
		return nil, fmt.Errorf("failed to save scenario results: %w", err)
	}
	rc.recordHistory(output, results)

	rc.formatter.PrintMetaStats(output)
	return output, nil
}

func (rc *RunCommand) selectScenarios() ([]*scenario.Scenario, error) {
	files, err := rc.scanner.Scan(rc.config.GetTestPath())
	if err != nil {
		return nil, err
	}

	var previous *domain.ResultsOutput
	if rc.config.Flags.OnlyFailed {
		previous, err = rc.storage.Load()
		if err != nil {
			return nil, fmt.Errorf("no previous run to take failures from: %w", err)
		}
		files = intersect(files, previous.FailedFiles())
	}

	scenarios, err := rc.loader.LoadAll(files)
	if err != nil {
		return nil, err
	}
	scenarios = rc.filter.FilterScenarios(scenarios, rc.config.Flags.NameFilter)
	if previous != nil {
		scenarios = onlyFailed(scenarios, previous)
	}
	return scenarios, nil
}

// recordHistory appends the run to the SQLite history. History is a
// convenience, so failures are reported and otherwise ignored.
func (rc *RunCommand) recordHistory(output *domain.ResultsOutput, results []domain.ScenarioResult) {
	h, err := storage.OpenHistory(rc.config.GetHistoryPath())
	if err != nil {
		logging.Logger.Warn("open history", zap.Error(err))
		color.Yellow("Warning: run history not recorded: %v", err)
		return
	}
	defer h.Close()
	if err := h.Record(output, results); err != nil {
		logging.Logger.Warn("record history", zap.Error(err))
		color.Yellow("Warning: run history not recorded: %v", err)
	}
}

// intersect keeps the files of all that appear in keep, compared by
// absolute path.
func intersect(all, keep []string) []string {
	want := make(map[string]bool, len(keep))
	for _, f := range keep {
		want[absPath(f)] = true
	}
	var out []string
	for _, f := range all {
		if want[absPath(f)] {
			out = append(out, f)
		}
	}
	return out
}

// onlyFailed keeps scenarios with an unresolved failure in previous.
func onlyFailed(scenarios []*scenario.Scenario, previous *domain.ResultsOutput) []*scenario.Scenario {
	failed := make(map[string]bool)
	for _, d := range previous.Details {
		if !d.Resolved {
			failed[absPath(d.FilePath)+"#"+d.Scenario] = true
		}
	}
	var out []*scenario.Scenario
	for _, sc := range scenarios {
		if failed[absPath(sc.Source)+"#"+sc.Name] {
			out = append(out, sc)
		}
	}
	return out
}

func absPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}
