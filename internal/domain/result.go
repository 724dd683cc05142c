package domain

import "time"

// ScenarioResult is the outcome of running one scenario
type ScenarioResult struct {
	Name     string // Scenario name
	FilePath string // Scenario file it was loaded from
	Fixture  string // Fixture directory the app ran in
	Port     int    // Port the app was bound to
	Success  bool   // All expectations met
	Stdout   string // Captured app stdout
	Stderr   string // Captured app stderr
	Failures []ScenarioFailure
	Warnings []string      // Teardown problems; never turn a pass into a fail
	Error    error         // Harness error (launch, probe transport), if any
	Duration time.Duration // Time from config write to teardown
}

// ResultsMeta contains metadata about a run
type ResultsMeta struct {
	RunID              string  `json:"run_id"`
	TotalScenarios     int     `json:"total_scenarios"`
	FailedScenarios    int     `json:"failed_scenarios"`
	PassedScenarios    int     `json:"passed_scenarios"`
	FailedExpectations int     `json:"failed_expectations"`
	Duration           string  `json:"duration"`
	DurationSeconds    float64 `json:"duration_seconds"`
	Workers            int     `json:"workers"`
	Timestamp          string  `json:"timestamp"`
}

// ResultsOutput is the complete output structure for a run
type ResultsOutput struct {
	Meta    ResultsMeta       `json:"meta"`
	Details []ScenarioFailure `json:"details"`
}

// FailedFiles returns the distinct scenario files that have unresolved failures.
func (o *ResultsOutput) FailedFiles() []string {
	seen := make(map[string]bool)
	var files []string
	for _, d := range o.Details {
		if d.Resolved || seen[d.FilePath] {
			continue
		}
		seen[d.FilePath] = true
		files = append(files, d.FilePath)
	}
	return files
}
