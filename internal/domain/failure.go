package domain

// ScenarioFailure is one expectation a scenario did not meet
type ScenarioFailure struct {
	Scenario    string   `json:"scenario"`
	FilePath    string   `json:"file_path"`
	Fixture     string   `json:"fixture"`
	Expectation string   `json:"expectation"` // e.g. stderr_contains, status
	Expected    string   `json:"expected"`
	Message     string   `json:"message"`
	Diagnostics []string `json:"diagnostics"`        // Error lines pulled from the app output
	Resolved    bool     `json:"resolved,omitempty"` // Marked as resolved in the failure viewer
}
