package parser

import (
	"regexp"
	"strings"

	"approbe/internal/domain"
)

const defaultMaxDiagnostics = 20

var (
	ansiPattern = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]`)
	// Lines dev servers use to report problems.
	diagnosticPattern = regexp.MustCompile(`(?i)^\s*((error|warn(ing)?|failed|panic|fatal)\b|⨯|✖)|(error|exception):\s`)
)

// OutputParser pulls error and warning lines out of captured app output
type OutputParser struct {
	maxLines int
}

// NewOutputParser creates a new OutputParser
func NewOutputParser() *OutputParser {
	return &OutputParser{maxLines: defaultMaxDiagnostics}
}

// ParseFailure returns the result's failures with diagnostics attached. A
// harness error with no expectation failures becomes a failure of its own.
func (p *OutputParser) ParseFailure(result domain.ScenarioResult) []domain.ScenarioFailure {
	if result.Error == nil && len(result.Failures) == 0 {
		return nil
	}
	diagnostics := p.Diagnostics(result.Stdout + "\n" + result.Stderr)

	var failures []domain.ScenarioFailure
	if result.Error != nil {
		failures = append(failures, domain.ScenarioFailure{
			Scenario:    result.Name,
			FilePath:    result.FilePath,
			Fixture:     result.Fixture,
			Expectation: "harness",
			Message:     result.Error.Error(),
		})
	}
	failures = append(failures, result.Failures...)

	for i := range failures {
		failures[i].Diagnostics = append([]string(nil), diagnostics...)
	}
	return failures
}

// Diagnostics returns the distinct error-looking lines of output, in order.
func (p *OutputParser) Diagnostics(output string) []string {
	seen := make(map[string]bool)
	diagnostics := []string{}

	for _, line := range strings.Split(StripANSI(output), "\n") {
		line = strings.TrimRight(line, "\r ")
		if strings.TrimSpace(line) == "" || !diagnosticPattern.MatchString(line) {
			continue
		}
		if seen[line] {
			continue
		}
		seen[line] = true
		diagnostics = append(diagnostics, line)
		if len(diagnostics) == p.maxLines {
			break
		}
	}
	return diagnostics
}

// StripANSI removes terminal escape sequences.
func StripANSI(s string) string {
	return ansiPattern.ReplaceAllString(s, "")
}
