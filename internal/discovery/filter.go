package discovery

import (
	"path/filepath"
	"strings"

	"approbe/internal/scenario"
)

// Filter filters scenario files and scenarios by name pattern
type Filter struct{}

// NewFilter creates a new Filter
func NewFilter() *Filter {
	return &Filter{}
}

// FilterByName keeps files whose base name matches pattern.
// Supports patterns like "*export.scenario.yaml" or "*export*"; a pattern
// without wildcards matches as a substring.
func (f *Filter) FilterByName(files []string, pattern string) []string {
	if pattern == "" {
		return files
	}
	var filtered []string
	for _, file := range files {
		if matchName(pattern, filepath.Base(file)) {
			filtered = append(filtered, file)
		}
	}
	return filtered
}

// FilterScenarios keeps scenarios whose name or file name matches pattern.
func (f *Filter) FilterScenarios(scenarios []*scenario.Scenario, pattern string) []*scenario.Scenario {
	if pattern == "" {
		return scenarios
	}
	var filtered []*scenario.Scenario
	for _, sc := range scenarios {
		if matchName(pattern, sc.Name) || matchName(pattern, filepath.Base(sc.Source)) {
			filtered = append(filtered, sc)
		}
	}
	return filtered
}

func matchName(pattern, name string) bool {
	if ok, err := filepath.Match(pattern, name); err == nil && ok {
		return true
	}
	if !strings.ContainsAny(pattern, "*?") {
		return strings.Contains(name, pattern)
	}
	if strings.Contains(pattern, "?") {
		return false
	}

	// "*a*b*": every literal part must appear, in order.
	rest := name
	matchedAny := false
	for _, part := range strings.Split(pattern, "*") {
		if part == "" {
			continue
		}
		idx := strings.Index(rest, part)
		if idx < 0 {
			return false
		}
		rest = rest[idx+len(part):]
		matchedAny = true
	}
	return matchedAny
}
