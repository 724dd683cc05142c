package discovery

import (
	"testing"

	"approbe/internal/scenario"
)

func TestFilter_FilterByName(t *testing.T) {
	filter := NewFilter()
	files := []string{
		"/s/export.scenario.yaml",
		"/s/export-headers.scenario.yaml",
		"/s/middleware.scenario.yml",
	}

	tests := []struct {
		name     string
		pattern  string
		expected int
	}{
		{"empty pattern returns all", "", 3},
		{"glob on base name", "middleware.*", 1},
		{"wildcard suffix", "*export.scenario.yaml", 1},
		{"wildcard substring", "*export*", 2},
		{"ordered parts", "*export*headers*", 1},
		{"parts out of order", "*headers*export*", 0},
		{"plain substring", "middle", 1},
		{"no matches", "*nothing*", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := filter.FilterByName(files, tt.pattern)
			if len(result) != tt.expected {
				t.Errorf("expected %d matches, got %d: %v", tt.expected, len(result), result)
			}
		})
	}
}

func TestFilter_FilterScenarios(t *testing.T) {
	filter := NewFilter()
	scenarios := []*scenario.Scenario{
		{Name: "should error with i18n", Source: "/s/export.scenario.yaml"},
		{Name: "should error with rewrites", Source: "/s/export.scenario.yaml"},
		{Name: "serves index", Source: "/s/basic.scenario.yaml"},
	}

	t.Run("by scenario name", func(t *testing.T) {
		result := filter.FilterScenarios(scenarios, "*i18n*")
		if len(result) != 1 || result[0].Name != "should error with i18n" {
			t.Errorf("expected the i18n scenario, got %v", result)
		}
	})

	t.Run("by file name", func(t *testing.T) {
		result := filter.FilterScenarios(scenarios, "export")
		if len(result) != 2 {
			t.Errorf("expected 2 matches, got %d", len(result))
		}
	})

	t.Run("empty pattern", func(t *testing.T) {
		if got := filter.FilterScenarios(scenarios, ""); len(got) != 3 {
			t.Errorf("expected 3 scenarios, got %d", len(got))
		}
	})
}
