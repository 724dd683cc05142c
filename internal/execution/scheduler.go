package execution

import (
	"path/filepath"

	"approbe/internal/scenario"
)

// Scheduler splits scenarios into groups. Scenarios inside a group run one
// after another; groups may run in parallel.
type Scheduler interface {
	Schedule(scenarios []*scenario.Scenario) [][]*scenario.Scenario
}

// FixtureScheduler puts every scenario of a fixture directory in one group,
// since they all rewrite the same config file.
type FixtureScheduler struct{}

// NewFixtureScheduler creates a new FixtureScheduler
func NewFixtureScheduler() *FixtureScheduler {
	return &FixtureScheduler{}
}

// Schedule groups by fixture, ordering groups by first appearance and
// keeping the input order inside each group.
func (s *FixtureScheduler) Schedule(scenarios []*scenario.Scenario) [][]*scenario.Scenario {
	index := make(map[string]int)
	var groups [][]*scenario.Scenario

	for _, sc := range scenarios {
		key := filepath.Clean(sc.Fixture)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], sc)
	}
	return groups
}
