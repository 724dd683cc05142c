package discovery

import (
	"approbe/internal/scenario"
)

// Parser reads scenario files to list the scenarios they define
type Parser struct{}

// NewParser creates a new Parser
func NewParser() *Parser {
	return &Parser{}
}

// FindScenarios returns the scenario names in a file, in file order
func (p *Parser) FindScenarios(filePath string) ([]string, error) {
	file, err := scenario.Load(filePath)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(file.Scenarios))
	for _, sc := range file.Scenarios {
		names = append(names, sc.Name)
	}
	return names, nil
}

// LoadAll loads every file, keeping the order of files and of scenarios
// within each file. The first invalid file aborts.
func (p *Parser) LoadAll(files []string) ([]*scenario.Scenario, error) {
	var all []*scenario.Scenario
	for _, f := range files {
		file, err := scenario.Load(f)
		if err != nil {
			return nil, err
		}
		all = append(all, file.Scenarios...)
	}
	return all, nil
}
