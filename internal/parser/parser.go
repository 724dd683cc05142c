package parser

import "approbe/internal/domain"

// Parser turns a scenario result into failure records
type Parser interface {
	ParseFailure(result domain.ScenarioResult) []domain.ScenarioFailure
}
