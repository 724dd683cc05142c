package ui

import "approbe/internal/domain"

// Viewer displays run failures in an interactive TUI
type Viewer interface {
	View(results *domain.ResultsOutput) error
}
