package storage

import (
	"time"

	"approbe/internal/config"
	"approbe/internal/domain"
)

// Storage persists and loads run results (e.g. for the failures viewer).
type Storage interface {
	Save(results []domain.ScenarioResult, failures []domain.ScenarioFailure, duration time.Duration, workers int) (*domain.ResultsOutput, error)
	Load() (*domain.ResultsOutput, error)
	// SaveOutput writes the full output (e.g. after toggling resolved flags).
	SaveOutput(output *domain.ResultsOutput) error
}

// JSONStorage stores results in a JSON file under the configured output path.
type JSONStorage struct {
	cfg *config.Config
}

// NewJSONStorage returns a Storage that reads/writes the config's output JSON path.
func NewJSONStorage(cfg *config.Config) *JSONStorage {
	return &JSONStorage{cfg: cfg}
}
