package execution

import (
	"context"
	"time"

	"approbe/internal/domain"
	"approbe/internal/scenario"
)

// Executor runs scenarios and returns their results
type Executor interface {
	Execute(ctx context.Context, scenarios []*scenario.Scenario, failFast bool) ([]domain.ScenarioResult, time.Duration, error)
}

// ScenarioRunner runs one scenario against an app bound to port
type ScenarioRunner interface {
	Run(ctx context.Context, sc *scenario.Scenario, port int) domain.ScenarioResult
}

// Progress receives pass/fail counts as scenarios finish
type Progress interface {
	Update(successCount, failCount int)
	Finish()
}
