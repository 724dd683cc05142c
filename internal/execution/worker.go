package execution

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"approbe/internal/domain"
	"approbe/internal/logging"
	"approbe/internal/ports"
	"approbe/internal/scenario"
)

var _ Executor = (*WorkerPool)(nil)

// WorkerPool runs scenario groups in parallel, at most Workers at a time
type WorkerPool struct {
	workers   int
	runner    ScenarioRunner
	scheduler Scheduler
	progress  Progress
	ports     PortSource
}

// PortSource leases a port for a single launch.
type PortSource interface {
	Acquire() (int, error)
	Release(port int)
}

// NewWorkerPool creates a new WorkerPool
func NewWorkerPool(workers int, runner ScenarioRunner, scheduler Scheduler) *WorkerPool {
	if workers <= 0 {
		workers = 1
	}
	return &WorkerPool{
		workers:   workers,
		runner:    runner,
		scheduler: scheduler,
		ports:     ports.NewPool(),
	}
}

// SetProgress sets the progress reporter for the worker pool
func (wp *WorkerPool) SetProgress(progress Progress) {
	wp.progress = progress
}

// Workers returns the parallelism limit.
func (wp *WorkerPool) Workers() int {
	return wp.workers
}

// Execute runs every scenario and returns the results in completion order.
// With failFast, no new scenario starts after the first failure; scenarios
// already running finish and are reported.
func (wp *WorkerPool) Execute(ctx context.Context, scenarios []*scenario.Scenario, failFast bool) ([]domain.ScenarioResult, time.Duration, error) {
	if len(scenarios) == 0 {
		return nil, 0, nil
	}
	startTime := time.Now()

	var (
		mu      sync.Mutex
		results []domain.ScenarioResult
		passed  int
		failed  int
		stopped atomic.Bool
	)

	g := new(errgroup.Group)
	g.SetLimit(wp.workers)

	for _, group := range wp.scheduler.Schedule(scenarios) {
		group := group
		g.Go(func() error {
			for _, sc := range group {
				if ctx.Err() != nil || stopped.Load() {
					return nil
				}
				// Leased right before the launch and held until it is torn
				// down, so no concurrent group can be given the same port.
				port, err := wp.ports.Acquire()
				if err != nil {
					stopped.Store(true)
					return fmt.Errorf("allocate port for %q: %w", sc.Name, err)
				}
				result := wp.runner.Run(ctx, sc, port)
				wp.ports.Release(port)

				mu.Lock()
				results = append(results, result)
				if result.Success {
					passed++
				} else {
					failed++
					if failFast {
						stopped.Store(true)
					}
				}
				if wp.progress != nil {
					wp.progress.Update(passed, failed)
				}
				mu.Unlock()

				logging.Logger.Debug("scenario done",
					zap.String("scenario", sc.Name),
					zap.Bool("success", result.Success),
					zap.Duration("duration", result.Duration),
				)
			}
			return nil
		})
	}
	waitErr := g.Wait()

	if wp.progress != nil {
		wp.progress.Finish()
	}
	if waitErr != nil {
		return results, time.Since(startTime), waitErr
	}
	if err := ctx.Err(); err != nil {
		return results, time.Since(startTime), err
	}
	return results, time.Since(startTime), nil
}
