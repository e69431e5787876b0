package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/Amir-4m/news-editorial/internal/infrastructure/metrics"
)

// Runner executes named tasks in their own goroutines.
type Runner struct {
	ctx     context.Context
	wg      sync.WaitGroup
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewRunner binds tasks to ctx; cancelling it asks running tasks to stop.
func NewRunner(ctx context.Context, m *metrics.Metrics, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{ctx: ctx, metrics: m, logger: log.With("component", "runner")}
}

// Go starts task in the background and returns its run id.
func (r *Runner) Go(name string, task func(ctx context.Context) error) string {
	runID := uuid.NewString()
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		_ = r.run(name, runID, task)
	}()
	return runID
}

// Run executes task on the calling goroutine.
func (r *Runner) Run(name string, task func(ctx context.Context) error) error {
	return r.run(name, uuid.NewString(), task)
}

// Wait blocks until every started task has returned.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) run(name, runID string, task func(ctx context.Context) error) (err error) {
	log := r.logger.With("task", name, "run_id", runID)
	done := r.metrics.TaskStarted(name)
	defer done()
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("task %s panicked: %v", name, p)
			log.Error("task panicked", "panic", p)
		}
	}()

	log.Debug("task started")
	if err = task(r.ctx); err != nil {
		log.Error("task failed", "error", err)
		return err
	}
	log.Debug("task finished")
	return nil
}
