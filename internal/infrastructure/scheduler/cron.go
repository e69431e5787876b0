package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Amir-4m/news-editorial/internal/ports"
)

// CronScheduler drives periodic jobs from standard five-field cron expressions.
type CronScheduler struct {
	cron    *cron.Cron
	logger  *slog.Logger
	started bool
}

var _ ports.Scheduler = (*CronScheduler)(nil)

// NewCronScheduler builds a scheduler evaluating expressions in loc.
func NewCronScheduler(loc *time.Location, log *slog.Logger) *CronScheduler {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "scheduler")
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithParser(cron.NewParser(cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow|cron.Descriptor)),
		cron.WithChain(cron.Recover(cronLogger{log})),
	)
	return &CronScheduler{cron: c, logger: log}
}

// Add registers job under spec. Jobs may be added before or after Start.
func (c *CronScheduler) Add(spec string, job func()) error {
	if job == nil {
		return fmt.Errorf("schedule %q: nil job", spec)
	}
	id, err := c.cron.AddFunc(spec, job)
	if err != nil {
		return fmt.Errorf("schedule %q: %w", spec, err)
	}
	c.logger.Debug("job scheduled", "spec", spec, "entry", int(id))
	return nil
}

// Start begins firing jobs; it stops when ctx is cancelled.
func (c *CronScheduler) Start(ctx context.Context) error {
	if c.started {
		return nil
	}
	c.started = true
	c.cron.Start()
	go func() {
		<-ctx.Done()
		c.cron.Stop()
	}()
	return nil
}

// Stop prevents new runs and waits for running jobs or ctx, whichever comes first.
func (c *CronScheduler) Stop(ctx context.Context) error {
	if !c.started {
		return nil
	}
	c.started = false
	done := c.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger adapts slog to the cron.Logger interface.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error(msg, append(keysAndValues, "error", err)...)
}
