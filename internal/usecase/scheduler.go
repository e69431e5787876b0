package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Amir-4m/news-editorial/internal/ports"
)

// Scheduler registers the recurring tasks on a cron-like driver.
type Scheduler struct {
	driver        ports.Scheduler
	agencies      ports.AgencyStore
	tasks         *Tasks
	crawlCron     string
	reconcileCron string
	logger        *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring jobs.
func NewScheduler(driver ports.Scheduler, agencies ports.AgencyStore, tasks *Tasks, crawlCron, reconcileCron string, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		driver:        driver,
		agencies:      agencies,
		tasks:         tasks,
		crawlCron:     crawlCron,
		reconcileCron: reconcileCron,
		logger:        log.With("component", "scheduler"),
	}
}

// Start schedules a crawl for every enabled agency plus the reconcile run.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.tasks == nil {
		return nil
	}

	agencies, err := s.agencies.Agencies(ctx)
	if err != nil {
		return fmt.Errorf("load agencies: %w", err)
	}
	for _, agency := range agencies {
		if !agency.CrawlEnabled {
			continue
		}
		slug := agency.Slug
		if err := s.driver.Add(s.crawlCron, func() { s.queueCrawl(slug) }); err != nil {
			return fmt.Errorf("schedule crawl of %s: %w", slug, err)
		}
		s.logger.Info("crawl scheduled", "agency", slug, "spec", s.crawlCron)
	}
	if s.reconcileCron != "" {
		if err := s.driver.Add(s.reconcileCron, func() { s.tasks.QueueReconcilePublished() }); err != nil {
			return fmt.Errorf("schedule reconcile: %w", err)
		}
	}

	return s.driver.Start(ctx)
}

func (s *Scheduler) queueCrawl(slug string) {
	if _, err := s.tasks.QueueCollectNews(slug); err != nil {
		s.logger.Warn("scheduled crawl skipped", "agency", slug, "error", err)
	}
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
