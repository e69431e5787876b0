package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Amir-4m/news-editorial/internal/ports"
)

const (
	TaskCollectNews        = "collect_news"
	TaskReconcilePublished = "reconcile_published"
	TaskPublish            = "publish"
)

// ErrCrawlInProgress is returned when the agency is already being crawled.
var ErrCrawlInProgress = errors.New("crawl already in progress")

// Tasks are the background entry points invoked by the scheduler and the API.
type Tasks struct {
	runner  *Runner
	crawler *Crawler
	sync    *Sync

	mu       sync.Mutex
	crawling map[string]struct{}
}

var _ ports.PublishQueue = (*Tasks)(nil)

// NewTasks binds the use cases to a runner.
func NewTasks(runner *Runner, crawler *Crawler, sync *Sync) *Tasks {
	return &Tasks{runner: runner, crawler: crawler, sync: sync, crawling: map[string]struct{}{}}
}

// QueueCollectNews starts a crawl of one agency and returns its run id.
// At most one crawl per agency runs at a time.
func (t *Tasks) QueueCollectNews(slug string) (string, error) {
	release, err := t.claimCrawl(slug)
	if err != nil {
		return "", err
	}
	return t.runner.Go(TaskCollectNews, func(ctx context.Context) error {
		defer release()
		return t.collectNews(ctx, slug)
	}), nil
}

// CollectNews crawls one agency synchronously.
func (t *Tasks) CollectNews(slug string) error {
	release, err := t.claimCrawl(slug)
	if err != nil {
		return err
	}
	defer release()
	return t.runner.Run(TaskCollectNews, func(ctx context.Context) error {
		return t.collectNews(ctx, slug)
	})
}

// QueueReconcilePublished starts a reconcile run and returns its run id.
func (t *Tasks) QueueReconcilePublished() string {
	return t.runner.Go(TaskReconcilePublished, t.reconcilePublished)
}

// ReconcilePublished pulls quiet published articles and retries pending publishes.
func (t *Tasks) ReconcilePublished() error {
	return t.runner.Run(TaskReconcilePublished, t.reconcilePublished)
}

// EnqueuePublish publishes one approved article in the background.
func (t *Tasks) EnqueuePublish(articleID int64) {
	t.runner.Go(TaskPublish, func(ctx context.Context) error {
		return t.sync.Publish(ctx, articleID)
	})
}

func (t *Tasks) claimCrawl(slug string) (func(), error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, busy := t.crawling[slug]; busy {
		return nil, fmt.Errorf("%s: %w", slug, ErrCrawlInProgress)
	}
	t.crawling[slug] = struct{}{}
	return func() {
		t.mu.Lock()
		delete(t.crawling, slug)
		t.mu.Unlock()
	}, nil
}

func (t *Tasks) collectNews(ctx context.Context, slug string) error {
	_, err := t.crawler.CollectNews(ctx, slug)
	return err
}

func (t *Tasks) reconcilePublished(ctx context.Context) error {
	pulled, err := t.sync.ReconcilePublished(ctx)
	if err != nil {
		return err
	}
	published, err := t.sync.PublishPending(ctx)
	if err != nil {
		return err
	}
	if pulled.Failed > 0 || published.Failed > 0 {
		return fmt.Errorf("reconcile: %d of %d pulls and %d of %d publishes failed",
			pulled.Failed, pulled.Processed, published.Failed, published.Processed)
	}
	return nil
}
