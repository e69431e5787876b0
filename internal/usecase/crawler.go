package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Amir-4m/news-editorial/internal/domain"
	"github.com/Amir-4m/news-editorial/internal/infrastructure/metrics"
	"github.com/Amir-4m/news-editorial/internal/ports"
	"github.com/Amir-4m/news-editorial/internal/scanner"
)

// ErrAgencyDisabled is returned when a crawl is requested for an agency with crawling turned off.
var ErrAgencyDisabled = errors.New("agency crawling is disabled")

// CrawlReport summarizes one agency crawl.
type CrawlReport struct {
	Agency     string
	Links      int
	Created    int
	Duplicates int
	Failed     int
}

// CrawlerDeps wires the crawl orchestrator.
type CrawlerDeps struct {
	Store         ports.Store
	Registry      *scanner.Registry
	Images        ports.ImageStore
	InitialStatus domain.Status
	Metrics       *metrics.Metrics
	Logger        *slog.Logger
}

// Crawler runs one agency's adapter end to end and persists what it finds.
type Crawler struct {
	store    ports.Store
	registry *scanner.Registry
	images   ports.ImageStore
	initial  domain.Status
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewCrawler constructs the orchestrator.
func NewCrawler(deps CrawlerDeps) *Crawler {
	initial := deps.InitialStatus
	if initial == "" {
		initial = domain.StatusVoid
	}
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Crawler{
		store:    deps.Store,
		registry: deps.Registry,
		images:   deps.Images,
		initial:  initial,
		metrics:  deps.Metrics,
		logger:   log.With("component", "crawler"),
	}
}

// CollectNews crawls the agency identified by slug. Per-article failures are
// logged and counted; only configuration problems are returned.
func (c *Crawler) CollectNews(ctx context.Context, slug string) (CrawlReport, error) {
	report := CrawlReport{Agency: slug}

	agency, err := c.store.AgencyBySlug(ctx, slug)
	if err != nil {
		return report, fmt.Errorf("load agency: %w", err)
	}
	if !agency.CrawlEnabled {
		return report, fmt.Errorf("%s: %w", slug, ErrAgencyDisabled)
	}
	adapter, err := c.registry.Resolve(agency.Slug)
	if err != nil {
		return report, err
	}

	mappings, err := c.store.Targets(ctx, agency.ID)
	if err != nil {
		return report, fmt.Errorf("load targets: %w", err)
	}
	targets := make([]scanner.Target, 0, len(mappings))
	for _, m := range mappings {
		targets = append(targets, scanner.Target{URL: m.URL, CategoryID: m.CategoryID})
	}
	if len(targets) == 0 {
		c.logger.Warn("agency has no scrape targets", "agency", slug)
		return report, nil
	}

	links := adapter.CollectLinks(ctx, targets)
	report.Links = len(links)
	c.metrics.LinksFound(slug, len(links))

	for _, link := range links {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		draft, err := adapter.CollectArticle(ctx, link)
		if err != nil {
			report.Failed++
			c.metrics.CrawlOutcome(slug, "failed")
			c.logger.Warn("collect article failed", "agency", slug, "url", link.URL, "error", err)
			continue
		}
		created, err := c.ingest(ctx, agency, draft)
		if err != nil {
			report.Failed++
			c.metrics.CrawlOutcome(slug, "failed")
			c.logger.Error("store article failed", "agency", slug, "source_id", draft.NativeID, "url", link.URL, "error", err)
			continue
		}
		if created {
			report.Created++
			c.metrics.CrawlOutcome(slug, "created")
			c.logger.Info("article created", "agency", slug, "source_id", draft.NativeID, "url", draft.SourceURL)
		} else {
			report.Duplicates++
			c.metrics.CrawlOutcome(slug, "duplicate")
			c.logger.Debug("duplicate article", "agency", slug, "source_id", draft.NativeID, "url", draft.SourceURL)
		}
	}

	c.logger.Info("crawl finished", "agency", slug, "links", report.Links,
		"created", report.Created, "duplicates", report.Duplicates, "failed", report.Failed)
	return report, nil
}

// ingest stores the cover image and article. Only a new article gets
// categories: those mapped to its scraped label and, when the label is
// known to the agency, the category of the listing page it was found on.
func (c *Crawler) ingest(ctx context.Context, agency *domain.Agency, draft *domain.Draft) (bool, error) {
	cover, err := c.images.Put(ctx, mediaKey(agency.Slug, draft), draft.Image)
	if err != nil {
		return false, fmt.Errorf("store cover image: %w", err)
	}

	article := &domain.Article{
		AgencyID:       agency.ID,
		Source:         agency.Slug,
		NativeID:       draft.NativeID,
		Title:          draft.Title,
		Summary:        draft.Summary,
		OriginalBody:   draft.Body,
		Body:           draft.Body,
		SourceCategory: draft.CategoryLabel,
		PublishedAt:    draft.PublishedAt,
		SourceURL:      draft.SourceURL,
		CoverImage:     cover,
		Priority:       domain.PriorityMedium,
		Status:         c.initial,
	}
	created, err := c.store.CreateIfAbsent(ctx, article)
	if err != nil || !created {
		return created, err
	}

	categoryIDs, err := c.store.CategoriesForLabel(ctx, agency.ID, draft.CategoryLabel)
	if err != nil {
		return true, fmt.Errorf("resolve label %q: %w", draft.CategoryLabel, err)
	}
	if len(categoryIDs) > 0 {
		if draft.TargetCategoryID != 0 {
			categoryIDs = uniqueIDs(append(categoryIDs, draft.TargetCategoryID))
		}
		if err := c.store.AddCategories(ctx, article.ID, categoryIDs...); err != nil {
			return true, fmt.Errorf("attach categories: %w", err)
		}
	}
	return true, nil
}

func mediaKey(slug string, draft *domain.Draft) string {
	return fmt.Sprintf("%s/%d/%s", slug, draft.NativeID, draft.ImageName())
}
