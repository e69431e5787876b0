package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/Amir-4m/news-editorial/internal/config"
	"github.com/Amir-4m/news-editorial/internal/domain"
	"github.com/Amir-4m/news-editorial/internal/ports"
)

// Seed upserts categories, agencies and their site mappings from configuration.
func (a *Application) Seed(ctx context.Context) error {
	return Seed(ctx, a.store, a.cfg)
}

// Seed writes the configured reference data into store. Repeated runs are idempotent.
func Seed(ctx context.Context, store ports.Store, cfg config.Config) error {
	for _, c := range cfg.Categories {
		title := strings.TrimSpace(c.Title)
		if title == "" {
			return fmt.Errorf("seed: category without title")
		}
		if err := store.SaveCategory(ctx, &domain.Category{Title: title, ExternalID: c.ExternalID}); err != nil {
			return fmt.Errorf("seed category %s: %w", title, err)
		}
	}

	for _, ac := range cfg.Agencies {
		slug := strings.TrimSpace(ac.Slug)
		if slug == "" {
			return fmt.Errorf("seed: agency %q without slug", ac.Title)
		}
		agency := &domain.Agency{Title: ac.Title, Slug: slug, Website: ac.Website, CrawlEnabled: ac.Enabled()}
		if err := store.SaveAgency(ctx, agency); err != nil {
			return fmt.Errorf("seed agency %s: %w", slug, err)
		}

		for _, site := range ac.Sites {
			category, err := store.CategoryByTitle(ctx, strings.TrimSpace(site.Category))
			if err != nil {
				return fmt.Errorf("seed %s site %s: %w", slug, site.URL, err)
			}
			mapping := &domain.SiteCategory{
				AgencyID:   agency.ID,
				CategoryID: category.ID,
				URL:        strings.TrimSpace(site.URL),
				Label:      site.Label,
			}
			if err := store.SaveSiteCategory(ctx, mapping); err != nil {
				return fmt.Errorf("seed %s site %s: %w", slug, site.URL, err)
			}
		}
	}
	return nil
}
