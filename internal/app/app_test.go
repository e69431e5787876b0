package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Amir-4m/news-editorial/internal/config"
	"github.com/Amir-4m/news-editorial/internal/domain"
	"github.com/Amir-4m/news-editorial/internal/infrastructure/storage"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	external := int64(12)
	disabled := false
	return config.Config{
		Logging:   config.LoggingConfig{Level: "error"},
		Database:  config.DatabaseConfig{Driver: "memory"},
		Scheduler: config.SchedulerConfig{CrawlCron: "*/30 * * * *", ReconcileCron: "*/15 * * * *"},
		Crawler:   config.CrawlerConfig{InitialStatus: "void"},
		CMS:       config.CMSConfig{BaseURL: "http://127.0.0.1:1/wp-json/wp/v2", TokenStore: "memory"},
		Media:     config.MediaConfig{Root: t.TempDir()},
		HTTP:      config.HTTPConfig{Addr: "127.0.0.1:0"},
		Categories: []config.CategoryConfig{
			{Title: "sports", ExternalID: &external},
			{Title: "politics"},
		},
		Agencies: []config.AgencyConfig{
			{Title: "ISNA", Slug: "isna", Website: "https://www.isna.ir", Sites: []config.SiteConfig{
				{URL: "https://www.isna.ir/service/sport", Label: "ورزشی", Category: "sports"},
				{URL: "https://www.isna.ir/service/politics", Label: "سیاسی", Category: "politics"},
			}},
			{Title: "ILNA", Slug: "ilna", CrawlEnabled: &disabled},
		},
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSeedIsIdempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := storage.NewMemoryStore()
	cfg := testConfig(t)

	require.NoError(t, Seed(ctx, store, cfg))
	require.NoError(t, Seed(ctx, store, cfg))

	agencies, err := store.Agencies(ctx)
	require.NoError(t, err)
	require.Len(t, agencies, 2)
	assert.True(t, agencies[0].CrawlEnabled)
	assert.False(t, agencies[1].CrawlEnabled)

	targets, err := store.Targets(ctx, agencies[0].ID)
	require.NoError(t, err)
	assert.Len(t, targets, 2)

	sports, err := store.CategoryByTitle(ctx, "sports")
	require.NoError(t, err)
	require.NotNil(t, sports.ExternalID)
	assert.Equal(t, int64(12), *sports.ExternalID)

	ids, err := store.CategoriesForLabel(ctx, agencies[0].ID, "ورزشی")
	require.NoError(t, err)
	assert.Equal(t, []int64{sports.ID}, ids)
}

func TestSeedUnknownCategory(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Agencies[0].Sites[0].Category = "weather"
	err := Seed(context.Background(), storage.NewMemoryStore(), cfg)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestNewWiresMemoryApplication(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	application, err := New(ctx, testConfig(t), quietLogger())
	require.NoError(t, err)
	defer application.Close()

	require.NoError(t, application.Seed(ctx))

	rec := httptest.NewRecorder()
	application.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/agencies/ilna/crawl", strings.NewReader(""))
	req.Header.Set("X-Actor-ID", "1")
	req.Header.Set("X-Actor-Capabilities", "chief")
	rec = httptest.NewRecorder()
	application.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusConflict, rec.Code)

	require.Error(t, application.Migrate("up", 0), "memory driver has no migrations")
	require.NoError(t, application.Reconcile(), "nothing to reconcile")
}

func TestNewRejectsBadConfig(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Crawler.InitialStatus = "published"
	_, err := New(context.Background(), cfg, quietLogger())
	require.Error(t, err)

	cfg = testConfig(t)
	cfg.Database.Driver = "sqlite"
	_, err = New(context.Background(), cfg, quietLogger())
	require.Error(t, err)

	cfg = testConfig(t)
	cfg.CMS.TokenStore = "memcached"
	_, err = New(context.Background(), cfg, quietLogger())
	require.Error(t, err)
	assert.False(t, errors.Is(err, domain.ErrNotFound))
}
