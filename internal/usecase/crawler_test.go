package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Amir-4m/news-editorial/internal/domain"
	"github.com/Amir-4m/news-editorial/internal/ports"
	"github.com/Amir-4m/news-editorial/internal/scanner"
)

func isnaAdapter(f *fixture) *fakeAdapter {
	published := time.Date(2020, 12, 15, 10, 23, 0, 0, time.UTC)
	return &fakeAdapter{
		name: "isna",
		links: []scanner.Link{
			{URL: "https://www.isna.ir/news/1001/a", CategoryID: f.sports.ID},
			{URL: "https://www.isna.ir/news/1002/b", CategoryID: f.sports.ID},
			{URL: "https://www.isna.ir/news/1003/c", CategoryID: f.sports.ID},
		},
		drafts: map[string]*domain.Draft{
			"https://www.isna.ir/news/1001/a": {
				NativeID: 1001, PublishedAt: published, CategoryLabel: sportsLabel,
				Title: "a", Summary: "sa", Body: "<p>a</p>", ImageURL: "https://www.isna.ir/i/a.jpg",
				Image: []byte("A"), SourceURL: "https://www.isna.ir/news/1001/a", TargetCategoryID: f.sports.ID,
			},
			"https://www.isna.ir/news/1002/b": {
				NativeID: 1002, PublishedAt: published, CategoryLabel: politicsLabel,
				Title: "b", Summary: "sb", Body: "<p>b</p>", ImageURL: "https://www.isna.ir/i/b.jpg",
				Image: []byte("B"), SourceURL: "https://www.isna.ir/news/1002/b", TargetCategoryID: f.sports.ID,
			},
		},
		errs: map[string]error{"https://www.isna.ir/news/1003/c": errors.New("title: missing field")},
	}
}

func newTestCrawler(f *fixture, adapter scanner.Adapter, images ports.ImageStore) (*Crawler, *logBuffer) {
	reg := scanner.NewRegistry()
	if adapter != nil {
		reg.Register(adapter)
	}
	log, buf := newTestLogger()
	return NewCrawler(CrawlerDeps{Store: f.store, Registry: reg, Images: images, Logger: log}), buf
}

func TestCollectNewsIsIdempotent(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	adapter := isnaAdapter(f)
	crawler, logs := newTestCrawler(f, adapter, newMemoryImages())
	ctx := context.Background()

	first, err := crawler.CollectNews(ctx, "isna")
	require.NoError(t, err)
	assert.Equal(t, CrawlReport{Agency: "isna", Links: 3, Created: 2, Duplicates: 0, Failed: 1}, first)

	second, err := crawler.CollectNews(ctx, "isna")
	require.NoError(t, err)
	assert.Equal(t, CrawlReport{Agency: "isna", Links: 3, Created: 0, Duplicates: 2, Failed: 1}, second)

	articles, err := f.store.List(ctx, ports.ArticleFilter{})
	require.NoError(t, err)
	require.Len(t, articles, 2)

	assert.Equal(t, 2, logs.count("article created"))
	assert.Equal(t, 2, logs.count("duplicate article"))
	assert.Equal(t, 2, logs.count("collect article failed"))

	assert.Equal(t, []scanner.Target{{URL: sportsURL, CategoryID: f.sports.ID}}, adapter.targets[:1])
}

func TestCollectNewsStoresArticleFields(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	images := newMemoryImages()
	crawler, _ := newTestCrawler(f, isnaAdapter(f), images)
	ctx := context.Background()

	_, err := crawler.CollectNews(ctx, "isna")
	require.NoError(t, err)

	articles, err := f.store.List(ctx, ports.ArticleFilter{})
	require.NoError(t, err)
	require.Len(t, articles, 2)

	a := articles[0]
	assert.Equal(t, "isna", a.Source)
	assert.Equal(t, int64(1001), a.NativeID)
	assert.Equal(t, domain.StatusVoid, a.Status)
	assert.Equal(t, domain.PriorityMedium, a.Priority)
	assert.Equal(t, "<p>a</p>", a.OriginalBody)
	assert.Equal(t, a.OriginalBody, a.Body)
	assert.Nil(t, a.EditorID)
	assert.Equal(t, "isna/1001/a.jpg", a.CoverImage)
	assert.Equal(t, []int64{f.sports.ID}, a.CategoryIDs, "known label maps to its category")

	stored, err := images.Get(ctx, a.CoverImage)
	require.NoError(t, err)
	assert.Equal(t, []byte("A"), stored)

	assert.Empty(t, articles[1].CategoryIDs, "unknown label attaches nothing")
}

func TestCollectNewsAttachesListingCategoryForKnownLabel(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.AddLabel(ctx, f.agency.ID, f.politics.ID, politicsLabel))
	crawler, _ := newTestCrawler(f, isnaAdapter(f), newMemoryImages())

	_, err := crawler.CollectNews(ctx, "isna")
	require.NoError(t, err)

	articles, err := f.store.List(ctx, ports.ArticleFilter{})
	require.NoError(t, err)
	require.Len(t, articles, 2)
	assert.Equal(t, []int64{f.sports.ID}, articles[0].CategoryIDs)
	assert.ElementsMatch(t, []int64{f.politics.ID, f.sports.ID}, articles[1].CategoryIDs,
		"a known label also brings the listing page category")
}

func TestCollectNewsDisabledAgency(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	agency := *f.agency
	agency.CrawlEnabled = false
	require.NoError(t, f.store.SaveAgency(ctx, &agency))

	adapter := isnaAdapter(f)
	crawler, _ := newTestCrawler(f, adapter, newMemoryImages())

	_, err := crawler.CollectNews(ctx, "isna")
	require.ErrorIs(t, err, ErrAgencyDisabled)
	assert.Empty(t, adapter.targets)
	assert.Empty(t, adapter.visited)
}

func TestCollectNewsAdapterNotFound(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	crawler, _ := newTestCrawler(f, nil, newMemoryImages())

	_, err := crawler.CollectNews(context.Background(), "isna")
	require.ErrorIs(t, err, scanner.ErrAdapterNotFound)

	_, err = crawler.CollectNews(context.Background(), "unknown")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCollectNewsInitialStatus(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	reg := scanner.NewRegistry()
	reg.Register(isnaAdapter(f))
	crawler := NewCrawler(CrawlerDeps{
		Store: f.store, Registry: reg, Images: newMemoryImages(), InitialStatus: domain.StatusEditable,
	})

	_, err := crawler.CollectNews(context.Background(), "isna")
	require.NoError(t, err)

	articles, err := f.store.List(context.Background(), ports.ArticleFilter{Statuses: []domain.Status{domain.StatusEditable}})
	require.NoError(t, err)
	assert.Len(t, articles, 2)
}
