package parser

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/Amir-4m/news-editorial/internal/domain"
	"github.com/Amir-4m/news-editorial/internal/infrastructure/fetch"
	"github.com/Amir-4m/news-editorial/internal/jalali"
	"github.com/Amir-4m/news-editorial/internal/scanner"
)

const yjcBaseURL = "https://www.yjc.ir"

// YJC scrapes yjc.ir.
type YJC struct {
	source
}

var _ scanner.Adapter = (*YJC)(nil)

// NewYJC wires the adapter; baseURL defaults to the public site.
func NewYJC(fetcher fetch.Fetcher, baseURL string, loc *time.Location, log *slog.Logger) *YJC {
	if baseURL == "" {
		baseURL = yjcBaseURL
	}
	return &YJC{source: newSource("yjc", baseURL, fetcher, loc, log)}
}

// CollectLinks gathers headline and list links from each target page.
func (a *YJC) CollectLinks(ctx context.Context, targets []scanner.Target) []scanner.Link {
	return a.collectLinks(ctx, targets, func(doc *goquery.Document) []string {
		return hrefs(doc,
			"div.top_news_title a",
			"ul.linear_news li a.title",
		)
	})
}

// CollectArticle parses a yjc.ir news page.
func (a *YJC) CollectArticle(ctx context.Context, link scanner.Link) (*domain.Draft, error) {
	doc, err := a.fetcher.Document(ctx, link.URL)
	if err != nil {
		return nil, err
	}

	id, err := nativeID(doc.Find("div.news_nav.news_id_c").First().Text())
	if err != nil {
		return nil, err
	}

	published, err := a.publishedAt(text(doc.Find("div.news_nav.news_pdate_c").First()))
	if err != nil {
		return nil, err
	}

	title := text(doc.Find("div.title a").First())
	if err := required("title", title); err != nil {
		return nil, err
	}

	body := doc.Find("div.body").First()
	src, _ := body.Find("img").First().Attr("src")
	imageURL, image, err := a.image(ctx, src)
	if err != nil {
		return nil, err
	}

	return &domain.Draft{
		NativeID:         id,
		PublishedAt:      published,
		CategoryLabel:    text(doc.Find("div.news_path a").First()),
		Title:            title,
		Summary:          text(doc.Find("h2.Htags_news_subtitle").First()),
		Body:             blocks(body.Find("p")),
		ImageURL:         imageURL,
		Image:            image,
		SourceURL:        link.URL,
		TargetCategoryID: link.CategoryID,
	}, nil
}

// publishedAt handles "تاریخ انتشار: DD <month> YYYY - HH:MM".
func (a *YJC) publishedAt(raw string) (time.Time, error) {
	date, clock, found := strings.Cut(raw, "-")
	if !found {
		return time.Time{}, fmt.Errorf("publish time %q: %w", raw, errMissingField)
	}
	hour, minute, ok := jalali.ParseClock(clock)
	if !ok {
		return time.Time{}, fmt.Errorf("publish clock %q: %w", clock, errMissingField)
	}
	ts, err := a.jalaliTime(date, hour, minute)
	if err != nil {
		return time.Time{}, fmt.Errorf("publish time: %w", err)
	}
	return ts, nil
}
