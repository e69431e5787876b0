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

const entekhabBaseURL = "https://www.entekhab.ir"

// Entekhab scrapes entekhab.ir. Month names use Arabic letter forms and
// the clock is printed minute first.
type Entekhab struct {
	source
}

var _ scanner.Adapter = (*Entekhab)(nil)

// NewEntekhab wires the adapter; baseURL defaults to the public site.
func NewEntekhab(fetcher fetch.Fetcher, baseURL string, loc *time.Location, log *slog.Logger) *Entekhab {
	if baseURL == "" {
		baseURL = entekhabBaseURL
	}
	return &Entekhab{source: newSource("entekhab", baseURL, fetcher, loc, log)}
}

// CollectLinks reads the headline and the paged list.
func (a *Entekhab) CollectLinks(ctx context.Context, targets []scanner.Target) []scanner.Link {
	return a.collectLinks(ctx, targets, func(doc *goquery.Document) []string {
		return hrefs(doc,
			"h2.Htags a",
			"div.im-news.section_paged_main_content_div a.title6",
		)
	})
}

// CollectArticle parses one Entekhab detail page.
func (a *Entekhab) CollectArticle(ctx context.Context, link scanner.Link) (*domain.Draft, error) {
	doc, err := a.fetcher.Document(ctx, link.URL)
	if err != nil {
		return nil, err
	}

	id, err := nativeID(doc.Find("div.news_id_c").First().Text())
	if err != nil {
		return nil, err
	}

	published, err := a.publishedAt(text(doc.Find("div.news_pdate_c").First()))
	if err != nil {
		return nil, err
	}

	title := text(doc.Find("h1.title").First())
	if err := required("title", title); err != nil {
		return nil, err
	}

	img := doc.Find("img.image_btn").First()
	if img.Length() == 0 {
		img = doc.Find("img.news_corner_image").First()
	}
	src, _ := img.Attr("src")
	imageURL, image, err := a.image(ctx, src)
	if err != nil {
		return nil, err
	}

	return &domain.Draft{
		NativeID:         id,
		PublishedAt:      published,
		CategoryLabel:    text(doc.Find(".news_path a").First()),
		Title:            title,
		Summary:          text(doc.Find("div.subtitle").First()),
		Body:             blocks(entekhabBody(doc)),
		ImageURL:         imageURL,
		Image:            image,
		SourceURL:        link.URL,
		TargetCategoryID: link.CategoryID,
	}, nil
}

// publishedAt handles "تاریخ انتشار: MM : HH - DD <month> YYYY".
func (a *Entekhab) publishedAt(raw string) (time.Time, error) {
	if i := strings.LastIndex(raw, "ر:"); i >= 0 {
		raw = raw[i+len("ر:"):]
	}
	clock, date, found := strings.Cut(raw, "-")
	if !found {
		return time.Time{}, fmt.Errorf("publish time %q: %w", raw, errMissingField)
	}
	minute, hour, ok := jalali.ParseClock(clock)
	if !ok {
		return time.Time{}, fmt.Errorf("publish clock %q: %w", clock, errMissingField)
	}
	ts, err := a.jalaliTime(date, hour, minute)
	if err != nil {
		return time.Time{}, fmt.Errorf("publish time: %w", err)
	}
	return ts, nil
}

// entekhabBody keeps paragraphs and standalone related-news anchors.
func entekhabBody(doc *goquery.Document) *goquery.Selection {
	return doc.Find(".body.col-xs-36").First().Find("a, p").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.Is("p") || s.ParentsFiltered("p").Length() == 0
	})
}
