package parser

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/Amir-4m/news-editorial/internal/domain"
	"github.com/Amir-4m/news-editorial/internal/infrastructure/fetch"
	"github.com/Amir-4m/news-editorial/internal/jalali"
	"github.com/Amir-4m/news-editorial/internal/scanner"
)

const isnaBaseURL = "https://www.isna.ir"

// ISNA scrapes isna.ir. Dates are printed in the solar calendar.
type ISNA struct {
	source
}

var _ scanner.Adapter = (*ISNA)(nil)

// NewISNA wires the adapter; baseURL defaults to the public site.
func NewISNA(fetcher fetch.Fetcher, baseURL string, loc *time.Location, log *slog.Logger) *ISNA {
	if baseURL == "" {
		baseURL = isnaBaseURL
	}
	return &ISNA{source: newSource("isna", baseURL, fetcher, loc, log)}
}

// CollectLinks reads picture cards and list items of the main box.
func (a *ISNA) CollectLinks(ctx context.Context, targets []scanner.Target) []scanner.Link {
	return a.collectLinks(ctx, targets, func(doc *goquery.Document) []string {
		return hrefs(doc,
			"section#box9 a:has(img)",
			"section#box9 li a",
		)
	})
}

// CollectArticle parses one ISNA detail page.
func (a *ISNA) CollectArticle(ctx context.Context, link scanner.Link) (*domain.Draft, error) {
	id, err := isnaNativeID(link.URL)
	if err != nil {
		return nil, err
	}

	doc, err := a.fetcher.Document(ctx, link.URL)
	if err != nil {
		return nil, err
	}

	meta := doc.Find(".text-meta")
	stamp := text(doc.Find(".title-meta").First()) + " " + text(meta.First())
	clock := lastSegment(stamp)
	hour, minute, ok := jalali.ParseClock(clock)
	if !ok {
		return nil, fmt.Errorf("publish clock %q: %w", clock, errMissingField)
	}
	published, err := a.jalaliTime(stamp, hour, minute)
	if err != nil {
		return nil, fmt.Errorf("publish time: %w", err)
	}

	title := text(doc.Find("h1.first-title").First())
	if err := required("title", title); err != nil {
		return nil, err
	}

	src, _ := doc.Find(".item-img.img-md img").First().Attr("src")
	imageURL, image, err := a.image(ctx, src)
	if err != nil {
		return nil, err
	}

	return &domain.Draft{
		NativeID:         id,
		PublishedAt:      published,
		CategoryLabel:    text(meta.Eq(1)),
		Title:            title,
		Summary:          text(doc.Find(".summary").First()),
		Body:             blocks(doc.Find(".item-text p")),
		ImageURL:         imageURL,
		Image:            image,
		SourceURL:        link.URL,
		TargetCategoryID: link.CategoryID,
	}, nil
}

// isnaNativeID reads the id from /news/<id>/<slug>.
func isnaNativeID(raw string) (int64, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return 0, fmt.Errorf("native id: %w", err)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i, p := range parts {
		if p == "news" && i+1 < len(parts) {
			return nativeID(parts[i+1])
		}
	}
	return 0, fmt.Errorf("native id in %q: %w", raw, errMissingField)
}

// lastSegment returns the text after the final "/" of a meta line.
func lastSegment(s string) string {
	if i := strings.LastIndex(s, "/"); i >= 0 {
		return s[i+1:]
	}
	return s
}
