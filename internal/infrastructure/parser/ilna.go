package parser

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/Amir-4m/news-editorial/internal/domain"
	"github.com/Amir-4m/news-editorial/internal/infrastructure/fetch"
	"github.com/Amir-4m/news-editorial/internal/scanner"
)

const ilnaBaseURL = "https://www.ilna.news"

// ILNA scrapes ilna.news. Timestamps are published as ISO 8601.
type ILNA struct {
	source
}

var _ scanner.Adapter = (*ILNA)(nil)

// NewILNA wires the adapter; baseURL defaults to the public site.
func NewILNA(fetcher fetch.Fetcher, baseURL string, loc *time.Location, log *slog.Logger) *ILNA {
	if baseURL == "" {
		baseURL = ilnaBaseURL
	}
	return &ILNA{source: newSource("ilna", baseURL, fetcher, loc, log)}
}

// CollectLinks reads the lead story, the second-level list and the archive list.
func (a *ILNA) CollectLinks(ctx context.Context, targets []scanner.Target) []scanner.Link {
	return a.collectLinks(ctx, targets, func(doc *goquery.Document) []string {
		return hrefs(doc,
			".defloat.firstDIV.center a",
			".seclevel_news.mb8.mt16.clearbox h3 a",
			".pb32 li a",
		)
	})
}

// CollectArticle parses one ILNA detail page.
func (a *ILNA) CollectArticle(ctx context.Context, link scanner.Link) (*domain.Draft, error) {
	doc, err := a.fetcher.Document(ctx, link.URL)
	if err != nil {
		return nil, err
	}

	id, err := nativeID(doc.Find(".inlineblock.ml16 span").First().Text())
	if err != nil {
		return nil, err
	}

	published, err := a.publishedAt(doc)
	if err != nil {
		return nil, err
	}

	title := text(doc.Find("h1.news_title").First())
	if err := required("title", title); err != nil {
		return nil, err
	}

	article := doc.Find("section.article_body").First()
	paragraphs := article.Find("p")
	if paragraphs.Length() > 1 {
		// The first paragraph repeats the lead.
		paragraphs = paragraphs.Slice(1, goquery.ToEnd)
	}
	body := blocks(paragraphs)

	src, _ := article.Find("img").First().Attr("src")
	imageURL, image, err := a.image(ctx, src)
	if err != nil {
		return nil, err
	}

	return &domain.Draft{
		NativeID:         id,
		PublishedAt:      published,
		CategoryLabel:    text(doc.Find("a.float.ml4.mr4").Last()),
		Title:            title,
		Summary:          text(doc.Find("p.news_lead").First()),
		Body:             body,
		ImageURL:         imageURL,
		Image:            image,
		SourceURL:        link.URL,
		TargetCategoryID: link.CategoryID,
	}, nil
}

func (a *ILNA) publishedAt(doc *goquery.Document) (time.Time, error) {
	times := doc.Find("time[datetime]")
	// The second <time> is the publication stamp; the first is the page clock.
	sel := times.Eq(1)
	if sel.Length() == 0 {
		sel = times.First()
	}
	raw, ok := sel.Attr("datetime")
	if !ok {
		return time.Time{}, fmt.Errorf("publish time: %w", errMissingField)
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("publish time %q: %w", raw, err)
	}
	return ts.In(a.location), nil
}
