package parser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/Amir-4m/news-editorial/internal/infrastructure/fetch"
	"github.com/Amir-4m/news-editorial/internal/jalali"
	"github.com/Amir-4m/news-editorial/internal/scanner"
)

var (
	errMissingField = errors.New("missing field")
	digitsExpr      = regexp.MustCompile(`\d+`)
)

// Register adds every hand-written adapter to reg.
func Register(reg *scanner.Registry, fetcher fetch.Fetcher, loc *time.Location, log *slog.Logger) {
	reg.Register(NewILNA(fetcher, "", loc, log))
	reg.Register(NewISNA(fetcher, "", loc, log))
	reg.Register(NewEntekhab(fetcher, "", loc, log))
	reg.Register(NewYJC(fetcher, "", loc, log))
}

// source carries what every hand-written adapter shares: identity,
// base URL, fetcher and the reference timezone.
type source struct {
	name     string
	base     *url.URL
	fetcher  fetch.Fetcher
	location *time.Location
	logger   *slog.Logger
}

func newSource(name, baseURL string, fetcher fetch.Fetcher, loc *time.Location, log *slog.Logger) source {
	base, err := url.Parse(baseURL)
	if err != nil {
		panic(fmt.Sprintf("parser: invalid base url %q: %v", baseURL, err))
	}
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = slog.Default()
	}
	return source{
		name:     name,
		base:     base,
		fetcher:  fetcher,
		location: loc,
		logger:   log.With("adapter", name),
	}
}

// Name identifies the adapter inside the registry.
func (s source) Name() string {
	return s.name
}

// collectLinks fetches every target and gathers hrefs matched by selectors.
// A target that fails is logged and skipped.
func (s source) collectLinks(ctx context.Context, targets []scanner.Target, extract func(*goquery.Document) []string) []scanner.Link {
	var links []scanner.Link
	for _, target := range targets {
		if ctx.Err() != nil {
			break
		}
		doc, err := s.fetcher.Document(ctx, target.URL)
		if err != nil {
			s.logger.Warn("collect links failed", "url", target.URL, "error", err)
			continue
		}
		found := extract(doc)
		if len(found) == 0 {
			s.logger.Warn("no links on target page", "url", target.URL)
		}
		for _, href := range found {
			abs := s.absolute(href)
			if abs == "" {
				continue
			}
			links = append(links, scanner.Link{URL: abs, CategoryID: target.CategoryID})
		}
	}
	links = scanner.Dedupe(links)
	s.logger.Debug("links collected", "targets", len(targets), "links", len(links))
	return links
}

func (s source) absolute(href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return s.base.ResolveReference(ref).String()
}

func (s source) image(ctx context.Context, src string) (string, []byte, error) {
	abs := s.absolute(src)
	if abs == "" {
		return "", nil, fmt.Errorf("cover image: %w", errMissingField)
	}
	data, err := s.fetcher.Bytes(ctx, abs)
	if err != nil {
		return "", nil, fmt.Errorf("cover image: %w", err)
	}
	return abs, data, nil
}

func (s source) jalaliTime(dateText string, hour, minute int) (time.Time, error) {
	y, m, d, err := jalali.ParseDate(dateText)
	if err != nil {
		return time.Time{}, err
	}
	return jalali.Date(y, m, d, hour, minute, s.location)
}

func hrefs(doc *goquery.Document, selectors ...string) []string {
	var out []string
	for _, sel := range selectors {
		doc.Find(sel).Each(func(_ int, a *goquery.Selection) {
			if href, ok := a.Attr("href"); ok {
				out = append(out, href)
			}
		})
	}
	return out
}

func text(sel *goquery.Selection) string {
	return strings.Join(strings.Fields(sel.Text()), " ")
}

func required(field string, value string) error {
	if value == "" {
		return fmt.Errorf("%s: %w", field, errMissingField)
	}
	return nil
}

// nativeID pulls the last run of digits out of text.
func nativeID(raw string) (int64, error) {
	matches := digitsExpr.FindAllString(jalali.Normalize(raw), -1)
	if len(matches) == 0 {
		return 0, fmt.Errorf("native id in %q: %w", raw, errMissingField)
	}
	return strconv.ParseInt(matches[len(matches)-1], 10, 64)
}

const strippedTags = "script, style, iframe, noscript, object, embed"

// blocks renders each selected fragment as sanitized HTML and concatenates them.
func blocks(sel *goquery.Selection) string {
	var b strings.Builder
	sel.Each(func(_ int, block *goquery.Selection) {
		if block.Is(strippedTags) {
			return
		}
		block.Find(strippedTags).Remove()
		stripHandlers(block)
		block.Find("*").Each(func(_ int, child *goquery.Selection) {
			stripHandlers(child)
		})
		html, err := goquery.OuterHtml(block)
		if err != nil {
			return
		}
		html = strings.TrimSpace(html)
		if html == "" {
			return
		}
		b.WriteString(html)
	})
	return b.String()
}

func stripHandlers(sel *goquery.Selection) {
	for _, node := range sel.Nodes {
		kept := node.Attr[:0]
		for _, attr := range node.Attr {
			key := strings.ToLower(attr.Key)
			if strings.HasPrefix(key, "on") {
				continue
			}
			if (key == "href" || key == "src") && strings.HasPrefix(strings.ToLower(strings.TrimSpace(attr.Val)), "javascript:") {
				continue
			}
			kept = append(kept, attr)
		}
		node.Attr = kept
	}
}
