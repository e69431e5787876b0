// Package fetch performs polite, sequential page downloads for site adapters.
package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
)

const defaultUserAgent = "newsroom-crawler/1.0"

// Fetcher is what adapters need from the network.
type Fetcher interface {
	Document(ctx context.Context, pageURL string) (*goquery.Document, error)
	Bytes(ctx context.Context, pageURL string) ([]byte, error)
}

// Options tunes the underlying collector.
type Options struct {
	UserAgent string
	Delay     time.Duration
	Timeout   time.Duration
}

// Collector keeps one colly collector per host. Each call runs on a clone
// of its host's collector, so callbacks never leak between requests while
// that host's limits stay shared. Hosts never wait on each other.
type Collector struct {
	opts Options

	mu    sync.Mutex
	hosts map[string]*colly.Collector
}

var _ Fetcher = (*Collector)(nil)

// New builds a fetcher limited to one request per host at a time.
func New(opts Options) (*Collector, error) {
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	if opts.Delay < 0 {
		return nil, fmt.Errorf("configure limits: negative delay %s", opts.Delay)
	}
	return &Collector{opts: opts, hosts: map[string]*colly.Collector{}}, nil
}

// forHost returns the collector owning host, creating it on first use.
func (c *Collector) forHost(host string) (*colly.Collector, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if base, ok := c.hosts[host]; ok {
		return base, nil
	}

	base := colly.NewCollector(
		colly.UserAgent(c.opts.UserAgent),
		colly.AllowURLRevisit(),
		colly.IgnoreRobotsTxt(),
	)
	base.SetRequestTimeout(c.opts.Timeout)
	base.SetRedirectHandler(func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	})
	if err := base.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 1,
		Delay:       c.opts.Delay,
	}); err != nil {
		return nil, fmt.Errorf("configure limits for %s: %w", host, err)
	}
	c.hosts[host] = base
	return base, nil
}

// Document downloads and parses an HTML page.
func (c *Collector) Document(ctx context.Context, pageURL string) (*goquery.Document, error) {
	body, err := c.Bytes(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse document %s: %w", pageURL, err)
	}
	return doc, nil
}

// Bytes downloads a resource and returns its raw body.
func (c *Collector) Bytes(ctx context.Context, pageURL string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	u, err := url.Parse(pageURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("fetch %s: invalid url", pageURL)
	}
	base, err := c.forHost(u.Host)
	if err != nil {
		return nil, err
	}
	clone := base.Clone()
	colly.StdlibContext(ctx)(clone)

	var (
		body    []byte
		failure error
	)
	clone.OnResponse(func(r *colly.Response) {
		body = r.Body
	})
	clone.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			failure = fmt.Errorf("%s returned status %d: %w", pageURL, r.StatusCode, err)
			return
		}
		failure = err
	})

	if err := clone.Visit(pageURL); err != nil && failure == nil {
		failure = err
	}
	if failure != nil {
		return nil, fmt.Errorf("fetch %s: %w", pageURL, failure)
	}
	if body == nil {
		return nil, fmt.Errorf("fetch %s: %w", pageURL, errEmptyResponse)
	}
	return body, nil
}

var errEmptyResponse = errors.New("empty response")
