package serp

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/FranksOps/howto/internal/domain"
	"github.com/PuerkitoBio/goquery"
	"github.com/cenkalti/backoff/v5"
)

const (
	DefaultSearchURL    = "https://www.google.com/search"
	DefaultSite         = "stackoverflow.com"
	DefaultLinkSelector = ".r > a"
)

// GoogleConfig holds the search engine adapter data. Layouts change without
// notice, so none of it is baked into the scraping logic.
type GoogleConfig struct {
	SearchURL    string
	Site         string
	LinkSelector string
	// Retries is how many extra attempts a failed search gets, with
	// exponential backoff. Zero makes the first failure final.
	Retries int
	Logger  *slog.Logger
}

// Google scrapes a web search result page restricted to one site.
type Google struct {
	cfg     GoogleConfig
	fetcher Fetcher
	logger  *slog.Logger
}

var _ Provider = (*Google)(nil)

// NewGoogle creates a Google provider fetching through f.
func NewGoogle(cfg GoogleConfig, f Fetcher) *Google {
	if cfg.SearchURL == "" {
		cfg.SearchURL = DefaultSearchURL
	}
	if cfg.Site == "" {
		cfg.Site = DefaultSite
	}
	if cfg.LinkSelector == "" {
		cfg.LinkSelector = DefaultLinkSelector
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Google{cfg: cfg, fetcher: f, logger: cfg.Logger}
}

// SearchURL builds the request URL for slug. The slug is already URL-safe
// and is appended verbatim after the site restriction.
func (g *Google) SearchURL(slug string) string {
	sep := "?"
	if strings.Contains(g.cfg.SearchURL, "?") {
		sep = "&"
	}
	return g.cfg.SearchURL + sep + "q=site:" + url.QueryEscape(g.cfg.Site) + "%20" + slug
}

// Links returns the href of every result anchor in document order. No
// matching anchor yields an empty slice and a nil error.
func (g *Google) Links(ctx context.Context, slug string) ([]string, error) {
	searchURL := g.SearchURL(slug)

	operation := func() ([]string, error) {
		body, err := g.fetcher.Fetch(ctx, searchURL)
		if err != nil {
			if ctx.Err() != nil {
				return nil, backoff.Permanent(err)
			}
			g.logger.Debug("search attempt failed", "query", slug, "err", err)
			return nil, err
		}
		links, err := ParseLinks(body, g.cfg.LinkSelector)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		return links, nil
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = 500 * time.Millisecond

	links, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(eb),
		backoff.WithMaxTries(uint(g.cfg.Retries+1)),
	)
	if err != nil {
		return nil, domain.WithContext(err, "error in query %s", slug)
	}

	g.logger.Debug("search complete", "query", slug, "links", len(links))
	return links, nil
}

// ParseLinks selects every element matching selector in body and returns
// their href attributes in document order, duplicates included.
func ParseLinks(body, selector string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parsing search results: %w", err)
	}

	links := []string{}
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok {
			links = append(links, href)
		}
	})
	return links, nil
}
