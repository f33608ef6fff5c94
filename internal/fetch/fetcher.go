package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
	"unicode/utf8"

	"github.com/FranksOps/howto/internal/bypass"
	"github.com/FranksOps/howto/internal/domain"
	"github.com/FranksOps/howto/internal/fingerprint"
	"github.com/FranksOps/howto/internal/metrics"
	"github.com/FranksOps/howto/pkg/httpclient"
	"github.com/FranksOps/howto/pkg/ratelimit"
	"github.com/FranksOps/howto/pkg/useragent"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// FetchConfig configures a Fetcher.
type FetchConfig struct {
	// Timeout bounds each request. Zero leaves requests bounded only by the
	// caller's context.
	Timeout      time.Duration
	MaxRedirects int
	UseCookieJar bool
	UserAgents   *useragent.Pool
	Fingerprint  fingerprint.Profile
	// InsecureSkipVerify disables certificate checks. Tests only.
	InsecureSkipVerify bool
	Limiter            *ratelimit.Limiter
	// CacheSize enables an in-memory page cache holding that many bodies
	// for CacheTTL. Zero disables caching.
	CacheSize int
	CacheTTL  time.Duration
	// RespectRobots refuses URLs disallowed by the host's robots.txt for
	// RobotsAgent.
	RespectRobots bool
	RobotsAgent   string
	Detectors     []bypass.Detector
	Logger        *slog.Logger
}

// Fetcher retrieves pages as text. It is safe for concurrent use.
type Fetcher struct {
	config FetchConfig
	client *httpclient.Client
	cache  *expirable.LRU[string, string]
	robots *RobotsAuditor
	logger *slog.Logger
}

// page is a raw response before text validation.
type page struct {
	status int
	header http.Header
	body   []byte
}

// NewFetcher builds a Fetcher. A single client is held across requests so
// connections and cookies are reused.
func NewFetcher(cfg FetchConfig) (*Fetcher, error) {
	if cfg.UserAgents == nil {
		cfg.UserAgents = useragent.Fixed("")
	}
	if cfg.Fingerprint == "" {
		cfg.Fingerprint = fingerprint.ProfileChrome
	}
	if cfg.Detectors == nil {
		cfg.Detectors = bypass.DefaultDetectors()
	}
	if cfg.RobotsAgent == "" {
		cfg.RobotsAgent = "*"
	}
	if cfg.CacheSize > 0 && cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 15 * time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	transport, err := fingerprint.Transport(cfg.Fingerprint, fingerprint.Options{
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to setup transport: %w", err)
	}

	client, err := httpclient.New(httpclient.Config{
		Timeout:      cfg.Timeout,
		MaxRedirects: cfg.MaxRedirects,
		UseCookieJar: cfg.UseCookieJar,
		Transport:    transport,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	client.SetHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	client.SetHeader("Accept-Language", "en-US,en;q=0.5")

	f := &Fetcher{
		config: cfg,
		client: client,
		logger: cfg.Logger,
	}
	if cfg.CacheSize > 0 {
		f.cache = expirable.NewLRU[string, string](cfg.CacheSize, nil, cfg.CacheTTL)
	}
	if cfg.RespectRobots {
		f.robots = NewRobotsAuditor(f.get, cfg.Logger)
	}

	return f, nil
}

// Fetch GETs targetURL and returns the whole body as text. Transport
// failures yield *domain.NetworkError, a body that is not UTF-8 yields
// *domain.DecodeError. The HTTP status is not interpreted. There is no
// retry; the caller owns that policy.
func (f *Fetcher) Fetch(ctx context.Context, targetURL string) (string, error) {
	if f.cache != nil {
		if body, ok := f.cache.Get(targetURL); ok {
			metrics.FetchCacheHits.Inc()
			f.logger.Debug("page cache hit", "url", targetURL)
			return body, nil
		}
	}

	if f.robots != nil {
		allowed, err := f.robots.IsAllowed(ctx, targetURL, f.config.RobotsAgent)
		if err != nil {
			return "", &domain.NetworkError{URL: targetURL, Err: err}
		}
		if !allowed {
			return "", &domain.NetworkError{URL: targetURL, Err: ErrDisallowed}
		}
	}

	if err := f.config.Limiter.Wait(ctx); err != nil {
		return "", &domain.NetworkError{URL: targetURL, Err: fmt.Errorf("rate limiter: %w", err)}
	}

	p, err := f.get(ctx, targetURL)
	if err != nil {
		return "", &domain.NetworkError{URL: targetURL, Err: err}
	}

	if !utf8.Valid(p.body) {
		return "", &domain.DecodeError{URL: targetURL}
	}

	body := string(p.body)
	if f.cache != nil {
		f.cache.Add(targetURL, body)
	}
	return body, nil
}

// get performs the request and records it in metrics.
func (f *Fetcher) get(ctx context.Context, targetURL string) (*page, error) {
	host := ""
	if u, err := url.Parse(targetURL); err == nil {
		host = u.Hostname()
	}

	start := time.Now()
	p, err := f.do(ctx, targetURL)
	elapsed := time.Since(start)

	if err != nil {
		metrics.RecordFetch(host, 0, "", 0, elapsed, err)
		f.logger.Debug("fetch failed", "url", targetURL, "err", err)
		return nil, err
	}

	blockedBy := bypass.Analyze(&bypass.Response{
		StatusCode: p.status,
		Header:     p.header,
		Body:       p.body,
	}, f.config.Detectors)
	if blockedBy != "" {
		f.logger.Warn("response looks like a bot challenge", "url", targetURL, "status", p.status, "vendor", blockedBy)
	}

	metrics.RecordFetch(host, p.status, blockedBy, len(p.body), elapsed, nil)
	f.logger.Debug("fetched", "url", targetURL, "status", p.status, "bytes", len(p.body), "duration", elapsed)
	return p, nil
}

func (f *Fetcher) do(ctx context.Context, targetURL string) (*page, error) {
	resp, err := f.client.Get(ctx, targetURL, http.Header{
		"User-Agent": {f.config.UserAgents.Next()},
	})
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	return &page{status: resp.StatusCode, header: resp.Header, body: body}, nil
}
