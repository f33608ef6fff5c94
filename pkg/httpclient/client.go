package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"time"
)

// DefaultMaxRedirects is used when Config.MaxRedirects is zero.
const DefaultMaxRedirects = 10

// Config defines the setup for the HTTP Client.
type Config struct {
	// Timeout bounds a whole request including the body read. Zero means no
	// client-side timeout; callers are expected to bound requests via context.
	Timeout time.Duration
	// MaxRedirects caps followed redirects. Zero uses DefaultMaxRedirects,
	// negative disables following.
	MaxRedirects int
	UseCookieJar bool
	// Transport overrides http.DefaultTransport, e.g. for uTLS fingerprinting.
	Transport http.RoundTripper
}

// Client wraps a standard http.Client with header defaults and redirect policy.
type Client struct {
	*http.Client
	header http.Header
}

// New creates a new HTTP client based on the provided configuration.
func New(cfg Config) (*Client, error) {
	c := &http.Client{
		Timeout: cfg.Timeout,
	}

	maxRedirects := cfg.MaxRedirects
	if maxRedirects == 0 {
		maxRedirects = DefaultMaxRedirects
	}

	if maxRedirects > 0 {
		c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("httpclient: stopped after %d redirects", maxRedirects)
			}
			return nil
		}
	} else {
		c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	if cfg.UseCookieJar {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("httpclient: %w", err)
		}
		c.Jar = jar
	}

	if cfg.Transport != nil {
		c.Transport = cfg.Transport
	}

	return &Client{Client: c, header: make(http.Header)}, nil
}

// SetHeader registers a header sent with every request built by Get.
func (c *Client) SetHeader(key, value string) {
	c.header.Set(key, value)
}

// Do executes req bound to ctx.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if ctx == nil {
		return nil, errors.New("httpclient: context cannot be nil")
	}

	resp, err := c.Client.Do(req.Clone(ctx))
	if err != nil {
		return nil, fmt.Errorf("httpclient: %w", err)
	}
	return resp, nil
}

// Get issues a GET for rawURL carrying the registered headers plus extra.
// Values in extra win over registered ones.
func (c *Client) Get(ctx context.Context, rawURL string, extra http.Header) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("httpclient: building request: %w", err)
	}

	for k, vals := range c.header {
		req.Header[k] = append([]string(nil), vals...)
	}
	for k, vals := range extra {
		req.Header[k] = append([]string(nil), vals...)
	}

	return c.Do(ctx, req)
}
