// Package howto answers "how do I ..." questions from the top-voted answers
// of a Q&A site.
//
// A search runs in the background and its results are read one at a time:
//
//	client, err := howto.New(howto.WithConfig(howto.Config{Concurrency: 4}))
//	if err != nil {
//		return err
//	}
//	answers := client.Search(ctx, "read file lines")
//	defer answers.Close()
//	for answer, err := range answers.All() {
//		...
//	}
package howto

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/FranksOps/howto/internal/domain"
	"github.com/FranksOps/howto/internal/fetch"
	"github.com/FranksOps/howto/internal/fingerprint"
	"github.com/FranksOps/howto/internal/forum"
	"github.com/FranksOps/howto/internal/pipeline"
	"github.com/FranksOps/howto/internal/serp"
	"github.com/FranksOps/howto/internal/storage"
	"github.com/FranksOps/howto/pkg/ratelimit"
	"github.com/FranksOps/howto/pkg/useragent"
)

type (
	Answer       = domain.Answer
	Result       = domain.Result
	NetworkError = domain.NetworkError
	DecodeError  = domain.DecodeError
	ContextError = domain.ContextError
	PanicError   = domain.PanicError
)

var (
	ErrNetwork     = domain.ErrNetwork
	ErrDecode      = domain.ErrDecode
	ErrWorkerFault = domain.ErrWorkerFault
)

// DefaultBuffer is the result channel capacity when Config.Buffer is zero.
const DefaultBuffer = 16

// Searcher finds candidate discussion links for a normalized query.
type Searcher interface {
	Links(ctx context.Context, slug string) ([]string, error)
}

// Extractor reads the top answer of one discussion link.
type Extractor interface {
	Extract(ctx context.Context, link string) (Answer, bool, error)
}

// Config tunes the network side of a Client. Zero values pick defaults.
type Config struct {
	// Concurrency caps simultaneous answer fetches; negative is unbounded.
	Concurrency int
	// Buffer is the capacity of the result channel. A full buffer pauses
	// the background work until the caller reads.
	Buffer int
	// Timeout bounds each HTTP request; zero leaves them unbounded.
	Timeout           time.Duration
	Fingerprint       string
	UserAgent         string
	RequestsPerSecond float64
	Jitter            float64
	CacheSize         int
	CacheTTL          time.Duration
	RespectRobots     bool
	SearchURL         string
	Site              string
	SearchRetries     int
}

type options struct {
	cfg       Config
	buffer    *int
	logger    *slog.Logger
	searcher  Searcher
	extractor Extractor
	store     storage.Backend
}

// Option configures a Client.
type Option func(*options)

// WithConfig sets the network configuration.
func WithConfig(cfg Config) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithBuffer sets the result channel capacity, overriding Config.Buffer.
// Zero makes every send wait for the reader.
func WithBuffer(n int) Option {
	return func(o *options) { o.buffer = &n }
}

// WithLogger sets the logger; slog.Default() is used otherwise.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithSearcher replaces the web search adapter.
func WithSearcher(s Searcher) Option {
	return func(o *options) { o.searcher = s }
}

// WithExtractor replaces the discussion page adapter.
func WithExtractor(e Extractor) Option {
	return func(o *options) { o.extractor = e }
}

// WithStore records every delivered result in backend. The Client does not
// close it.
func WithStore(backend storage.Backend) Option {
	return func(o *options) { o.store = backend }
}

// Client runs searches. It is safe for concurrent use; each Search gets its
// own background goroutine.
type Client struct {
	pipeline *pipeline.Pipeline
	store    storage.Backend
	buffer   int
	logger   *slog.Logger
}

// New builds a Client.
func New(opts ...Option) (*Client, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	cfg := o.cfg
	buffer := cfg.Buffer
	switch {
	case o.buffer != nil:
		buffer = max(*o.buffer, 0)
	case buffer == 0:
		buffer = DefaultBuffer
	case buffer < 0:
		buffer = 0
	}

	if o.searcher == nil || o.extractor == nil {
		profile, err := fingerprint.ParseProfile(cfg.Fingerprint)
		if err != nil {
			return nil, err
		}

		fetcher, err := fetch.NewFetcher(fetch.FetchConfig{
			Timeout:       cfg.Timeout,
			UserAgents:    useragent.Fixed(cfg.UserAgent),
			Fingerprint:   profile,
			Limiter:       ratelimit.NewLimiter(cfg.RequestsPerSecond, cfg.Jitter),
			CacheSize:     cfg.CacheSize,
			CacheTTL:      cfg.CacheTTL,
			RespectRobots: cfg.RespectRobots,
			Logger:        o.logger,
		})
		if err != nil {
			return nil, fmt.Errorf("howto: %w", err)
		}

		if o.searcher == nil {
			o.searcher = serp.NewGoogle(serp.GoogleConfig{
				SearchURL: cfg.SearchURL,
				Site:      cfg.Site,
				Retries:   cfg.SearchRetries,
				Logger:    o.logger,
			}, fetcher)
		}
		if o.extractor == nil {
			o.extractor = forum.NewStackOverflow(forum.DefaultSelectors, fetcher)
		}
	}

	return &Client{
		pipeline: pipeline.New(pipeline.Config{
			Concurrency: cfg.Concurrency,
			Logger:      o.logger,
		}, o.searcher, o.extractor),
		store:  o.store,
		buffer: buffer,
		logger: o.logger,
	}, nil
}

// Search starts answering query in the background and returns immediately.
// The caller must drain or Close the returned Answers.
func (c *Client) Search(ctx context.Context, query string) *Answers {
	return start(ctx, c, query)
}

// Search is a one-shot helper: it builds a Client from opts and runs query.
// A configuration error is delivered as the only result.
func Search(ctx context.Context, query string, opts ...Option) *Answers {
	c, err := New(opts...)
	if err != nil {
		return failed(err)
	}
	return c.Search(ctx, query)
}

// Normalize returns the URL-safe form of query used in outbound searches.
func Normalize(query string) string {
	return serp.Normalize(query)
}

func (c *Client) record(ctx context.Context, query string, position int, ranAt time.Time, res Result) {
	if c.store == nil {
		return
	}
	// delivered results are kept even when the run is being cancelled
	if err := c.store.Save(context.WithoutCancel(ctx), storage.NewRecord(query, position, ranAt, res)); err != nil {
		c.logger.Error("failed to save result", "query", query, "position", position, "err", err)
	}
}
