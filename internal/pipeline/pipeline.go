// Package pipeline runs a query through search and answer extraction,
// fanning out one extraction per link and merging results back in link order.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"

	"github.com/FranksOps/howto/internal/domain"
	"github.com/FranksOps/howto/internal/forum"
	"github.com/FranksOps/howto/internal/metrics"
	"github.com/FranksOps/howto/internal/serp"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency caps simultaneous extractions when Config leaves it zero.
const DefaultConcurrency = 8

// ErrNoSearcher is returned by Run when the pipeline has no Provider.
var ErrNoSearcher = errors.New("pipeline: search provider is nil")

// ErrNoExtractor is returned by Run when the pipeline has no Extractor.
var ErrNoExtractor = errors.New("pipeline: answer extractor is nil")

// Config provides parameters for the Pipeline.
type Config struct {
	// Concurrency caps in-flight extractions. Zero uses DefaultConcurrency,
	// negative removes the cap.
	Concurrency int
	Logger      *slog.Logger
}

// Pipeline composes a search provider and an answer extractor.
type Pipeline struct {
	cfg       Config
	search    serp.Provider
	extractor forum.Extractor
	logger    *slog.Logger
}

// EmitFunc receives results in link order. Returning an error stops the run.
type EmitFunc func(domain.Result) error

type outcome struct {
	answer domain.Answer
	found  bool
	err    error
}

// New creates a Pipeline.
func New(cfg Config, search serp.Provider, extractor forum.Extractor) *Pipeline {
	if cfg.Concurrency == 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Pipeline{
		cfg:       cfg,
		search:    search,
		extractor: extractor,
		logger:    cfg.Logger,
	}
}

// Run normalizes query, waits for the link list, then extracts every link
// concurrently. Results reach emit in link order regardless of completion
// order: links without an instruction are skipped and failed links become
// one error Result in their slot. A failing link never affects the others.
//
// A search failure is returned as is, with nothing emitted. Otherwise Run
// returns nil once every link is emitted, or the context or emit error that
// stopped it early. Run does not return before its extractions finish.
func (p *Pipeline) Run(ctx context.Context, query string, emit EmitFunc) error {
	if p.search == nil {
		return ErrNoSearcher
	}
	if p.extractor == nil {
		return ErrNoExtractor
	}

	slug := serp.Normalize(query)
	p.logger.Debug("searching", "query", query, "slug", slug)

	links, err := p.search.Links(ctx, slug)
	if err != nil {
		p.logger.Warn("search failed", "query", slug, "err", err)
		return err
	}
	metrics.SearchLinks.Observe(float64(len(links)))
	p.logger.Debug("links discovered", "query", slug, "count", len(links))

	if len(links) == 0 {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// slots[i] receives exactly one outcome for links[i], never blocking.
	slots := make([]chan outcome, len(links))
	for i := range slots {
		slots[i] = make(chan outcome, 1)
	}

	g := new(errgroup.Group)
	g.SetLimit(p.cfg.Concurrency)

	launched := make(chan struct{})
	go func() {
		defer close(launched)
		for i, link := range links {
			if ctx.Err() != nil {
				return
			}
			g.Go(func() error {
				slots[i] <- p.extract(ctx, link)
				return nil
			})
		}
	}()

	runErr := p.merge(ctx, links, slots, emit)

	cancel()
	<-launched
	_ = g.Wait()

	return runErr
}

// merge releases slot i only after slots 0..i-1 have been released.
func (p *Pipeline) merge(ctx context.Context, links []string, slots []chan outcome, emit EmitFunc) error {
	for i := range slots {
		var o outcome
		select {
		case <-ctx.Done():
			return ctx.Err()
		case o = <-slots[i]:
		}

		var res domain.Result
		switch {
		case o.err != nil:
			res = domain.Result{Err: o.err}
		case o.found:
			res = domain.Result{Answer: o.answer}
		default:
			p.logger.Debug("no instruction in top answer", "link", links[i])
			continue
		}

		if err := emit(res); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) extract(ctx context.Context, link string) (o outcome) {
	metrics.ExtractionsInFlight.Inc()
	defer metrics.ExtractionsInFlight.Dec()

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("answer extraction panicked", "link", link, "panic", r)
			metrics.RecordExtraction(metrics.OutcomePanic)
			o = outcome{err: domain.WithContext(&domain.PanicError{Value: r, Stack: debug.Stack()}, "error in link %s", link)}
		}
	}()

	answer, found, err := p.extractor.Extract(ctx, link)
	switch {
	case err != nil:
		p.logger.Debug("answer extraction failed", "link", link, "err", err)
		metrics.RecordExtraction(metrics.OutcomeError)
	case found:
		metrics.RecordExtraction(metrics.OutcomeAnswer)
	default:
		metrics.RecordExtraction(metrics.OutcomeEmpty)
	}
	return outcome{answer: answer, found: found, err: err}
}
