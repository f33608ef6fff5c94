package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"

	"github.com/temoto/robotstxt"
	"golang.org/x/sync/singleflight"
)

// ErrDisallowed is returned by Fetch for URLs excluded by robots.txt.
var ErrDisallowed = errors.New("disallowed by robots.txt")

type getFunc func(ctx context.Context, targetURL string) (*page, error)

// RobotsAuditor fetches and caches robots.txt per host. Concurrent lookups
// of one host share a single download; other hosts are not held up by it.
type RobotsAuditor struct {
	get    getFunc
	logger *slog.Logger
	mu     sync.Mutex
	cache  map[string]*robotstxt.RobotsData
	group  singleflight.Group
}

// NewRobotsAuditor creates an auditor that downloads robots.txt with get.
func NewRobotsAuditor(get getFunc, logger *slog.Logger) *RobotsAuditor {
	if logger == nil {
		logger = slog.Default()
	}
	return &RobotsAuditor{
		get:    get,
		logger: logger,
		cache:  make(map[string]*robotstxt.RobotsData),
	}
}

// IsAllowed reports whether agent may fetch targetURL. A robots.txt that is
// missing, unreachable or unparsable allows everything. Only answers from
// the host are remembered: an unreachable robots.txt is asked for again on
// the next call, and a cancelled ctx returns its error.
func (r *RobotsAuditor) IsAllowed(ctx context.Context, targetURL string, agent string) (bool, error) {
	u, err := url.Parse(targetURL)
	if err != nil {
		return false, fmt.Errorf("invalid url: %w", err)
	}

	data, err := r.lookup(ctx, u.Scheme+"://"+u.Host)
	if err != nil {
		return false, err
	}
	if data == nil {
		return true, nil
	}

	path := u.EscapedPath()
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return data.TestAgent(path, agent), nil
}

func (r *RobotsAuditor) cached(host string) (*robotstxt.RobotsData, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	data, ok := r.cache[host]
	return data, ok
}

func (r *RobotsAuditor) lookup(ctx context.Context, host string) (*robotstxt.RobotsData, error) {
	for {
		if data, ok := r.cached(host); ok {
			return data, nil
		}

		ch := r.group.DoChan(host, func() (any, error) {
			data, err := r.download(ctx, host)
			if err != nil {
				return nil, err
			}
			r.mu.Lock()
			r.cache[host] = data
			r.mu.Unlock()
			return data, nil
		})

		var res singleflight.Result
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("robots.txt for %s: %w", host, ctx.Err())
		case res = <-ch:
		}

		switch {
		case res.Err == nil:
			return res.Val.(*robotstxt.RobotsData), nil
		case ctx.Err() != nil:
			return nil, fmt.Errorf("robots.txt for %s: %w", host, ctx.Err())
		case errors.Is(res.Err, context.Canceled):
			// the shared download belonged to a cancelled caller
			continue
		default:
			r.logger.Debug("robots.txt unavailable, defaulting to allow", "host", host, "err", res.Err)
			return nil, nil
		}
	}
}

// download returns nil data for a robots.txt the host does not serve.
func (r *RobotsAuditor) download(ctx context.Context, host string) (*robotstxt.RobotsData, error) {
	p, err := r.get(ctx, host+"/robots.txt")
	if err != nil {
		return nil, fmt.Errorf("fetch error: %w", err)
	}

	if p.status >= http.StatusBadRequest {
		return nil, nil
	}

	data, err := robotstxt.FromBytes(p.body)
	if err != nil {
		r.logger.Debug("unparsable robots.txt, defaulting to allow", "host", host, "err", err)
		return nil, nil
	}
	return data, nil
}
