package useragent

import (
	"sync/atomic"
)

// Default is the desktop Firefox User-Agent sent when nothing else is
// configured. Search engines serve their plain HTML layout to it.
const Default = "Mozilla/5.0 (X11; Ubuntu; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0"

// Desktop lists alternative desktop browser User-Agents for callers that
// want to rotate.
var Desktop = []string{
	Default,
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:128.0) Gecko/20100101 Firefox/128.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.6 Safari/605.1.15",
}

// Pool hands out User-Agents round-robin. A pool built from a single
// value always returns that value.
type Pool struct {
	uas     []string
	counter atomic.Uint64
}

// Fixed returns a pool that always yields ua, or Default when ua is empty.
func Fixed(ua string) *Pool {
	if ua == "" {
		ua = Default
	}
	return NewPool([]string{ua})
}

// NewPool creates a pool over a copy of uas. An empty slice yields a pool
// holding only Default.
func NewPool(uas []string) *Pool {
	if len(uas) == 0 {
		uas = []string{Default}
	}
	copied := make([]string, len(uas))
	copy(copied, uas)
	return &Pool{uas: copied}
}

// Next returns the next User-Agent. It is safe for concurrent use.
func (p *Pool) Next() string {
	idx := p.counter.Add(1) - 1
	return p.uas[idx%uint64(len(p.uas))]
}

// Len is the number of distinct entries in the pool.
func (p *Pool) Len() int {
	return len(p.uas)
}
