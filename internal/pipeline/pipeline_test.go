package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/FranksOps/howto/internal/domain"
)

// mockSearch implements serp.Provider for testing.
type mockSearch struct {
	links []string
	err   error
	slug  string
}

func (m *mockSearch) Links(ctx context.Context, slug string) ([]string, error) {
	m.slug = slug
	return m.links, m.err
}

type step struct {
	delay time.Duration
	found bool
	err   error
	panic bool
}

// mockExtractor implements forum.Extractor with per-link behavior.
type mockExtractor struct {
	steps    map[string]step
	inFlight atomic.Int32
	peak     atomic.Int32
	mu       sync.Mutex
	calls    []string
}

func (m *mockExtractor) Extract(ctx context.Context, link string) (domain.Answer, bool, error) {
	n := m.inFlight.Add(1)
	defer m.inFlight.Add(-1)
	for {
		p := m.peak.Load()
		if n <= p || m.peak.CompareAndSwap(p, n) {
			break
		}
	}

	m.mu.Lock()
	m.calls = append(m.calls, link)
	m.mu.Unlock()

	s := m.steps[link]
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return domain.Answer{}, false, ctx.Err()
		}
	}
	if s.panic {
		panic("selector exploded")
	}
	if s.err != nil {
		return domain.Answer{}, false, domain.WithContext(s.err, "error in link %s", link)
	}
	if !s.found {
		return domain.Answer{}, false, nil
	}
	return domain.Answer{Link: link, Instruction: "cmd " + link}, true, nil
}

func collect(t *testing.T, p *Pipeline, query string) ([]domain.Result, error) {
	t.Helper()
	var got []domain.Result
	err := p.Run(context.Background(), query, func(r domain.Result) error {
		got = append(got, r)
		return nil
	})
	return got, err
}

func TestPipeline_NoLinks(t *testing.T) {
	search := &mockSearch{links: []string{}}
	p := New(Config{}, search, &mockExtractor{})

	got, err := collect(t, p, "read file lines?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no results, got %v", got)
	}
	if search.slug != "read+file+lines" {
		t.Errorf("expected normalized slug, got %q", search.slug)
	}
}

func TestPipeline_PreservesLinkOrder(t *testing.T) {
	ext := &mockExtractor{steps: map[string]step{
		"A": {delay: 60 * time.Millisecond, found: true},
		"B": {delay: 0, found: true},
		"C": {delay: 30 * time.Millisecond, found: true},
	}}
	p := New(Config{Concurrency: -1}, &mockSearch{links: []string{"A", "B", "C"}}, ext)

	got, err := collect(t, p, "q")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"A", "B", "C"}
	if len(got) != len(want) {
		t.Fatalf("expected %d results, got %d", len(want), len(got))
	}
	for i, r := range got {
		if r.Err != nil || r.Answer.Link != want[i] {
			t.Errorf("result %d = %+v, want answer for %s", i, r, want[i])
		}
	}
}

func TestPipeline_SkipsLinksWithoutInstruction(t *testing.T) {
	ext := &mockExtractor{steps: map[string]step{
		"A": {found: true},
		"B": {found: false},
		"C": {found: true},
	}}
	p := New(Config{}, &mockSearch{links: []string{"A", "B", "C"}}, ext)

	got, err := collect(t, p, "q")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0].Answer.Link != "A" || got[1].Answer.Link != "C" {
		t.Errorf("expected [A C], got %+v", got)
	}
}

func TestPipeline_FailureIsolatedToItsSlot(t *testing.T) {
	links := []string{"L1", "L2", "L3", "L4", "L5"}
	steps := map[string]step{}
	for _, l := range links {
		steps[l] = step{found: true, delay: 10 * time.Millisecond}
	}
	steps["L3"] = step{err: &domain.NetworkError{URL: "L3", Err: errors.New("connection refused")}}

	ext := &mockExtractor{steps: steps}
	p := New(Config{}, &mockSearch{links: links}, ext)

	got, err := collect(t, p, "q")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("expected 5 results, got %d", len(got))
	}

	for i, r := range got {
		if i == 2 {
			if !errors.Is(r.Err, domain.ErrNetwork) {
				t.Errorf("expected network error at slot 3, got %+v", r)
			}
			continue
		}
		if r.Err != nil || r.Answer.Link != links[i] {
			t.Errorf("slot %d: expected answer for %s, got %+v", i+1, links[i], r)
		}
	}
}

func TestPipeline_SearchError(t *testing.T) {
	searchErr := domain.WithContext(errors.New("boom"), "error in query q")
	ext := &mockExtractor{}
	p := New(Config{}, &mockSearch{err: searchErr}, ext)

	got, err := collect(t, p, "q")
	if !errors.Is(err, searchErr) {
		t.Fatalf("expected search error, got %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected nothing emitted, got %v", got)
	}
	if len(ext.calls) != 0 {
		t.Errorf("expected no extraction, got %v", ext.calls)
	}
}

func TestPipeline_ConcurrencyLimit(t *testing.T) {
	links := make([]string, 12)
	steps := map[string]step{}
	for i := range links {
		links[i] = fmt.Sprintf("L%d", i)
		steps[links[i]] = step{found: true, delay: 20 * time.Millisecond}
	}

	ext := &mockExtractor{steps: steps}
	p := New(Config{Concurrency: 3}, &mockSearch{links: links}, ext)

	got, err := collect(t, p, "q")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != len(links) {
		t.Fatalf("expected %d results, got %d", len(links), len(got))
	}
	if peak := ext.peak.Load(); peak > 3 {
		t.Errorf("expected at most 3 concurrent extractions, saw %d", peak)
	}
}

func TestPipeline_PanicBecomesErrorItem(t *testing.T) {
	ext := &mockExtractor{steps: map[string]step{
		"A": {found: true},
		"B": {panic: true},
		"C": {found: true},
	}}
	p := New(Config{}, &mockSearch{links: []string{"A", "B", "C"}}, ext)

	got, err := collect(t, p, "q")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 results, got %d", len(got))
	}
	if !errors.Is(got[1].Err, domain.ErrWorkerFault) {
		t.Errorf("expected worker fault at slot 2, got %+v", got[1])
	}
	if got[2].Answer.Link != "C" {
		t.Errorf("expected C to survive the panic, got %+v", got[2])
	}
}

func TestPipeline_EmitErrorStopsRun(t *testing.T) {
	ext := &mockExtractor{steps: map[string]step{
		"A": {found: true},
		"B": {found: true, delay: time.Second},
	}}
	p := New(Config{}, &mockSearch{links: []string{"A", "B"}}, ext)

	stop := errors.New("consumer gone")
	start := time.Now()
	err := p.Run(context.Background(), "q", func(domain.Result) error { return stop })
	if !errors.Is(err, stop) {
		t.Fatalf("expected emit error, got %v", err)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Errorf("expected in-flight extraction to be cancelled promptly")
	}
}

func TestPipeline_ContextCancellation(t *testing.T) {
	ext := &mockExtractor{steps: map[string]step{
		"A": {found: true, delay: time.Second},
	}}
	p := New(Config{}, &mockSearch{links: []string{"A"}}, ext)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := p.Run(ctx, "q", func(domain.Result) error { return nil })
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestPipeline_MissingComponents(t *testing.T) {
	if err := New(Config{}, nil, &mockExtractor{}).Run(context.Background(), "q", nil); !errors.Is(err, ErrNoSearcher) {
		t.Errorf("expected ErrNoSearcher, got %v", err)
	}
	if err := New(Config{}, &mockSearch{}, nil).Run(context.Background(), "q", nil); !errors.Is(err, ErrNoExtractor) {
		t.Errorf("expected ErrNoExtractor, got %v", err)
	}
}
