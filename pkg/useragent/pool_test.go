package useragent

import (
	"strings"
	"sync"
	"testing"
)

func TestFixed(t *testing.T) {
	p := Fixed("")
	for i := 0; i < 3; i++ {
		if got := p.Next(); got != Default {
			t.Errorf("expected default UA, got %s", got)
		}
	}

	custom := Fixed("TestBrowser/1.0")
	if got := custom.Next(); got != "TestBrowser/1.0" {
		t.Errorf("expected custom UA, got %s", got)
	}
}

func TestPool_RoundRobin(t *testing.T) {
	p := NewPool([]string{"A", "B", "C"})

	for _, want := range []string{"A", "B", "C", "A"} {
		if got := p.Next(); got != want {
			t.Errorf("expected %s, got %s", want, got)
		}
	}
}

func TestPool_EmptyFallsBackToDefault(t *testing.T) {
	p := NewPool(nil)
	if p.Len() != 1 {
		t.Fatalf("expected a single entry, got %d", p.Len())
	}
	if got := p.Next(); got != Default {
		t.Errorf("expected %s, got %s", Default, got)
	}
}

func TestPool_CopiesInput(t *testing.T) {
	uas := []string{"A"}
	p := NewPool(uas)
	uas[0] = "mutated"
	if got := p.Next(); got != "A" {
		t.Errorf("pool should not observe caller mutation, got %s", got)
	}
}

func TestDesktop_LooksLikeBrowsers(t *testing.T) {
	for _, ua := range Desktop {
		if !strings.HasPrefix(ua, "Mozilla/5.0 (") {
			t.Errorf("unexpected UA shape: %s", ua)
		}
	}
}

func TestPool_Concurrency(t *testing.T) {
	p := NewPool([]string{"A", "B"})

	var wg sync.WaitGroup
	var mu sync.Mutex
	counts := map[string]int{}

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ua := p.Next()
			mu.Lock()
			counts[ua]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	if counts["A"] != 50 || counts["B"] != 50 {
		t.Errorf("expected an even split, got %v", counts)
	}
}
