package forum

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/FranksOps/howto/internal/domain"
)

type pageFetcher struct {
	pages map[string]string
	err   error
	got   []string
}

func (p *pageFetcher) Fetch(ctx context.Context, url string) (string, error) {
	p.got = append(p.got, url)
	if p.err != nil {
		return "", p.err
	}
	return p.pages[url], nil
}

const link = "https://stackoverflow.com/questions/3277503/read-file-lines"

func TestStackOverflow_Parse(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		found       bool
		instruction string
		fullText    string
	}{
		{
			name: "code block with prose",
			body: `<div class="answer"><div class="post-text">` +
				`<p>Use the scanner:</p><pre><code>bufio.NewScanner(f)</code></pre>` +
				`</div></div>`,
			found:       true,
			instruction: "bufio.NewScanner(f)",
			fullText:    "Use the scanner:bufio.NewScanner(f)",
		},
		{
			name:        "code block without prose",
			body:        `<div class="answer"><pre>ls -la</pre></div>`,
			found:       true,
			instruction: "ls -la",
			fullText:    "",
		},
		{
			name: "inline code fallback",
			body: `<div class="answer"><div class="post-text">` +
				`<p>Call <code>os.ReadFile</code> then split.</p></div></div>`,
			found:       true,
			instruction: "os.ReadFile",
			fullText:    "Call os.ReadFile then split.",
		},
		{
			name: "block wins over earlier inline code",
			body: `<div class="answer"><div class="post-text">` +
				`<p><code>inline</code></p><pre>block</pre></div></div>`,
			found:       true,
			instruction: "block",
			fullText:    "inlineblock",
		},
		{
			name:  "prose without code",
			body:  `<div class="answer"><div class="post-text"><p>Just read the docs.</p></div></div>`,
			found: false,
		},
		{
			name:  "no answers",
			body:  `<div class="question"><pre>question code</pre></div>`,
			found: false,
		},
		{
			name:  "empty code block",
			body:  `<div class="answer"><pre></pre></div>`,
			found: false,
		},
		{
			name: "only the first answer counts",
			body: `<div class="answer"><p>nothing</p></div>` +
				`<div class="answer"><pre>second</pre></div>`,
			found: false,
		},
	}

	so := NewStackOverflow(Selectors{}, nil)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			answer, found, err := so.Parse(link, tt.body)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if found != tt.found {
				t.Fatalf("found = %v, want %v", found, tt.found)
			}
			if !found {
				return
			}
			if answer.Link != link {
				t.Errorf("Link = %q, want %q", answer.Link, link)
			}
			if answer.Instruction != tt.instruction {
				t.Errorf("Instruction = %q, want %q", answer.Instruction, tt.instruction)
			}
			if answer.FullText != tt.fullText {
				t.Errorf("FullText = %q, want %q", answer.FullText, tt.fullText)
			}
		})
	}
}

func TestStackOverflow_VoteSortedURL(t *testing.T) {
	so := NewStackOverflow(Selectors{}, nil)

	got, err := so.VoteSortedURL(link)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != link+"?answerstab=votes" {
		t.Errorf("unexpected URL %q", got)
	}

	got, _ = so.VoteSortedURL(link + "?noredirect=1")
	if got != link+"?answerstab=votes&noredirect=1" {
		t.Errorf("unexpected URL with existing query %q", got)
	}
}

func TestStackOverflow_Extract(t *testing.T) {
	f := &pageFetcher{pages: map[string]string{
		link + "?answerstab=votes": `<div class="answer"><div class="post-text"><p>Try:</p><pre>cat file</pre></div></div>`,
	}}
	so := NewStackOverflow(Selectors{}, f)

	answer, found, err := so.Extract(context.Background(), link)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !found {
		t.Fatal("expected an answer")
	}
	if answer.Instruction != "cat file" || answer.FullText != "Try:cat file" {
		t.Errorf("unexpected answer %+v", answer)
	}
}

func TestStackOverflow_ExtractErrorHasLinkContext(t *testing.T) {
	cause := &domain.NetworkError{URL: link, Err: errors.New("connection reset")}
	so := NewStackOverflow(Selectors{}, &pageFetcher{err: cause})

	_, found, err := so.Extract(context.Background(), link)
	if found {
		t.Error("expected no answer on error")
	}

	var ctxErr *domain.ContextError
	if !errors.As(err, &ctxErr) || !strings.Contains(ctxErr.Context, link) {
		t.Fatalf("expected link context, got %v", err)
	}
	if !errors.Is(err, domain.ErrNetwork) {
		t.Errorf("expected the network error to be preserved, got %v", err)
	}
}

func TestStackOverflow_CustomSelectors(t *testing.T) {
	so := NewStackOverflow(Selectors{
		Answer: ".js-answer",
		Text:   ".s-prose > *",
	}, nil)

	answer, found, err := so.Parse(link, `<div class="js-answer"><div class="s-prose"><p>Use</p><pre>go run .</pre></div></div>`)
	if err != nil || !found {
		t.Fatalf("expected answer, got found=%v err=%v", found, err)
	}
	if answer.FullText != "Usego run ." {
		t.Errorf("unexpected full text %q", answer.FullText)
	}
}
