package forum

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/FranksOps/howto/internal/domain"
	"github.com/PuerkitoBio/goquery"
)

// Selectors describe the page layout of a Stack Exchange style site.
type Selectors struct {
	Answer string
	// Text selects the children of the answer's main text container.
	Text string
	// Block and Inline select code, tried in that order.
	Block  string
	Inline string
	// SortKey and SortValue form the query parameter that orders answers
	// by votes.
	SortKey   string
	SortValue string
}

// DefaultSelectors matches the classic Stack Overflow markup.
var DefaultSelectors = Selectors{
	Answer:    ".answer",
	Text:      ".post-text > *",
	Block:     "pre",
	Inline:    "code",
	SortKey:   "answerstab",
	SortValue: "votes",
}

// StackOverflow extracts answers from Stack Overflow discussion pages.
type StackOverflow struct {
	sel     Selectors
	fetcher Fetcher
}

var _ Extractor = (*StackOverflow)(nil)

// NewStackOverflow returns an extractor using sel. Zero fields fall back to
// DefaultSelectors.
func NewStackOverflow(sel Selectors, f Fetcher) *StackOverflow {
	d := DefaultSelectors
	if sel.Answer == "" {
		sel.Answer = d.Answer
	}
	if sel.Text == "" {
		sel.Text = d.Text
	}
	if sel.Block == "" {
		sel.Block = d.Block
	}
	if sel.Inline == "" {
		sel.Inline = d.Inline
	}
	if sel.SortKey == "" {
		sel.SortKey, sel.SortValue = d.SortKey, d.SortValue
	}
	return &StackOverflow{sel: sel, fetcher: f}
}

// VoteSortedURL adds the vote ordering parameter to link.
func (s *StackOverflow) VoteSortedURL(link string) (string, error) {
	u, err := url.Parse(link)
	if err != nil {
		return "", fmt.Errorf("parsing link: %w", err)
	}
	q := u.Query()
	q.Set(s.sel.SortKey, s.sel.SortValue)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Extract fetches the vote-sorted page and reads its first answer.
func (s *StackOverflow) Extract(ctx context.Context, link string) (domain.Answer, bool, error) {
	pageURL, err := s.VoteSortedURL(link)
	if err != nil {
		return domain.Answer{}, false, domain.WithContext(err, "error in link %s", link)
	}

	body, err := s.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return domain.Answer{}, false, domain.WithContext(err, "error in link %s", link)
	}

	answer, found, err := s.Parse(link, body)
	if err != nil {
		return domain.Answer{}, false, domain.WithContext(err, "error in link %s", link)
	}
	return answer, found, nil
}

// Parse reads the first answer of a discussion page. The instruction is the
// text of the first code block, else of the first inline code element; with
// neither the answer is not found. FullText joins the text of every direct
// child of the answer body and may be empty.
func (s *StackOverflow) Parse(link, body string) (domain.Answer, bool, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return domain.Answer{}, false, fmt.Errorf("parsing discussion page: %w", err)
	}

	top := doc.Find(s.sel.Answer).First()
	if top.Length() == 0 {
		return domain.Answer{}, false, nil
	}

	code := top.Find(s.sel.Block).First()
	if code.Length() == 0 {
		code = top.Find(s.sel.Inline).First()
	}
	if code.Length() == 0 {
		return domain.Answer{}, false, nil
	}

	instruction := code.Text()
	if instruction == "" {
		return domain.Answer{}, false, nil
	}

	return domain.Answer{
		Link:        link,
		FullText:    top.Find(s.sel.Text).Text(),
		Instruction: instruction,
	}, true, nil
}
