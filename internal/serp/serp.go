package serp

import (
	"context"
	"strings"

	"github.com/gosimple/slug"
)

// Separator joins slug tokens in outbound search URLs.
const Separator = "+"

// Provider abstracts a search engine that returns candidate discussion links
// for a normalized query. Links come back in result-page order.
type Provider interface {
	Links(ctx context.Context, slug string) ([]string, error)
}

// Fetcher is the page retrieval a Provider depends on.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Normalize turns free text into a URL-safe slug: lowercased, transliterated
// to ASCII, every run of other characters collapsed into Separator.
// "read file lines?" becomes "read+file+lines".
func Normalize(query string) string {
	return strings.ReplaceAll(slug.Make(query), "-", Separator)
}
