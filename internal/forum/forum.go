// Package forum extracts the top-voted answer from Q&A discussion pages.
package forum

import (
	"context"

	"github.com/FranksOps/howto/internal/domain"
)

// Extractor turns one discussion link into its top answer. found is false
// when the page has no answer with an extractable instruction; that is not
// an error.
type Extractor interface {
	Extract(ctx context.Context, link string) (answer domain.Answer, found bool, err error)
}

// Fetcher is the page retrieval an Extractor depends on.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}
