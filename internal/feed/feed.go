// Package feed retrieves RSS/Atom documents and turns their entries into
// cleaned article records ready for embedding.
package feed

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/dongsuo/ask-rss/internal/dataset"
)

// DefaultMaxArticles caps a single fetch when the caller does not.
const DefaultMaxArticles = 100

// FetchError marks a failure scoped to one feed. A batch processing
// multiple feeds records it per feed instead of aborting.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Fetcher parses remote feeds with a bounded network timeout.
type Fetcher struct {
	parser  *gofeed.Parser
	timeout time.Duration
}

func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Fetcher{parser: gofeed.NewParser(), timeout: timeout}
}

// Fetch retrieves feedURL and returns up to maxArticles cleaned entries in
// feed order, deduplicated by link. Entries without embeddable text are
// dropped. Network and parse failures come back as *FetchError.
func (f *Fetcher) Fetch(ctx context.Context, feedURL string, maxArticles int) ([]dataset.Article, error) {
	if maxArticles <= 0 {
		maxArticles = DefaultMaxArticles
	}
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	parsed, err := f.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, &FetchError{URL: feedURL, Err: err}
	}

	seen := make(map[string]struct{})
	articles := make([]dataset.Article, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if len(articles) >= maxArticles {
			break
		}
		article, ok := cleanEntry(item, feedURL)
		if !ok {
			continue
		}
		if _, dup := seen[article.Link]; dup {
			continue
		}
		seen[article.Link] = struct{}{}
		articles = append(articles, article)
	}
	return articles, nil
}

// cleanEntry converts one raw feed item into an Article without an
// embedding. Entries with no link or no text after cleaning are rejected.
func cleanEntry(item *gofeed.Item, feedURL string) (dataset.Article, bool) {
	link := strings.TrimSpace(item.Link)
	if link == "" && len(item.Links) > 0 {
		link = strings.TrimSpace(item.Links[0])
	}

	var published time.Time
	if item.PublishedParsed != nil {
		published = *item.PublishedParsed
	} else if item.UpdatedParsed != nil {
		published = *item.UpdatedParsed
	}

	raw := item.Description
	if raw == "" {
		raw = item.Content
	}
	summary := CleanText(raw)

	article, err := dataset.NewArticle(CleanText(item.Title), link, summary, feedURL, published)
	if err != nil {
		return dataset.Article{}, false
	}
	return article, true
}

// CleanText strips markup from a feed field and collapses whitespace.
func CleanText(s string) string {
	if s == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.Join(strings.Fields(s), " ")
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
