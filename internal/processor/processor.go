// Package processor wires the pipeline together: fetch a feed, embed its
// articles, merge them into the feed's dataset, and answer semantic
// queries over everything stored.
package processor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dongsuo/ask-rss/internal/dataset"
	"github.com/dongsuo/ask-rss/internal/embed"
	"github.com/dongsuo/ask-rss/internal/feed"
	"github.com/dongsuo/ask-rss/internal/search"
	"github.com/dongsuo/ask-rss/internal/store"
)

// ErrEmptyQuery rejects searches with no query text. "No results" is
// never an error; a malformed query is.
var ErrEmptyQuery = errors.New("query cannot be empty")

// Fetcher retrieves cleaned articles for one feed.
type Fetcher interface {
	Fetch(ctx context.Context, feedURL string, maxArticles int) ([]dataset.Article, error)
}

// Embedder converts texts to vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedOne(ctx context.Context, text string) ([]float32, error)
}

// FeedResult reports the outcome for a single feed in a batch.
type FeedResult struct {
	SourceURL         string `json:"source_url"`
	Status            string `json:"status"`
	ArticlesProcessed int    `json:"articles_processed"`
	DatasetName       string `json:"dataset_name,omitempty"`
	Error             string `json:"error,omitempty"`
}

// BatchSummary is the structured report for one processing request. It is
// produced even under partial failure.
type BatchSummary struct {
	Status          string       `json:"status"`
	Message         string       `json:"message"`
	Results         []FeedResult `json:"results"`
	TotalFeeds      int          `json:"total_feeds"`
	SuccessfulFeeds int          `json:"successful_feeds"`
	TotalArticles   int          `json:"total_articles"`
}

// SearchResult is one ranked article for API and CLI consumers.
type SearchResult struct {
	Title     string  `json:"title"`
	Link      string  `json:"link"`
	SourceURL string  `json:"source_url"`
	Published string  `json:"published,omitempty"`
	Summary   string  `json:"summary"`
	Score     float64 `json:"score"`
}

// Options tune request defaults.
type Options struct {
	MaxArticles int
	TopK        int
	Refresh     bool
}

// Processor executes processing and search requests synchronously. The
// hosting layer is responsible for not blocking its accept loop on these
// calls.
type Processor struct {
	fetcher  Fetcher
	embedder Embedder
	store    *store.Store
	opts     Options
}

func New(fetcher Fetcher, embedder Embedder, st *store.Store, opts Options) *Processor {
	if opts.MaxArticles <= 0 {
		opts.MaxArticles = feed.DefaultMaxArticles
	}
	if opts.TopK <= 0 {
		opts.TopK = search.DefaultTopK
	}
	return &Processor{fetcher: fetcher, embedder: embedder, store: st, opts: opts}
}

// ProcessFeeds runs the ingest pipeline for each URL independently. A
// failure in one feed is recorded in its result and does not touch the
// others. Embedding unavailability is the exception: with no vectors
// possible at all the whole request fails.
func (p *Processor) ProcessFeeds(ctx context.Context, urls []string, maxArticles int) (*BatchSummary, error) {
	if len(urls) == 0 {
		return nil, errors.New("at least one feed URL is required")
	}
	if maxArticles <= 0 {
		maxArticles = p.opts.MaxArticles
	}

	summary := &BatchSummary{TotalFeeds: len(urls)}
	for _, url := range urls {
		result, err := p.processOne(ctx, url, maxArticles)
		if err != nil {
			var ue *embed.UnavailableError
			if errors.As(err, &ue) {
				return nil, err
			}
			result = FeedResult{SourceURL: url, Status: "error", Error: err.Error()}
		}
		if result.Status == "success" {
			summary.SuccessfulFeeds++
			summary.TotalArticles += result.ArticlesProcessed
		}
		summary.Results = append(summary.Results, result)
	}

	switch {
	case summary.SuccessfulFeeds == len(urls):
		summary.Status = "success"
	case summary.SuccessfulFeeds > 0:
		summary.Status = "partial"
	default:
		summary.Status = "error"
	}
	summary.Message = fmt.Sprintf("Processed %d articles from %d/%d feeds",
		summary.TotalArticles, summary.SuccessfulFeeds, summary.TotalFeeds)
	return summary, nil
}

func (p *Processor) processOne(ctx context.Context, url string, maxArticles int) (FeedResult, error) {
	articles, err := p.fetcher.Fetch(ctx, url, maxArticles)
	if err != nil {
		return FeedResult{}, err
	}
	if len(articles) == 0 {
		return FeedResult{}, fmt.Errorf("no articles found in feed %s", url)
	}

	texts := make([]string, len(articles))
	for i, a := range articles {
		texts[i] = a.EmbedText()
	}
	vectors, err := p.embedder.Embed(ctx, texts)
	if err != nil {
		return FeedResult{}, err
	}
	for i := range articles {
		articles[i].Embedding = vectors[i]
	}

	name := p.store.ResolveName(url)
	sum, err := p.store.MergeAndSave(ctx, name, articles, p.opts.Refresh)
	if err != nil {
		return FeedResult{}, err
	}
	return FeedResult{
		SourceURL:         url,
		Status:            "success",
		ArticlesProcessed: sum.ArticlesProcessed,
		DatasetName:       sum.DatasetName,
	}, nil
}

// SemanticSearch embeds the query and ranks stored articles against it.
// With a sourceURL filter only that feed's dataset is considered; a
// filter matching no known dataset yields an empty result, not an error.
func (p *Processor) SemanticSearch(ctx context.Context, query, sourceURL string, topK int) ([]SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if topK <= 0 {
		topK = p.opts.TopK
	}

	queryVec, err := p.embedder.EmbedOne(ctx, query)
	if err != nil {
		return nil, err
	}

	var candidates []dataset.Article
	if sourceURL != "" {
		ds, err := p.store.Load(ctx, p.store.ResolveName(sourceURL))
		if err != nil {
			return nil, err
		}
		candidates = ds.Articles
	} else {
		all, err := p.store.LoadAll(ctx)
		if err != nil {
			return nil, err
		}
		for _, ds := range all {
			candidates = append(candidates, ds.Articles...)
		}
	}

	ranked := search.Rank(queryVec, search.FilterBySource(candidates, sourceURL), topK)
	results := make([]SearchResult, 0, len(ranked))
	for _, r := range ranked {
		results = append(results, SearchResult{
			Title:     r.Article.Title,
			Link:      r.Article.Link,
			SourceURL: r.Article.SourceURL,
			Published: r.Article.PublishedISO(),
			Summary:   r.Article.Summary,
			Score:     r.Score,
		})
	}
	return results, nil
}

// ListSources reports every known dataset.
func (p *Processor) ListSources(ctx context.Context) ([]store.SourceInfo, error) {
	return p.store.Sources(ctx)
}
