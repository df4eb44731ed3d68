// Package dataset defines the records persisted per feed and the
// deterministic naming scheme that ties a feed URL to its dataset.
package dataset

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// DefaultShardSize is the article count at which a dataset is split
// into multiple storage partitions.
const DefaultShardSize = 500

// Article is one feed entry. Link is the identity key within a dataset.
// Embedding is nil until the article has been through the embedder; once
// merged into a dataset the record is replaced, never mutated.
type Article struct {
	Title     string
	Link      string
	Published time.Time // zero means the feed carried no usable date
	Summary   string
	SourceURL string
	Embedding []float32
}

// NewArticle validates the invariants an Article must hold before it can
// enter the pipeline: a non-empty link and non-empty cleaned text.
func NewArticle(title, link, summary, sourceURL string, published time.Time) (Article, error) {
	if strings.TrimSpace(link) == "" {
		return Article{}, errors.New("article link is required")
	}
	if strings.TrimSpace(summary) == "" {
		return Article{}, fmt.Errorf("article %s has no embeddable text", link)
	}
	if title == "" {
		title = "Untitled"
	}
	return Article{
		Title:     title,
		Link:      link,
		Published: published,
		Summary:   summary,
		SourceURL: sourceURL,
	}, nil
}

// EmbedText is the string handed to the embedder for this article.
func (a Article) EmbedText() string {
	return strings.TrimSpace(a.Title + " " + a.Summary)
}

// PublishedISO renders the published timestamp in RFC 3339, or "" when
// the feed carried no date.
func (a Article) PublishedISO() string {
	if a.Published.IsZero() {
		return ""
	}
	return a.Published.UTC().Format(time.RFC3339)
}

// Dataset is the persisted collection for one feed. Articles keep
// insertion order so repeated loads iterate stably.
type Dataset struct {
	Name          string
	SourceURL     string
	LastProcessed time.Time
	Articles      []Article
}

// Summary reports the outcome of a merge for one feed.
type Summary struct {
	SourceURL         string
	DatasetName       string
	ArticlesProcessed int
}

// Merge folds incoming articles into the dataset, deduplicating by link.
// Existing articles win unless refresh is set, in which case the stored
// title, summary and embedding are replaced in place while link identity
// and insertion position are preserved. The return value counts only
// genuinely new articles.
func (d *Dataset) Merge(incoming []Article, refresh bool) int {
	index := make(map[string]int, len(d.Articles))
	for i, a := range d.Articles {
		index[a.Link] = i
	}
	added := 0
	for _, a := range incoming {
		if i, ok := index[a.Link]; ok {
			if refresh {
				d.Articles[i].Title = a.Title
				d.Articles[i].Summary = a.Summary
				d.Articles[i].Embedding = a.Embedding
				if !a.Published.IsZero() {
					d.Articles[i].Published = a.Published
				}
			}
			continue
		}
		index[a.Link] = len(d.Articles)
		d.Articles = append(d.Articles, a)
		added++
	}
	if d.SourceURL == "" && len(incoming) > 0 {
		d.SourceURL = incoming[0].SourceURL
	}
	return added
}

// Shards partitions the articles into fixed-size groups for storage.
// Boundaries are a storage detail only; order across shards matches
// insertion order.
func (d *Dataset) Shards(size int) [][]Article {
	if size <= 0 {
		size = DefaultShardSize
	}
	var shards [][]Article
	for start := 0; start < len(d.Articles); start += size {
		end := start + size
		if end > len(d.Articles) {
			end = len(d.Articles)
		}
		shards = append(shards, d.Articles[start:end])
	}
	return shards
}

// Naming scheme v1: SHA-256 over the normalized feed URL, first 16 bytes
// as hex. Changing the algorithm orphans every existing dataset, so a new
// scheme needs a new version and a migration.
const nameVersion = 1

// ResolveName maps a feed URL to its dataset name, format
// "<prefix>_<hash>". Pure and deterministic: the same URL always yields
// the same name regardless of process or host.
func ResolveName(prefix, feedURL string) string {
	sum := sha256.Sum256([]byte(Normalize(feedURL)))
	return fmt.Sprintf("%s_%x", prefix, sum[:16])
}

// Normalize canonicalizes a feed URL for identity purposes: whitespace
// trimmed, scheme and host lowercased. Path and query are significant
// and left untouched.
func Normalize(feedURL string) string {
	s := strings.TrimSpace(feedURL)
	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" {
		return s
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	return u.String()
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// SourceName derives a short human-readable source label from a feed URL,
// e.g. "https://www.example.com/rss" -> "example".
func SourceName(feedURL string) string {
	u, err := url.Parse(strings.TrimSpace(feedURL))
	if err != nil || u.Hostname() == "" {
		return "unknown_source"
	}
	host := strings.ToLower(u.Hostname())
	for _, prefix := range []string{"www.", "m.", "mobile."} {
		if strings.HasPrefix(host, prefix) {
			host = strings.TrimPrefix(host, prefix)
			break
		}
	}
	parts := strings.Split(host, ".")
	name := parts[0]
	if len(parts) >= 2 {
		name = parts[len(parts)-2]
		// second-level registries like example.co.uk
		if len(parts) >= 3 && (name == "co" || name == "com" || name == "org" || name == "net") {
			name = parts[len(parts)-3]
		}
	}
	name = nonAlnum.ReplaceAllString(name, "_")
	name = strings.Trim(name, "_")
	if name == "" {
		return "unknown_source"
	}
	return name
}
