// Package store maps feed identities to persisted datasets, reconciling a
// local cache against the remote versioned backend.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dongsuo/ask-rss/internal/dataset"
	"github.com/dongsuo/ask-rss/internal/hub"
)

// Remote is the versioned dataset backend the Store reconciles against.
type Remote interface {
	Pull(ctx context.Context, name string) (*dataset.Dataset, error)
	Push(ctx context.Context, name string, ds *dataset.Dataset) error
}

// SourceInfo describes one known dataset for listings.
type SourceInfo struct {
	Name          string    `json:"name"`
	SourceURL     string    `json:"source_url"`
	FeedTitle     string    `json:"feed_title"`
	ArticleCount  int       `json:"article_count"`
	LastProcessed time.Time `json:"last_processed"`
}

// Store owns the cache and the remote client. Merges targeting the same
// dataset are serialized; different datasets proceed in parallel.
type Store struct {
	cache  Cache
	remote Remote
	prefix string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New(cache Cache, remote Remote, prefix string) *Store {
	return &Store{
		cache:  cache,
		remote: remote,
		prefix: prefix,
		locks:  make(map[string]*sync.Mutex),
	}
}

// ResolveName maps a feed URL to its dataset name. Pure and deterministic.
func (s *Store) ResolveName(feedURL string) string {
	return dataset.ResolveName(s.prefix, feedURL)
}

// lock returns the mutex guarding one dataset name.
func (s *Store) lock(name string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[name]
	if !ok {
		l = &sync.Mutex{}
		s.locks[name] = l
	}
	return l
}

// Load returns the named dataset, cache first. On a cache miss it pulls
// from the remote backend and populates the cache. A dataset unknown to
// both sides comes back empty; for a brand-new feed that is the normal
// path, not an error.
func (s *Store) Load(ctx context.Context, name string) (*dataset.Dataset, error) {
	ds, ok, err := s.cache.Get(name)
	if err != nil {
		return nil, fmt.Errorf("cache read for %s: %w", name, err)
	}
	if ok {
		return ds, nil
	}

	ds, err = s.remote.Pull(ctx, name)
	if errors.Is(err, hub.ErrNotFound) {
		return &dataset.Dataset{Name: name}, nil
	}
	if err != nil {
		return nil, err
	}
	if err := s.cache.Put(ds); err != nil {
		return nil, fmt.Errorf("caching %s: %w", name, err)
	}
	return ds, nil
}

// MergeAndSave folds incoming articles into the named dataset and
// persists the result: cache first, then remote. A failed push leaves the
// merged local state in place so a later call can retry the push without
// re-merging; the summary still reports what was merged locally.
func (s *Store) MergeAndSave(ctx context.Context, name string, incoming []dataset.Article, refresh bool) (*dataset.Summary, error) {
	l := s.lock(name)
	l.Lock()
	defer l.Unlock()

	ds, err := s.Load(ctx, name)
	if err != nil {
		return nil, err
	}

	added := ds.Merge(incoming, refresh)
	ds.LastProcessed = time.Now().UTC()

	summary := &dataset.Summary{
		SourceURL:         ds.SourceURL,
		DatasetName:       name,
		ArticlesProcessed: added,
	}

	if err := s.cache.Put(ds); err != nil {
		return nil, fmt.Errorf("caching merged %s: %w", name, err)
	}
	if err := s.remote.Push(ctx, name, ds); err != nil {
		return summary, err
	}
	return summary, nil
}

// LoadAll returns every known dataset, in stable name order.
func (s *Store) LoadAll(ctx context.Context) ([]*dataset.Dataset, error) {
	return s.cache.List()
}

// Sources summarizes every known dataset for listings.
func (s *Store) Sources(ctx context.Context) ([]SourceInfo, error) {
	all, err := s.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]SourceInfo, 0, len(all))
	for _, ds := range all {
		out = append(out, SourceInfo{
			Name:          ds.Name,
			SourceURL:     ds.SourceURL,
			FeedTitle:     dataset.SourceName(ds.SourceURL),
			ArticleCount:  len(ds.Articles),
			LastProcessed: ds.LastProcessed,
		})
	}
	return out, nil
}
