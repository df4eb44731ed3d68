package cmd

import (
	"fmt"

	"github.com/dongsuo/ask-rss/internal/config"
	"github.com/dongsuo/ask-rss/internal/embed"
	"github.com/dongsuo/ask-rss/internal/feed"
	"github.com/dongsuo/ask-rss/internal/hub"
	"github.com/dongsuo/ask-rss/internal/processor"
	"github.com/dongsuo/ask-rss/internal/store"
)

// App bundles the wired pipeline for the commands.
type App struct {
	Config    *config.Config
	Processor *processor.Processor
	cache     *store.SQLiteCache
}

func (a *App) Close() {
	if a.cache != nil {
		a.cache.Close()
	}
}

// buildApp loads config and wires the pipeline. The embedding service is
// constructed here, once, and shared by every component that needs it.
func buildApp() (*App, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	cache, err := store.OpenCache(cfg.ResolvedCachePath())
	if err != nil {
		return nil, fmt.Errorf("opening dataset cache: %w", err)
	}

	remote := hub.NewClient(hub.Config{
		Endpoint:  cfg.Hub.Endpoint,
		Repo:      cfg.Hub.Repo,
		Token:     cfg.HubToken(),
		Timeout:   cfg.HubTimeout(),
		ShardSize: cfg.Processing.ShardSize,
	})

	embedder := embed.NewService(embed.Config{
		BaseURL:   cfg.Embedder.BaseURL,
		APIKey:    cfg.EmbedderKey(),
		Model:     cfg.Embedder.Model,
		Timeout:   cfg.EmbedderTimeout(),
		BatchSize: cfg.Embedder.BatchSize,
	})

	st := store.New(cache, remote, cfg.DatasetPrefix())
	fetcher := feed.NewFetcher(cfg.FetchTimeout())

	p := processor.New(fetcher, embedder, st, processor.Options{
		MaxArticles: cfg.Processing.MaxArticles,
		TopK:        cfg.Search.TopK,
		Refresh:     cfg.Processing.Refresh,
	})

	return &App{Config: cfg, Processor: p, cache: cache}, nil
}
