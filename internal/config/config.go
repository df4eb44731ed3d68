// Package config loads the application configuration, falling back to
// embedded defaults written out on first run.
package config

import (
	"embed"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

//go:embed default_config.yaml
var defaultConfigFS embed.FS

// HubConfig points at the remote dataset backend.
type HubConfig struct {
	Endpoint    string `yaml:"endpoint"`
	Repo        string `yaml:"repo"`
	TokenEnv    string `yaml:"token_env"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// EmbedderConfig points at the embeddings backend.
type EmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	BatchSize   int    `yaml:"batch_size"`
}

// ProcessingConfig tunes the ingest pipeline.
type ProcessingConfig struct {
	MaxArticles      int  `yaml:"max_articles"`
	FetchTimeoutSecs int  `yaml:"fetch_timeout_secs"`
	ShardSize        int  `yaml:"shard_size"`
	Refresh          bool `yaml:"refresh"`
}

// SearchConfig tunes query defaults.
type SearchConfig struct {
	TopK int `yaml:"top_k"`
}

type Config struct {
	Hub        HubConfig        `yaml:"hub"`
	Embedder   EmbedderConfig   `yaml:"embedder"`
	Processing ProcessingConfig `yaml:"processing"`
	Search     SearchConfig     `yaml:"search"`
	CachePath  string           `yaml:"cache_path,omitempty"`
	ListenAddr string           `yaml:"listen_addr,omitempty"`
}

// HubToken resolves the backend credential from the configured env var.
func (c *Config) HubToken() string {
	return os.Getenv(c.Hub.TokenEnv)
}

// EmbedderKey resolves the embeddings API key from the configured env var.
func (c *Config) EmbedderKey() string {
	return os.Getenv(c.Embedder.APIKeyEnv)
}

// DatasetPrefix derives the dataset-name prefix from the hub repo, e.g.
// "dongsuo/ask_rss_datasets" -> "ask_rss_datasets".
func (c *Config) DatasetPrefix() string {
	parts := strings.Split(c.Hub.Repo, "/")
	return parts[len(parts)-1]
}

func (c *Config) HubTimeout() time.Duration {
	return secs(c.Hub.TimeoutSecs, 30*time.Second)
}

func (c *Config) EmbedderTimeout() time.Duration {
	return secs(c.Embedder.TimeoutSecs, 30*time.Second)
}

func (c *Config) FetchTimeout() time.Duration {
	return secs(c.Processing.FetchTimeoutSecs, 20*time.Second)
}

func secs(n int, fallback time.Duration) time.Duration {
	if n <= 0 {
		return fallback
	}
	return time.Duration(n) * time.Second
}

// ResolvedCachePath is the sqlite cache location, defaulting under the
// XDG cache home.
func (c *Config) ResolvedCachePath() string {
	if c.CachePath != "" {
		return c.CachePath
	}
	return filepath.Join(xdg.CacheHome, "ask-rss", "datasets.db")
}

func DefaultConfigPath() string {
	return filepath.Join(xdg.ConfigHome, "ask-rss", "config.yaml")
}

func loadDefaults() (*Config, error) {
	data, err := defaultConfigFS.ReadFile("default_config.yaml")
	if err != nil {
		return nil, fmt.Errorf("reading embedded config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded config: %w", err)
	}
	return &cfg, nil
}

// Load reads the config at path, or the default location when path is
// empty. On a missing file the embedded defaults are written there and
// used.
func Load(path string) (*Config, error) {
	defaults, err := loadDefaults()
	if err != nil {
		return nil, err
	}

	if path == "" {
		path = DefaultConfigPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if err := writeDefaults(path); err != nil {
				// Non-fatal: just use embedded defaults
				return defaults, nil
			}
			return defaults, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	applyDefaults(&cfg, defaults)

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func writeDefaults(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, _ := defaultConfigFS.ReadFile("default_config.yaml")
	return os.WriteFile(path, data, 0o644)
}

func applyDefaults(cfg, defaults *Config) {
	if cfg.Hub.Endpoint == "" {
		cfg.Hub.Endpoint = defaults.Hub.Endpoint
	}
	if cfg.Hub.Repo == "" {
		cfg.Hub.Repo = defaults.Hub.Repo
	}
	if cfg.Hub.TokenEnv == "" {
		cfg.Hub.TokenEnv = defaults.Hub.TokenEnv
	}
	if cfg.Embedder.BaseURL == "" {
		cfg.Embedder.BaseURL = defaults.Embedder.BaseURL
	}
	if cfg.Embedder.APIKeyEnv == "" {
		cfg.Embedder.APIKeyEnv = defaults.Embedder.APIKeyEnv
	}
	if cfg.Embedder.Model == "" {
		cfg.Embedder.Model = defaults.Embedder.Model
	}
	if cfg.Embedder.BatchSize == 0 {
		cfg.Embedder.BatchSize = defaults.Embedder.BatchSize
	}
	if cfg.Processing.MaxArticles == 0 {
		cfg.Processing.MaxArticles = defaults.Processing.MaxArticles
	}
	if cfg.Processing.ShardSize == 0 {
		cfg.Processing.ShardSize = defaults.Processing.ShardSize
	}
	if cfg.Search.TopK == 0 {
		cfg.Search.TopK = defaults.Search.TopK
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = defaults.ListenAddr
	}
}

func validate(cfg *Config) error {
	if cfg.Hub.Repo == "" {
		return fmt.Errorf("hub repo is required")
	}
	for name, raw := range map[string]string{
		"hub endpoint":      cfg.Hub.Endpoint,
		"embedder base_url": cfg.Embedder.BaseURL,
	} {
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("%s: invalid url: %w", name, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("%s: url scheme must be http or https, got %q", name, u.Scheme)
		}
	}
	if cfg.Processing.MaxArticles < 0 {
		return fmt.Errorf("processing max_articles must be positive")
	}
	return nil
}
