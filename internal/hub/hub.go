// Package hub talks to the remote versioned dataset backend. The backend
// is an opaque object store keyed by dataset name: pull the current
// document, push a replacement.
package hub

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dongsuo/ask-rss/internal/dataset"
)

// ErrNotFound means the backend has no dataset under that name. For a
// brand-new feed this is the expected case, not a failure.
var ErrNotFound = errors.New("dataset not found")

// ErrorKind classifies a StoreError so callers can tell retryable
// network trouble from non-retryable auth failure.
type ErrorKind int

const (
	KindNetwork ErrorKind = iota
	KindAuth
	KindConflict
)

func (k ErrorKind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindConflict:
		return "conflict"
	default:
		return "network"
	}
}

// StoreError is a remote pull/push failure. Local cache state is always
// preserved when one is returned.
type StoreError struct {
	Kind    ErrorKind
	Op      string
	Dataset string
	Err     error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("hub %s %s: %s: %v", e.Op, e.Dataset, e.Kind, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Retryable reports whether a later identical call could succeed.
func (e *StoreError) Retryable() bool { return e.Kind != KindAuth }

// Config configures the hub client.
type Config struct {
	Endpoint  string
	Repo      string
	Token     string
	Timeout   time.Duration
	ShardSize int
}

// Client is the HTTP client for the dataset backend.
type Client struct {
	endpoint  string
	repo      string
	token     string
	shardSize int
	client    *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.ShardSize <= 0 {
		cfg.ShardSize = dataset.DefaultShardSize
	}
	return &Client{
		endpoint:  cfg.Endpoint,
		repo:      cfg.Repo,
		token:     cfg.Token,
		shardSize: cfg.ShardSize,
		client:    &http.Client{Timeout: cfg.Timeout},
	}
}

// Wire format: one JSON document per dataset, articles grouped into
// fixed-size shards. Shard boundaries are storage layout only; readers
// flatten them back in order.
type datasetDoc struct {
	Name          string         `json:"name"`
	SourceURL     string         `json:"source_url"`
	LastProcessed time.Time      `json:"last_processed"`
	ShardSize     int            `json:"shard_size"`
	Shards        [][]articleDoc `json:"shards"`
}

type articleDoc struct {
	Title     string    `json:"title"`
	Link      string    `json:"link"`
	Published string    `json:"published,omitempty"`
	Summary   string    `json:"summary"`
	SourceURL string    `json:"source_url"`
	Embedding []float32 `json:"embedding,omitempty"`
}

func (c *Client) url(name string) string {
	return fmt.Sprintf("%s/datasets/%s/%s", c.endpoint, c.repo, name)
}

// Pull fetches the named dataset. Returns ErrNotFound when the backend
// has never seen it.
func (c *Client) Pull(ctx context.Context, name string) (*dataset.Dataset, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(name), nil)
	if err != nil {
		return nil, err
	}
	c.auth(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &StoreError{Kind: KindNetwork, Op: "pull", Dataset: name, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &StoreError{Kind: KindAuth, Op: "pull", Dataset: name, Err: statusErr(resp)}
	case resp.StatusCode != http.StatusOK:
		return nil, &StoreError{Kind: KindNetwork, Op: "pull", Dataset: name, Err: statusErr(resp)}
	}

	var doc datasetDoc
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, &StoreError{Kind: KindNetwork, Op: "pull", Dataset: name, Err: err}
	}
	return fromDoc(&doc), nil
}

// Push replaces the named dataset on the backend. A 409 from a backend
// enforcing optimistic concurrency surfaces as KindConflict.
func (c *Client) Push(ctx context.Context, name string, ds *dataset.Dataset) error {
	body, err := json.Marshal(toDoc(ds, c.shardSize))
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.url(name), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.auth(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return &StoreError{Kind: KindNetwork, Op: "push", Dataset: name, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &StoreError{Kind: KindAuth, Op: "push", Dataset: name, Err: statusErr(resp)}
	case resp.StatusCode == http.StatusConflict:
		return &StoreError{Kind: KindConflict, Op: "push", Dataset: name, Err: statusErr(resp)}
	case resp.StatusCode >= 300:
		return &StoreError{Kind: KindNetwork, Op: "push", Dataset: name, Err: statusErr(resp)}
	}
	return nil
}

func (c *Client) auth(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func statusErr(resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(b))
}

func toDoc(ds *dataset.Dataset, shardSize int) *datasetDoc {
	doc := &datasetDoc{
		Name:          ds.Name,
		SourceURL:     ds.SourceURL,
		LastProcessed: ds.LastProcessed,
		ShardSize:     shardSize,
	}
	for _, shard := range ds.Shards(shardSize) {
		out := make([]articleDoc, len(shard))
		for i, a := range shard {
			out[i] = articleDoc{
				Title:     a.Title,
				Link:      a.Link,
				Published: a.PublishedISO(),
				Summary:   a.Summary,
				SourceURL: a.SourceURL,
				Embedding: a.Embedding,
			}
		}
		doc.Shards = append(doc.Shards, out)
	}
	return doc
}

func fromDoc(doc *datasetDoc) *dataset.Dataset {
	ds := &dataset.Dataset{
		Name:          doc.Name,
		SourceURL:     doc.SourceURL,
		LastProcessed: doc.LastProcessed,
	}
	for _, shard := range doc.Shards {
		for _, a := range shard {
			var published time.Time
			if a.Published != "" {
				if t, err := time.Parse(time.RFC3339, a.Published); err == nil {
					published = t
				}
			}
			ds.Articles = append(ds.Articles, dataset.Article{
				Title:     a.Title,
				Link:      a.Link,
				Published: published,
				Summary:   a.Summary,
				SourceURL: a.SourceURL,
				Embedding: a.Embedding,
			})
		}
	}
	return ds
}
