// Package embed turns text into dense vectors through an OpenAI-compatible
// embeddings endpoint. One Service is constructed at startup and shared by
// every component that needs vectors.
package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// DefaultBatchSize is the number of texts sent per inference request.
// It is a throughput knob, not part of the caller contract.
const DefaultBatchSize = 32

// UnavailableError means no embeddings can be produced at all, which is
// fatal for the enclosing request. A failed warm-up is cached rather than
// silently retried so a half-initialized backend never serves vectors.
type UnavailableError struct {
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("embedding model unavailable: %v", e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// Config configures the embeddings backend.
type Config struct {
	BaseURL   string
	APIKey    string
	Model     string
	Timeout   time.Duration
	BatchSize int
}

// Service is safe for concurrent use. The backend is warmed exactly once,
// on first use; concurrent first callers share the single warm-up.
type Service struct {
	baseURL    string
	apiKey     string
	model      string
	batchSize  int
	maxRetries int
	client     *http.Client

	warmOnce sync.Once
	warmErr  error
	dim      int
}

func NewService(cfg Config) *Service {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	return &Service{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		batchSize:  cfg.BatchSize,
		maxRetries: 4,
		client:     &http.Client{Timeout: cfg.Timeout},
	}
}

// Dimension reports the vector width, or 0 before the first embed call.
// Every vector produced over the process lifetime has this width.
func (s *Service) Dimension() int { return s.dim }

// Embed returns one raw (unnormalized) vector per input text, in input
// order. Callers may pass lists of any length; requests are batched
// internally.
func (s *Service) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if err := s.warm(ctx); err != nil {
		return nil, err
	}
	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += s.batchSize {
		end := start + s.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := s.request(ctx, texts[start:end])
		if err != nil {
			return nil, &UnavailableError{Err: err}
		}
		vectors = append(vectors, batch...)
	}
	for i, v := range vectors {
		if len(v) != s.dim {
			return nil, &UnavailableError{Err: fmt.Errorf("vector %d has dimension %d, expected %d", i, len(v), s.dim)}
		}
	}
	return vectors, nil
}

// EmbedOne embeds a single text, typically a search query.
func (s *Service) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vecs, err := s.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// warm performs the one-time cold-start request that proves the backend
// is reachable and learns the vector dimension. Its outcome, success or
// failure, is permanent for the process lifetime.
func (s *Service) warm(ctx context.Context) error {
	s.warmOnce.Do(func() {
		vecs, err := s.request(ctx, []string{"warmup"})
		if err != nil {
			s.warmErr = &UnavailableError{Err: err}
			return
		}
		if len(vecs) == 0 || len(vecs[0]) == 0 {
			s.warmErr = &UnavailableError{Err: fmt.Errorf("backend returned an empty vector")}
			return
		}
		s.dim = len(vecs[0])
	})
	return s.warmErr
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// request embeds one batch, retrying with backoff on rate limits and
// server errors.
func (s *Service) request(ctx context.Context, texts []string) ([][]float32, error) {
	url := s.baseURL + "/embeddings"
	body, err := json.Marshal(embedRequest{Model: s.model, Input: texts})
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(retryDelay(attempt - 1)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		if s.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+s.apiKey)
		}

		resp, err := s.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			resp.Body.Close()
			lastErr = fmt.Errorf("embeddings API %d: %s", resp.StatusCode, string(b))
			continue
		}
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			resp.Body.Close()
			return nil, fmt.Errorf("embeddings API %d: %s", resp.StatusCode, string(b))
		}

		var out embedResponse
		err = json.NewDecoder(resp.Body).Decode(&out)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}
		if len(out.Data) != len(texts) {
			return nil, fmt.Errorf("embeddings API returned %d vectors for %d inputs", len(out.Data), len(texts))
		}

		vecs := make([][]float32, len(texts))
		for _, d := range out.Data {
			if d.Index < 0 || d.Index >= len(vecs) {
				return nil, fmt.Errorf("embeddings API returned out-of-range index %d", d.Index)
			}
			vecs[d.Index] = d.Embedding
		}
		return vecs, nil
	}
	return nil, lastErr
}

func retryDelay(attempt int) time.Duration {
	base := 200 * time.Millisecond
	d := base << attempt
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}
