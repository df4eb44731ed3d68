package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dongsuo/ask-rss/internal/processor"
	"github.com/dongsuo/ask-rss/internal/store"
)

type fakePipeline struct {
	summary *processor.BatchSummary
	results []processor.SearchResult
	sources []store.SourceInfo
}

func (f *fakePipeline) ProcessFeeds(ctx context.Context, urls []string, maxArticles int) (*processor.BatchSummary, error) {
	return f.summary, nil
}

func (f *fakePipeline) SemanticSearch(ctx context.Context, query, sourceURL string, topK int) ([]processor.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, processor.ErrEmptyQuery
	}
	return f.results, nil
}

func (f *fakePipeline) ListSources(ctx context.Context) ([]store.SourceInfo, error) {
	return f.sources, nil
}

func testServer(t *testing.T, p Pipeline) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewHandler(p).Mux())
	t.Cleanup(srv.Close)
	return srv
}

func TestHealth(t *testing.T) {
	srv := testServer(t, &fakePipeline{})
	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "healthy" {
		t.Errorf("status field = %q", body["status"])
	}
}

func TestProcessRSSRequiresURLs(t *testing.T) {
	srv := testServer(t, &fakePipeline{})
	resp, err := http.Post(srv.URL+"/process-rss", "application/json", strings.NewReader(`{"rss_urls": []}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestProcessRSSReturnsSummary(t *testing.T) {
	srv := testServer(t, &fakePipeline{
		summary: &processor.BatchSummary{
			Status:          "success",
			TotalFeeds:      1,
			SuccessfulFeeds: 1,
			TotalArticles:   3,
			Results: []processor.FeedResult{
				{SourceURL: "https://f", Status: "success", ArticlesProcessed: 3, DatasetName: "ds_x"},
			},
		},
	})

	resp, err := http.Post(srv.URL+"/process-rss", "application/json",
		strings.NewReader(`{"rss_urls": ["https://f"], "max_articles": 10}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var got processor.BatchSummary
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Status != "success" || got.TotalArticles != 3 || len(got.Results) != 1 {
		t.Errorf("unexpected summary: %+v", got)
	}
}

func TestSemanticSearchEmptyQuery(t *testing.T) {
	srv := testServer(t, &fakePipeline{})
	resp, err := http.Post(srv.URL+"/semantic-search", "application/json", strings.NewReader(`{"query": "  "}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestSemanticSearchNoResultsIsOK(t *testing.T) {
	srv := testServer(t, &fakePipeline{})
	resp, err := http.Post(srv.URL+"/semantic-search", "application/json", strings.NewReader(`{"query": "anything"}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("no results should still be 200, got %d", resp.StatusCode)
	}
	var body searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Results == nil || len(body.Results) != 0 {
		t.Errorf("expected empty results array, got %v", body.Results)
	}
}

func TestSources(t *testing.T) {
	srv := testServer(t, &fakePipeline{
		sources: []store.SourceInfo{{Name: "ds_a", SourceURL: "https://f", FeedTitle: "f", ArticleCount: 2}},
	})
	resp, err := http.Get(srv.URL + "/sources")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	var got []store.SourceInfo
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 || got[0].Name != "ds_a" {
		t.Errorf("unexpected sources: %+v", got)
	}
}
