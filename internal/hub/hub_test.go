package hub

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/dongsuo/ask-rss/internal/dataset"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{Endpoint: srv.URL, Repo: "dongsuo/ask_rss_datasets", Token: "tok", Timeout: 5 * time.Second, ShardSize: 2})
}

func TestPullNotFound(t *testing.T) {
	c := testClient(t, http.NotFoundHandler())
	_, err := c.Pull(context.Background(), "ds_missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPullAuthError(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad token", http.StatusUnauthorized)
	}))
	_, err := c.Pull(context.Background(), "ds")
	var se *StoreError
	if !errors.As(err, &se) {
		t.Fatalf("expected *StoreError, got %v", err)
	}
	if se.Kind != KindAuth {
		t.Errorf("kind = %s, want auth", se.Kind)
	}
	if se.Retryable() {
		t.Error("auth errors must not be retryable")
	}
}

func TestPushConflictAndNetwork(t *testing.T) {
	status := http.StatusConflict
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "busy", status)
	}))

	err := c.Push(context.Background(), "ds", &dataset.Dataset{Name: "ds"})
	var se *StoreError
	if !errors.As(err, &se) || se.Kind != KindConflict {
		t.Fatalf("expected conflict StoreError, got %v", err)
	}
	if !se.Retryable() {
		t.Error("conflict should be retryable")
	}

	status = http.StatusBadGateway
	err = c.Push(context.Background(), "ds", &dataset.Dataset{Name: "ds"})
	if !errors.As(err, &se) || se.Kind != KindNetwork {
		t.Fatalf("expected network StoreError, got %v", err)
	}
}

func TestPushNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(Config{Endpoint: url, Repo: "r", Timeout: time.Second})
	err := c.Push(context.Background(), "ds", &dataset.Dataset{Name: "ds"})
	var se *StoreError
	if !errors.As(err, &se) || se.Kind != KindNetwork {
		t.Fatalf("expected network StoreError, got %v", err)
	}
}

func TestPushPullRoundTrip(t *testing.T) {
	var (
		mu   sync.Mutex
		docs = map[string][]byte{}
	)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		mu.Lock()
		defer mu.Unlock()
		switch r.Method {
		case http.MethodPut:
			body, _ := io.ReadAll(r.Body)
			docs[r.URL.Path] = body
			w.WriteHeader(http.StatusOK)
		case http.MethodGet:
			body, ok := docs[r.URL.Path]
			if !ok {
				http.NotFound(w, r)
				return
			}
			w.Write(body)
		}
	})
	c := testClient(t, handler)

	published := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	ds := &dataset.Dataset{
		Name:          "ds_abc",
		SourceURL:     "https://example.com/feed.xml",
		LastProcessed: time.Now().UTC().Truncate(time.Second),
	}
	for _, link := range []string{"a", "b", "c", "d", "e"} {
		ds.Articles = append(ds.Articles, dataset.Article{
			Title:     "T " + link,
			Link:      "https://example.com/" + link,
			Published: published,
			Summary:   "summary " + link,
			SourceURL: ds.SourceURL,
			Embedding: []float32{0.25, -0.5, 1},
		})
	}

	if err := c.Push(context.Background(), ds.Name, ds); err != nil {
		t.Fatalf("push: %v", err)
	}
	got, err := c.Pull(context.Background(), ds.Name)
	if err != nil {
		t.Fatalf("pull: %v", err)
	}

	if got.Name != ds.Name || got.SourceURL != ds.SourceURL {
		t.Errorf("metadata mismatch: %+v", got)
	}
	if len(got.Articles) != len(ds.Articles) {
		t.Fatalf("expected %d articles across shards, got %d", len(ds.Articles), len(got.Articles))
	}
	for i, a := range got.Articles {
		want := ds.Articles[i]
		if a.Link != want.Link {
			t.Errorf("article %d out of order: %s", i, a.Link)
		}
		if !a.Published.Equal(want.Published) {
			t.Errorf("article %d published = %v, want %v", i, a.Published, want.Published)
		}
		for j := range want.Embedding {
			if a.Embedding[j] != want.Embedding[j] {
				t.Errorf("article %d embedding changed in round trip", i)
			}
		}
	}
}

func TestShardGrouping(t *testing.T) {
	ds := &dataset.Dataset{Name: "ds"}
	for _, link := range []string{"a", "b", "c", "d", "e"} {
		ds.Articles = append(ds.Articles, dataset.Article{Link: link, Summary: "s"})
	}
	doc := toDoc(ds, 2)
	if len(doc.Shards) != 3 {
		t.Fatalf("expected 3 shards of size 2, got %d", len(doc.Shards))
	}
	if len(doc.Shards[2]) != 1 || doc.Shards[2][0].Link != "e" {
		t.Errorf("unexpected final shard: %+v", doc.Shards[2])
	}
}
