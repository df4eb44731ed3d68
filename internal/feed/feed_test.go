package feed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func rssDoc(items ...string) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>Test Feed</title><link>https://example.com</link>
%s
</channel></rss>`, strings.Join(items, "\n"))
}

func rssItem(link, title, desc, pubDate string) string {
	var b strings.Builder
	b.WriteString("<item>")
	b.WriteString("<title>" + title + "</title>")
	b.WriteString("<link>" + link + "</link>")
	if desc != "" {
		b.WriteString("<description><![CDATA[" + desc + "]]></description>")
	}
	if pubDate != "" {
		b.WriteString("<pubDate>" + pubDate + "</pubDate>")
	}
	b.WriteString("</item>")
	return b.String()
}

func serveFeed(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchCapsAtMaxArticles(t *testing.T) {
	var items []string
	for i := 0; i < 15; i++ {
		items = append(items, rssItem(fmt.Sprintf("https://example.com/p%d", i), fmt.Sprintf("Post %d", i), "Some text", ""))
	}
	srv := serveFeed(t, rssDoc(items...))

	got, err := NewFetcher(5*time.Second).Fetch(context.Background(), srv.URL, 10)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(got) != 10 {
		t.Fatalf("expected 10 articles, got %d", len(got))
	}
	// First N in feed order, no ranking.
	if got[0].Link != "https://example.com/p0" || got[9].Link != "https://example.com/p9" {
		t.Errorf("expected feed order, got %s .. %s", got[0].Link, got[9].Link)
	}
	links := make(map[string]bool)
	for _, a := range got {
		if links[a.Link] {
			t.Errorf("duplicate link %s", a.Link)
		}
		links[a.Link] = true
	}
}

func TestFetchCleansAndFilters(t *testing.T) {
	srv := serveFeed(t, rssDoc(
		rssItem("https://example.com/a", "With &amp; HTML", "<p>Hello  <b>world</b></p>", "Mon, 02 Jan 2006 15:04:05 GMT"),
		rssItem("https://example.com/a", "Duplicate link", "other text", ""),
		rssItem("https://example.com/b", "Empty body", "<p>   </p>", ""),
		rssItem("https://example.com/c", "No date", "plain text", ""),
	))

	got, err := NewFetcher(5*time.Second).Fetch(context.Background(), srv.URL, 0)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 articles (dup and empty dropped), got %d", len(got))
	}

	a := got[0]
	if a.Title != "With & HTML" {
		t.Errorf("title not cleaned: %q", a.Title)
	}
	if a.Summary != "Hello world" {
		t.Errorf("summary not cleaned: %q", a.Summary)
	}
	if a.Published.IsZero() {
		t.Error("expected parsed published date")
	}
	if a.SourceURL != srv.URL {
		t.Errorf("source url = %q, want %q", a.SourceURL, srv.URL)
	}

	if !got[1].Published.IsZero() {
		t.Error("unparseable date should stay absent, not a sentinel")
	}
}

func TestFetchMalformedFeed(t *testing.T) {
	srv := serveFeed(t, "this is not xml at all")

	_, err := NewFetcher(5*time.Second).Fetch(context.Background(), srv.URL, 0)
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FetchError, got %v", err)
	}
	if fe.URL != srv.URL {
		t.Errorf("error url = %q, want %q", fe.URL, srv.URL)
	}
}

func TestFetchNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	_, err := NewFetcher(time.Second).Fetch(context.Background(), srv.URL, 0)
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FetchError, got %v", err)
	}
}

func TestCleanText(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"<p>Hello</p>", "Hello"},
		{"<b>Bold</b> and <i>italic</i>", "Bold and italic"},
		{"No tags here", "No tags here"},
		{"<div>  Multiple   spaces  </div>", "Multiple spaces"},
		{"", ""},
		{"A &amp; B", "A & B"},
	}
	for _, tt := range tests {
		if got := CleanText(tt.input); got != tt.want {
			t.Errorf("CleanText(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
