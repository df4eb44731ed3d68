// Package api exposes the processing pipeline over HTTP. The handlers are
// thin: decode, invoke, encode.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/dongsuo/ask-rss/internal/embed"
	"github.com/dongsuo/ask-rss/internal/processor"
	"github.com/dongsuo/ask-rss/internal/store"
)

// Pipeline is the slice of the processor the API needs.
type Pipeline interface {
	ProcessFeeds(ctx context.Context, urls []string, maxArticles int) (*processor.BatchSummary, error)
	SemanticSearch(ctx context.Context, query, sourceURL string, topK int) ([]processor.SearchResult, error)
	ListSources(ctx context.Context) ([]store.SourceInfo, error)
}

type Handler struct {
	pipeline Pipeline
}

func NewHandler(pipeline Pipeline) *Handler {
	return &Handler{pipeline: pipeline}
}

// Mux returns the route table for the API server.
func (h *Handler) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", h.health)
	mux.HandleFunc("POST /process-rss", h.processRSS)
	mux.HandleFunc("POST /semantic-search", h.semanticSearch)
	mux.HandleFunc("GET /sources", h.sources)
	return mux
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"message":   "RSS feed processor API is running",
	})
}

type processRequest struct {
	RSSURLs     []string `json:"rss_urls"`
	MaxArticles int      `json:"max_articles"`
}

func (h *Handler) processRSS(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(req.RSSURLs) == 0 {
		writeError(w, http.StatusBadRequest, "at least one RSS URL is required")
		return
	}

	summary, err := h.pipeline.ProcessFeeds(r.Context(), req.RSSURLs, req.MaxArticles)
	if err != nil {
		var ue *embed.UnavailableError
		if errors.As(err, &ue) {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

type searchRequest struct {
	Query     string `json:"query"`
	SourceURL string `json:"source_url,omitempty"`
	TopK      int    `json:"top_k,omitempty"`
}

type searchResponse struct {
	Status    string                   `json:"status"`
	Query     string                   `json:"query"`
	SourceURL string                   `json:"source_url,omitempty"`
	Results   []processor.SearchResult `json:"results"`
}

func (h *Handler) semanticSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	results, err := h.pipeline.SemanticSearch(r.Context(), req.Query, req.SourceURL, req.TopK)
	if err != nil {
		switch {
		case errors.Is(err, processor.ErrEmptyQuery):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	if results == nil {
		results = []processor.SearchResult{}
	}
	writeJSON(w, http.StatusOK, searchResponse{
		Status:    "success",
		Query:     req.Query,
		SourceURL: req.SourceURL,
		Results:   results,
	})
}

func (h *Handler) sources(w http.ResponseWriter, r *http.Request) {
	sources, err := h.pipeline.ListSources(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if sources == nil {
		sources = []store.SourceInfo{}
	}
	writeJSON(w, http.StatusOK, sources)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"status": "error", "detail": detail})
}
