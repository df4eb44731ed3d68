// Package search ranks stored articles against a query vector by cosine
// similarity. Brute-force linear scan; cost grows with total article
// count, which is fine at the scale of a handful of feeds.
package search

import (
	"math"
	"sort"

	"github.com/dongsuo/ask-rss/internal/dataset"
)

// DefaultTopK bounds result count when the caller does not.
const DefaultTopK = 5

// Result pairs an article with its similarity score in [-1, 1].
type Result struct {
	Article dataset.Article
	Score   float64
}

// Rank scores every candidate against the query vector and returns the
// top-k by descending score. Candidates without an embedding, with a
// mismatched dimension or with a zero-norm embedding are excluded rather
// than scored as NaN. Ties keep insertion order so identical queries
// return identical rankings.
func Rank(query []float32, candidates []dataset.Article, topK int) []Result {
	if topK <= 0 {
		topK = DefaultTopK
	}
	results := make([]Result, 0, len(candidates))
	for _, a := range candidates {
		score, ok := cosine(query, a.Embedding)
		if !ok {
			continue
		}
		results = append(results, Result{Article: a, Score: score})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > topK {
		results = results[:topK]
	}
	return results
}

// FilterBySource restricts candidates to one originating feed URL,
// compared on normalized form. An empty filter keeps everything.
func FilterBySource(candidates []dataset.Article, sourceURL string) []dataset.Article {
	if sourceURL == "" {
		return candidates
	}
	want := dataset.Normalize(sourceURL)
	out := make([]dataset.Article, 0, len(candidates))
	for _, a := range candidates {
		if dataset.Normalize(a.SourceURL) == want {
			out = append(out, a)
		}
	}
	return out
}

// cosine computes dot(q, a) / (||q|| * ||a||) with float64 accumulation.
// The second return value is false for mismatched dimensions or
// zero-magnitude vectors.
func cosine(q, a []float32) (float64, bool) {
	if len(q) == 0 || len(q) != len(a) {
		return 0, false
	}
	var dot, nq, na float64
	for i := range q {
		vq := float64(q[i])
		va := float64(a[i])
		dot += vq * va
		nq += vq * vq
		na += va * va
	}
	if nq == 0 || na == 0 {
		return 0, false
	}
	return dot / (math.Sqrt(nq) * math.Sqrt(na)), true
}
