package rag

import (
	"context"
	"fmt"
	"strings"
)

// fallbackTopK is used when NewRetriever is given a non-positive default.
const fallbackTopK = 5

// DefaultRetriever embeds the query and searches one collection of a
// VectorStore with the result.
type DefaultRetriever struct {
	embedder    Embedder
	store       VectorStore
	defaultTopK int
}

// NewRetriever builds a DefaultRetriever. defaultTopK is used whenever
// Retrieve is called with a non-positive topK.
func NewRetriever(embedder Embedder, store VectorStore, defaultTopK int) (*DefaultRetriever, error) {
	switch {
	case embedder == nil:
		return nil, fmt.Errorf("rag: embedder must not be nil")
	case store == nil:
		return nil, fmt.Errorf("rag: store must not be nil")
	}
	if defaultTopK <= 0 {
		defaultTopK = fallbackTopK
	}
	return &DefaultRetriever{embedder: embedder, store: store, defaultTopK: defaultTopK}, nil
}

// Retrieve returns up to topK chunks of collection ranked by similarity to
// query, best first. Chunks with no text are skipped, since they carry
// nothing the caller could quote.
func (r *DefaultRetriever) Retrieve(ctx context.Context, collection, query string, topK int) ([]Document, error) {
	if collection == "" {
		return nil, ErrEmptyCollection
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if topK <= 0 {
		topK = r.defaultTopK
	}

	vecs, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("rag: embed query: %w", err)
	}
	if len(vecs) != 1 || len(vecs[0]) == 0 {
		return nil, fmt.Errorf("rag: embedder returned no vector for the query")
	}

	hits, err := r.store.Search(ctx, collection, vecs[0], topK)
	if err != nil {
		return nil, fmt.Errorf("rag: search %q: %w", collection, err)
	}

	out := hits[:0]
	for _, d := range hits {
		if strings.TrimSpace(d.Content) != "" {
			out = append(out, d)
		}
	}
	return out, nil
}
