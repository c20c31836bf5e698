// Package rag defines the interfaces for the retrieval side of resumechat:
// vector storage, document retrieval, and embedding.
// Concrete implementations (Qdrant, pgvector, in-memory) satisfy these
// interfaces so ingestion and the search tool never depend on a specific
// backend.
//
// Every store operation is scoped to a named collection. A collection holds
// the chunks of one upload batch, and no operation ever reads across
// collections.
package rag

import (
	"context"
)

// Document represents a unit of retrieved or stored knowledge.
type Document struct {
	// ID is the unique identifier for this document chunk. Stores require a
	// UUID string.
	ID string

	// Content is the raw text content of the chunk.
	Content string

	// Source is the origin file path of the document.
	Source string

	// Metadata holds arbitrary key-value pairs (batch id, chunk index, page).
	Metadata map[string]string

	// Score is the similarity score assigned during retrieval (0.0–1.0).
	// Zero value means the score was not computed.
	Score float32
}

// VectorStore is the interface for persisting and searching document embeddings.
// Implementations must be safe to call from multiple goroutines.
type VectorStore interface {
	// Upsert stores or updates a batch of documents with their pre-computed
	// embeddings in the named collection, creating the collection if needed.
	// The embeddings slice must be parallel to docs: embeddings[i] is the
	// vector for docs[i]. Documents with an existing ID are overwritten.
	Upsert(ctx context.Context, collection string, docs []Document, embeddings [][]float32) error

	// Search returns the top-k documents of the named collection most similar
	// to the query embedding, best first. An unknown collection yields an
	// empty result, not an error.
	Search(ctx context.Context, collection string, queryEmbedding []float32, topK int) ([]Document, error)

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases any resources held by the store.
	Close() error
}

// Embedder is the interface for converting text into dense vector embeddings.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Retriever combines embedding and vector search into one call.
// Implementations must be safe to call from multiple goroutines.
type Retriever interface {
	// Retrieve returns the top-k most relevant documents of collection for
	// the given query.
	Retrieve(ctx context.Context, collection, query string, topK int) ([]Document, error)
}

