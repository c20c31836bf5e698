package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/54b3r/resumechat/internal/config"
)

// Supported VECTOR_BACKEND values.
const (
	BackendPGVector = "pgvector"
	BackendQdrant   = "qdrant"
	BackendMemory   = "memory"
)

// NewStoreFromEnv builds the VectorStore selected by VECTOR_BACKEND
// (default pgvector). dims is the embedding dimensionality the store must
// accept.
//
// Environment variables:
//
//	VECTOR_BACKEND        pgvector | qdrant | memory
//	PG_CONNECTION_STRING  Postgres DSN (pgvector)
//	QDRANT_HOST           Qdrant host (default: localhost)
//	QDRANT_PORT           Qdrant gRPC port (default: 6334)
//	QDRANT_API_KEY        Qdrant API key (optional)
//	QDRANT_TLS            "true" to enable TLS
func NewStoreFromEnv(ctx context.Context, dims int) (VectorStore, error) {
	backend := Backend()

	switch backend {
	case BackendPGVector:
		return NewPGVectorStore(ctx, &PGVectorConfig{
			DSN:        config.String("PG_CONNECTION_STRING", ""),
			Dimensions: dims,
		})
	case BackendQdrant:
		return NewQdrantStore(&QdrantConfig{
			Host:       config.String("QDRANT_HOST", "localhost"),
			Port:       config.Int("QDRANT_PORT", 6334),
			VectorSize: uint64(dims),
			APIKey:     config.String("QDRANT_API_KEY", ""),
			UseTLS:     config.Bool("QDRANT_TLS"),
		})
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("rag: unsupported VECTOR_BACKEND %q (supported: pgvector, qdrant, memory)", backend)
	}
}

// Backend returns the normalized VECTOR_BACKEND value.
func Backend() string {
	return strings.ToLower(config.String("VECTOR_BACKEND", BackendPGVector))
}

// NewSharedStoreFromEnv is NewStoreFromEnv for stores written by one process
// and read by another, such as the worker and the search tool. The memory
// backend is rejected with ErrProcessLocal.
func NewSharedStoreFromEnv(ctx context.Context, dims int) (VectorStore, error) {
	if Backend() == BackendMemory {
		return nil, fmt.Errorf("%w: VECTOR_BACKEND=%s only works for resumechat ingest and tests, use %s or %s",
			ErrProcessLocal, BackendMemory, BackendPGVector, BackendQdrant)
	}
	return NewStoreFromEnv(ctx, dims)
}
