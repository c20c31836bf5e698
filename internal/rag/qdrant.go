package rag

import (
	"context"
	"fmt"
	"sync"

	"github.com/qdrant/go-client/qdrant"
)

// Payload keys written alongside every point.
const (
	payloadContent = "content"
	payloadSource  = "source"
)

// QdrantConfig holds connection parameters for a Qdrant vector store instance.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// VectorSize is the dimensionality of the embeddings stored in every
	// collection this store creates.
	VectorSize uint64

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// QdrantStore implements VectorStore backed by a Qdrant instance. Each batch
// collection maps to one Qdrant collection, created lazily on first upsert.
type QdrantStore struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client

	// cfg holds the resolved configuration for this store.
	cfg *QdrantConfig

	// ensured caches collection names known to exist.
	ensured sync.Map
}

// NewQdrantStore creates a new QdrantStore. No collection is created until
// the first Upsert that targets it.
func NewQdrantStore(cfg *QdrantConfig) (*QdrantStore, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	if cfg.VectorSize == 0 {
		return nil, fmt.Errorf("qdrant: vector size must be set")
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}

	return &QdrantStore{client: client, cfg: cfg}, nil
}

// ensureCollection creates the Qdrant collection if it does not already exist.
func (s *QdrantStore) ensureCollection(ctx context.Context, name string) error {
	if _, ok := s.ensured.Load(name); ok {
		return nil
	}

	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("qdrant: failed to check collection existence: %w", err)
	}
	if !exists {
		err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: name,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     s.cfg.VectorSize,
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return fmt.Errorf("qdrant: failed to create collection %q: %w", name, err)
		}
	}

	s.ensured.Store(name, struct{}{})
	return nil
}

// Upsert stores or updates a batch of documents with their embeddings.
func (s *QdrantStore) Upsert(ctx context.Context, collection string, docs []Document, embeddings [][]float32) error {
	if err := checkParallel(collection, docs, embeddings); err != nil {
		return err
	}
	if len(docs) == 0 {
		return nil
	}
	if err := s.ensureCollection(ctx, collection); err != nil {
		return err
	}

	points := make([]*qdrant.PointStruct, 0, len(docs))
	for i, doc := range docs {
		payload := map[string]any{
			payloadContent: doc.Content,
			payloadSource:  doc.Source,
		}
		for k, v := range doc.Metadata {
			payload[k] = v
		}

		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(doc.ID),
			Vectors: qdrant.NewVectors(embeddings[i]...),
			Payload: qdrant.NewValueMap(payload),
		})
	}

	wait := true
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant: upsert into %q failed: %w", collection, err)
	}

	return nil
}

// Search performs a cosine similarity search within collection and returns
// the top-k results.
func (s *QdrantStore) Search(ctx context.Context, collection string, queryEmbedding []float32, topK int) ([]Document, error) {
	if collection == "" {
		return nil, ErrEmptyCollection
	}
	if _, ok := s.ensured.Load(collection); !ok {
		exists, err := s.client.CollectionExists(ctx, collection)
		if err != nil {
			return nil, fmt.Errorf("qdrant: failed to check collection existence: %w", err)
		}
		if !exists {
			return []Document{}, nil
		}
		s.ensured.Store(collection, struct{}{})
	}

	limit := uint64(topK)
	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(queryEmbedding...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: search in %q failed: %w", collection, err)
	}

	docs := make([]Document, 0, len(results))
	for _, r := range results {
		doc := Document{
			ID:       r.Id.GetUuid(),
			Score:    r.Score,
			Metadata: make(map[string]string),
		}
		for k, v := range r.Payload {
			switch k {
			case payloadContent:
				doc.Content = v.GetStringValue()
			case payloadSource:
				doc.Source = v.GetStringValue()
			default:
				doc.Metadata[k] = v.GetStringValue()
			}
		}
		docs = append(docs, doc)
	}

	return docs, nil
}

// Ping calls the Qdrant HealthCheck RPC.
func (s *QdrantStore) Ping(ctx context.Context) error {
	if _, err := s.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("qdrant: health check failed: %w", err)
	}
	return nil
}

// Close closes the underlying Qdrant gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}
