package rag

import (
	"context"
	"math"
	"sort"
	"sync"
)

// MemoryStore is an in-process VectorStore using brute-force cosine
// similarity. It backs local runs of the ingest command and tests.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]memoryEntry
}

type memoryEntry struct {
	doc Document
	vec []float32
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]map[string]memoryEntry)}
}

// Upsert stores docs in collection, replacing entries with the same ID.
func (m *MemoryStore) Upsert(_ context.Context, collection string, docs []Document, embeddings [][]float32) error {
	if err := checkParallel(collection, docs, embeddings); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.collections[collection]
	if !ok {
		c = make(map[string]memoryEntry)
		m.collections[collection] = c
	}
	for i, doc := range docs {
		vec := make([]float32, len(embeddings[i]))
		copy(vec, embeddings[i])
		c[doc.ID] = memoryEntry{doc: doc, vec: vec}
	}
	return nil
}

// Search ranks the entries of collection by cosine similarity.
func (m *MemoryStore) Search(_ context.Context, collection string, queryEmbedding []float32, topK int) ([]Document, error) {
	if collection == "" {
		return nil, ErrEmptyCollection
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	c := m.collections[collection]
	out := make([]Document, 0, len(c))
	for _, e := range c {
		d := e.doc
		d.Score = cosine(queryEmbedding, e.vec)
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score == out[j].Score {
			return out[i].ID < out[j].ID
		}
		return out[i].Score > out[j].Score
	})
	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

// Len returns the number of documents stored in collection.
func (m *MemoryStore) Len(collection string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.collections[collection])
}

// Ping always succeeds.
func (m *MemoryStore) Ping(context.Context) error { return nil }

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }

func cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
