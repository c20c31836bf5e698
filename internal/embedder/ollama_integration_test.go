//go:build integration

package embedder

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/54b3r/resumechat/internal/rag"
)

// TestOllamaEmbedder_RanksResumes embeds two resume snippets with a live
// Ollama server and checks that a skill query ranks the matching one first.
//
// Prerequisites:
//
//	ollama pull nomic-embed-text
//
// Run with:
//
//	go test -tags=integration -run TestOllamaEmbedder_RanksResumes ./internal/embedder/
func TestOllamaEmbedder_RanksResumes(t *testing.T) {
	host := os.Getenv("OLLAMA_HOST")
	if host == "" {
		host = "http://localhost:11434"
	}
	model := os.Getenv("EMBEDDING_MODEL")
	if model == "" {
		model = defaultOllamaModel
	}
	emb := NewOllamaEmbedder(&OllamaConfig{Host: host, Model: model})

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	docs := []rag.Document{
		{ID: "go", Content: "Senior Go engineer, eight years building distributed systems, Kubernetes operators and gRPC services."},
		{ID: "ds", Content: "Data scientist skilled in Python, pandas and scikit-learn; built churn models for retail."},
	}
	texts := []string{docs[0].Content, docs[1].Content}

	vecs, err := emb.Embed(ctx, texts)
	if err != nil {
		t.Fatalf("Embed failed: %v (is %q pulled and Ollama running at %s?)", err, model, host)
	}
	if len(vecs) != 2 || len(vecs[0]) == 0 {
		t.Fatalf("unexpected embeddings shape: %d vectors", len(vecs))
	}
	t.Logf("model=%s dim=%d (set EMBEDDING_DIMENSIONS=%d for the vector store)", model, len(vecs[0]), len(vecs[0]))

	store := rag.NewMemoryStore()
	if err := store.Upsert(ctx, "it", docs, vecs); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	q, err := emb.Embed(ctx, []string{"backend developer who knows golang"})
	if err != nil {
		t.Fatalf("embed query: %v", err)
	}
	got, err := store.Search(ctx, "it", q[0], 2)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) == 0 || got[0].ID != "go" {
		t.Errorf("expected the Go resume first, got %+v", got)
	}
}
