package embedder

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// GeminiEmbedder implements rag.Embedder using the Gemini embedContent API
// through the google genai SDK. It is safe for concurrent use.
type GeminiEmbedder struct {
	// client is the genai API client.
	client *genai.Client
	// model is the embedding model name (e.g. "gemini-embedding-001").
	model string
	// dimensions is the requested output dimensionality (0 = model default).
	dimensions int
}

// GeminiConfig holds the settings for constructing a GeminiEmbedder.
type GeminiConfig struct {
	// APIKey is the Google API key.
	APIKey string
	// Model is the embedding model name.
	Model string
	// Dimensions is the requested output dimensionality (0 = model default).
	Dimensions int
}

// NewGeminiEmbedder constructs a GeminiEmbedder from the given config.
func NewGeminiEmbedder(ctx context.Context, cfg *GeminiConfig) (*GeminiEmbedder, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini embedder: failed to create client: %w", err)
	}
	return &GeminiEmbedder{
		client:     client,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}, nil
}

// Embed converts a batch of texts into their corresponding embeddings.
// The returned slice is parallel to the input slice.
func (e *GeminiEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var embedCfg *genai.EmbedContentConfig
	if e.dimensions > 0 {
		embedCfg = &genai.EmbedContentConfig{
			OutputDimensionality: genai.Ptr(int32(e.dimensions)),
		}
	}

	return inBatches(texts, geminiMaxBatch, func(batch []string) ([][]float32, error) {
		contents := make([]*genai.Content, 0, len(batch))
		for _, t := range batch {
			contents = append(contents, genai.NewContentFromText(t, genai.RoleUser))
		}

		resp, err := e.client.Models.EmbedContent(ctx, e.model, contents, embedCfg)
		if err != nil {
			return nil, fmt.Errorf("gemini embedder: embed content failed: %w", err)
		}

		out := make([][]float32, 0, len(resp.Embeddings))
		for _, emb := range resp.Embeddings {
			out = append(out, emb.Values)
		}
		return out, nil
	})
}
