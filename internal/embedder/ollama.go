package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// defaultOllamaTimeout bounds one /api/embed round trip.
const defaultOllamaTimeout = 60 * time.Second

// OllamaEmbedder embeds text through a local Ollama server's /api/embed
// endpoint. Safe for concurrent use.
type OllamaEmbedder struct {
	endpoint   string
	model      string
	dimensions int
	client     *http.Client
}

// OllamaConfig configures an OllamaEmbedder.
type OllamaConfig struct {
	// Host is the Ollama base URL, e.g. "http://localhost:11434".
	Host string
	// Model is the embedding model, e.g. "nomic-embed-text".
	Model string
	// Dimensions, when positive, asks the server to truncate vectors to this
	// size and is enforced on the response.
	Dimensions int
	// Timeout bounds one request. Defaults to 60s.
	Timeout time.Duration
}

// NewOllamaEmbedder constructs an OllamaEmbedder from the given config.
func NewOllamaEmbedder(cfg *OllamaConfig) *OllamaEmbedder {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultOllamaTimeout
	}
	return &OllamaEmbedder{
		endpoint:   strings.TrimRight(cfg.Host, "/") + "/api/embed",
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		client:     &http.Client{Timeout: timeout},
	}
}

type ollamaEmbedRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Truncate   bool     `json:"truncate"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	Error      string      `json:"error,omitempty"`
}

// Embed returns one vector per text, in input order. Long inputs are split
// into requests of at most ollamaMaxBatch texts.
func (e *OllamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return inBatches(texts, ollamaMaxBatch, func(batch []string) ([][]float32, error) {
		return e.post(ctx, batch)
	})
}

func (e *OllamaEmbedder) post(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(ollamaEmbedRequest{
		Model:      e.model,
		Input:      texts,
		Truncate:   true,
		Dimensions: e.dimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("ollama embedder: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ollama embedder: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama embedder: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return nil, fmt.Errorf("ollama embedder: read response: %w", err)
	}

	var out ollamaEmbedResponse
	if resp.StatusCode/100 != 2 {
		if json.Unmarshal(raw, &out) == nil && out.Error != "" {
			return nil, fmt.Errorf("ollama embedder: %s (HTTP %d)", out.Error, resp.StatusCode)
		}
		return nil, fmt.Errorf("ollama embedder: HTTP %d", resp.StatusCode)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("ollama embedder: decode response: %w", err)
	}

	if len(out.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama embedder: expected %d embeddings, got %d", len(texts), len(out.Embeddings))
	}
	if e.dimensions > 0 {
		for i, v := range out.Embeddings {
			if len(v) != e.dimensions {
				return nil, fmt.Errorf("ollama embedder: embedding %d has %d dimensions, want %d", i, len(v), e.dimensions)
			}
		}
	}
	return out.Embeddings, nil
}
