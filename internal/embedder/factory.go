package embedder

import (
	"context"
	"fmt"
	"strings"

	"github.com/54b3r/resumechat/internal/config"
	"github.com/54b3r/resumechat/internal/rag"
)

// Default embedding models per backend.
const (
	defaultGeminiModel = "gemini-embedding-001"
	defaultOpenAIModel = "text-embedding-3-small"
	defaultOllamaModel = "nomic-embed-text"

	// defaultDimensions is the vector size requested from Gemini and OpenAI
	// models that support output truncation.
	defaultDimensions = 1536
	// defaultOllamaDimensions is the output dimension of nomic-embed-text.
	// Other Ollama models may differ; override with EMBEDDING_DIMENSIONS.
	defaultOllamaDimensions = 768
)

// Backend resolves the effective embedding backend: EMBEDDING_PROVIDER, then
// MODEL_PROVIDER, then gemini.
func Backend() string {
	if b := config.String("EMBEDDING_PROVIDER", ""); b != "" {
		return strings.ToLower(b)
	}
	return strings.ToLower(config.String("MODEL_PROVIDER", "gemini"))
}

// DefaultDimensions returns the embedding vector size for the given backend.
// Callers that need to pre-configure a vector store (collection creation,
// column type) should use this rather than hardcoding a value.
// EMBEDDING_DIMENSIONS always takes precedence when set.
func DefaultDimensions(backend string) int {
	if v := config.Int("EMBEDDING_DIMENSIONS", 0); v > 0 {
		return v
	}
	switch backend {
	case "ollama":
		return defaultOllamaDimensions
	default:
		return defaultDimensions
	}
}

// NewFromEnv constructs a rag.Embedder using cascading defaults that inherit
// from the chat provider configuration when embedding-specific overrides are
// not set.
//
// Resolution order:
//
//  1. EMBEDDING_PROVIDER, if unset inherits MODEL_PROVIDER (default: gemini)
//  2. Per-backend credentials are inherited from the chat provider's env vars
//  3. EMBEDDING_MODEL overrides the default model for the resolved backend
//  4. EMBEDDING_API_KEY overrides the inherited API key
//  5. EMBEDDING_ENDPOINT overrides the inherited endpoint
//  6. EMBEDDING_DIMENSIONS overrides the default dimensions (ollama: 768, others: 1536)
func NewFromEnv(ctx context.Context) (rag.Embedder, error) {
	backend := Backend()
	dims := DefaultDimensions(backend)

	switch backend {
	case "gemini", "google_genai":
		apiKey := firstNonEmpty(config.String("EMBEDDING_API_KEY", ""), config.String("GOOGLE_API_KEY", ""))
		if apiKey == "" {
			return nil, fmt.Errorf("embedder: gemini requires GOOGLE_API_KEY or EMBEDDING_API_KEY")
		}
		return NewGeminiEmbedder(ctx, &GeminiConfig{
			APIKey:     apiKey,
			Model:      strings.TrimPrefix(config.String("EMBEDDING_MODEL", defaultGeminiModel), "models/"),
			Dimensions: dims,
		})

	case "openai":
		apiKey := firstNonEmpty(config.String("EMBEDDING_API_KEY", ""), config.String("OPENAI_API_KEY", ""))
		if apiKey == "" {
			return nil, fmt.Errorf("embedder: openai requires OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
		return NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    config.String("EMBEDDING_ENDPOINT", "https://api.openai.com/v1"),
			APIKey:     apiKey,
			Model:      config.String("EMBEDDING_MODEL", defaultOpenAIModel),
			Dimensions: dims,
		}), nil

	case "azure":
		apiKey := firstNonEmpty(config.String("EMBEDDING_API_KEY", ""), config.String("AZURE_OPENAI_API_KEY", ""))
		if apiKey == "" {
			return nil, fmt.Errorf("embedder: azure requires AZURE_OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
		endpoint := firstNonEmpty(config.String("EMBEDDING_ENDPOINT", ""), config.String("AZURE_OPENAI_ENDPOINT", ""))
		if endpoint == "" {
			return nil, fmt.Errorf("embedder: azure requires AZURE_OPENAI_ENDPOINT or EMBEDDING_ENDPOINT")
		}
		return NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    endpoint,
			APIKey:     apiKey,
			Model:      config.String("EMBEDDING_MODEL", defaultOpenAIModel),
			Dimensions: dims,
			Azure:      true,
			APIVersion: config.String("AZURE_OPENAI_API_VERSION", "2025-04-01-preview"),
		}), nil

	case "ollama":
		host := firstNonEmpty(config.String("EMBEDDING_ENDPOINT", ""), config.String("OLLAMA_HOST", "http://localhost:11434"))
		return NewOllamaEmbedder(&OllamaConfig{
			Host:       host,
			Model:      config.String("EMBEDDING_MODEL", defaultOllamaModel),
			Dimensions: config.Int("EMBEDDING_DIMENSIONS", 0),
		}), nil

	default:
		return nil, fmt.Errorf("embedder: unknown backend %q, valid values: gemini, openai, azure, ollama", backend)
	}
}

// firstNonEmpty returns the first non-empty argument.
func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
