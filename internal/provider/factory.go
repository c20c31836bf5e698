package provider

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"

	"github.com/54b3r/resumechat/internal/config"
)

// ConfigFromEnv resolves a Config from environment variables. MODEL_PROVIDER
// selects the backend; each provider uses its own native credential env vars.
//
// Environment variables:
//
//	MODEL_PROVIDER  = gemini | google_genai | openai | azure | ollama | ark (default: gemini)
//
//	Gemini:  GOOGLE_API_KEY, GEMINI_MODEL (default: gemini-2.5-flash)
//	OpenAI:  OPENAI_API_KEY, OPENAI_MODEL (default: gpt-4o), OPENAI_BASE_URL
//	Azure:   AZURE_OPENAI_API_KEY, AZURE_OPENAI_ENDPOINT, AZURE_OPENAI_DEPLOYMENT,
//	         AZURE_OPENAI_API_VERSION (default: 2025-04-01-preview)
//	Ollama:  OLLAMA_HOST (default: http://localhost:11434), OLLAMA_MODEL (default: llama3.1)
//	Ark:     ARK_API_KEY, ARK_MODEL, ARK_BASE_URL
//
//	Shared:  MODEL_MAX_TOKENS (default: 4096), MODEL_TEMPERATURE (default: 0.2)
func ConfigFromEnv() *Config {
	return &Config{
		Backend: ParseBackend(config.String("MODEL_PROVIDER", string(BackendGemini))),
		Gemini: ProviderGemini{
			APIKey: config.String("GOOGLE_API_KEY", ""),
			Model:  config.String("GEMINI_MODEL", "gemini-2.5-flash"),
		},
		OpenAI: ProviderOpenAI{
			APIKey:  config.String("OPENAI_API_KEY", ""),
			Model:   config.String("OPENAI_MODEL", "gpt-4o"),
			BaseURL: config.String("OPENAI_BASE_URL", ""),
		},
		AzureOpenAI: ProviderAzureOpenAI{
			APIKey:     config.String("AZURE_OPENAI_API_KEY", ""),
			Endpoint:   config.String("AZURE_OPENAI_ENDPOINT", ""),
			Deployment: config.String("AZURE_OPENAI_DEPLOYMENT", ""),
			APIVersion: config.String("AZURE_OPENAI_API_VERSION", "2025-04-01-preview"),
		},
		Ollama: ProviderOllama{
			Host:  config.String("OLLAMA_HOST", "http://localhost:11434"),
			Model: config.String("OLLAMA_MODEL", "llama3.1"),
		},
		Ark: ProviderArk{
			APIKey:  config.String("ARK_API_KEY", ""),
			Model:   config.String("ARK_MODEL", ""),
			BaseURL: config.String("ARK_BASE_URL", ""),
		},
		Tuning: SharedTuning{
			MaxTokens:   config.Int("MODEL_MAX_TOKENS", 4096),
			Temperature: config.Float32("MODEL_TEMPERATURE", 0.2),
		},
	}
}

// NewFromEnv constructs a tool-calling chat model from ConfigFromEnv.
func NewFromEnv(ctx context.Context) (model.ToolCallingChatModel, error) {
	return New(ctx, ConfigFromEnv())
}

// New constructs a ToolCallingChatModel from an explicit Config, delegating to
// the appropriate backend factory function. It validates the config first so
// callers get a clear error at startup rather than on the first request.
func New(ctx context.Context, cfg *Config) (model.ToolCallingChatModel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Backend {
	case BackendGemini:
		return newGemini(ctx, cfg)
	case BackendOpenAI:
		return newOpenAI(ctx, cfg)
	case BackendAzure:
		return newAzure(ctx, cfg)
	case BackendOllama:
		return newOllama(ctx, cfg)
	case BackendArk:
		return newArk(ctx, cfg)
	default:
		return nil, fmt.Errorf("provider: unknown backend %q", cfg.Backend)
	}
}
