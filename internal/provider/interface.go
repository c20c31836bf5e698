// Package provider selects and constructs the chat model the agent runs on.
// Supported backends: Google Gemini (default), OpenAI, Azure OpenAI, Ollama,
// and Volcengine Ark.
package provider

import (
	"fmt"
	"strings"
)

// Backend enumerates the supported LLM inference providers.
type Backend string

const (
	// BackendGemini selects Google Gemini via AI Studio.
	BackendGemini Backend = "gemini"
	// BackendOpenAI selects the OpenAI API.
	BackendOpenAI Backend = "openai"
	// BackendAzure selects Azure OpenAI Service.
	BackendAzure Backend = "azure"
	// BackendOllama selects a locally running Ollama instance.
	BackendOllama Backend = "ollama"
	// BackendArk selects Volcengine Ark.
	BackendArk Backend = "ark"
)

// ParseBackend normalises a MODEL_PROVIDER value. "google_genai" is accepted
// as an alias for gemini.
func ParseBackend(s string) Backend {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "google_genai" || s == "google" {
		return BackendGemini
	}
	return Backend(s)
}

// ProviderGemini holds Google Gemini settings.
type ProviderGemini struct {
	// APIKey is the Google API key (GOOGLE_API_KEY).
	APIKey string
	// Model is the Gemini model name (GEMINI_MODEL).
	Model string
}

// ProviderOpenAI holds OpenAI settings.
type ProviderOpenAI struct {
	// APIKey is the OpenAI API key (OPENAI_API_KEY).
	APIKey string
	// Model is the OpenAI model name (OPENAI_MODEL).
	Model string
	// BaseURL overrides the API endpoint for OpenAI-compatible servers (OPENAI_BASE_URL).
	BaseURL string
}

// ProviderAzureOpenAI holds Azure OpenAI settings.
type ProviderAzureOpenAI struct {
	// APIKey is the Azure OpenAI key (AZURE_OPENAI_API_KEY).
	APIKey string
	// Endpoint is the resource endpoint (AZURE_OPENAI_ENDPOINT).
	Endpoint string
	// Deployment is the deployment name (AZURE_OPENAI_DEPLOYMENT).
	Deployment string
	// APIVersion is the REST API version (AZURE_OPENAI_API_VERSION).
	APIVersion string
}

// ProviderOllama holds Ollama settings.
type ProviderOllama struct {
	// Host is the Ollama base URL (OLLAMA_HOST).
	Host string
	// Model is the Ollama model name (OLLAMA_MODEL).
	Model string
}

// ProviderArk holds Volcengine Ark settings.
type ProviderArk struct {
	// APIKey is the Ark API key (ARK_API_KEY).
	APIKey string
	// Model is the Ark endpoint/model id (ARK_MODEL).
	Model string
	// BaseURL overrides the Ark API base URL (ARK_BASE_URL).
	BaseURL string
}

// SharedTuning holds generation settings common to every backend.
type SharedTuning struct {
	// MaxTokens caps the number of tokens the model may generate per response.
	MaxTokens int
	// Temperature controls response randomness (0.0–1.0).
	Temperature float32
}

// Config holds all provider-level configuration resolved from environment
// variables or explicit caller-supplied values. Only the block matching
// Backend is consulted.
type Config struct {
	// Backend identifies which inference provider to use.
	Backend Backend

	Gemini      ProviderGemini
	OpenAI      ProviderOpenAI
	AzureOpenAI ProviderAzureOpenAI
	Ollama      ProviderOllama
	Ark         ProviderArk

	// Tuning holds generation settings.
	Tuning SharedTuning
}

// Validate reports the first missing required setting for the selected
// backend, naming the env var that supplies it.
func (c *Config) Validate() error {
	missing := func(envVar string) error {
		return fmt.Errorf("provider: %s is required for %s backend", envVar, c.Backend)
	}

	switch c.Backend {
	case BackendGemini:
		if c.Gemini.APIKey == "" {
			return missing("GOOGLE_API_KEY")
		}
		if c.Gemini.Model == "" {
			return missing("GEMINI_MODEL")
		}
	case BackendOpenAI:
		if c.OpenAI.APIKey == "" {
			return missing("OPENAI_API_KEY")
		}
		if c.OpenAI.Model == "" {
			return missing("OPENAI_MODEL")
		}
	case BackendAzure:
		if c.AzureOpenAI.APIKey == "" {
			return missing("AZURE_OPENAI_API_KEY")
		}
		if c.AzureOpenAI.Endpoint == "" {
			return missing("AZURE_OPENAI_ENDPOINT")
		}
		if c.AzureOpenAI.Deployment == "" {
			return missing("AZURE_OPENAI_DEPLOYMENT")
		}
	case BackendOllama:
		if c.Ollama.Host == "" {
			return missing("OLLAMA_HOST")
		}
		if c.Ollama.Model == "" {
			return missing("OLLAMA_MODEL")
		}
	case BackendArk:
		if c.Ark.APIKey == "" {
			return missing("ARK_API_KEY")
		}
		if c.Ark.Model == "" {
			return missing("ARK_MODEL")
		}
	default:
		return fmt.Errorf("provider: unknown backend %q, valid values: gemini, openai, azure, ollama, ark", c.Backend)
	}
	return nil
}

// ModelName returns the model identifier for the selected backend, for logs.
func (c *Config) ModelName() string {
	switch c.Backend {
	case BackendGemini:
		return c.Gemini.Model
	case BackendOpenAI:
		return c.OpenAI.Model
	case BackendAzure:
		return c.AzureOpenAI.Deployment
	case BackendOllama:
		return c.Ollama.Model
	case BackendArk:
		return c.Ark.Model
	}
	return ""
}
