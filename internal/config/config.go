// Package config provides layered configuration for resumechat.
// Configuration is loaded with a layered precedence:
// defaults → .env file → YAML file → env vars.
// Environment variables always win, so container deployments are unaffected.
//
// YAML file search order:
//  1. --config CLI flag (explicit path)
//  2. RESUMECHAT_CONFIG environment variable
//  3. ~/.resumechat/config.yaml
//  4. ./resumechat.yaml
//
// If no file is found the system runs entirely from env vars.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML configuration structure.
// Field names use yaml tags that mirror the env var naming (lowercase, underscored).
type Config struct {
	// Model configures the LLM chat model provider.
	Model ModelConfig `yaml:"model"`

	// Embedding configures the embedding provider used by ingestion and search.
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Vector configures the vector store backend.
	Vector VectorConfig `yaml:"vector"`

	// Queue configures the task broker and result backend.
	Queue QueueConfig `yaml:"queue"`

	// Ingestion configures chunking and worker concurrency.
	Ingestion IngestionConfig `yaml:"ingestion"`

	// Server configures the HTTP API.
	Server ServerConfig `yaml:"server"`

	// SearchTool configures the search-tool server and the agent's connection to it.
	SearchTool SearchToolConfig `yaml:"search_tool"`

	// Logging configures structured logging.
	Logging LoggingConfig `yaml:"logging"`

	// Ledger configures the local batch ledger.
	Ledger LedgerConfig `yaml:"ledger"`

	// Tracing configures Langfuse tracing integration.
	Tracing TracingConfig `yaml:"tracing"`
}

// ModelConfig holds LLM chat model settings.
type ModelConfig struct {
	// Provider selects the backend: gemini, openai, azure, ollama, ark.
	Provider string `yaml:"provider"`
	// MaxTokens is the maximum number of tokens in the response.
	MaxTokens int `yaml:"max_tokens"`
	// Temperature controls response randomness (0.0–1.0).
	Temperature float32 `yaml:"temperature"`
	// Gemini holds Google Gemini-specific settings.
	Gemini GeminiConfig `yaml:"gemini"`
	// OpenAI holds OpenAI-specific settings.
	OpenAI OpenAIConfig `yaml:"openai"`
	// Azure holds Azure OpenAI-specific settings.
	Azure AzureConfig `yaml:"azure"`
	// Ollama holds Ollama-specific settings.
	Ollama OllamaConfig `yaml:"ollama"`
	// Ark holds Volcengine Ark-specific settings.
	Ark ArkConfig `yaml:"ark"`
}

// GeminiConfig holds Google Gemini provider settings.
type GeminiConfig struct {
	// APIKey is the Google API key. Prefer env var GOOGLE_API_KEY.
	APIKey string `yaml:"api_key"`
	// Model is the Gemini model name.
	Model string `yaml:"model"`
}

// OpenAIConfig holds OpenAI provider settings.
type OpenAIConfig struct {
	// APIKey is the OpenAI API key. Prefer env var OPENAI_API_KEY.
	APIKey string `yaml:"api_key"`
	// Model is the OpenAI model name.
	Model string `yaml:"model"`
}

// AzureConfig holds Azure OpenAI provider settings.
type AzureConfig struct {
	// APIKey is the Azure OpenAI API key. Prefer env var AZURE_OPENAI_API_KEY.
	APIKey string `yaml:"api_key"`
	// Endpoint is the Azure OpenAI resource endpoint.
	Endpoint string `yaml:"endpoint"`
	// Deployment is the Azure OpenAI deployment name.
	Deployment string `yaml:"deployment"`
	// APIVersion is the Azure OpenAI API version.
	APIVersion string `yaml:"api_version"`
}

// OllamaConfig holds Ollama provider settings.
type OllamaConfig struct {
	// Host is the Ollama API endpoint.
	Host string `yaml:"host"`
	// Model is the Ollama model name.
	Model string `yaml:"model"`
}

// ArkConfig holds Volcengine Ark provider settings.
type ArkConfig struct {
	// APIKey is the Ark API key. Prefer env var ARK_API_KEY.
	APIKey string `yaml:"api_key"`
	// Model is the Ark endpoint/model ID.
	Model string `yaml:"model"`
	// BaseURL overrides the Ark API base URL.
	BaseURL string `yaml:"base_url"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	// Provider selects the embedding backend (gemini, openai, azure, ollama).
	Provider string `yaml:"provider"`
	// Model is the embedding model name.
	Model string `yaml:"model"`
	// Dimensions is the embedding vector size.
	Dimensions int `yaml:"dimensions"`
	// APIKey is the embedding API key. Prefer env var EMBEDDING_API_KEY.
	APIKey string `yaml:"api_key"`
	// Endpoint is the embedding API endpoint.
	Endpoint string `yaml:"endpoint"`
}

// VectorConfig holds vector store settings.
type VectorConfig struct {
	// Backend selects the store: pgvector or qdrant.
	Backend string `yaml:"backend"`
	// PGConnectionString is the Postgres DSN for the pgvector backend.
	PGConnectionString string `yaml:"pg_connection_string"`
	// Qdrant holds Qdrant connection settings.
	Qdrant QdrantConfig `yaml:"qdrant"`
}

// QdrantConfig holds Qdrant vector store settings.
type QdrantConfig struct {
	// Host is the Qdrant server hostname.
	Host string `yaml:"host"`
	// Port is the Qdrant gRPC port.
	Port int `yaml:"port"`
	// APIKey is the Qdrant API key. Prefer env var QDRANT_API_KEY.
	APIKey string `yaml:"api_key"`
	// TLS enables TLS for the Qdrant connection.
	TLS bool `yaml:"tls"`
}

// QueueConfig holds task broker settings.
type QueueConfig struct {
	// BrokerURL is the Redis URL jobs are pushed to.
	BrokerURL string `yaml:"broker_url"`
	// ResultBackendURL is the Redis URL job results are written to.
	ResultBackendURL string `yaml:"result_backend_url"`
	// ResultTTL is how long job results are retained (Go duration string).
	ResultTTL string `yaml:"result_ttl"`
}

// IngestionConfig holds chunking and worker settings.
type IngestionConfig struct {
	// ChunkSize is the maximum number of characters per chunk.
	ChunkSize int `yaml:"chunk_size"`
	// ChunkOverlap is the number of characters shared by consecutive chunks.
	ChunkOverlap int `yaml:"chunk_overlap"`
	// WorkerConcurrency is the number of jobs a worker processes at once.
	WorkerConcurrency int `yaml:"worker_concurrency"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the bind address.
	Host string `yaml:"host"`
	// Port is the TCP port.
	Port int `yaml:"port"`
	// APIKey is the Bearer token for API authentication. Prefer env var RESUMECHAT_API_KEY.
	APIKey string `yaml:"api_key"`
	// UploadDir is the staging directory for uploaded files.
	UploadDir string `yaml:"upload_dir"`
	// CORSAllowedOrigins is a comma-separated origin allow-list.
	CORSAllowedOrigins string `yaml:"cors_allowed_origins"`
}

// SearchToolConfig holds search-tool settings.
type SearchToolConfig struct {
	// URL is the MCP endpoint the agent connects to.
	URL string `yaml:"url"`
	// Addr is the listen address of the search-tool server.
	Addr string `yaml:"addr"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is the log output format: json, text.
	Format string `yaml:"format"`
	// File is an optional rotated log file path.
	File string `yaml:"file"`
}

// LedgerConfig holds batch ledger settings.
type LedgerConfig struct {
	// DBPath is the SQLite database path. Set to "disabled" to disable.
	DBPath string `yaml:"db_path"`
}

// TracingConfig holds Langfuse tracing settings.
type TracingConfig struct {
	// PublicKey is the Langfuse public key. Prefer env var LANGFUSE_PUBLIC_KEY.
	PublicKey string `yaml:"public_key"`
	// SecretKey is the Langfuse secret key. Prefer env var LANGFUSE_SECRET_KEY.
	SecretKey string `yaml:"secret_key"`
	// Host is the Langfuse API host.
	Host string `yaml:"host"`
}

// envMapping maps YAML config fields to their corresponding env var names.
// Only non-empty YAML values are applied; env vars always take precedence.
var envMapping = []struct {
	envKey string
	value  func(*Config) string
}{
	{"MODEL_PROVIDER", func(c *Config) string { return c.Model.Provider }},
	{"MODEL_MAX_TOKENS", func(c *Config) string { return intStr(c.Model.MaxTokens) }},
	{"MODEL_TEMPERATURE", func(c *Config) string { return float32Str(c.Model.Temperature) }},
	{"GOOGLE_API_KEY", func(c *Config) string { return c.Model.Gemini.APIKey }},
	{"GEMINI_MODEL", func(c *Config) string { return c.Model.Gemini.Model }},
	{"OPENAI_API_KEY", func(c *Config) string { return c.Model.OpenAI.APIKey }},
	{"OPENAI_MODEL", func(c *Config) string { return c.Model.OpenAI.Model }},
	{"AZURE_OPENAI_API_KEY", func(c *Config) string { return c.Model.Azure.APIKey }},
	{"AZURE_OPENAI_ENDPOINT", func(c *Config) string { return c.Model.Azure.Endpoint }},
	{"AZURE_OPENAI_DEPLOYMENT", func(c *Config) string { return c.Model.Azure.Deployment }},
	{"AZURE_OPENAI_API_VERSION", func(c *Config) string { return c.Model.Azure.APIVersion }},
	{"OLLAMA_HOST", func(c *Config) string { return c.Model.Ollama.Host }},
	{"OLLAMA_MODEL", func(c *Config) string { return c.Model.Ollama.Model }},
	{"ARK_API_KEY", func(c *Config) string { return c.Model.Ark.APIKey }},
	{"ARK_MODEL", func(c *Config) string { return c.Model.Ark.Model }},
	{"ARK_BASE_URL", func(c *Config) string { return c.Model.Ark.BaseURL }},
	{"EMBEDDING_PROVIDER", func(c *Config) string { return c.Embedding.Provider }},
	{"EMBEDDING_MODEL", func(c *Config) string { return c.Embedding.Model }},
	{"EMBEDDING_DIMENSIONS", func(c *Config) string { return intStr(c.Embedding.Dimensions) }},
	{"EMBEDDING_API_KEY", func(c *Config) string { return c.Embedding.APIKey }},
	{"EMBEDDING_ENDPOINT", func(c *Config) string { return c.Embedding.Endpoint }},
	{"VECTOR_BACKEND", func(c *Config) string { return c.Vector.Backend }},
	{"PG_CONNECTION_STRING", func(c *Config) string { return c.Vector.PGConnectionString }},
	{"QDRANT_HOST", func(c *Config) string { return c.Vector.Qdrant.Host }},
	{"QDRANT_PORT", func(c *Config) string { return intStr(c.Vector.Qdrant.Port) }},
	{"QDRANT_API_KEY", func(c *Config) string { return c.Vector.Qdrant.APIKey }},
	{"QDRANT_TLS", func(c *Config) string { return boolStr(c.Vector.Qdrant.TLS) }},
	{"QUEUE_BROKER_URL", func(c *Config) string { return c.Queue.BrokerURL }},
	{"QUEUE_RESULT_BACKEND_URL", func(c *Config) string { return c.Queue.ResultBackendURL }},
	{"RESULT_TTL", func(c *Config) string { return c.Queue.ResultTTL }},
	{"CHUNK_SIZE", func(c *Config) string { return intStr(c.Ingestion.ChunkSize) }},
	{"CHUNK_OVERLAP", func(c *Config) string { return intStr(c.Ingestion.ChunkOverlap) }},
	{"WORKER_CONCURRENCY", func(c *Config) string { return intStr(c.Ingestion.WorkerConcurrency) }},
	{"RESUMECHAT_HOST", func(c *Config) string { return c.Server.Host }},
	{"RESUMECHAT_PORT", func(c *Config) string { return intStr(c.Server.Port) }},
	{"RESUMECHAT_API_KEY", func(c *Config) string { return c.Server.APIKey }},
	{"UPLOAD_DIR", func(c *Config) string { return c.Server.UploadDir }},
	{"CORS_ALLOWED_ORIGINS", func(c *Config) string { return c.Server.CORSAllowedOrigins }},
	{"SEARCH_TOOL_URL", func(c *Config) string { return c.SearchTool.URL }},
	{"SEARCH_TOOL_ADDR", func(c *Config) string { return c.SearchTool.Addr }},
	{"LOG_LEVEL", func(c *Config) string { return c.Logging.Level }},
	{"LOG_FORMAT", func(c *Config) string { return c.Logging.Format }},
	{"LOG_FILE", func(c *Config) string { return c.Logging.File }},
	{"RESUMECHAT_LEDGER_DB", func(c *Config) string { return c.Ledger.DBPath }},
	{"LANGFUSE_PUBLIC_KEY", func(c *Config) string { return c.Tracing.PublicKey }},
	{"LANGFUSE_SECRET_KEY", func(c *Config) string { return c.Tracing.SecretKey }},
	{"LANGFUSE_HOST", func(c *Config) string { return c.Tracing.Host }},
}

// LoadDotEnv loads KEY=VALUE pairs from path (default ".env") into the
// process environment. Variables that are already set are left untouched.
// A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: failed to load %s: %w", path, err)
	}
	return nil
}

// Load reads a YAML config file and applies non-empty values as environment
// variables. Existing env vars are never overwritten (env always wins).
// Returns the path that was loaded, or empty string if no file was found.
func Load(explicitPath string, log *slog.Logger) (string, error) {
	path := resolveConfigPath(explicitPath)
	if path == "" {
		log.Debug("config: no YAML config file found, using env vars only")
		return "", nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return "", fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	applied := 0
	for _, m := range envMapping {
		yamlVal := m.value(&cfg)
		if yamlVal == "" || yamlVal == "0" || yamlVal == "false" {
			continue
		}
		if os.Getenv(m.envKey) != "" {
			continue // env var already set, do not override
		}
		if err := os.Setenv(m.envKey, yamlVal); err != nil {
			return "", fmt.Errorf("config: failed to set %s: %w", m.envKey, err)
		}
		applied++
	}

	log.Info("config: loaded YAML config",
		slog.String("path", path),
		slog.Int("keys_applied", applied),
	)

	return path, nil
}

// String returns the value of the named environment variable, or fallback if
// the variable is unset or empty.
func String(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Int returns the integer value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func Int(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

// Float32 returns the float32 value of the named environment variable,
// or fallback if the variable is unset, empty, or not parseable.
func Float32(key string, fallback float32) float32 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			return float32(f)
		}
	}
	return fallback
}

// Bool returns true when the named variable is "true", "1" or "yes".
func Bool(key string) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "true", "1", "yes":
		return true
	}
	return false
}

// Duration parses the named variable as a Go duration, returning fallback on
// absence or parse failure.
func Duration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// List splits the named variable on commas, trimming blanks. Returns
// fallback when the variable is unset.
func List(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// resolveConfigPath returns the first config file path that exists.
func resolveConfigPath(explicit string) string {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit
		}
		return ""
	}

	if envPath := os.Getenv("RESUMECHAT_CONFIG"); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		p := filepath.Join(home, ".resumechat", "config.yaml")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	if _, err := os.Stat("resumechat.yaml"); err == nil {
		return "resumechat.yaml"
	}

	return ""
}

// intStr converts an int to string, returning "" for zero values.
func intStr(v int) string {
	if v == 0 {
		return ""
	}
	return strconv.Itoa(v)
}

// float32Str converts a float32 to string, returning "" for zero values.
func float32Str(v float32) string {
	if v == 0 {
		return ""
	}
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", v), "0"), ".")
}

// boolStr converts a bool to string, returning "" for false.
func boolStr(v bool) string {
	if !v {
		return ""
	}
	return "true"
}
