package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_NoFile(t *testing.T) {
	t.Parallel()

	log := slog.Default()
	path, err := Load("/nonexistent/path/config.yaml", log)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "" {
		t.Errorf("expected empty path, got %q", path)
	}
}

func TestLoad_ValidFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	content := []byte(`
model:
  provider: gemini
  max_tokens: 4096
  temperature: 0.3
  gemini:
    model: gemini-2.5-flash
embedding:
  provider: gemini
  dimensions: 1536
vector:
  backend: pgvector
  pg_connection_string: postgres://u:p@db:5432/resumes
queue:
  broker_url: redis://redis:6379/0
  result_ttl: 12h
ingestion:
  chunk_size: 800
  chunk_overlap: 150
server:
  upload_dir: /var/tmp/uploads
  cors_allowed_origins: http://localhost:3000
search_tool:
  url: http://search:8005/mcp
logging:
  level: debug
  format: text
`)

	if err := os.WriteFile(cfgPath, content, 0o644); err != nil {
		t.Fatal(err)
	}

	checks := map[string]string{
		"MODEL_PROVIDER":       "gemini",
		"MODEL_MAX_TOKENS":     "4096",
		"MODEL_TEMPERATURE":    "0.3",
		"GEMINI_MODEL":         "gemini-2.5-flash",
		"EMBEDDING_PROVIDER":   "gemini",
		"EMBEDDING_DIMENSIONS": "1536",
		"VECTOR_BACKEND":       "pgvector",
		"PG_CONNECTION_STRING": "postgres://u:p@db:5432/resumes",
		"QUEUE_BROKER_URL":     "redis://redis:6379/0",
		"RESULT_TTL":           "12h",
		"CHUNK_SIZE":           "800",
		"CHUNK_OVERLAP":        "150",
		"UPLOAD_DIR":           "/var/tmp/uploads",
		"CORS_ALLOWED_ORIGINS": "http://localhost:3000",
		"SEARCH_TOOL_URL":      "http://search:8005/mcp",
		"LOG_LEVEL":            "debug",
		"LOG_FORMAT":           "text",
	}

	// Clear env vars that the YAML should set.
	for k := range checks {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	log := slog.Default()
	loaded, err := Load(cfgPath, log)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded != cfgPath {
		t.Errorf("loaded path: got %q, want %q", loaded, cfgPath)
	}

	for k, want := range checks {
		if got := os.Getenv(k); got != want {
			t.Errorf("%s: got %q, want %q", k, got, want)
		}
	}
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	content := []byte(`
model:
  provider: ollama
`)
	if err := os.WriteFile(cfgPath, content, 0o644); err != nil {
		t.Fatal(err)
	}

	// Set env var BEFORE loading; it should NOT be overwritten.
	t.Setenv("MODEL_PROVIDER", "gemini")

	_, err := Load(cfgPath, slog.Default())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if got := os.Getenv("MODEL_PROVIDER"); got != "gemini" {
		t.Errorf("MODEL_PROVIDER: expected env override %q, got %q", "gemini", got)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	if err := os.WriteFile(cfgPath, []byte("{{invalid yaml"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(cfgPath, slog.Default())
	if err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(envPath, []byte("UPLOAD_DIR=/from/dotenv\nCHUNK_SIZE=500\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("UPLOAD_DIR", "")
	os.Unsetenv("UPLOAD_DIR")
	t.Setenv("CHUNK_SIZE", "1200")

	if err := LoadDotEnv(envPath); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := os.Getenv("UPLOAD_DIR"); got != "/from/dotenv" {
		t.Errorf("UPLOAD_DIR: got %q", got)
	}
	if got := os.Getenv("CHUNK_SIZE"); got != "1200" {
		t.Errorf("CHUNK_SIZE: existing env var overwritten, got %q", got)
	}
}

func TestLoadDotEnv_MissingFile(t *testing.T) {
	t.Parallel()
	if err := LoadDotEnv(filepath.Join(t.TempDir(), "nope.env")); err != nil {
		t.Fatalf("missing .env should not error, got %v", err)
	}
}

func TestAccessors(t *testing.T) {
	t.Setenv("CFG_TEST_STR", "value")
	t.Setenv("CFG_TEST_INT", "42")
	t.Setenv("CFG_TEST_BAD_INT", "forty-two")
	t.Setenv("CFG_TEST_DUR", "90s")
	t.Setenv("CFG_TEST_LIST", " a, b ,,c ")
	t.Setenv("CFG_TEST_BOOL", "yes")
	t.Setenv("CFG_TEST_FLOAT", "0.25")

	if got := String("CFG_TEST_STR", "x"); got != "value" {
		t.Errorf("String: got %q", got)
	}
	if got := String("CFG_TEST_MISSING", "fallback"); got != "fallback" {
		t.Errorf("String fallback: got %q", got)
	}
	if got := Int("CFG_TEST_INT", 1); got != 42 {
		t.Errorf("Int: got %d", got)
	}
	if got := Int("CFG_TEST_BAD_INT", 7); got != 7 {
		t.Errorf("Int fallback on parse error: got %d", got)
	}
	if got := Duration("CFG_TEST_DUR", time.Second); got != 90*time.Second {
		t.Errorf("Duration: got %v", got)
	}
	if got := Float32("CFG_TEST_FLOAT", 1); got != 0.25 {
		t.Errorf("Float32: got %v", got)
	}
	if !Bool("CFG_TEST_BOOL") {
		t.Error("Bool: expected true")
	}
	got := List("CFG_TEST_LIST", nil)
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("List: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("List[%d]: got %q, want %q", i, got[i], want[i])
		}
	}
	if got := List("CFG_TEST_LIST_MISSING", []string{"d"}); len(got) != 1 || got[0] != "d" {
		t.Errorf("List fallback: got %v", got)
	}
}

func TestFloat32Str(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   float32
		want string
	}{
		{0.0, ""},
		{0.2, "0.2"},
		{0.3, "0.3"},
		{1.0, "1"},
	}
	for _, tt := range tests {
		if got := float32Str(tt.in); got != tt.want {
			t.Errorf("float32Str(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIntStr(t *testing.T) {
	t.Parallel()
	if got := intStr(0); got != "" {
		t.Errorf("intStr(0) = %q, want empty", got)
	}
	if got := intStr(6334); got != "6334" {
		t.Errorf("intStr(6334) = %q", got)
	}
}
