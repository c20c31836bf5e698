package audit

import (
	"bytes"
	"log/slog"
	"os"
	"strings"
	"testing"
)

func TestSanitiseKey_Secret(t *testing.T) {
	t.Parallel()
	if got := SanitiseKey("GOOGLE_API_KEY", "AIza-abc123"); got != "set" {
		t.Errorf("expected 'set', got %q", got)
	}
	if got := SanitiseKey("GOOGLE_API_KEY", ""); got != "unset" {
		t.Errorf("expected 'unset', got %q", got)
	}
}

func TestSanitiseKey_NonSecret(t *testing.T) {
	t.Parallel()
	if got := SanitiseKey("MODEL_PROVIDER", "gemini"); got != "gemini" {
		t.Errorf("expected 'gemini', got %q", got)
	}
	if got := SanitiseKey("UNKNOWN_KEY", ""); got != "unset" {
		t.Errorf("expected 'unset', got %q", got)
	}
}

func TestSanitiseKey_CredentialURL(t *testing.T) {
	t.Parallel()
	tests := []struct {
		key, in, want string
	}{
		{"PG_CONNECTION_STRING", "postgres://app:hunter2@db:5432/resumes", "postgres://app:xxxxx@db:5432/resumes"},
		{"QUEUE_BROKER_URL", "redis://redis:6379/0", "redis://redis:6379/0"},
		{"PG_CONNECTION_STRING", "host=db password=hunter2", "set"},
		{"QUEUE_BROKER_URL", "", "unset"},
	}
	for _, tt := range tests {
		if got := SanitiseKey(tt.key, tt.in); got != tt.want {
			t.Errorf("SanitiseKey(%s, %q) = %q, want %q", tt.key, tt.in, got, tt.want)
		}
	}
}

func TestLogCommandStart_NeverLeaksSecrets(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "super-secret-key")
	t.Setenv("PG_CONNECTION_STRING", "postgres://app:hunter2@db:5432/resumes")

	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))
	LogCommandStart(log, "serve", "")

	out := buf.String()
	if strings.Contains(out, "super-secret-key") || strings.Contains(out, "hunter2") {
		t.Fatalf("audit log leaked a secret: %s", out)
	}
	if !strings.Contains(out, `"command":"serve"`) {
		t.Errorf("expected command attr in %s", out)
	}
}

func TestPresence(t *testing.T) {
	t.Parallel()
	if got := presence("something"); got != "set" {
		t.Errorf("expected 'set', got %q", got)
	}
	if got := presence(""); got != "unset" {
		t.Errorf("expected 'unset', got %q", got)
	}
}

func TestSanitiseConfigPath(t *testing.T) {
	t.Parallel()
	if got := sanitiseConfigPath(""); got != "none" {
		t.Errorf("expected 'none', got %q", got)
	}
	if got := sanitiseConfigPath("/tmp/config.yaml"); got != "/tmp/config.yaml" {
		t.Errorf("expected '/tmp/config.yaml', got %q", got)
	}
	home, err := os.UserHomeDir()
	if err == nil {
		p := home + "/.resumechat/config.yaml"
		if got := sanitiseConfigPath(p); got != "~/.resumechat/config.yaml" {
			t.Errorf("expected '~/.resumechat/config.yaml', got %q", got)
		}
	}
}
