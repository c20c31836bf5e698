// Package audit provides a structured audit logger for CLI command invocations.
// It logs command name, resolved configuration, and sanitised environment state
// so operators can trace what happened without exposing secret values.
//
// Secrets are logged as presence/absence only. Connection URLs are logged with
// their credentials redacted.
package audit

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"strings"
)

// redaction classifies how an env var value is written to the audit log.
type redaction int

const (
	// plain values are logged verbatim.
	plain redaction = iota
	// secret values are logged as "set" or "unset".
	secret
	// credentialURL values are logged with any userinfo password removed.
	credentialURL
)

// auditEntry defines an env var to include in the audit log.
type auditEntry struct {
	// key is the environment variable name.
	key string
	// mode selects how the value is sanitised.
	mode redaction
}

// auditKeys is the ordered list of env vars included in every audit log entry.
var auditKeys = []auditEntry{
	{"MODEL_PROVIDER", plain},
	{"GOOGLE_API_KEY", secret},
	{"GEMINI_MODEL", plain},
	{"OPENAI_API_KEY", secret},
	{"OPENAI_MODEL", plain},
	{"AZURE_OPENAI_API_KEY", secret},
	{"AZURE_OPENAI_ENDPOINT", plain},
	{"AZURE_OPENAI_DEPLOYMENT", plain},
	{"OLLAMA_HOST", plain},
	{"OLLAMA_MODEL", plain},
	{"ARK_API_KEY", secret},
	{"EMBEDDING_PROVIDER", plain},
	{"EMBEDDING_MODEL", plain},
	{"EMBEDDING_DIMENSIONS", plain},
	{"EMBEDDING_API_KEY", secret},
	{"VECTOR_BACKEND", plain},
	{"PG_CONNECTION_STRING", credentialURL},
	{"QDRANT_HOST", plain},
	{"QDRANT_PORT", plain},
	{"QDRANT_API_KEY", secret},
	{"QUEUE_BROKER_URL", credentialURL},
	{"QUEUE_RESULT_BACKEND_URL", credentialURL},
	{"UPLOAD_DIR", plain},
	{"SEARCH_TOOL_URL", plain},
	{"CHUNK_SIZE", plain},
	{"CHUNK_OVERLAP", plain},
	{"WORKER_CONCURRENCY", plain},
	{"RESUMECHAT_API_KEY", secret},
	{"RESUMECHAT_LEDGER_DB", plain},
	{"LOG_LEVEL", plain},
	{"LOG_FORMAT", plain},
	{"LOG_FILE", plain},
	{"LANGFUSE_PUBLIC_KEY", secret},
	{"LANGFUSE_SECRET_KEY", secret},
}

// modes indexes auditKeys by name for SanitiseKey lookups.
var modes = func() map[string]redaction {
	m := make(map[string]redaction, len(auditKeys))
	for _, e := range auditKeys {
		m[e.key] = e.mode
	}
	return m
}()

// LogCommandStart emits a structured audit log entry when a CLI command begins.
// It records the command name, config file source, and sanitised environment.
func LogCommandStart(log *slog.Logger, command string, configPath string) {
	attrs := []slog.Attr{
		slog.String("command", command),
		slog.String("config_file", sanitiseConfigPath(configPath)),
	}

	for _, entry := range auditKeys {
		attrs = append(attrs, slog.String(entry.key, sanitise(entry.mode, os.Getenv(entry.key))))
	}

	log.LogAttrs(context.TODO(), slog.LevelInfo, "audit: command start", attrs...)
}

// SanitiseKey returns a log-safe rendering of value for the named env var.
// Unknown keys are treated as plain values.
func SanitiseKey(key, value string) string {
	return sanitise(modes[key], value)
}

func sanitise(mode redaction, value string) string {
	switch mode {
	case secret:
		return presence(value)
	case credentialURL:
		return redactURL(value)
	default:
		return valOrUnset(value)
	}
}

// presence returns "set" if the value is non-empty, "unset" otherwise.
func presence(v string) string {
	if v != "" {
		return "set"
	}
	return "unset"
}

// valOrUnset returns the value if non-empty, "unset" otherwise.
func valOrUnset(v string) string {
	if v != "" {
		return v
	}
	return "unset"
}

// redactURL strips the password from a connection URL. Values that do not
// parse as URLs are reduced to presence only.
func redactURL(v string) string {
	if v == "" {
		return "unset"
	}
	u, err := url.Parse(v)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "set"
	}
	return u.Redacted()
}

// sanitiseConfigPath returns the config path or "none" if empty.
func sanitiseConfigPath(p string) string {
	if p == "" {
		return "none"
	}
	// Redact home directory for privacy in logs.
	home, err := os.UserHomeDir()
	if err == nil && strings.HasPrefix(p, home) {
		return "~" + p[len(home):]
	}
	return p
}
